package queue

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeJobEnvelope(t *testing.T) {
	by := uuid.New()
	job, err := NewJob(JobTypePurge, PurgePayload{RequestedBy: by, Reason: "manual"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, 0, job.Attempt)

	raw, err := json.Marshal(job)
	require.NoError(t, err)
	var decoded Job
	require.NoError(t, json.Unmarshal(raw, &decoded))

	p, err := decoded.PurgePayload()
	require.NoError(t, err)
	assert.Equal(t, by, p.RequestedBy)
	assert.Equal(t, "manual", p.Reason)
}

func TestPurgePayloadRejectsOtherJobs(t *testing.T) {
	job := &Job{Type: "email", Payload: json.RawMessage(`{}`)}
	_, err := job.PurgePayload()
	assert.Error(t, err)

	job = &Job{Type: JobTypePurge, Payload: json.RawMessage(`not json`)}
	_, err = job.PurgePayload()
	assert.Error(t, err)
}
