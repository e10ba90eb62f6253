package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-drive/backend/internal/files"
	"github.com/aura-drive/backend/pkg/queue"
)

type stubPurger struct {
	calls   atomic.Int32
	report  *files.PurgeReport
	err     error
	started chan struct{}
	release chan struct{}
}

func (p *stubPurger) PurgeDeletedFiles(ctx context.Context) (*files.PurgeReport, error) {
	p.calls.Add(1)
	if p.started != nil {
		p.started <- struct{}{}
		<-p.release
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.report != nil {
		return p.report, nil
	}
	return &files.PurgeReport{}, nil
}

type memJobs struct {
	mu      sync.Mutex
	pending []*queue.Job
	retried []*queue.Job
}

func (m *memJobs) Dequeue(ctx context.Context, _ string, _ time.Duration) (*queue.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		select {
		case <-ctx.Done():
		case <-time.After(time.Millisecond):
		}
		return nil, nil
	}
	job := m.pending[0]
	m.pending = m.pending[1:]
	return job, nil
}

func (m *memJobs) Retry(_ context.Context, job *queue.Job, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Attempt++
	m.retried = append(m.retried, job)
	return nil
}

func (m *memJobs) retriedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.retried)
}

func purgeJob(t *testing.T) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypePurge, queue.PurgePayload{RequestedBy: uuid.New(), Reason: "manual"})
	require.NoError(t, err)
	return job
}

func TestSweepSkipsWhileRunning(t *testing.T) {
	p := &stubPurger{started: make(chan struct{}), release: make(chan struct{})}
	w := NewPurgeWorker(p, nil, 0, nil)

	done := make(chan error, 1)
	go func() {
		_, err := w.Sweep(context.Background(), "schedule")
		done <- err
	}()
	<-p.started

	_, err := w.Sweep(context.Background(), "queue")
	assert.ErrorIs(t, err, ErrSweepRunning)

	close(p.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), p.calls.Load())

	p.started = nil
	_, err = w.Sweep(context.Background(), "schedule")
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestProcess(t *testing.T) {
	ok := NewPurgeWorker(&stubPurger{report: &files.PurgeReport{Candidates: 2, Purged: 2}}, nil, 0, nil)
	require.NoError(t, ok.Process(context.Background(), purgeJob(t)))

	partial := NewPurgeWorker(&stubPurger{report: &files.PurgeReport{
		Candidates: 2,
		Purged:     1,
		Outcomes:   []files.PurgeOutcome{{FileID: uuid.New()}, {FileID: uuid.New(), Err: errors.New("locked")}},
	}}, nil, 0, nil)
	assert.Error(t, partial.Process(context.Background(), purgeJob(t)))

	failing := NewPurgeWorker(&stubPurger{err: errors.New("db down")}, nil, 0, nil)
	assert.Error(t, failing.Process(context.Background(), purgeJob(t)))

	bad := &queue.Job{Type: "email"}
	assert.Error(t, ok.Process(context.Background(), bad))
}

func TestRunConsumesQueueAndRetriesFailures(t *testing.T) {
	p := &stubPurger{err: errors.New("db down")}
	jobs := &memJobs{pending: []*queue.Job{purgeJob(t)}}
	w := NewPurgeWorker(p, jobs, 0, nil)
	w.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return jobs.retriedCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestRunSweepsOnSchedule(t *testing.T) {
	p := &stubPurger{}
	w := NewPurgeWorker(p, nil, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
