// Package worker runs background purge sweeps, on a schedule and on demand from the job queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aura-drive/backend/internal/files"
	"github.com/aura-drive/backend/pkg/queue"
)

// ErrSweepRunning is returned by Sweep when another sweep has not finished yet.
var ErrSweepRunning = errors.New("purge sweep already running")

const dequeueTimeout = 5 * time.Second

// Purger removes every file flagged for deletion.
type Purger interface {
	PurgeDeletedFiles(ctx context.Context) (*files.PurgeReport, error)
}

// JobSource hands out queued jobs and takes failed ones back.
type JobSource interface {
	Dequeue(ctx context.Context, key string, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, key string) error
}

// PurgeWorker triggers purge sweeps. At most one sweep runs at a time.
type PurgeWorker struct {
	purger   Purger
	jobs     JobSource
	interval time.Duration
	backoff  time.Duration
	logger   *zap.Logger
	running  atomic.Bool
}

// NewPurgeWorker creates a purge worker. jobs may be nil, in which case only scheduled sweeps run.
func NewPurgeWorker(purger Purger, jobs JobSource, interval time.Duration, logger *zap.Logger) *PurgeWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurgeWorker{purger: purger, jobs: jobs, interval: interval, backoff: queue.RetryBackoff, logger: logger}
}

// Sweep runs one purge pass. It returns ErrSweepRunning without doing anything if a pass is
// already in progress.
func (w *PurgeWorker) Sweep(ctx context.Context, trigger string) (*files.PurgeReport, error) {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Info("purge sweep skipped, previous sweep still running", zap.String("trigger", trigger))
		return nil, ErrSweepRunning
	}
	defer w.running.Store(false)

	start := time.Now()
	report, err := w.purger.PurgeDeletedFiles(ctx)
	if err != nil {
		w.logger.Error("purge sweep failed", zap.String("trigger", trigger), zap.Error(err))
		return nil, err
	}
	w.logger.Info("purge sweep completed",
		zap.String("trigger", trigger),
		zap.Int("candidates", report.Candidates),
		zap.Int("purged", report.Purged),
		zap.Int("blob_errors", report.BlobErrors),
		zap.Duration("took", time.Since(start)))
	return report, nil
}

// Process executes one queued purge job. Records that could not be removed fail the job so the
// queue retries the whole sweep.
func (w *PurgeWorker) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.PurgePayload()
	if err != nil {
		return err
	}
	w.logger.Info("purge requested",
		zap.String("job_id", job.ID),
		zap.String("requested_by", payload.RequestedBy.String()),
		zap.String("reason", payload.Reason))

	report, err := w.Sweep(ctx, "queue")
	if errors.Is(err, ErrSweepRunning) {
		return nil
	}
	if err != nil {
		return err
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d files could not be purged", len(failed), report.Candidates)
	}
	return nil
}

// Run starts the schedule and, if a job source is set, the queue consumer. It returns when ctx is done.
func (w *PurgeWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.runSchedule(ctx)
		return nil
	})
	if w.jobs != nil {
		g.Go(func() error {
			w.runQueue(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (w *PurgeWorker) runSchedule(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("scheduled purge disabled")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		_, _ = w.Sweep(ctx, "schedule")
		select {
		case <-ctx.Done():
			w.logger.Info("purge scheduler stopping")
			return
		case <-ticker.C:
		}
	}
}

func (w *PurgeWorker) runQueue(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			w.logger.Info("purge queue consumer stopping")
			return
		}

		job, err := w.jobs.Dequeue(ctx, queue.QueuePurge, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, w.backoff)
			continue
		}
		if job == nil {
			continue
		}

		w.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := w.Process(ctx, job); err != nil {
			w.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := w.jobs.Retry(ctx, job, queue.QueuePurge); reErr != nil {
				w.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, w.backoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
