package files

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aura-drive/backend/internal/models"
	"github.com/aura-drive/backend/pkg/storage"
)

// ErrNotFlagged is returned by Store.Purge when the record was restored or removed after the sweep
// listed it.
var ErrNotFlagged = errors.New("file no longer flagged for deletion")

// PurgeOutcome is the result of purging one flagged file.
type PurgeOutcome struct {
	FileID     uuid.UUID `json:"file_id"`
	StorageRef string    `json:"storage_ref"`
	// BlobMissing is set when the blob was already gone before the sweep reached it.
	BlobMissing bool `json:"blob_missing"`
	// BlobErr wraps models.ErrBlobUnavailable when the blob could not be deleted. The record is
	// still removed.
	BlobErr error `json:"-"`
	// Skipped is set when the file was restored (or already purged) after the sweep listed it.
	// Neither blob nor record is touched.
	Skipped bool `json:"skipped"`
	// Err is set when the record itself could not be removed; the file stays flagged.
	Err error `json:"-"`
}

// Purged reports whether the file record was removed by this sweep.
func (o PurgeOutcome) Purged() bool { return o.Err == nil && !o.Skipped }

// PurgeReport collects the per-file outcomes of one sweep.
type PurgeReport struct {
	Candidates int            `json:"candidates"`
	Purged     int            `json:"purged"`
	BlobErrors int            `json:"blob_errors"`
	Skipped    int            `json:"skipped"`
	Outcomes   []PurgeOutcome `json:"outcomes"`
}

// Failed returns the outcomes whose record could not be removed.
func (r *PurgeReport) Failed() []PurgeOutcome {
	var out []PurgeOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// PurgeDeletedFiles physically removes every flagged file: blob first, then the record and its
// favorites. Files restored after the listing are skipped untouched. Items are independent; a failure on one never stops the others. The sweep is
// attempted once; retrying is up to the caller. The returned error is only set when the
// candidates could not be loaded.
func (s *Service) PurgeDeletedFiles(ctx context.Context) (*PurgeReport, error) {
	candidates, err := s.store.ListMarkedForDeletion(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files marked for deletion: %w", err)
	}
	report := &PurgeReport{
		Candidates: len(candidates),
		Outcomes:   make([]PurgeOutcome, len(candidates)),
	}
	var g errgroup.Group
	g.SetLimit(s.opts.PurgeConcurrency)
	for i := range candidates {
		i := i
		g.Go(func() error {
			report.Outcomes[i] = s.purgeOne(ctx, &candidates[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range report.Outcomes {
		if o.Purged() {
			report.Purged++
		}
		if o.BlobErr != nil {
			report.BlobErrors++
		}
		if o.Skipped {
			report.Skipped++
		}
	}
	s.logger.Info("purge sweep finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("purged", report.Purged),
		zap.Int("blob_errors", report.BlobErrors),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

// purgeOne deletes the blob only after the store has confirmed, under its lock, that the record is
// still flagged. A file restored after listing keeps both blob and record.
func (s *Service) purgeOne(ctx context.Context, f *models.File) PurgeOutcome {
	out := PurgeOutcome{FileID: f.ID, StorageRef: f.StorageRef}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	err := s.store.Purge(ctx, f.ID, func(ctx context.Context) error {
		if err := s.blobs.DeleteBlob(ctx, f.StorageRef); err != nil {
			if errors.Is(err, storage.ErrBlobNotFound) {
				out.BlobMissing = true
				s.logger.Info("purge: blob already gone", zap.String("file_id", f.ID.String()), zap.String("storage_ref", f.StorageRef))
				return nil
			}
			out.BlobErr = fmt.Errorf("%w: %v", models.ErrBlobUnavailable, err)
			blobDeleteFailures.Inc()
			s.logger.Warn("purge: blob delete failed, removing record anyway",
				zap.String("file_id", f.ID.String()),
				zap.String("storage_ref", f.StorageRef),
				zap.Error(err))
		}
		return nil
	})
	if errors.Is(err, ErrNotFlagged) {
		out.Skipped = true
		s.logger.Info("purge: file no longer flagged, skipped", zap.String("file_id", f.ID.String()))
		return out
	}
	if err != nil {
		out.Err = fmt.Errorf("purge record: %w", err)
		purgeFailures.Inc()
		s.logger.Error("purge: record delete failed", zap.String("file_id", f.ID.String()), zap.Error(err))
		return out
	}
	filesPurged.Inc()
	return out
}
