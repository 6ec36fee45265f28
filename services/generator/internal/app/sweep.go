package app

import (
	"context"
	"time"

	"questiongen/internal/util"
)

const sweepBatchSize = 100

// Sweep deletes jobs older than window along with their topics and
// unsaved drafts. Saved drafts' bank records are never touched; the
// questions live on in the bank after their job is swept. Returns the
// number of jobs removed.
func (a *App) Sweep(ctx context.Context, window time.Duration) (int, error) {
	cutoff := a.now().Add(-window)
	logger := util.LoggerFromContext(ctx)

	removed := 0
	for {
		jobs, err := a.store.ListJobsCreatedBefore(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return removed, err
		}
		if len(jobs) == 0 {
			break
		}
		for _, job := range jobs {
			// Delete order matters: drafts, then topics, then the job,
			// so a partial failure never strands children.
			if err := a.store.DeleteUnsavedDraftsByJob(ctx, job.ID); err != nil {
				return removed, err
			}
			if err := a.store.DeleteTopicsByJob(ctx, job.ID); err != nil {
				return removed, err
			}
			if job.StorageKey != "" {
				if err := a.objects.Delete(ctx, job.StorageKey); err != nil {
					logger.Warn("sweep: delete stored document failed", "job_id", job.ID, "err", err)
				}
			}
			if err := a.store.DeleteJob(ctx, job.ID); err != nil {
				return removed, err
			}
			removed++
		}
		if len(jobs) < sweepBatchSize {
			break
		}
	}
	if removed > 0 {
		logger.Info("retention sweep complete", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
