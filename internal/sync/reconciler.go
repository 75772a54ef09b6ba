package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vladmir0512/deadline-bot/internal/domain"
	"github.com/vladmir0512/deadline-bot/internal/store"
)

// Summary reports the outcome of one reconciliation run.
type Summary struct {
	RunID     string
	Inserted  int
	Updated   int
	Unchanged int
	Rejected  int
	Pruned    int
}

// Reconciler merges externally fetched deadline records into the store.
// Records carry no local state; reconciliation only ever touches title,
// description and due date, so statuses and verifications survive re-fetches.
type Reconciler struct {
	repo   store.Repo
	log    *zap.Logger
	source string
}

// NewReconciler creates a Reconciler for one source tag.
func NewReconciler(repo store.Repo, log *zap.Logger, source string) *Reconciler {
	return &Reconciler{repo: repo, log: log, source: source}
}

// Reconcile applies one batch. Malformed records are skipped and counted;
// storage errors abort the run. When complete is true the batch is treated
// as the full upstream feed and active deadlines missing from it are
// transitioned to cancelled, never deleted.
func (r *Reconciler) Reconcile(ctx context.Context, batch []ExternalRecord, complete bool) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	log := r.log.With(zap.String("runID", sum.RunID), zap.String("source", r.source))

	seen := make(map[string]bool, len(batch))
	for _, rec := range batch {
		if rec.SourceID == "" || rec.Title == "" || rec.UserRef == "" {
			sum.Rejected++
			log.Warn("record rejected",
				zap.Error(fmt.Errorf("%w: id=%q title=%q user=%q", ErrMalformedRecord, rec.SourceID, rec.Title, rec.UserRef)))
			continue
		}

		owner, err := r.repo.FindUserByIdentifier(ctx, rec.UserRef)
		if errors.Is(err, store.ErrNotFound) {
			sum.Rejected++
			log.Warn("record rejected",
				zap.Error(fmt.Errorf("%w: no user for %q", ErrMalformedRecord, rec.UserRef)),
				zap.String("sourceID", rec.SourceID))
			continue
		}
		if err != nil {
			return sum, err
		}
		seen[rec.SourceID] = true

		existing, err := r.repo.GetDeadlineBySourceKey(ctx, r.source, rec.SourceID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			_, inserted, err := r.repo.UpsertDeadlineBySourceKey(ctx, &domain.Deadline{
				UserID:      owner.ID,
				Title:       rec.Title,
				Description: rec.Description,
				DueDate:     rec.DueDate,
				Status:      domain.StatusActive,
				Source:      r.source,
				SourceID:    rec.SourceID,
			})
			if err != nil {
				return sum, err
			}
			if inserted {
				sum.Inserted++
			} else {
				// lost the race to a concurrent run; the row exists now
				sum.Updated++
			}

		case err != nil:
			return sum, err

		default:
			if existing.Title == rec.Title &&
				existing.Description == rec.Description &&
				timePtrEqual(existing.DueDate, rec.DueDate) {
				sum.Unchanged++
				continue
			}
			dueMoved := !timePtrEqual(existing.DueDate, rec.DueDate)
			if _, _, err := r.repo.UpsertDeadlineBySourceKey(ctx, &domain.Deadline{
				UserID:      existing.UserID,
				Title:       rec.Title,
				Description: rec.Description,
				DueDate:     rec.DueDate,
				Source:      r.source,
				SourceID:    rec.SourceID,
			}); err != nil {
				return sum, err
			}
			if dueMoved {
				// A moved due date re-arms the one-shot and warning
				// reminders; stale markers would suppress them.
				if err := r.repo.ClearNotified(ctx, existing.ID, domain.KindHalfway, domain.KindOverdueWarning); err != nil {
					return sum, err
				}
			}
			sum.Updated++
		}
	}

	if complete {
		active, err := r.repo.ListSourceDeadlines(ctx, r.source, domain.StatusActive)
		if err != nil {
			return sum, err
		}
		for _, d := range active {
			if seen[d.SourceID] {
				continue
			}
			if err := r.repo.SetDeadlineStatus(ctx, d.ID, domain.StatusCancelled); err != nil {
				return sum, err
			}
			sum.Pruned++
			log.Info("deadline cancelled, gone upstream",
				zap.Int64("deadlineID", d.ID), zap.String("title", d.Title))
		}
	}

	log.Info("reconciliation finished",
		zap.Int("inserted", sum.Inserted),
		zap.Int("updated", sum.Updated),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("rejected", sum.Rejected),
		zap.Int("pruned", sum.Pruned))
	return sum, nil
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
