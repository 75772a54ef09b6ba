package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vladmir0512/deadline-bot/internal/domain"
)

func TestMemoryRepo_UpsertBySourceKeyUnique(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	due := time.Now().UTC().Add(72 * time.Hour)
	d := &domain.Deadline{UserID: 1, Title: "Essay", DueDate: &due, Source: "cal", SourceID: "E1"}

	stored, inserted, err := repo.UpsertDeadlineBySourceKey(ctx, d)
	if err != nil || !inserted {
		t.Fatalf("first upsert: inserted=%v err=%v", inserted, err)
	}
	if stored.Status != domain.StatusActive {
		t.Fatalf("expected active status, got %s", stored.Status)
	}

	d.Title = "Essay v2"
	stored2, inserted, err := repo.UpsertDeadlineBySourceKey(ctx, d)
	if err != nil || inserted {
		t.Fatalf("second upsert: inserted=%v err=%v", inserted, err)
	}
	if stored2.ID != stored.ID || stored2.Title != "Essay v2" {
		t.Fatalf("expected update of same row: %+v", stored2)
	}
}

func TestMemoryRepo_UpsertConcurrentSameKey(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			due := time.Now().UTC().Add(24 * time.Hour)
			_, _, _ = repo.UpsertDeadlineBySourceKey(ctx, &domain.Deadline{
				UserID: 1, Title: "Race", DueDate: &due, Source: "cal", SourceID: "R1",
			})
		}()
	}
	wg.Wait()

	all, err := repo.ListActiveDeadlines(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one row for the key, got %d", len(all))
	}
}

func TestMemoryRepo_UpsertRejectsEmptyKey(t *testing.T) {
	repo := NewMemoryRepo()
	if _, _, err := repo.UpsertDeadlineBySourceKey(context.Background(), &domain.Deadline{Title: "manual"}); err == nil {
		t.Fatalf("expected error for empty source key")
	}
}

func TestMemoryRepo_PendingVerificationUnique(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	v := &domain.DeadlineVerification{DeadlineID: 7, UserID: 1, UserComment: "done early"}
	if err := repo.CreateVerification(ctx, v); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &domain.DeadlineVerification{DeadlineID: 7, UserID: 1}
	if err := repo.CreateVerification(ctx, dup); err != ErrDuplicateVerification {
		t.Fatalf("expected ErrDuplicateVerification, got %v", err)
	}

	// After resolution a new request may be filed.
	now := time.Now().UTC()
	v.Status = domain.VerificationRejected
	v.VerifiedAt = &now
	if err := repo.UpdateVerification(ctx, v); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.CreateVerification(ctx, dup); err != nil {
		t.Fatalf("create after resolve: %v", err)
	}
}

func TestMemoryRepo_NotificationHistory(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	d := &domain.Deadline{UserID: 1, Title: "t", Source: "cal", SourceID: "H1"}
	stored, _, err := repo.UpsertDeadlineBySourceKey(ctx, d)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	if err := repo.RecordNotified(ctx, stored.ID, domain.KindHalfway, at); err != nil {
		t.Fatalf("record: %v", err)
	}
	hist, err := repo.SentHistory(ctx, stored.ID)
	if err != nil || !hist[domain.KindHalfway].Equal(at) {
		t.Fatalf("history: %v %v", hist, err)
	}

	got, _ := repo.GetDeadline(ctx, stored.ID)
	if got.LastNotifiedAt == nil || !got.LastNotifiedAt.Equal(at) {
		t.Fatalf("last_notified_at cache not updated: %+v", got)
	}

	if err := repo.ClearNotified(ctx, stored.ID, domain.KindHalfway); err != nil {
		t.Fatalf("clear: %v", err)
	}
	hist, _ = repo.SentHistory(ctx, stored.ID)
	if _, ok := hist[domain.KindHalfway]; ok {
		t.Fatalf("halfway marker should be cleared")
	}
}
