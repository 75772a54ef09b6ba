package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vladmir0512/deadline-bot/internal/domain"
	"github.com/vladmir0512/deadline-bot/internal/store"
)

func newTestReconciler(t *testing.T) (*Reconciler, *store.MemoryRepo, int64) {
	t.Helper()
	repo := store.NewMemoryRepo()
	u := &domain.User{TelegramID: 100, Username: "alice", Email: "alice@example.com"}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return NewReconciler(repo, zap.NewNop(), "cal"), repo, u.ID
}

func TestReconcile_InsertThenIdempotent(t *testing.T) {
	rec, repo, userID := newTestReconciler(t)
	ctx := context.Background()

	due := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	batch := []ExternalRecord{{SourceID: "E1", Title: "Essay", DueDate: &due, UserRef: "alice"}}

	sum, err := rec.Reconcile(ctx, batch, false)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Inserted)
	require.NotEmpty(t, sum.RunID)

	d, err := repo.GetDeadlineBySourceKey(ctx, "cal", "E1")
	require.NoError(t, err)
	require.Equal(t, userID, d.UserID)
	require.Equal(t, domain.StatusActive, d.Status)
	firstUpdatedAt := d.UpdatedAt

	// Reconciling the identical batch again is a no-op.
	sum, err = rec.Reconcile(ctx, batch, false)
	require.NoError(t, err)
	require.Equal(t, Summary{RunID: sum.RunID, Unchanged: 1}, sum)

	d, err = repo.GetDeadlineBySourceKey(ctx, "cal", "E1")
	require.NoError(t, err)
	require.Equal(t, firstUpdatedAt, d.UpdatedAt, "no-op run must not touch updated_at")

	all, err := repo.ListActiveDeadlines(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "no duplicate rows for the same source key")
}

func TestReconcile_MalformedRecordsSkipped(t *testing.T) {
	rec, repo, _ := newTestReconciler(t)
	ctx := context.Background()

	due := time.Now().UTC().Add(48 * time.Hour)
	batch := []ExternalRecord{
		{SourceID: "", Title: "no id", UserRef: "alice"},
		{SourceID: "X1", Title: "unknown owner", UserRef: "nobody", DueDate: &due},
		{SourceID: "OK1", Title: "good", UserRef: "alice", DueDate: &due},
	}

	sum, err := rec.Reconcile(ctx, batch, false)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Rejected)
	require.Equal(t, 1, sum.Inserted)

	all, err := repo.ListActiveDeadlines(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestReconcile_MatchByEmail(t *testing.T) {
	rec, repo, userID := newTestReconciler(t)
	ctx := context.Background()

	sum, err := rec.Reconcile(ctx, []ExternalRecord{
		{SourceID: "E9", Title: "By mail", UserRef: "Alice@Example.com"},
	}, false)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Inserted)

	d, err := repo.GetDeadlineBySourceKey(ctx, "cal", "E9")
	require.NoError(t, err)
	require.Equal(t, userID, d.UserID)
}

func TestReconcile_DueMoveClearsOneShotMarkers(t *testing.T) {
	rec, repo, _ := newTestReconciler(t)
	ctx := context.Background()

	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := rec.Reconcile(ctx, []ExternalRecord{
		{SourceID: "E1", Title: "Essay", DueDate: &due, UserRef: "alice"},
	}, false)
	require.NoError(t, err)

	d, err := repo.GetDeadlineBySourceKey(ctx, "cal", "E1")
	require.NoError(t, err)
	require.NoError(t, repo.RecordNotified(ctx, d.ID, domain.KindHalfway, time.Now().UTC()))
	require.NoError(t, repo.RecordNotified(ctx, d.ID, domain.KindDaily, time.Now().UTC()))

	moved := due.Add(14 * 24 * time.Hour)
	sum, err := rec.Reconcile(ctx, []ExternalRecord{
		{SourceID: "E1", Title: "Essay", DueDate: &moved, UserRef: "alice"},
	}, false)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Updated)

	hist, err := repo.SentHistory(ctx, d.ID)
	require.NoError(t, err)
	require.NotContains(t, hist, domain.KindHalfway, "moved due date re-arms the halfway reminder")
	require.Contains(t, hist, domain.KindDaily, "recurring markers stay")
}

func TestReconcile_TitleChangePreservesLocalStatus(t *testing.T) {
	rec, repo, _ := newTestReconciler(t)
	ctx := context.Background()

	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := rec.Reconcile(ctx, []ExternalRecord{
		{SourceID: "E1", Title: "Essay", DueDate: &due, UserRef: "alice"},
	}, false)
	require.NoError(t, err)

	d, err := repo.GetDeadlineBySourceKey(ctx, "cal", "E1")
	require.NoError(t, err)
	require.NoError(t, repo.SetDeadlineStatus(ctx, d.ID, domain.StatusCompleted))

	sum, err := rec.Reconcile(ctx, []ExternalRecord{
		{SourceID: "E1", Title: "Essay (final)", DueDate: &due, UserRef: "alice"},
	}, false)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Updated)

	d, err = repo.GetDeadlineBySourceKey(ctx, "cal", "E1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, d.Status)
	require.Equal(t, "Essay (final)", d.Title)
}

func TestReconcile_PruneOnlyOnCompleteFeed(t *testing.T) {
	rec, repo, _ := newTestReconciler(t)
	ctx := context.Background()

	due := time.Now().UTC().Add(72 * time.Hour)
	_, err := rec.Reconcile(ctx, []ExternalRecord{
		{SourceID: "A", Title: "keep", DueDate: &due, UserRef: "alice"},
		{SourceID: "B", Title: "drop later", DueDate: &due, UserRef: "alice"},
	}, false)
	require.NoError(t, err)

	// Truncated feed: B missing, complete=false — nothing is cancelled.
	sum, err := rec.Reconcile(ctx, []ExternalRecord{
		{SourceID: "A", Title: "keep", DueDate: &due, UserRef: "alice"},
	}, false)
	require.NoError(t, err)
	require.Zero(t, sum.Pruned)

	b, err := repo.GetDeadlineBySourceKey(ctx, "cal", "B")
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, b.Status)

	// Complete feed without B: B is cancelled, not deleted.
	sum, err = rec.Reconcile(ctx, []ExternalRecord{
		{SourceID: "A", Title: "keep", DueDate: &due, UserRef: "alice"},
	}, true)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Pruned)

	b, err = repo.GetDeadlineBySourceKey(ctx, "cal", "B")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, b.Status)
}
