package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vladmir0512/deadline-bot/internal/domain"
	"github.com/vladmir0512/deadline-bot/internal/store"
	syncpkg "github.com/vladmir0512/deadline-bot/internal/sync"
)

type fakeSender struct {
	sent []string
	fail error
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, text)
	return nil
}

type fixture struct {
	repo   *store.MemoryRepo
	sender *fakeSender
	sched  *Scheduler
	user   *domain.User
}

func newFixture(t *testing.T, kinds ...domain.NotificationKind) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemoryRepo()

	u := &domain.User{TelegramID: 4242, Username: "alice"}
	require.NoError(t, repo.CreateUser(ctx, u))

	s := domain.DefaultSettings(u.ID, "UTC")
	s.QuietStartM, s.QuietEndM = 0, 0 // no quiet hours
	require.NoError(t, repo.SaveSettings(ctx, s))

	for _, k := range kinds {
		require.NoError(t, repo.SetSubscription(ctx, u.ID, k, true))
	}

	sender := &fakeSender{}
	return &fixture{
		repo:   repo,
		sender: sender,
		sched:  New(repo, zap.NewNop(), sender, time.Minute, "UTC"),
		user:   u,
	}
}

func (f *fixture) addDeadline(t *testing.T, title string, created time.Time, due *time.Time) *domain.Deadline {
	t.Helper()
	d := &domain.Deadline{
		UserID:    f.user.ID,
		Title:     title,
		Status:    domain.StatusActive,
		Source:    "cal",
		SourceID:  title,
		CreatedAt: created,
	}
	d.DueDate = due
	require.NoError(t, f.repo.CreateDeadline(context.Background(), d))
	return d
}

// End-to-end: a halfway reminder fires exactly once, and a repeat tick the
// same day dispatches nothing.
func TestTick_HalfwayDispatchedOnce(t *testing.T) {
	f := newFixture(t, domain.KindHalfway)
	ctx := context.Background()

	now := time.Date(2026, 1, 29, 9, 0, 0, 0, time.UTC)
	due := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	d := f.addDeadline(t, "Essay", now.Add(-6*24*time.Hour), &due)

	out := f.sched.Tick(ctx, now)
	require.Len(t, out, 1)
	require.Equal(t, Dispatched{UserID: f.user.ID, DeadlineID: d.ID, Kind: domain.KindHalfway}, out[0])
	require.Len(t, f.sender.sent, 1)
	require.Contains(t, f.sender.sent[0], "Essay")

	stored, err := f.repo.GetDeadline(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastNotifiedAt)

	out = f.sched.Tick(ctx, now.Add(40*time.Minute))
	require.Empty(t, out, "repeat tick must not re-dispatch")
}

func TestTick_DailyAtMostOncePerDay(t *testing.T) {
	f := newFixture(t, domain.KindDaily)
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	due := now.Add(5 * 24 * time.Hour)
	f.addDeadline(t, "Report", now.Add(-24*time.Hour), &due)

	require.Len(t, f.sched.Tick(ctx, now), 1)
	require.Empty(t, f.sched.Tick(ctx, now.Add(20*time.Minute)))

	// Next day at the notification hour it fires again.
	require.Len(t, f.sched.Tick(ctx, now.Add(24*time.Hour)), 1)
}

func TestTick_BlockedUserSkipped(t *testing.T) {
	f := newFixture(t, domain.KindDaily)
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	due := now.Add(5 * 24 * time.Hour)
	f.addDeadline(t, "Report", now.Add(-24*time.Hour), &due)

	require.NoError(t, f.repo.BlockUser(ctx, &domain.BlockedUser{
		TelegramID: f.user.TelegramID, Reason: "spam", BlockedBy: 1,
	}))

	require.Empty(t, f.sched.Tick(ctx, now))
	require.Empty(t, f.sender.sent)
}

func TestTick_DispatchFailureRetriedNextTick(t *testing.T) {
	f := newFixture(t, domain.KindHalfway)
	ctx := context.Background()

	now := time.Date(2026, 1, 29, 9, 0, 0, 0, time.UTC)
	due := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	d := f.addDeadline(t, "Essay", now.Add(-6*24*time.Hour), &due)

	f.sender.fail = errors.New("telegram: 502")
	require.Empty(t, f.sched.Tick(ctx, now))

	// The failed send left no marker, so the one-shot is still eligible.
	hist, err := f.repo.SentHistory(ctx, d.ID)
	require.NoError(t, err)
	require.Empty(t, hist)

	f.sender.fail = nil
	out := f.sched.Tick(ctx, now.Add(30*time.Minute))
	require.Len(t, out, 1)
	require.Equal(t, domain.KindHalfway, out[0].Kind)
}

func TestTick_OverdueTransitionApplied(t *testing.T) {
	f := newFixture(t, domain.KindOverdueWarning)
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	due := now.Add(-3 * time.Hour)
	d := f.addDeadline(t, "Late", now.Add(-10*24*time.Hour), &due)

	out := f.sched.Tick(ctx, now)
	require.Len(t, out, 1)
	require.Equal(t, domain.KindOverdueWarning, out[0].Kind)

	stored, err := f.repo.GetDeadline(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOverdue, stored.Status)

	// Once overdue the deadline drops out of the active set entirely.
	require.Empty(t, f.sched.Tick(ctx, now.Add(time.Hour)))
}

// Feed record to first notification: reconcile an external record twice
// (second run is a no-op), then tick past the halfway point and observe
// exactly one dispatch.
func TestReconcileThenNotify(t *testing.T) {
	f := newFixture(t, domain.KindHalfway)
	ctx := context.Background()

	due := time.Now().UTC().Add(4 * 24 * time.Hour)
	batch := []syncpkg.ExternalRecord{
		{SourceID: "E1", Title: "Essay", DueDate: &due, UserRef: "alice"},
	}
	rec := syncpkg.NewReconciler(f.repo, zap.NewNop(), "cal")

	sum, err := rec.Reconcile(ctx, batch, false)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Inserted)

	sum, err = rec.Reconcile(ctx, batch, false)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Inserted)
	require.Equal(t, 1, sum.Unchanged)

	// Before the midpoint nothing fires.
	require.Empty(t, f.sched.Tick(ctx, time.Now().UTC().Add(24*time.Hour)))

	out := f.sched.Tick(ctx, time.Now().UTC().Add(3*24*time.Hour))
	require.Len(t, out, 1)
	require.Equal(t, domain.KindHalfway, out[0].Kind)

	require.Empty(t, f.sched.Tick(ctx, time.Now().UTC().Add(3*24*time.Hour+10*time.Minute)))
}

func TestTick_MultipleKindsSameTick(t *testing.T) {
	f := newFixture(t, domain.KindDaily, domain.KindHalfway)
	ctx := context.Background()

	now := time.Date(2026, 1, 29, 9, 0, 0, 0, time.UTC)
	due := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	f.addDeadline(t, "Essay", now.Add(-6*24*time.Hour), &due)

	out := f.sched.Tick(ctx, now)
	require.Len(t, out, 2)
	kinds := map[domain.NotificationKind]bool{}
	for _, disp := range out {
		kinds[disp.Kind] = true
	}
	require.True(t, kinds[domain.KindDaily] && kinds[domain.KindHalfway])
	require.Len(t, f.sender.sent, 2, "each kind goes out as its own message")
}
