package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vladmir0512/deadline-bot/internal/domain"
	"github.com/vladmir0512/deadline-bot/internal/store"
)

// Sender is the minimal interface the scheduler needs to deliver a text
// message. telegram.Router implements it.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Dispatched identifies one delivered notification.
type Dispatched struct {
	UserID     int64
	DeadlineID int64
	Kind       domain.NotificationKind
}

// Scheduler periodically evaluates every active deadline against its owner's
// settings and dispatches the due notifications.
type Scheduler struct {
	repo      store.Repo
	log       *zap.Logger
	sender    Sender
	interval  time.Duration
	defaultTZ string
}

// New creates a Scheduler ticking at the given interval.
func New(repo store.Repo, log *zap.Logger, sender Sender, interval time.Duration, defaultTZ string) *Scheduler {
	return &Scheduler{repo: repo, log: log, sender: sender, interval: interval, defaultTZ: defaultTZ}
}

// Run starts the loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx, time.Now().UTC())
		}
	}
}

// ownerState is the per-user data one tick needs, loaded once per owner.
type ownerState struct {
	user     *domain.User
	settings *domain.NotificationSettings
	subs     []domain.Subscription
	blocked  bool
}

// Tick performs one scheduling cycle and reports what was dispatched.
// Store reads and the delivery record happen around the send, never holding
// a store transaction across it; a failed send leaves the markers untouched
// so the next tick retries.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []Dispatched {
	deadlines, err := s.repo.ListActiveDeadlines(ctx)
	if err != nil {
		s.log.Error("list active deadlines failed", zap.Error(err))
		return nil
	}

	owners := map[int64]*ownerState{}
	var out []Dispatched

	for _, d := range deadlines {
		st, ok := owners[d.UserID]
		if !ok {
			st = s.loadOwner(ctx, d.UserID)
			owners[d.UserID] = st
		}
		if st == nil || st.blocked {
			continue
		}

		hist, err := s.repo.SentHistory(ctx, d.ID)
		if err != nil {
			s.log.Error("load sent history failed", zap.Error(err), zap.Int64("deadlineID", d.ID))
			continue
		}

		dec := domain.Evaluate(d, *st.settings, st.subs, now, hist)

		if dec.MarkOverdue {
			if err := s.repo.SetDeadlineStatus(ctx, d.ID, domain.StatusOverdue); err != nil {
				s.log.Error("overdue transition failed", zap.Error(err), zap.Int64("deadlineID", d.ID))
			} else {
				s.log.Info("deadline overdue", zap.Int64("deadlineID", d.ID), zap.String("title", d.Title))
			}
		}

		for _, kind := range dec.Due {
			text := renderNotification(kind, d, st.settings.TZ)
			if err := s.sender.SendMessage(st.user.TelegramID, text); err != nil {
				s.log.Error("dispatch failed, will retry next tick",
					zap.Error(err),
					zap.Int64("userID", st.user.ID),
					zap.Int64("deadlineID", d.ID),
					zap.String("kind", string(kind)))
				continue
			}
			if err := s.repo.RecordNotified(ctx, d.ID, kind, now); err != nil {
				s.log.Error("record notified failed", zap.Error(err), zap.Int64("deadlineID", d.ID))
			}
			out = append(out, Dispatched{UserID: st.user.ID, DeadlineID: d.ID, Kind: kind})
		}
	}

	if len(out) > 0 {
		s.log.Info("tick finished", zap.Int("dispatched", len(out)))
	}
	return out
}

// loadOwner fetches everything the eligibility evaluation needs for one
// user. Returns nil when the user cannot be loaded; that owner's deadlines
// are skipped this tick.
func (s *Scheduler) loadOwner(ctx context.Context, userID int64) *ownerState {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		s.log.Error("load user failed", zap.Error(err), zap.Int64("userID", userID))
		return nil
	}

	blocked, err := s.repo.IsBlocked(ctx, user.TelegramID)
	if err != nil {
		s.log.Error("blocked check failed", zap.Error(err), zap.Int64("userID", userID))
		return nil
	}

	settings, err := s.repo.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		settings = domain.DefaultSettings(userID, s.defaultTZ)
	} else if err != nil {
		s.log.Error("load settings failed", zap.Error(err), zap.Int64("userID", userID))
		return nil
	}

	subs, err := s.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		s.log.Error("load subscriptions failed", zap.Error(err), zap.Int64("userID", userID))
		return nil
	}

	return &ownerState{user: user, settings: settings, subs: subs, blocked: blocked}
}
