package store

import (
	"context"
	"errors"
	"time"

	"github.com/vladmir0512/deadline-bot/internal/domain"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateVerification is returned when a deadline already has a
	// pending verification.
	ErrDuplicateVerification = errors.New("pending verification already exists")
)

// Stats is a small counters snapshot for the admin stats command.
type Stats struct {
	Users                int
	ActiveDeadlines      int
	OverdueDeadlines     int
	PendingVerifications int
	BlockedUsers         int
}

// Repo defines storage operations for users, deadlines, subscriptions,
// notification settings, the ban list and verifications.
//
// Implementations must serialize concurrent UpsertDeadlineBySourceKey calls
// for the same (source, source_id) pair: one insert wins, the other observes
// the applied row. Every mutation of a deadline refreshes updated_at.
type Repo interface {
	// users
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	// FindUserByIdentifier matches a username or email, case-insensitively.
	FindUserByIdentifier(ctx context.Context, ident string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	SetUserEmail(ctx context.Context, id int64, email string) error

	// deadlines
	// UpsertDeadlineBySourceKey inserts d or, if a row with the same
	// (source, source_id) exists, updates its title, description and due
	// date. Returns the stored row and whether it was inserted.
	UpsertDeadlineBySourceKey(ctx context.Context, d *domain.Deadline) (*domain.Deadline, bool, error)
	CreateDeadline(ctx context.Context, d *domain.Deadline) error
	GetDeadline(ctx context.Context, id int64) (*domain.Deadline, error)
	GetDeadlineBySourceKey(ctx context.Context, source, sourceID string) (*domain.Deadline, error)
	ListActiveDeadlines(ctx context.Context) ([]domain.Deadline, error)
	ListUserDeadlines(ctx context.Context, userID int64, status domain.DeadlineStatus) ([]domain.Deadline, error)
	ListSourceDeadlines(ctx context.Context, source string, status domain.DeadlineStatus) ([]domain.Deadline, error)
	SetDeadlineStatus(ctx context.Context, id int64, status domain.DeadlineStatus) error

	// per-kind notification history; deadlines.last_notified_at is updated
	// alongside as a cache of the most recent send
	RecordNotified(ctx context.Context, deadlineID int64, kind domain.NotificationKind, at time.Time) error
	SentHistory(ctx context.Context, deadlineID int64) (domain.SentHistory, error)
	ClearNotified(ctx context.Context, deadlineID int64, kinds ...domain.NotificationKind) error

	// notification settings (one row per user)
	GetSettings(ctx context.Context, userID int64) (*domain.NotificationSettings, error)
	SaveSettings(ctx context.Context, s *domain.NotificationSettings) error

	// subscriptions
	ListSubscriptions(ctx context.Context, userID int64) ([]domain.Subscription, error)
	SetSubscription(ctx context.Context, userID int64, kind domain.NotificationKind, active bool) error

	// ban list
	IsBlocked(ctx context.Context, telegramID int64) (bool, error)
	BlockUser(ctx context.Context, b *domain.BlockedUser) error
	UnblockUser(ctx context.Context, telegramID int64) error
	ListBlockedUsers(ctx context.Context) ([]domain.BlockedUser, error)

	// verifications
	// CreateVerification returns ErrDuplicateVerification if the deadline
	// already has a pending verification.
	CreateVerification(ctx context.Context, v *domain.DeadlineVerification) error
	GetVerification(ctx context.Context, id int64) (*domain.DeadlineVerification, error)
	ListPendingVerifications(ctx context.Context) ([]domain.DeadlineVerification, error)
	UpdateVerification(ctx context.Context, v *domain.DeadlineVerification) error

	Stats(ctx context.Context) (Stats, error)
	Close() error
}
