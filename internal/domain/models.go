package domain

import "time"

// DeadlineStatus enumerates the lifecycle states of a deadline.
type DeadlineStatus string

const (
	StatusActive    DeadlineStatus = "active"
	StatusCompleted DeadlineStatus = "completed"
	StatusOverdue   DeadlineStatus = "overdue"
	StatusCancelled DeadlineStatus = "cancelled"
)

// NotificationKind is a closed set of reminder types. New kinds extend this
// list and the rule table in Evaluate.
type NotificationKind string

const (
	KindDaily          NotificationKind = "daily"
	KindWeekly         NotificationKind = "weekly"
	KindHalfway        NotificationKind = "halfway"
	KindOverdueWarning NotificationKind = "overdue_warning"
)

// Kinds lists every notification kind, in evaluation order.
var Kinds = []NotificationKind{KindDaily, KindWeekly, KindHalfway, KindOverdueWarning}

// User is a Telegram identity known to the bot. Created on first
// interaction, never deleted.
type User struct {
	ID         int64
	TelegramID int64
	Username   string
	Email      string
	CreatedAt  time.Time // UTC
}

// Deadline belongs to exactly one user. DueDate may be nil: such a deadline
// is trackable but never due for time-based reminders.
type Deadline struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	DueDate     *time.Time // UTC, nullable
	Status      DeadlineStatus
	Source      string // external system tag, empty for manual deadlines
	SourceID    string // stable id within Source; (Source, SourceID) is unique
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// LastNotifiedAt caches the most recent send of any kind. The
	// authoritative per-kind record lives in the notification history.
	LastNotifiedAt *time.Time
}

// Subscription opts a user into one class of notifications.
type Subscription struct {
	ID        int64
	UserID    int64
	Kind      NotificationKind
	Active    bool
	CreatedAt time.Time
}

// NotificationSettings is one-to-one with User. Quiet hours are minutes
// since local midnight and may wrap past it (start > end).
type NotificationSettings struct {
	UserID            int64
	Enabled           bool
	NotificationHour  int // 0..23, in the user's TZ
	QuietStartM       int // minutes since midnight
	QuietEndM         int
	DailyReminders    bool
	WeeklyReminders   bool
	HalfwayReminders  bool
	WeeklyDays        []int // 0=Monday .. 6=Sunday
	DaysBeforeWarning int
	TZ                string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DefaultSettings returns the settings a user gets on first interaction.
func DefaultSettings(userID int64, tz string) *NotificationSettings {
	now := time.Now().UTC()
	return &NotificationSettings{
		UserID:            userID,
		Enabled:           true,
		NotificationHour:  9,
		QuietStartM:       22 * 60, // 22:00
		QuietEndM:         8 * 60,  // 08:00
		DailyReminders:    true,
		WeeklyReminders:   true,
		HalfwayReminders:  true,
		WeeklyDays:        []int{0, 1, 2, 3, 4}, // Mon-Fri
		DaysBeforeWarning: 1,
		TZ:                tz,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// BlockedUser is an entry in the ban list. Never auto-expires.
type BlockedUser struct {
	ID         int64
	TelegramID int64
	Reason     string
	BlockedBy  int64 // admin telegram id
	CreatedAt  time.Time
}

// VerificationStatus enumerates the states of a verification request.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// DeadlineVerification is a user-contested deadline status awaiting admin
// resolution. Terminal once approved or rejected.
type DeadlineVerification struct {
	ID           int64
	DeadlineID   int64
	UserID       int64
	Status       VerificationStatus
	UserComment  string
	AdminComment string
	VerifiedBy   *int64 // admin telegram id, nil until resolved
	CreatedAt    time.Time
	VerifiedAt   *time.Time
}
