package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/vladmir0512/deadline-bot/internal/domain"
)

// Timestamps are stored as UTC epoch seconds in both backends so the scan
// code below is shared.

func toNullInt64(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func fromNullInt64(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := time.Unix(ns.Int64, 0).UTC()
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeDays(days []int) string {
	b, err := json.Marshal(days)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeDays(s string) []int {
	var days []int
	if err := json.Unmarshal([]byte(s), &days); err != nil {
		return nil
	}
	return days
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userCols = "id, telegram_id, username, email, created_at"

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var created int64
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.Email, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return &u, nil
}

const deadlineCols = "id, user_id, title, description, due_date, status, source, source_id, created_at, updated_at, last_notified_at"

func scanDeadline(row rowScanner) (*domain.Deadline, error) {
	var d domain.Deadline
	var created, updated int64
	var due, notified sql.NullInt64
	var status string
	if err := row.Scan(
		&d.ID, &d.UserID, &d.Title, &d.Description, &due, &status,
		&d.Source, &d.SourceID, &created, &updated, &notified,
	); err != nil {
		return nil, err
	}
	d.Status = domain.DeadlineStatus(status)
	d.DueDate = fromNullInt64(due)
	d.CreatedAt = time.Unix(created, 0).UTC()
	d.UpdatedAt = time.Unix(updated, 0).UTC()
	d.LastNotifiedAt = fromNullInt64(notified)
	return &d, nil
}

const settingsCols = "user_id, notifications_enabled, notification_hour, quiet_start_m, quiet_end_m, " +
	"daily_reminders, weekly_reminders, halfway_reminders, weekly_days, days_before_warning, tz, created_at, updated_at"

func scanSettings(row rowScanner) (*domain.NotificationSettings, error) {
	var s domain.NotificationSettings
	var enabled, daily, weekly, halfway int
	var days string
	var created, updated int64
	if err := row.Scan(
		&s.UserID, &enabled, &s.NotificationHour, &s.QuietStartM, &s.QuietEndM,
		&daily, &weekly, &halfway, &days, &s.DaysBeforeWarning, &s.TZ, &created, &updated,
	); err != nil {
		return nil, err
	}
	s.Enabled = enabled != 0
	s.DailyReminders = daily != 0
	s.WeeklyReminders = weekly != 0
	s.HalfwayReminders = halfway != 0
	s.WeeklyDays = decodeDays(days)
	s.CreatedAt = time.Unix(created, 0).UTC()
	s.UpdatedAt = time.Unix(updated, 0).UTC()
	return &s, nil
}

const verificationCols = "id, deadline_id, user_id, status, user_comment, admin_comment, verified_by, created_at, verified_at"

func scanVerification(row rowScanner) (*domain.DeadlineVerification, error) {
	var v domain.DeadlineVerification
	var status string
	var by, at sql.NullInt64
	var created int64
	if err := row.Scan(
		&v.ID, &v.DeadlineID, &v.UserID, &status, &v.UserComment,
		&v.AdminComment, &by, &created, &at,
	); err != nil {
		return nil, err
	}
	v.Status = domain.VerificationStatus(status)
	if by.Valid {
		id := by.Int64
		v.VerifiedBy = &id
	}
	v.CreatedAt = time.Unix(created, 0).UTC()
	v.VerifiedAt = fromNullInt64(at)
	return &v, nil
}
