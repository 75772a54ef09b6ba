package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/vladmir0512/deadline-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single connection: SQLite is a single-writer engine and this also
	// serializes concurrent upserts at the pool level.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db, "sqlite"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- users ---

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, username, email, created_at)
		VALUES (?, ?, ?, ?)`,
		u.TelegramID, u.Username, u.Email, u.CreatedAt.Unix(),
	)
	if err != nil {
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ?`, id))
	return u, notFound(err)
}

func (r *SQLiteRepo) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE telegram_id = ?`, telegramID))
	return u, notFound(err)
}

func (r *SQLiteRepo) FindUserByIdentifier(ctx context.Context, ident string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userCols+` FROM users
		WHERE lower(username) = lower(?)
		   OR (email != '' AND lower(email) = lower(?))
		LIMIT 1`,
		ident, ident))
	return u, notFound(err)
}

func (r *SQLiteRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

func (r *SQLiteRepo) SetUserEmail(ctx context.Context, id int64, email string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET email = ? WHERE id = ?`, email, id)
	return err
}

// --- deadlines ---

func (r *SQLiteRepo) UpsertDeadlineBySourceKey(ctx context.Context, d *domain.Deadline) (*domain.Deadline, bool, error) {
	if d.Source == "" || d.SourceID == "" {
		return nil, false, errors.New("upsert requires a source key")
	}
	now := time.Now().UTC().Truncate(time.Second)
	status := d.Status
	if status == "" {
		status = domain.StatusActive
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO deadlines (user_id, title, description, due_date, status, source, source_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, source_id) WHERE source != '' DO UPDATE SET
			title       = excluded.title,
			description = excluded.description,
			due_date    = excluded.due_date,
			updated_at  = excluded.updated_at
		RETURNING `+deadlineCols,
		d.UserID, d.Title, d.Description, toNullInt64(d.DueDate), string(status),
		d.Source, d.SourceID, now.Unix(), now.Unix(),
	)
	stored, err := scanDeadline(row)
	if err != nil {
		return nil, false, err
	}
	return stored, stored.CreatedAt.Equal(now), nil
}

func (r *SQLiteRepo) CreateDeadline(ctx context.Context, d *domain.Deadline) error {
	now := time.Now().UTC()
	if d.Status == "" {
		d.Status = domain.StatusActive
	}
	d.CreatedAt, d.UpdatedAt = now, now
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO deadlines (user_id, title, description, due_date, status, source, source_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.UserID, d.Title, d.Description, toNullInt64(d.DueDate), string(d.Status),
		d.Source, d.SourceID, now.Unix(), now.Unix(),
	)
	if err != nil {
		return err
	}
	d.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepo) GetDeadline(ctx context.Context, id int64) (*domain.Deadline, error) {
	d, err := scanDeadline(r.db.QueryRowContext(ctx,
		`SELECT `+deadlineCols+` FROM deadlines WHERE id = ?`, id))
	return d, notFound(err)
}

func (r *SQLiteRepo) GetDeadlineBySourceKey(ctx context.Context, source, sourceID string) (*domain.Deadline, error) {
	d, err := scanDeadline(r.db.QueryRowContext(ctx,
		`SELECT `+deadlineCols+` FROM deadlines WHERE source = ? AND source_id = ?`, source, sourceID))
	return d, notFound(err)
}

func (r *SQLiteRepo) queryDeadlines(ctx context.Context, query string, args ...any) ([]domain.Deadline, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Deadline
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *d)
	}
	return res, rows.Err()
}

func (r *SQLiteRepo) ListActiveDeadlines(ctx context.Context) ([]domain.Deadline, error) {
	return r.queryDeadlines(ctx, `
		SELECT `+deadlineCols+` FROM deadlines
		WHERE status = ?
		ORDER BY due_date IS NULL, due_date ASC, id ASC`,
		string(domain.StatusActive))
}

func (r *SQLiteRepo) ListUserDeadlines(ctx context.Context, userID int64, status domain.DeadlineStatus) ([]domain.Deadline, error) {
	if status == "" {
		return r.queryDeadlines(ctx, `
			SELECT `+deadlineCols+` FROM deadlines
			WHERE user_id = ?
			ORDER BY due_date IS NULL, due_date ASC, id ASC`,
			userID)
	}
	return r.queryDeadlines(ctx, `
		SELECT `+deadlineCols+` FROM deadlines
		WHERE user_id = ? AND status = ?
		ORDER BY due_date IS NULL, due_date ASC, id ASC`,
		userID, string(status))
}

func (r *SQLiteRepo) ListSourceDeadlines(ctx context.Context, source string, status domain.DeadlineStatus) ([]domain.Deadline, error) {
	return r.queryDeadlines(ctx, `
		SELECT `+deadlineCols+` FROM deadlines
		WHERE source = ? AND status = ?
		ORDER BY id ASC`,
		source, string(status))
}

func (r *SQLiteRepo) SetDeadlineStatus(ctx context.Context, id int64, status domain.DeadlineStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE deadlines SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Unix(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// --- notification history ---

func (r *SQLiteRepo) RecordNotified(ctx context.Context, deadlineID int64, kind domain.NotificationKind, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO deadline_notifications (deadline_id, kind, sent_at)
		VALUES (?, ?, ?)
		ON CONFLICT(deadline_id, kind) DO UPDATE SET sent_at = excluded.sent_at`,
		deadlineID, string(kind), at.UTC().Unix(),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE deadlines SET last_notified_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC().Unix(), time.Now().UTC().Unix(), deadlineID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepo) SentHistory(ctx context.Context, deadlineID int64) (domain.SentHistory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, sent_at FROM deadline_notifications WHERE deadline_id = ?`,
		deadlineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hist := domain.SentHistory{}
	for rows.Next() {
		var kind string
		var at int64
		if err := rows.Scan(&kind, &at); err != nil {
			return nil, err
		}
		hist[domain.NotificationKind(kind)] = time.Unix(at, 0).UTC()
	}
	return hist, rows.Err()
}

func (r *SQLiteRepo) ClearNotified(ctx context.Context, deadlineID int64, kinds ...domain.NotificationKind) error {
	if len(kinds) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(kinds)-1) + "?"
	args := make([]any, 0, len(kinds)+1)
	args = append(args, deadlineID)
	for _, k := range kinds {
		args = append(args, string(k))
	}
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM deadline_notifications
		WHERE deadline_id = ? AND kind IN (`+placeholders+`)`,
		args...)
	return err
}

// --- notification settings ---

func (r *SQLiteRepo) GetSettings(ctx context.Context, userID int64) (*domain.NotificationSettings, error) {
	s, err := scanSettings(r.db.QueryRowContext(ctx,
		`SELECT `+settingsCols+` FROM user_notification_settings WHERE user_id = ?`, userID))
	return s, notFound(err)
}

func (r *SQLiteRepo) SaveSettings(ctx context.Context, s *domain.NotificationSettings) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_notification_settings (
			user_id, notifications_enabled, notification_hour, quiet_start_m, quiet_end_m,
			daily_reminders, weekly_reminders, halfway_reminders, weekly_days,
			days_before_warning, tz, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			notifications_enabled = excluded.notifications_enabled,
			notification_hour     = excluded.notification_hour,
			quiet_start_m         = excluded.quiet_start_m,
			quiet_end_m           = excluded.quiet_end_m,
			daily_reminders       = excluded.daily_reminders,
			weekly_reminders      = excluded.weekly_reminders,
			halfway_reminders     = excluded.halfway_reminders,
			weekly_days           = excluded.weekly_days,
			days_before_warning   = excluded.days_before_warning,
			tz                    = excluded.tz,
			updated_at            = excluded.updated_at`,
		s.UserID, boolToInt(s.Enabled), s.NotificationHour, s.QuietStartM, s.QuietEndM,
		boolToInt(s.DailyReminders), boolToInt(s.WeeklyReminders), boolToInt(s.HalfwayReminders),
		encodeDays(s.WeeklyDays), s.DaysBeforeWarning, s.TZ, s.CreatedAt.Unix(), s.UpdatedAt.Unix(),
	)
	return err
}

// --- subscriptions ---

func (r *SQLiteRepo) ListSubscriptions(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, kind, active, created_at
		FROM subscriptions WHERE user_id = ? ORDER BY id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		var kind string
		var active int
		var created int64
		if err := rows.Scan(&sub.ID, &sub.UserID, &kind, &active, &created); err != nil {
			return nil, err
		}
		sub.Kind = domain.NotificationKind(kind)
		sub.Active = active != 0
		sub.CreatedAt = time.Unix(created, 0).UTC()
		res = append(res, sub)
	}
	return res, rows.Err()
}

func (r *SQLiteRepo) SetSubscription(ctx context.Context, userID int64, kind domain.NotificationKind, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, kind, active, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, kind) DO UPDATE SET active = excluded.active`,
		userID, string(kind), boolToInt(active), time.Now().UTC().Unix())
	return err
}

// --- ban list ---

func (r *SQLiteRepo) IsBlocked(ctx context.Context, telegramID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocked_users WHERE telegram_id = ?`, telegramID).Scan(&n)
	return n > 0, err
}

func (r *SQLiteRepo) BlockUser(ctx context.Context, b *domain.BlockedUser) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blocked_users (telegram_id, reason, blocked_by, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			reason     = excluded.reason,
			blocked_by = excluded.blocked_by`,
		b.TelegramID, b.Reason, b.BlockedBy, b.CreatedAt.Unix())
	return err
}

func (r *SQLiteRepo) UnblockUser(ctx context.Context, telegramID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM blocked_users WHERE telegram_id = ?`, telegramID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (r *SQLiteRepo) ListBlockedUsers(ctx context.Context) ([]domain.BlockedUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, telegram_id, reason, blocked_by, created_at
		FROM blocked_users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.BlockedUser
	for rows.Next() {
		var b domain.BlockedUser
		var created int64
		if err := rows.Scan(&b.ID, &b.TelegramID, &b.Reason, &b.BlockedBy, &created); err != nil {
			return nil, err
		}
		b.CreatedAt = time.Unix(created, 0).UTC()
		res = append(res, b)
	}
	return res, rows.Err()
}

// --- verifications ---

func (r *SQLiteRepo) CreateVerification(ctx context.Context, v *domain.DeadlineVerification) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.Status == "" {
		v.Status = domain.VerificationPending
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO deadline_verifications (deadline_id, user_id, status, user_comment, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		v.DeadlineID, v.UserID, string(v.Status), v.UserComment, v.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateVerification
		}
		return err
	}
	v.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepo) GetVerification(ctx context.Context, id int64) (*domain.DeadlineVerification, error) {
	v, err := scanVerification(r.db.QueryRowContext(ctx,
		`SELECT `+verificationCols+` FROM deadline_verifications WHERE id = ?`, id))
	return v, notFound(err)
}

func (r *SQLiteRepo) ListPendingVerifications(ctx context.Context) ([]domain.DeadlineVerification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+verificationCols+` FROM deadline_verifications
		WHERE status = ? ORDER BY created_at ASC`,
		string(domain.VerificationPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.DeadlineVerification
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *v)
	}
	return res, rows.Err()
}

func (r *SQLiteRepo) UpdateVerification(ctx context.Context, v *domain.DeadlineVerification) error {
	var by sql.NullInt64
	if v.VerifiedBy != nil {
		by = sql.NullInt64{Int64: *v.VerifiedBy, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE deadline_verifications
		SET status = ?, admin_comment = ?, verified_by = ?, verified_at = ?
		WHERE id = ?`,
		string(v.Status), v.AdminComment, by, toNullInt64(v.VerifiedAt), v.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// --- stats ---

func (r *SQLiteRepo) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		query string
		args  []any
		dst   *int
	}{
		{`SELECT COUNT(*) FROM users`, nil, &st.Users},
		{`SELECT COUNT(*) FROM deadlines WHERE status = ?`, []any{string(domain.StatusActive)}, &st.ActiveDeadlines},
		{`SELECT COUNT(*) FROM deadlines WHERE status = ?`, []any{string(domain.StatusOverdue)}, &st.OverdueDeadlines},
		{`SELECT COUNT(*) FROM deadline_verifications WHERE status = ?`, []any{string(domain.VerificationPending)}, &st.PendingVerifications},
		{`SELECT COUNT(*) FROM blocked_users`, nil, &st.BlockedUsers},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}
