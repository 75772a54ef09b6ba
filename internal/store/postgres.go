package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	// Registers the "pgx" driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladmir0512/deadline-bot/internal/domain"
)

// PostgresRepo implements Repo on PostgreSQL. Selected when DATABASE_URL is
// set; the schema mirrors the SQLite one (epoch-second timestamps) so both
// backends share the scan helpers.
type PostgresRepo struct{ db *sql.DB }

var _ Repo = (*PostgresRepo)(nil)

// OpenPostgres connects to the database, runs migrations and returns a
// repository.
func OpenPostgres(ctx context.Context, url string) (*PostgresRepo, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := RunMigrations(ctx, db, "postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &PostgresRepo{db: db}, nil
}

func (r *PostgresRepo) Close() error { return r.db.Close() }

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- users ---

func (r *PostgresRepo) CreateUser(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO users (telegram_id, username, email, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		u.TelegramID, u.Username, u.Email, u.CreatedAt.Unix(),
	).Scan(&u.ID)
}

func (r *PostgresRepo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
	return u, notFound(err)
}

func (r *PostgresRepo) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE telegram_id = $1`, telegramID))
	return u, notFound(err)
}

func (r *PostgresRepo) FindUserByIdentifier(ctx context.Context, ident string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userCols+` FROM users
		WHERE lower(username) = lower($1)
		   OR (email != '' AND lower(email) = lower($1))
		LIMIT 1`,
		ident))
	return u, notFound(err)
}

func (r *PostgresRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
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

func (r *PostgresRepo) SetUserEmail(ctx context.Context, id int64, email string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET email = $1 WHERE id = $2`, email, id)
	return err
}

// --- deadlines ---

func (r *PostgresRepo) UpsertDeadlineBySourceKey(ctx context.Context, d *domain.Deadline) (*domain.Deadline, bool, error) {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source, source_id) WHERE source != '' DO UPDATE SET
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

func (r *PostgresRepo) CreateDeadline(ctx context.Context, d *domain.Deadline) error {
	now := time.Now().UTC()
	if d.Status == "" {
		d.Status = domain.StatusActive
	}
	d.CreatedAt, d.UpdatedAt = now, now
	return r.db.QueryRowContext(ctx, `
		INSERT INTO deadlines (user_id, title, description, due_date, status, source, source_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		d.UserID, d.Title, d.Description, toNullInt64(d.DueDate), string(d.Status),
		d.Source, d.SourceID, now.Unix(), now.Unix(),
	).Scan(&d.ID)
}

func (r *PostgresRepo) GetDeadline(ctx context.Context, id int64) (*domain.Deadline, error) {
	d, err := scanDeadline(r.db.QueryRowContext(ctx,
		`SELECT `+deadlineCols+` FROM deadlines WHERE id = $1`, id))
	return d, notFound(err)
}

func (r *PostgresRepo) GetDeadlineBySourceKey(ctx context.Context, source, sourceID string) (*domain.Deadline, error) {
	d, err := scanDeadline(r.db.QueryRowContext(ctx,
		`SELECT `+deadlineCols+` FROM deadlines WHERE source = $1 AND source_id = $2`, source, sourceID))
	return d, notFound(err)
}

func (r *PostgresRepo) queryDeadlines(ctx context.Context, query string, args ...any) ([]domain.Deadline, error) {
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

func (r *PostgresRepo) ListActiveDeadlines(ctx context.Context) ([]domain.Deadline, error) {
	return r.queryDeadlines(ctx, `
		SELECT `+deadlineCols+` FROM deadlines
		WHERE status = $1
		ORDER BY due_date ASC NULLS LAST, id ASC`,
		string(domain.StatusActive))
}

func (r *PostgresRepo) ListUserDeadlines(ctx context.Context, userID int64, status domain.DeadlineStatus) ([]domain.Deadline, error) {
	if status == "" {
		return r.queryDeadlines(ctx, `
			SELECT `+deadlineCols+` FROM deadlines
			WHERE user_id = $1
			ORDER BY due_date ASC NULLS LAST, id ASC`,
			userID)
	}
	return r.queryDeadlines(ctx, `
		SELECT `+deadlineCols+` FROM deadlines
		WHERE user_id = $1 AND status = $2
		ORDER BY due_date ASC NULLS LAST, id ASC`,
		userID, string(status))
}

func (r *PostgresRepo) ListSourceDeadlines(ctx context.Context, source string, status domain.DeadlineStatus) ([]domain.Deadline, error) {
	return r.queryDeadlines(ctx, `
		SELECT `+deadlineCols+` FROM deadlines
		WHERE source = $1 AND status = $2
		ORDER BY id ASC`,
		source, string(status))
}

func (r *PostgresRepo) SetDeadlineStatus(ctx context.Context, id int64, status domain.DeadlineStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE deadlines SET status = $1, updated_at = $2 WHERE id = $3`,
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

func (r *PostgresRepo) RecordNotified(ctx context.Context, deadlineID int64, kind domain.NotificationKind, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO deadline_notifications (deadline_id, kind, sent_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (deadline_id, kind) DO UPDATE SET sent_at = excluded.sent_at`,
		deadlineID, string(kind), at.UTC().Unix(),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE deadlines SET last_notified_at = $1, updated_at = $2 WHERE id = $3`,
		at.UTC().Unix(), time.Now().UTC().Unix(), deadlineID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresRepo) SentHistory(ctx context.Context, deadlineID int64) (domain.SentHistory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, sent_at FROM deadline_notifications WHERE deadline_id = $1`,
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

func (r *PostgresRepo) ClearNotified(ctx context.Context, deadlineID int64, kinds ...domain.NotificationKind) error {
	if len(kinds) == 0 {
		return nil
	}
	placeholders := make([]string, len(kinds))
	args := make([]any, 0, len(kinds)+1)
	args = append(args, deadlineID)
	for i, k := range kinds {
		placeholders[i] = "$" + strconv.Itoa(i+2)
		args = append(args, string(k))
	}
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM deadline_notifications
		WHERE deadline_id = $1 AND kind IN (`+strings.Join(placeholders, ",")+`)`,
		args...)
	return err
}

// --- notification settings ---

func (r *PostgresRepo) GetSettings(ctx context.Context, userID int64) (*domain.NotificationSettings, error) {
	s, err := scanSettings(r.db.QueryRowContext(ctx,
		`SELECT `+settingsCols+` FROM user_notification_settings WHERE user_id = $1`, userID))
	return s, notFound(err)
}

func (r *PostgresRepo) SaveSettings(ctx context.Context, s *domain.NotificationSettings) error {
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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO UPDATE SET
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

func (r *PostgresRepo) ListSubscriptions(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, kind, active, created_at
		FROM subscriptions WHERE user_id = $1 ORDER BY id`,
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

func (r *PostgresRepo) SetSubscription(ctx context.Context, userID int64, kind domain.NotificationKind, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, kind, active, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, kind) DO UPDATE SET active = excluded.active`,
		userID, string(kind), boolToInt(active), time.Now().UTC().Unix())
	return err
}

// --- ban list ---

func (r *PostgresRepo) IsBlocked(ctx context.Context, telegramID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocked_users WHERE telegram_id = $1`, telegramID).Scan(&n)
	return n > 0, err
}

func (r *PostgresRepo) BlockUser(ctx context.Context, b *domain.BlockedUser) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blocked_users (telegram_id, reason, blocked_by, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_id) DO UPDATE SET
			reason     = excluded.reason,
			blocked_by = excluded.blocked_by`,
		b.TelegramID, b.Reason, b.BlockedBy, b.CreatedAt.Unix())
	return err
}

func (r *PostgresRepo) UnblockUser(ctx context.Context, telegramID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM blocked_users WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (r *PostgresRepo) ListBlockedUsers(ctx context.Context) ([]domain.BlockedUser, error) {
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

func (r *PostgresRepo) CreateVerification(ctx context.Context, v *domain.DeadlineVerification) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.Status == "" {
		v.Status = domain.VerificationPending
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO deadline_verifications (deadline_id, user_id, status, user_comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		v.DeadlineID, v.UserID, string(v.Status), v.UserComment, v.CreatedAt.Unix(),
	).Scan(&v.ID)
	if isPgUniqueViolation(err) {
		return ErrDuplicateVerification
	}
	return err
}

func (r *PostgresRepo) GetVerification(ctx context.Context, id int64) (*domain.DeadlineVerification, error) {
	v, err := scanVerification(r.db.QueryRowContext(ctx,
		`SELECT `+verificationCols+` FROM deadline_verifications WHERE id = $1`, id))
	return v, notFound(err)
}

func (r *PostgresRepo) ListPendingVerifications(ctx context.Context) ([]domain.DeadlineVerification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+verificationCols+` FROM deadline_verifications
		WHERE status = $1 ORDER BY created_at ASC`,
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

func (r *PostgresRepo) UpdateVerification(ctx context.Context, v *domain.DeadlineVerification) error {
	var by sql.NullInt64
	if v.VerifiedBy != nil {
		by = sql.NullInt64{Int64: *v.VerifiedBy, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE deadline_verifications
		SET status = $1, admin_comment = $2, verified_by = $3, verified_at = $4
		WHERE id = $5`,
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

func (r *PostgresRepo) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		query string
		args  []any
		dst   *int
	}{
		{`SELECT COUNT(*) FROM users`, nil, &st.Users},
		{`SELECT COUNT(*) FROM deadlines WHERE status = $1`, []any{string(domain.StatusActive)}, &st.ActiveDeadlines},
		{`SELECT COUNT(*) FROM deadlines WHERE status = $1`, []any{string(domain.StatusOverdue)}, &st.OverdueDeadlines},
		{`SELECT COUNT(*) FROM deadline_verifications WHERE status = $1`, []any{string(domain.VerificationPending)}, &st.PendingVerifications},
		{`SELECT COUNT(*) FROM blocked_users`, nil, &st.BlockedUsers},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}
