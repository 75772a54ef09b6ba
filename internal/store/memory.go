package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladmir0512/deadline-bot/internal/domain"
)

// MemoryRepo is an in-memory Repo. It backs tests and ephemeral runs and is
// the reference for the locking semantics the SQL backends provide: one
// mutex guards every mutation, so concurrent source-key upserts serialize.
type MemoryRepo struct {
	mu            sync.Mutex
	nextID        int64
	users         map[int64]*domain.User
	deadlines     map[int64]*domain.Deadline
	settings      map[int64]*domain.NotificationSettings
	subscriptions map[int64][]domain.Subscription
	blocked       map[int64]*domain.BlockedUser
	verifications map[int64]*domain.DeadlineVerification
	notified      map[int64]domain.SentHistory
}

var _ Repo = (*MemoryRepo)(nil)

// NewMemoryRepo returns an empty in-memory repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:         map[int64]*domain.User{},
		deadlines:     map[int64]*domain.Deadline{},
		settings:      map[int64]*domain.NotificationSettings{},
		subscriptions: map[int64][]domain.Subscription{},
		blocked:       map[int64]*domain.BlockedUser{},
		verifications: map[int64]*domain.DeadlineVerification{},
		notified:      map[int64]domain.SentHistory{},
	}
}

func (r *MemoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *MemoryRepo) Close() error { return nil }

// --- users ---

func (r *MemoryRepo) CreateUser(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.ID = r.id()
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *MemoryRepo) GetUser(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) GetUserByTelegramID(_ context.Context, telegramID int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.TelegramID == telegramID {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) FindUserByIdentifier(_ context.Context, ident string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, ident) || (u.Email != "" && strings.EqualFold(u.Email, ident)) {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) ListUsers(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		res = append(res, *u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *MemoryRepo) SetUserEmail(_ context.Context, id int64, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Email = email
	return nil
}

// --- deadlines ---

func (r *MemoryRepo) UpsertDeadlineBySourceKey(_ context.Context, d *domain.Deadline) (*domain.Deadline, bool, error) {
	if d.Source == "" || d.SourceID == "" {
		return nil, false, errors.New("upsert requires a source key")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC().Truncate(time.Second)
	for _, existing := range r.deadlines {
		if existing.Source == d.Source && existing.SourceID == d.SourceID {
			existing.Title = d.Title
			existing.Description = d.Description
			existing.DueDate = d.DueDate
			existing.UpdatedAt = now
			c := *existing
			return &c, false, nil
		}
	}
	stored := *d
	stored.ID = r.id()
	if stored.Status == "" {
		stored.Status = domain.StatusActive
	}
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.deadlines[stored.ID] = &stored
	c := stored
	return &c, true, nil
}

func (r *MemoryRepo) CreateDeadline(_ context.Context, d *domain.Deadline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	d.ID = r.id()
	if d.Status == "" {
		d.Status = domain.StatusActive
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	c := *d
	r.deadlines[d.ID] = &c
	return nil
}

func (r *MemoryRepo) GetDeadline(_ context.Context, id int64) (*domain.Deadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.deadlines[id]; ok {
		c := *d
		return &c, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) GetDeadlineBySourceKey(_ context.Context, source, sourceID string) (*domain.Deadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.deadlines {
		if d.Source == source && d.SourceID == sourceID {
			c := *d
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) listDeadlines(filter func(*domain.Deadline) bool) []domain.Deadline {
	var res []domain.Deadline
	for _, d := range r.deadlines {
		if filter(d) {
			res = append(res, *d)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		a, b := res[i], res[j]
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return a.ID < b.ID
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		case a.DueDate.Equal(*b.DueDate):
			return a.ID < b.ID
		default:
			return a.DueDate.Before(*b.DueDate)
		}
	})
	return res
}

func (r *MemoryRepo) ListActiveDeadlines(_ context.Context) ([]domain.Deadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listDeadlines(func(d *domain.Deadline) bool {
		return d.Status == domain.StatusActive
	}), nil
}

func (r *MemoryRepo) ListUserDeadlines(_ context.Context, userID int64, status domain.DeadlineStatus) ([]domain.Deadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listDeadlines(func(d *domain.Deadline) bool {
		return d.UserID == userID && (status == "" || d.Status == status)
	}), nil
}

func (r *MemoryRepo) ListSourceDeadlines(_ context.Context, source string, status domain.DeadlineStatus) ([]domain.Deadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listDeadlines(func(d *domain.Deadline) bool {
		return d.Source == source && d.Status == status
	}), nil
}

func (r *MemoryRepo) SetDeadlineStatus(_ context.Context, id int64, status domain.DeadlineStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deadlines[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// --- notification history ---

func (r *MemoryRepo) RecordNotified(_ context.Context, deadlineID int64, kind domain.NotificationKind, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	hist, ok := r.notified[deadlineID]
	if !ok {
		hist = domain.SentHistory{}
		r.notified[deadlineID] = hist
	}
	hist[kind] = at.UTC()
	if d, ok := r.deadlines[deadlineID]; ok {
		t := at.UTC()
		d.LastNotifiedAt = &t
		d.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepo) SentHistory(_ context.Context, deadlineID int64) (domain.SentHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hist := domain.SentHistory{}
	for k, v := range r.notified[deadlineID] {
		hist[k] = v
	}
	return hist, nil
}

func (r *MemoryRepo) ClearNotified(_ context.Context, deadlineID int64, kinds ...domain.NotificationKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	hist := r.notified[deadlineID]
	for _, k := range kinds {
		delete(hist, k)
	}
	return nil
}

// --- notification settings ---

func (r *MemoryRepo) GetSettings(_ context.Context, userID int64) (*domain.NotificationSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.settings[userID]; ok {
		c := *s
		return &c, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) SaveSettings(_ context.Context, s *domain.NotificationSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	c := *s
	r.settings[s.UserID] = &c
	return nil
}

// --- subscriptions ---

func (r *MemoryRepo) ListSubscriptions(_ context.Context, userID int64) ([]domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Subscription(nil), r.subscriptions[userID]...), nil
}

func (r *MemoryRepo) SetSubscription(_ context.Context, userID int64, kind domain.NotificationKind, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.subscriptions[userID]
	for i := range subs {
		if subs[i].Kind == kind {
			subs[i].Active = active
			return nil
		}
	}
	r.subscriptions[userID] = append(subs, domain.Subscription{
		ID:        r.id(),
		UserID:    userID,
		Kind:      kind,
		Active:    active,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// --- ban list ---

func (r *MemoryRepo) IsBlocked(_ context.Context, telegramID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.blocked[telegramID]
	return ok, nil
}

func (r *MemoryRepo) BlockUser(_ context.Context, b *domain.BlockedUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.ID == 0 {
		b.ID = r.id()
	}
	c := *b
	r.blocked[b.TelegramID] = &c
	return nil
}

func (r *MemoryRepo) UnblockUser(_ context.Context, telegramID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blocked[telegramID]; !ok {
		return ErrNotFound
	}
	delete(r.blocked, telegramID)
	return nil
}

func (r *MemoryRepo) ListBlockedUsers(_ context.Context) ([]domain.BlockedUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]domain.BlockedUser, 0, len(r.blocked))
	for _, b := range r.blocked {
		res = append(res, *b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// --- verifications ---

func (r *MemoryRepo) CreateVerification(_ context.Context, v *domain.DeadlineVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.verifications {
		if existing.DeadlineID == v.DeadlineID && existing.Status == domain.VerificationPending {
			return ErrDuplicateVerification
		}
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.Status == "" {
		v.Status = domain.VerificationPending
	}
	v.ID = r.id()
	c := *v
	r.verifications[v.ID] = &c
	return nil
}

func (r *MemoryRepo) GetVerification(_ context.Context, id int64) (*domain.DeadlineVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.verifications[id]; ok {
		c := *v
		return &c, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) ListPendingVerifications(_ context.Context) ([]domain.DeadlineVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []domain.DeadlineVerification
	for _, v := range r.verifications {
		if v.Status == domain.VerificationPending {
			res = append(res, *v)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (r *MemoryRepo) UpdateVerification(_ context.Context, v *domain.DeadlineVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.verifications[v.ID]; !ok {
		return ErrNotFound
	}
	c := *v
	r.verifications[v.ID] = &c
	return nil
}

// --- stats ---

func (r *MemoryRepo) Stats(_ context.Context) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Stats{Users: len(r.users), BlockedUsers: len(r.blocked)}
	for _, d := range r.deadlines {
		switch d.Status {
		case domain.StatusActive:
			st.ActiveDeadlines++
		case domain.StatusOverdue:
			st.OverdueDeadlines++
		}
	}
	for _, v := range r.verifications {
		if v.Status == domain.VerificationPending {
			st.PendingVerifications++
		}
	}
	return st, nil
}
