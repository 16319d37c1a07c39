package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// MemoryStore keeps users, sessions and verifications in process memory with
// the same semantics as the Postgres repositories, including the cascade on
// user deletion. It backs local runs without POSTGRES_DSN and tests.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]domain.User
	sessions      map[string]domain.Session
	verifications map[string]domain.Verification
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		sessions:      make(map[string]domain.Session),
		verifications: make(map[string]domain.Verification),
	}
}

// Users returns the user repository view of the store.
func (m *MemoryStore) Users() UserRepository { return memoryUsers{m} }

// Sessions returns the session repository view of the store.
func (m *MemoryStore) Sessions() SessionRepository { return memorySessions{m} }

// Verifications returns the verification repository view of the store.
func (m *MemoryStore) Verifications() VerificationRepository { return memoryVerifications{m} }

type memoryUsers struct{ m *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.m.emailTaken(user.Email, "") {
		return ErrDuplicate
	}
	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt, user.UpdatedAt = now, now
	r.m.users[user.ID] = *user
	return nil
}

func (r memoryUsers) Update(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	if r.m.emailTaken(user.Email, user.ID) {
		return ErrDuplicate
	}
	user.UpdatedAt = time.Now()
	r.m.users[user.ID] = *user
	return nil
}

func (r memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	user, ok := r.m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, user := range r.m.users {
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memoryUsers) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.m.users, id)
	for token, s := range r.m.sessions {
		if s.UserID == id {
			delete(r.m.sessions, token)
		}
	}
	for vid, v := range r.m.verifications {
		if v.UserID == id {
			delete(r.m.verifications, vid)
		}
	}
	return nil
}

func (m *MemoryStore) emailTaken(email, exceptID string) bool {
	for _, user := range m.users {
		if user.ID != exceptID && strings.EqualFold(user.Email, email) {
			return true
		}
	}
	return false
}

type memorySessions struct{ m *MemoryStore }

func (r memorySessions) Create(_ context.Context, session *domain.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.users[session.UserID]; !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	session.ID = uuid.NewString()
	session.CreatedAt, session.UpdatedAt = now, now
	r.m.sessions[session.Token] = *session
	return nil
}

func (r memorySessions) GetByToken(_ context.Context, token string) (*domain.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	s, ok := r.m.sessions[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &s, nil
}

func (r memorySessions) ListByUser(_ context.Context, userID string) ([]domain.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	now := time.Now()
	var out []domain.Session
	for _, s := range r.m.sessions {
		if s.UserID == userID && !s.Expired(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memorySessions) Extend(_ context.Context, id string, expiresAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for token, s := range r.m.sessions {
		if s.ID == id {
			s.ExpiresAt = expiresAt
			s.UpdatedAt = time.Now()
			r.m.sessions[token] = s
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r memorySessions) DeleteByToken(_ context.Context, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	delete(r.m.sessions, token)
	return nil
}

func (r memorySessions) DeleteByUser(_ context.Context, userID, keepToken string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var n int64
	for token, s := range r.m.sessions {
		if s.UserID == userID && token != keepToken {
			delete(r.m.sessions, token)
			n++
		}
	}
	return n, nil
}

type memoryVerifications struct{ m *MemoryStore }

func (r memoryVerifications) Create(_ context.Context, v *domain.Verification) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	v.ID = uuid.NewString()
	v.CreatedAt = time.Now()
	r.m.verifications[v.ID] = *v
	return nil
}

func (r memoryVerifications) GetByToken(_ context.Context, purpose domain.VerificationPurpose, token string) (*domain.Verification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, v := range r.m.verifications {
		if v.Purpose == purpose && v.Token == token {
			return &v, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memoryVerifications) MarkUsed(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	v, ok := r.m.verifications[id]
	if !ok || v.UsedAt != nil {
		return pgx.ErrNoRows
	}
	now := time.Now()
	v.UsedAt = &now
	r.m.verifications[id] = v
	return nil
}
