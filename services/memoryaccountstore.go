package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"smartplanr/model"
)

// MemoryAccountStore is an in-memory AccountStore for development and tests.
type MemoryAccountStore struct {
	mu      sync.RWMutex
	users   map[string]model.User // userID -> user
	refresh map[string]model.RefreshToken
	resets  map[string]model.ResetCode // email + "/" + reference
	blocks  map[string]model.EmailBlock
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		users:   make(map[string]model.User),
		refresh: make(map[string]model.RefreshToken),
		resets:  make(map[string]model.ResetCode),
		blocks:  make(map[string]model.EmailBlock),
	}
}

func (m *MemoryAccountStore) CreateUser(ctx context.Context, user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrEmailTaken
		}
	}
	m.users[user.UserID] = user
	return nil
}

func (m *MemoryAccountStore) UserByEmail(ctx context.Context, email string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *MemoryAccountStore) UserByID(ctx context.Context, userID string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryAccountStore) SetPassword(ctx context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Password = hash
	m.users[userID] = u
	return nil
}

func (m *MemoryAccountStore) SaveRefreshToken(ctx context.Context, token model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[token.UserID] = token
	return nil
}

func (m *MemoryAccountStore) RefreshToken(ctx context.Context, userID string) (model.RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.refresh[userID]
	if !ok {
		return model.RefreshToken{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryAccountStore) RevokeRefreshToken(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.refresh[userID]
	if !ok {
		return ErrNotFound
	}
	t.Revoked = true
	m.refresh[userID] = t
	return nil
}

func (m *MemoryAccountStore) SaveResetCode(ctx context.Context, code model.ResetCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[code.Email+"/"+code.Reference] = code
	return nil
}

func (m *MemoryAccountStore) ResetCode(ctx context.Context, email, reference string) (model.ResetCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.resets[email+"/"+reference]
	if !ok {
		return model.ResetCode{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryAccountStore) UseResetCode(ctx context.Context, email, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := email + "/" + reference
	c, ok := m.resets[key]
	if !ok {
		return ErrNotFound
	}
	c.Used = true
	m.resets[key] = c
	return nil
}

func (m *MemoryAccountStore) FailResetAttempt(ctx context.Context, email, reference string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := email + "/" + reference
	c, ok := m.resets[key]
	if !ok {
		return 0, ErrNotFound
	}
	c.Attempts++
	m.resets[key] = c
	return c.Attempts, nil
}

func (m *MemoryAccountStore) CountLiveResetCodes(ctx context.Context, email string, now time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.resets {
		if c.Email == email && now.Before(c.ExpiresAt) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryAccountStore) BlockEmail(ctx context.Context, block model.EmailBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[block.Email] = block
	return nil
}

func (m *MemoryAccountStore) IsEmailBlocked(ctx context.Context, email string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[email]
	if !ok {
		return false, nil
	}
	if !now.Before(b.ExpiresAt) {
		delete(m.blocks, email)
		return false, nil
	}
	return true, nil
}
