package users

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fedtaxi/hojaruta/internal/models"
)

// MemoryUserRepository is the in-process repository used without MongoDB and in tests.
type MemoryUserRepository struct {
	mu   sync.RWMutex
	byID map[string]models.User
	seq  int
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: map[string]models.User{}}
}

func (m *MemoryUserRepository) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Identifier, u.Identifier) {
			return nil, ErrDuplicate
		}
	}
	now := time.Now().UTC()
	if u.ID == "" {
		m.seq++
		u.ID = fmt.Sprintf("usr_%04d", m.seq)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	m.byID[u.ID] = *u
	out := *u
	return &out, nil
}

func (m *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryUserRepository) GetByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Identifier, identifier) {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MemoryUserRepository) Update(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return ErrNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	m.byID[u.ID] = *u
	return nil
}
