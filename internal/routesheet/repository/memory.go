package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fedtaxi/hojaruta/internal/models"
)

var (
	ErrNotFound = errors.New("route sheet not found")
)

// Repository persists route sheets. List and Get never return the PDF bytes; use PDF.
type Repository interface {
	Create(ctx context.Context, rs *models.RouteSheet) (string, error)
	Get(ctx context.Context, id string) (*models.RouteSheet, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.RouteSheet, error)
	PDF(ctx context.Context, id string) ([]byte, error)
}

// MemoryRepo is a simple in-memory repository used without MongoDB and in tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	seq   int
	store map[string]*models.RouteSheet
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*models.RouteSheet)}
}

func (m *MemoryRepo) Create(_ context.Context, rs *models.RouteSheet) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rs.ID == "" {
		m.seq++
		rs.ID = fmt.Sprintf("rs_%06d", m.seq)
	}
	rs.CreatedAt = time.Now().UTC()
	rs.UpdatedAt = rs.CreatedAt
	rs.HasPDF = len(rs.PDF) > 0
	cp := *rs
	m.store[rs.ID] = &cp
	return rs.ID, nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*models.RouteSheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rs, ok := m.store[id]; ok {
		out := *rs
		out.PDF = nil
		return &out, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) ListByOwner(_ context.Context, ownerID string) ([]*models.RouteSheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.RouteSheet, 0)
	for _, rs := range m.store {
		if rs.OwnerID != ownerID {
			continue
		}
		cp := *rs
		cp.PDF = nil
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryRepo) PDF(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs, ok := m.store[id]
	if !ok || len(rs.PDF) == 0 {
		return nil, ErrNotFound
	}
	return append([]byte(nil), rs.PDF...), nil
}
