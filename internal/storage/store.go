package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/donor-finder/internal/models"
)

// Listing bounds applied when a filter leaves Limit unset or asks for too much.
const (
	DefaultLimit = 100
	MaxLimit     = 400
)

// ErrInvalidFilter is returned for filters naming an unknown blood type.
var ErrInvalidFilter = errors.New("invalid donor filter")

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks DonorStore

// DonorStore defines persistence operations for donors.
type DonorStore interface {
	CreateDonor(ctx context.Context, d *models.Donor) error
	// ListDonors returns donors matching f, available first then most recently registered.
	ListDonors(ctx context.Context, f models.DonorFilter) ([]models.Donor, error)
	// GetDonors returns the donors with the given ids in the order requested. Unknown ids are skipped.
	GetDonors(ctx context.Context, ids []string) ([]models.Donor, error)
	Ping(ctx context.Context) error
	Close() error
}

// NormalizeLimit clamps a requested limit into (0, MaxLimit].
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func normalizeFilter(f models.DonorFilter) (models.DonorFilter, error) {
	f.Limit = NormalizeLimit(f.Limit)
	f.Search = strings.TrimSpace(f.Search)
	if f.BloodType == "" {
		return f, nil
	}
	bt, ok := models.ParseBloodType(string(f.BloodType))
	if !ok {
		return f, fmt.Errorf("%w: blood type %q", ErrInvalidFilter, f.BloodType)
	}
	f.BloodType = bt
	return f, nil
}

// prepare fills the identity fields a store owns.
func prepare(d *models.Donor) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
}

type MemoryStore struct {
	mu     sync.RWMutex
	donors map[string]models.Donor
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{donors: make(map[string]models.Donor)}
}

func (m *MemoryStore) CreateDonor(_ context.Context, d *models.Donor) error {
	prepare(d)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.donors[d.ID]; exists {
		return fmt.Errorf("donor %s already exists", d.ID)
	}
	m.donors[d.ID] = *d
	return nil
}

func (m *MemoryStore) ListDonors(_ context.Context, f models.DonorFilter) ([]models.Donor, error) {
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(f.Search)

	m.mu.RLock()
	out := make([]models.Donor, 0, len(m.donors))
	for _, d := range m.donors {
		if f.BloodType != "" && d.BloodType != f.BloodType {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(d.City), search) && !strings.Contains(strings.ToLower(d.Name), search) {
			continue
		}
		out = append(out, d)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Available != b.Available {
			return a.Available
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) GetDonors(_ context.Context, ids []string) ([]models.Donor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Donor, 0, len(ids))
	for _, id := range ids {
		if d, ok := m.donors[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
