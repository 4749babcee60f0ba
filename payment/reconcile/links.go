package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go-careerdesk/web/db"

	"gorm.io/gorm"
)

var ErrLinkNotFound = errors.New("payment link not found")

// LinkStore keeps the payment links this service created so the redirect
// path can trust its own record of user and plan.
type LinkStore interface {
	SaveLink(ctx context.Context, l db.PaymentLink) error
	FindLink(ctx context.Context, id string) (db.PaymentLink, error)
	MarkLink(ctx context.Context, id, status string) error
	ListLinks(ctx context.Context, userID string) ([]db.PaymentLink, error)
}

type GormLinkStore struct {
	db *gorm.DB
}

func NewGormLinkStore(conn *gorm.DB) *GormLinkStore {
	return &GormLinkStore{db: conn}
}

func (s *GormLinkStore) SaveLink(ctx context.Context, l db.PaymentLink) error {
	if err := s.db.WithContext(ctx).Create(&l).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *GormLinkStore) FindLink(ctx context.Context, id string) (db.PaymentLink, error) {
	var l db.PaymentLink
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.PaymentLink{}, ErrLinkNotFound
	}
	if err != nil {
		return db.PaymentLink{}, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (s *GormLinkStore) MarkLink(ctx context.Context, id, status string) error {
	res := s.db.WithContext(ctx).Model(&db.PaymentLink{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("db error: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (s *GormLinkStore) ListLinks(ctx context.Context, userID string) ([]db.PaymentLink, error) {
	var out []db.PaymentLink
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Limit(50).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type MemoryLinkStore struct {
	mu    sync.RWMutex
	links map[string]db.PaymentLink
}

func NewMemoryLinkStore() *MemoryLinkStore {
	return &MemoryLinkStore{links: make(map[string]db.PaymentLink)}
}

func (s *MemoryLinkStore) SaveLink(_ context.Context, l db.PaymentLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	s.links[l.ID] = l
	return nil
}

func (s *MemoryLinkStore) FindLink(_ context.Context, id string) (db.PaymentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[id]
	if !ok {
		return db.PaymentLink{}, ErrLinkNotFound
	}
	return l, nil
}

func (s *MemoryLinkStore) MarkLink(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[id]
	if !ok {
		return ErrLinkNotFound
	}
	l.Status = status
	l.UpdatedAt = time.Now()
	s.links[id] = l
	return nil
}

func (s *MemoryLinkStore) ListLinks(_ context.Context, userID string) ([]db.PaymentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []db.PaymentLink
	for _, l := range s.links {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
