// Package support stores the append-only support requests users send.
package support

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go-careerdesk/web/db"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

var ErrInvalidTicket = errors.New("invalid support ticket")

const (
	maxSubject = 200
	maxBody    = 5000
)

// NewTicket validates input and assigns a time-ordered id.
func NewTicket(userID, email, subject, body string, now time.Time) (db.SupportTicket, error) {
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	switch {
	case userID == "":
		return db.SupportTicket{}, fmt.Errorf("%w: missing user", ErrInvalidTicket)
	case subject == "" || body == "":
		return db.SupportTicket{}, fmt.Errorf("%w: subject and message are required", ErrInvalidTicket)
	case utf8.RuneCountInString(subject) > maxSubject:
		return db.SupportTicket{}, fmt.Errorf("%w: subject longer than %d characters", ErrInvalidTicket, maxSubject)
	case utf8.RuneCountInString(body) > maxBody:
		return db.SupportTicket{}, fmt.Errorf("%w: message longer than %d characters", ErrInvalidTicket, maxBody)
	}
	return db.SupportTicket{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		UserID:    userID,
		Email:     email,
		Subject:   subject,
		Body:      body,
		CreatedAt: now,
	}, nil
}

type Repository interface {
	Create(ctx context.Context, t db.SupportTicket) error
	List(ctx context.Context, limit int) ([]db.SupportTicket, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(conn *gorm.DB) *GormRepository {
	return &GormRepository{db: conn}
}

func (r *GormRepository) Create(ctx context.Context, t db.SupportTicket) error {
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *GormRepository) List(ctx context.Context, limit int) ([]db.SupportTicket, error) {
	var out []db.SupportTicket
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(clamp(limit)).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type MemoryRepository struct {
	mu      sync.Mutex
	tickets []db.SupportTicket
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, t db.SupportTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets = append(r.tickets, t)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, limit int) ([]db.SupportTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]db.SupportTicket(nil), r.tickets...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if n := clamp(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func clamp(limit int) int {
	if limit <= 0 || limit > 200 {
		return 200
	}
	return limit
}
