package entitlement

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-careerdesk/plan"
	"go-careerdesk/web/db"

	"github.com/google/btree"
)

// signupItem orders records by creation time for RecentSignups.
type signupItem struct {
	at     time.Time
	userID string
}

func (a signupItem) Less(b btree.Item) bool {
	o := b.(signupItem)
	if a.at.Equal(o.at) {
		return a.userID < o.userID
	}
	return a.at.Before(o.at)
}

// MemoryStore keeps entitlements in process memory. One mutex serialises all
// writes, which trivially gives per-record atomicity.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]db.Entitlement
	signups  *btree.BTree
	payments map[string]db.PaymentEvent
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]db.Entitlement),
		signups:  btree.New(8),
		payments: make(map[string]db.PaymentEvent),
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (db.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return db.Entitlement{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, e db.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[e.UserID]; ok {
		return ErrAlreadyExists
	}
	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	s.records[e.UserID] = e.Clone()
	s.signups.ReplaceOrInsert(signupItem{at: e.CreatedAt, userID: e.UserID})
	return nil
}

// mutate must be called with s.mu held.
func (s *MemoryStore) mutate(userID string, fn func(*db.Entitlement) error) (db.Entitlement, error) {
	cur, ok := s.records[userID]
	if !ok {
		return db.Entitlement{}, ErrNotFound
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return db.Entitlement{}, err
	}
	next.UserID = cur.UserID
	next.CreatedAt = cur.CreatedAt
	next.Version = cur.Version + 1
	next.UpdatedAt = s.now()
	s.records[userID] = next
	return next.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, userID string, fn func(*db.Entitlement) error) (db.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(userID, fn)
}

func (s *MemoryStore) ApplyPayment(_ context.Context, ev db.PaymentEvent, fn func(*db.Entitlement) error) (db.Entitlement, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[ev.UserID]
	if !ok {
		return db.Entitlement{}, false, ErrNotFound
	}
	if _, seen := s.payments[ev.PaymentID]; seen {
		return cur.Clone(), false, nil
	}
	rec, err := s.mutate(ev.UserID, fn)
	if err != nil {
		return db.Entitlement{}, false, err
	}
	s.payments[ev.PaymentID] = ev
	return rec, true, nil
}

func (s *MemoryStore) DecrementCredit(_ context.Context, userID string) (db.Entitlement, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[userID]
	if !ok {
		return db.Entitlement{}, false, ErrNotFound
	}
	if cur.Plan != plan.Free || cur.Credits <= 0 {
		return cur.Clone(), false, nil
	}
	rec, err := s.mutate(userID, func(e *db.Entitlement) error {
		e.Credits--
		return nil
	})
	return rec, err == nil, err
}

func (s *MemoryStore) RefundCredit(_ context.Context, userID string) (db.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[userID]
	if !ok {
		return db.Entitlement{}, ErrNotFound
	}
	if cur.Plan != plan.Free {
		return cur.Clone(), nil
	}
	return s.mutate(userID, func(e *db.Entitlement) error {
		e.Credits++
		return nil
	})
}

func (s *MemoryStore) List(_ context.Context, f ListFilter) ([]db.Entitlement, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []db.Entitlement
	for _, rec := range s.records {
		if f.Plan != "" && rec.Plan != f.Plan {
			continue
		}
		matched = append(matched, rec.Clone())
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].UserID < matched[j].UserID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return []db.Entitlement{}, total, nil
	}
	matched = matched[max(f.Offset, 0):]
	if limit := clampLimit(f.Limit); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (s *MemoryStore) CountByPlan(_ context.Context) (map[plan.Plan]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[plan.Plan]int64)
	for _, rec := range s.records {
		out[rec.Plan]++
	}
	return out, nil
}

func (s *MemoryStore) RecentSignups(_ context.Context, limit int) ([]db.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit = clampLimit(limit)
	out := make([]db.Entitlement, 0, min(limit, s.signups.Len()))
	s.signups.Descend(func(i btree.Item) bool {
		item := i.(signupItem)
		if rec, ok := s.records[item.userID]; ok {
			out = append(out, rec.Clone())
		}
		return len(out) < limit
	})
	return out, nil
}

func (s *MemoryStore) ListExpiring(_ context.Context, before time.Time) ([]db.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []db.Entitlement
	for _, rec := range s.records {
		if rec.Plan.IsPaid() && rec.PlanUpdatedAt != nil && rec.PlanUpdatedAt.Before(before) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
