package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-careerdesk/plan"
	"go-careerdesk/web/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists entitlements through gorm. Record-level atomicity comes
// from SELECT ... FOR UPDATE inside a transaction.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(conn *gorm.DB) *GormStore {
	return &GormStore{db: conn}
}

func (s *GormStore) Get(ctx context.Context, userID string) (db.Entitlement, error) {
	var e db.Entitlement
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Entitlement{}, ErrNotFound
	}
	if err != nil {
		return db.Entitlement{}, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (s *GormStore) Create(ctx context.Context, e db.Entitlement) error {
	err := s.db.WithContext(ctx).Create(&e).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func lockForUpdate(tx *gorm.DB, userID string) (db.Entitlement, error) {
	var e db.Entitlement
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Entitlement{}, ErrNotFound
	}
	if err != nil {
		return db.Entitlement{}, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func saveMutation(tx *gorm.DB, cur db.Entitlement, fn func(*db.Entitlement) error) (db.Entitlement, error) {
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return db.Entitlement{}, err
	}
	next.UserID = cur.UserID
	next.CreatedAt = cur.CreatedAt
	next.Version = cur.Version + 1
	if err := tx.Save(&next).Error; err != nil {
		return db.Entitlement{}, fmt.Errorf("db error: %w", err)
	}
	return next, nil
}

func (s *GormStore) Update(ctx context.Context, userID string, fn func(*db.Entitlement) error) (db.Entitlement, error) {
	var out db.Entitlement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := lockForUpdate(tx, userID)
		if err != nil {
			return err
		}
		out, err = saveMutation(tx, cur, fn)
		return err
	})
	if err != nil {
		return db.Entitlement{}, err
	}
	return out, nil
}

func (s *GormStore) ApplyPayment(ctx context.Context, ev db.PaymentEvent, fn func(*db.Entitlement) error) (db.Entitlement, bool, error) {
	var (
		out     db.Entitlement
		applied bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The row lock serialises both delivery paths for this user before the
		// ledger lookup.
		cur, err := lockForUpdate(tx, ev.UserID)
		if err != nil {
			return err
		}

		var seen int64
		if err := tx.Model(&db.PaymentEvent{}).Where("payment_id = ?", ev.PaymentID).Count(&seen).Error; err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if seen > 0 {
			out = cur
			return nil
		}

		out, err = saveMutation(tx, cur, fn)
		if err != nil {
			return err
		}
		if err := tx.Create(&ev).Error; err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return db.Entitlement{}, false, err
	}
	return out, applied, nil
}

func (s *GormStore) DecrementCredit(ctx context.Context, userID string) (db.Entitlement, bool, error) {
	res := s.db.WithContext(ctx).Model(&db.Entitlement{}).
		Where("user_id = ? AND plan = ? AND credits > 0", userID, string(plan.Free)).
		Updates(map[string]any{
			"credits": gorm.Expr("credits - 1"),
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return db.Entitlement{}, false, fmt.Errorf("db error: %w", res.Error)
	}
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return db.Entitlement{}, false, err
	}
	return rec, res.RowsAffected > 0, nil
}

func (s *GormStore) RefundCredit(ctx context.Context, userID string) (db.Entitlement, error) {
	res := s.db.WithContext(ctx).Model(&db.Entitlement{}).
		Where("user_id = ? AND plan = ?", userID, string(plan.Free)).
		Updates(map[string]any{
			"credits": gorm.Expr("credits + 1"),
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return db.Entitlement{}, fmt.Errorf("db error: %w", res.Error)
	}
	return s.Get(ctx, userID)
}

func (s *GormStore) List(ctx context.Context, f ListFilter) ([]db.Entitlement, int64, error) {
	q := s.db.WithContext(ctx).Model(&db.Entitlement{})
	if f.Plan != "" {
		q = q.Where("plan = ?", string(f.Plan))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	var out []db.Entitlement
	err := q.Order("created_at DESC").Order("user_id").
		Limit(clampLimit(f.Limit)).Offset(max(f.Offset, 0)).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return out, total, nil
}

func (s *GormStore) CountByPlan(ctx context.Context) (map[plan.Plan]int64, error) {
	var rows []struct {
		Plan  plan.Plan
		Total int64
	}
	err := s.db.WithContext(ctx).Model(&db.Entitlement{}).
		Select("plan, COUNT(*) AS total").Group("plan").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	out := make(map[plan.Plan]int64, len(rows))
	for _, r := range rows {
		out[r.Plan] = r.Total
	}
	return out, nil
}

func (s *GormStore) RecentSignups(ctx context.Context, limit int) ([]db.Entitlement, error) {
	var out []db.Entitlement
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(clampLimit(limit)).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (s *GormStore) ListExpiring(ctx context.Context, before time.Time) ([]db.Entitlement, error) {
	paid := []string{string(plan.Essentials), string(plan.Pro), string(plan.Recruiter)}
	var out []db.Entitlement
	err := s.db.WithContext(ctx).
		Where("plan IN ? AND plan_updated_at IS NOT NULL AND plan_updated_at < ?", paid, before).
		Order("user_id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
