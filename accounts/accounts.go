// Package accounts keeps local email/password accounts.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"go-careerdesk/web/db"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("invalid email or password format")
	ErrNotVerified        = errors.New("email not verified")
	ErrVerifyToken        = errors.New("invalid verification token")
	ErrVerifyExpired      = errors.New("verification token expired")
)

const (
	bcryptCost     = 10
	minPasswordLen = 8

	// VerifyTokenTTL is how long a verification link stays valid.
	VerifyTokenTTL = 24 * time.Hour
)

type Store interface {
	Create(ctx context.Context, u *db.User) error
	FindByEmail(ctx context.Context, email string) (db.User, error)
	FindByVerifyToken(ctx context.Context, token string) (db.User, error)
	Save(ctx context.Context, u *db.User) error
	Delete(ctx context.Context, u db.User) error
}

// Service registers and authenticates users. An account cannot sign in until
// its email address has been confirmed through the verification link.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock replaces the clock used for verification token expiry.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, email, password string) (db.User, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || len(password) < minPasswordLen {
		return db.User{}, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return db.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := db.User{
		Email:       email,
		UUID:        uuid.New().String(),
		Password:    string(hash),
		IsVerified:  false,
		VerifyToken: uuid.New().String(),
		TokenExpiry: s.now().Add(VerifyTokenTTL),
	}
	err = s.store.Create(ctx, &u)
	if errors.Is(err, ErrEmailTaken) {
		// An address nobody confirmed in time can be claimed again.
		if !s.releaseStale(ctx, email) {
			return db.User{}, ErrEmailTaken
		}
		u.ID = 0
		err = s.store.Create(ctx, &u)
	}
	if err != nil {
		return db.User{}, err
	}
	return u, nil
}

func (s *Service) releaseStale(ctx context.Context, email string) bool {
	old, err := s.store.FindByEmail(ctx, email)
	if err != nil || old.IsVerified || old.TokenExpiry.After(s.now()) {
		return false
	}
	return s.store.Delete(ctx, old) == nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (db.User, error) {
	u, err := s.store.FindByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrInvalidCredentials) {
		// Spend the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return db.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return db.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return db.User{}, ErrInvalidCredentials
	}
	if !u.IsVerified {
		return db.User{}, ErrNotVerified
	}
	return u, nil
}

// Verify confirms the address behind token. An expired token removes the
// unconfirmed account so the address can be registered again.
func (s *Service) Verify(ctx context.Context, token string) (db.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return db.User{}, ErrVerifyToken
	}
	u, err := s.store.FindByVerifyToken(ctx, token)
	if err != nil {
		return db.User{}, err
	}
	if u.TokenExpiry.Before(s.now()) {
		if err := s.store.Delete(ctx, u); err != nil {
			return db.User{}, err
		}
		return db.User{}, ErrVerifyExpired
	}
	u.IsVerified = true
	u.VerifyToken = ""
	if err := s.store.Save(ctx, &u); err != nil {
		return db.User{}, err
	}
	return u, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(conn *gorm.DB) *GormStore {
	return &GormStore{db: conn}
}

func (s *GormStore) Create(ctx context.Context, u *db.User) error {
	err := s.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (db.User, error) {
	var u db.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return db.User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (s *GormStore) FindByVerifyToken(ctx context.Context, token string) (db.User, error) {
	var u db.User
	err := s.db.WithContext(ctx).Where("verify_token = ?", token).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.User{}, ErrVerifyToken
	}
	if err != nil {
		return db.User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (s *GormStore) Save(ctx context.Context, u *db.User) error {
	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete removes the row outright; a soft-deleted row would still hold the
// unique email.
func (s *GormStore) Delete(ctx context.Context, u db.User) error {
	if err := s.db.WithContext(ctx).Unscoped().Delete(&db.User{}, u.ID).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type MemoryStore struct {
	mu     sync.Mutex
	nextID uint
	users  map[string]db.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]db.User)}
}

func (s *MemoryStore) Create(_ context.Context, u *db.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return ErrEmailTaken
	}
	s.nextID++
	u.ID = s.nextID
	s.users[u.Email] = *u
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return db.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *MemoryStore) FindByVerifyToken(_ context.Context, token string) (db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.VerifyToken != "" && u.VerifyToken == token {
			return u, nil
		}
	}
	return db.User{}, ErrVerifyToken
}

func (s *MemoryStore) Save(_ context.Context, u *db.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; !ok {
		return ErrInvalidCredentials
	}
	s.users[u.Email] = *u
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, u db.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, u.Email)
	return nil
}
