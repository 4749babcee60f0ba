package db

import (
	"time"

	"go-careerdesk/plan"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email    string `gorm:"uniqueIndex;size:255"`
	UUID     string `gorm:"uniqueIndex;size:64"`
	Password string

	IsVerified  bool   `gorm:"not null;default:false"`
	VerifyToken string `gorm:"size:64;index"`
	TokenExpiry time.Time
}

// Entitlement is the per-user plan record. RequestedPlan is set exactly while
// Plan is pending.
type Entitlement struct {
	UserID          string     `gorm:"primaryKey;size:64" json:"user_id"`
	Email           string     `gorm:"size:255;index" json:"email"`
	Plan            plan.Plan  `gorm:"size:32;not null;index" json:"plan"`
	RequestedPlan   *plan.Plan `gorm:"size:32" json:"requested_plan"`
	PreviousPlan    *plan.Plan `gorm:"size:32" json:"previous_plan,omitempty"`
	Credits         int64      `gorm:"not null;default:0" json:"credits"`
	PlanUpdatedAt   *time.Time `json:"plan_updated_at"`
	PaymentProofURL string     `gorm:"size:1024" json:"payment_proof_url,omitempty"`
	PaymentID       string     `gorm:"size:64" json:"payment_id,omitempty"`
	WebhookVerified bool       `json:"webhook_verified"`
	TeamID          *string    `gorm:"size:64" json:"team_id,omitempty"`
	Version         int64      `gorm:"not null;default:0" json:"version"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Clone returns a copy that shares no pointers with e.
func (e Entitlement) Clone() Entitlement {
	out := e
	if e.RequestedPlan != nil {
		p := *e.RequestedPlan
		out.RequestedPlan = &p
	}
	if e.PreviousPlan != nil {
		p := *e.PreviousPlan
		out.PreviousPlan = &p
	}
	if e.PlanUpdatedAt != nil {
		t := *e.PlanUpdatedAt
		out.PlanUpdatedAt = &t
	}
	if e.TeamID != nil {
		s := *e.TeamID
		out.TeamID = &s
	}
	return out
}

// PaymentEvent records a gateway payment that has been applied. The primary
// key makes a second application of the same payment impossible.
type PaymentEvent struct {
	PaymentID string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"size:64;index"`
	Plan      plan.Plan `gorm:"size:32"`
	Source    string    `gorm:"size:16"`
	LinkID    string    `gorm:"size:64"`
	AppliedAt time.Time
}

type PaymentLink struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	UserID      string    `gorm:"size:64;index" json:"user_id"`
	Plan        plan.Plan `gorm:"size:32" json:"plan"`
	AmountPaise int64     `json:"amount_paise"`
	Currency    string    `gorm:"size:8" json:"currency"`
	ShortURL    string    `gorm:"size:512" json:"short_url"`
	ReferenceID string    `gorm:"size:64" json:"reference_id"`
	Status      string    `gorm:"size:16" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SupportTicket struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"`
	UserID    string    `gorm:"size:64;index" json:"user_id"`
	Email     string    `gorm:"size:255" json:"email"`
	Subject   string    `gorm:"size:255" json:"subject"`
	Body      string    `gorm:"type:text" json:"body"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type Team struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:255"`
	CreatedAt time.Time
}
