// Package plan defines the subscription plans, their prices and which AI
// features each tier unlocks.
package plan

import (
	"errors"
	"fmt"
	"strings"
)

// Plan is the subscription state stored on every entitlement.
type Plan string

const (
	Free                  Plan = "free"
	Essentials            Plan = "essentials"
	Pro                   Plan = "pro"
	Recruiter             Plan = "recruiter"
	Pending               Plan = "pending"
	CancellationRequested Plan = "cancellation_requested"
)

var ErrUnknown = errors.New("unknown plan")

// All lists every plan in tier order followed by the transitional states.
var All = []Plan{Free, Essentials, Pro, Recruiter, Pending, CancellationRequested}

// Parse normalizes s and returns the matching plan.
func Parse(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknown, s)
	}
	return p, nil
}

func (p Plan) String() string { return string(p) }

func (p Plan) Valid() bool {
	switch p {
	case Free, Essentials, Pro, Recruiter, Pending, CancellationRequested:
		return true
	}
	return false
}

// IsPaid reports whether p is a paid tier.
func (p Plan) IsPaid() bool {
	switch p {
	case Essentials, Pro, Recruiter:
		return true
	}
	return false
}

// IsRequestable reports whether users may ask an admin to move them to p.
func (p Plan) IsRequestable() bool {
	return p == Pro || p == Recruiter
}

// Rank orders tiers for feature gating. Transitional states rank as free.
func (p Plan) Rank() int {
	switch p {
	case Essentials:
		return 1
	case Pro:
		return 2
	case Recruiter:
		return 3
	}
	return 0
}

// Top is the tier admin-designated accounts are pinned to.
func Top() Plan { return Recruiter }
