package entitlement

import "errors"

var (
	ErrNotFound        = errors.New("entitlement not found")
	ErrAlreadyExists   = errors.New("entitlement already exists")
	ErrForbidden       = errors.New("admin privileges required")
	ErrAdminExempt     = errors.New("admin-designated accounts are exempt from plan changes")
	ErrPrecondition    = errors.New("precondition failed")
	ErrInvalidPlan     = errors.New("invalid plan")
	ErrInvalidDecision = errors.New("decision must be approve or reject")
)
