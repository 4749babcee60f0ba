package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"go-careerdesk/ai"
	"go-careerdesk/credits"
	"go-careerdesk/entitlement"
	"go-careerdesk/plan"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{entitlement.ErrNotFound, http.StatusNotFound},
		{entitlement.ErrForbidden, http.StatusForbidden},
		{entitlement.ErrAdminExempt, http.StatusForbidden},
		{fmt.Errorf("%w: not pending", entitlement.ErrPrecondition), http.StatusConflict},
		{fmt.Errorf("%w: gold", plan.ErrUnknown), http.StatusBadRequest},
		{entitlement.ErrInvalidDecision, http.StatusBadRequest},
		{plan.ErrUnknownFeature, http.StatusNotFound},
		{credits.ErrNoCredits, http.StatusPaymentRequired},
		{credits.ErrFeatureLocked, http.StatusForbidden},
		{ai.ErrNotConfigured, http.StatusServiceUnavailable},
		{fmt.Errorf("db error: %w", errors.New("connection reset")), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		got, msg := statusFor(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
		assert.NotEmpty(t, msg)
	}

	_, msg := statusFor(errors.New("dial tcp 10.0.0.5:3306: connection refused"))
	assert.NotContains(t, msg, "10.0.0.5", "internal errors must not leak")
}
