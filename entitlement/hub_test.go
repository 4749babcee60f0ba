package entitlement

import (
	"testing"

	"go-careerdesk/plan"
	"go-careerdesk/web/db"

	"github.com/stretchr/testify/assert"
)

func TestHubFiltersByUser(t *testing.T) {
	h := NewHub()
	mine, cancelMine := h.Subscribe("u-1", 2)
	all, cancelAll := h.Subscribe("", 2)
	defer cancelAll()

	h.Publish(db.Entitlement{UserID: "u-2", Plan: plan.Pro, Version: 3})
	h.Publish(db.Entitlement{UserID: "u-1", Plan: plan.Free, Version: 7})

	got := <-mine
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, int64(7), got.Version)
	assert.Len(t, all, 2)

	cancelMine()
	cancelMine()
	_, open := <-mine
	assert.False(t, open)
	assert.Equal(t, 1, h.Subscribers())
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("u-1", 1)
	defer cancel()

	for i := 0; i < 5; i++ {
		h.Publish(db.Entitlement{UserID: "u-1", Version: int64(i)})
	}
	assert.Len(t, ch, 1)
	assert.Equal(t, int64(0), (<-ch).Version)
}

func TestNilHubIsNoop(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Publish(db.Entitlement{UserID: "u-1"}) })
	assert.NotPanics(t, func() { assert.Equal(t, 0, h.Subscribers()) })
}
