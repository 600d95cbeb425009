package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	all := []ListingStatus{ListingActive, ListingPaused, ListingSold, ListingCancelled}
	allowed := map[ListingAction]map[ListingStatus]ListingStatus{
		ActionPause:  {ListingActive: ListingPaused},
		ActionResume: {ListingPaused: ListingActive},
		ActionCancel: {ListingActive: ListingCancelled, ListingPaused: ListingCancelled},
		ActionSell:   {ListingActive: ListingSold},
	}
	for action, moves := range allowed {
		for _, from := range all {
			got, err := Transition(from, action)
			if want, ok := moves[from]; ok {
				assert.NoError(t, err, "%s from %s", action, from)
				assert.Equal(t, want, got)
				continue
			}
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s from %s", action, from)
			assert.ErrorIs(t, err, ErrConflict)
			assert.Equal(t, from, got)
		}
	}
}

func TestParseListingAction(t *testing.T) {
	a, err := ParseListingAction(" PAUSE ")
	assert.NoError(t, err)
	assert.Equal(t, ActionPause, a)

	_, err = ParseListingAction("sell")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTerminal(t *testing.T) {
	assert.False(t, ListingActive.Terminal())
	assert.False(t, ListingPaused.Terminal())
	assert.True(t, ListingSold.Terminal())
	assert.True(t, ListingCancelled.Terminal())
}

func TestCommission(t *testing.T) {
	tests := []struct {
		name            string
		price, bps, min int64
		want            int64
	}{
		{name: "percentage", price: 10000, bps: 1000, min: 50, want: 1000},
		{name: "minimum applies", price: 200, bps: 1000, min: 50, want: 50},
		{name: "capped at price", price: 30, bps: 1000, min: 50, want: 30},
		{name: "rounds down", price: 999, bps: 250, min: 0, want: 24},
		{name: "zero price", price: 0, bps: 1000, min: 50, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Commission(tc.price, tc.bps, tc.min))
		})
	}
}

func TestEnumsParse(t *testing.T) {
	s, err := ParseCertStyle("")
	assert.NoError(t, err)
	assert.Equal(t, StyleClassic, s)

	s, err = ParseCertStyle("Night")
	assert.NoError(t, err)
	assert.Equal(t, StyleNight, s)

	_, err = ParseCertStyle("neon")
	assert.ErrorIs(t, err, ErrValidation)

	td, err := ParseTimeDisplay("LOCAL")
	assert.NoError(t, err)
	assert.Equal(t, TimeDisplayLocal, td)

	_, err = ParseTimeDisplay("tz")
	assert.ErrorIs(t, err, ErrValidation)
}
