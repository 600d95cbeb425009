package domain

import (
	"strings"
	"time"
)

type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingPaused    ListingStatus = "paused"
	ListingSold      ListingStatus = "sold"
	ListingCancelled ListingStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s ListingStatus) Terminal() bool { return s == ListingSold || s == ListingCancelled }

// NonTerminalStatuses is the set a listing can still move out of.
var NonTerminalStatuses = []ListingStatus{ListingActive, ListingPaused}

type ListingAction string

const (
	ActionPause  ListingAction = "pause"
	ActionResume ListingAction = "resume"
	ActionCancel ListingAction = "cancel"
	ActionSell   ListingAction = "sell"
)

// ParseListingAction accepts only the seller-facing actions. Selling happens
// through settlement.
func ParseListingAction(s string) (ListingAction, error) {
	switch a := ListingAction(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionPause, ActionResume, ActionCancel:
		return a, nil
	}
	return "", Invalid("unknown listing action %q", s)
}

// Transition returns the status reached by applying a to from.
func Transition(from ListingStatus, a ListingAction) (ListingStatus, error) {
	switch {
	case a == ActionPause && from == ListingActive:
		return ListingPaused, nil
	case a == ActionResume && from == ListingPaused:
		return ListingActive, nil
	case a == ActionCancel && (from == ListingActive || from == ListingPaused):
		return ListingCancelled, nil
	case a == ActionSell && from == ListingActive:
		return ListingSold, nil
	}
	return from, ErrInvalidTransition
}

type Listing struct {
	ID          ListingID     `gorm:"type:uuid;primaryKey" json:"id"`
	ClaimID     ClaimID       `gorm:"type:uuid;not null;index" json:"claimId"`
	TS          time.Time     `gorm:"not null;index:ix_listings_ts_seller,priority:1" json:"ts"`
	Granularity Granularity   `gorm:"type:text;not null" json:"granularity"`
	SellerID    OwnerID       `gorm:"type:uuid;not null;index:ix_listings_ts_seller,priority:2" json:"sellerId"`
	Price       int64         `gorm:"not null" json:"price"`
	Currency    string        `gorm:"type:text;not null" json:"currency"`
	Status      ListingStatus `gorm:"type:text;not null;index" json:"status"`
	BuyerID     *OwnerID      `gorm:"type:uuid" json:"buyerId,omitempty"`
	SoldAt      *time.Time    `json:"soldAt,omitempty"`
	CreatedAt   time.Time     `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time     `gorm:"not null" json:"updatedAt"`
}

func (l *Listing) Unit() Unit { return Unit{Granularity: l.Granularity, TS: l.TS.UTC()} }

func (Listing) TableName() string { return "listings" }
