package events

import "time"

const (
	SubjectClaimSettled     = "parcels.claim.settled"
	SubjectClaimTransferred = "parcels.claim.transferred"
	SubjectClaimReleased    = "parcels.claim.released"
	SubjectListingSold      = "parcels.listing.sold"
)

type ClaimSettled struct {
	ClaimID   string    `json:"claimId"`
	Unit      string    `json:"unit"`
	OwnerID   string    `json:"ownerId"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	SessionID string    `json:"sessionId"`
	Gift      bool      `json:"gift"`
	At        time.Time `json:"at"`
}

type ClaimTransferred struct {
	ClaimID   string    `json:"claimId"`
	Unit      string    `json:"unit"`
	FromOwner string    `json:"fromOwner"`
	ToOwner   string    `json:"toOwner"`
	Kind      string    `json:"kind"`
	At        time.Time `json:"at"`
}

type ClaimReleased struct {
	ClaimID string    `json:"claimId"`
	Unit    string    `json:"unit"`
	OwnerID string    `json:"ownerId"`
	At      time.Time `json:"at"`
}

type ListingSold struct {
	ListingID string    `json:"listingId"`
	ClaimID   string    `json:"claimId"`
	Unit      string    `json:"unit"`
	SellerID  string    `json:"sellerId"`
	BuyerID   string    `json:"buyerId"`
	Price     int64     `json:"price"`
	Currency  string    `json:"currency"`
	Fee       int64     `json:"fee"`
	At        time.Time `json:"at"`
}
