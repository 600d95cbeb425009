package dto

import "time"

type ListingRequest struct {
	Unit  string `json:"unit"`
	Price int64  `json:"price"`
}

type ListingStatusRequest struct {
	Action string `json:"action"`
}

type ListingView struct {
	ID        string    `json:"id"`
	ClaimID   string    `json:"claim_id"`
	Unit      string    `json:"unit"`
	Price     int64     `json:"price"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type ListingPage struct {
	Items      []ListingView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type OnboardResponse struct {
	URL string `json:"url"`
}
