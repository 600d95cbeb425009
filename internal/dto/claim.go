package dto

import "time"

type UnitRequest struct {
	Unit string `json:"unit"`
}

type TransferCodeResponse struct {
	ClaimID  string `json:"claim_id"`
	CertHash string `json:"cert_hash"`
	Code     string `json:"code"`
	Unit     string `json:"unit"`
}

type TransferRequest struct {
	ClaimID  string  `json:"claim_id"`
	CertHash string  `json:"cert_hash"`
	Code     string  `json:"code"`
	Title    *string `json:"title,omitempty"`
	Message  *string `json:"message,omitempty"`
}

type TransferResponse struct {
	ClaimID  string `json:"claim_id"`
	Unit     string `json:"unit"`
	OwnerID  string `json:"owner_id"`
	CertHash string `json:"cert_hash"`
	Changed  bool   `json:"changed"`
}

// ClaimUpdateRequest edits owner metadata. Nil fields are left unchanged.
type ClaimUpdateRequest struct {
	Title         *string   `json:"title,omitempty"`
	Message       *string   `json:"message,omitempty"`
	Link          *string   `json:"link,omitempty"`
	Style         *string   `json:"style,omitempty"`
	TimeDisplay   *string   `json:"time_display,omitempty"`
	LocalDateOnly *FlexBool `json:"local_date_only,omitempty"`
	Public        *FlexBool `json:"public,omitempty"`
}

// ClaimView is the public projection of a claim.
type ClaimView struct {
	ClaimID       string    `json:"claim_id"`
	Unit          string    `json:"unit"`
	Granularity   string    `json:"granularity"`
	OwnerName     string    `json:"owner_name,omitempty"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Link          string    `json:"link,omitempty"`
	Style         string    `json:"style"`
	TimeDisplay   string    `json:"time_display"`
	LocalDateOnly bool      `json:"local_date_only"`
	CertURL       string    `json:"cert_url"`
	Public        bool      `json:"public"`
	ClaimedAt     time.Time `json:"claimed_at"`
}

// OwnedClaim is what an owner sees about their own claims.
type OwnedClaim struct {
	ClaimView
	CertHash string `json:"cert_hash"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
}

type Availability struct {
	Unit      string `json:"unit"`
	Available bool   `json:"available"`
	Price     int64  `json:"price"`
	Currency  string `json:"currency"`
}

type RegistryQuery struct {
	Cursor      string
	Limit       int
	Query       string
	Granularity string
	Style       string
	From        string
	To          string
}

type RegistryItem struct {
	ClaimID     string `json:"claim_id"`
	Unit        string `json:"unit"`
	Granularity string `json:"granularity"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Style       string `json:"style"`
}

type RegistryPage struct {
	Items      []RegistryItem `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Certificate is a rendered PDF and its cache validator.
type Certificate struct {
	ETag string
	Lang string
	Body []byte
}
