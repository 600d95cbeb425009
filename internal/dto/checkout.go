package dto

type CheckoutRequest struct {
	Unit          string   `json:"unit"`
	Email         string   `json:"email"`
	DisplayName   string   `json:"display_name"`
	Title         string   `json:"title"`
	Message       string   `json:"message"`
	Link          string   `json:"link"`
	Style         string   `json:"style"`
	TimeDisplay   string   `json:"time_display"`
	LocalDateOnly FlexBool `json:"local_date_only"`
	Public        FlexBool `json:"public"`
	Gift          FlexBool `json:"gift"`
}

type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type MarketplaceCheckoutRequest struct {
	ListingID string `json:"listing_id"`
	Email     string `json:"email"`
}

// SettlementResult describes the outcome of a confirmed payment.
type SettlementResult struct {
	Kind      string `json:"kind"`
	Unit      string `json:"unit"`
	ClaimID   string `json:"claim_id"`
	OwnerID   string `json:"owner_id"`
	CertHash  string `json:"cert_hash"`
	CertURL   string `json:"cert_url"`
	Duplicate bool   `json:"duplicate"`
	Created   bool   `json:"created"`
	GiftCode  string `json:"-"`
}
