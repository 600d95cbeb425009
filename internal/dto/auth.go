package dto

type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type LoginCodeVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ProfileUpdateRequest struct {
	DisplayName *string `json:"display_name"`
}

type OwnerResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PayoutReady bool   `json:"payout_ready"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
