package domain

import "time"

type TransferPurpose string

const (
	TransferPurposeGift     TransferPurpose = "gift"
	TransferPurposeTransfer TransferPurpose = "transfer"
)

type TransferToken struct {
	ID        TokenID         `gorm:"type:uuid;primaryKey"`
	ClaimID   ClaimID         `gorm:"type:uuid;not null;index:ix_transfer_tokens_claim_hash,priority:1"`
	CodeHash  string          `gorm:"type:text;not null;index:ix_transfer_tokens_claim_hash,priority:2"`
	Purpose   TransferPurpose `gorm:"type:text;not null"`
	CreatedBy OwnerID         `gorm:"type:uuid;not null"`
	UsedAt    *time.Time
	UsedBy    *OwnerID `gorm:"type:uuid"`
	IsRevoked bool     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (TransferToken) TableName() string { return "transfer_tokens" }

func (t *TransferToken) IsUsed() bool   { return t.UsedAt != nil }
func (t *TransferToken) IsActive() bool { return !t.IsRevoked && !t.IsUsed() }

type TransferKind string

const (
	TransferKindGift     TransferKind = "gift"
	TransferKindTransfer TransferKind = "transfer"
	TransferKindSale     TransferKind = "sale"
)

type TransferHistory struct {
	ID        TokenID      `gorm:"type:uuid;primaryKey"`
	ClaimID   ClaimID      `gorm:"type:uuid;not null;index"`
	TS        time.Time    `gorm:"not null;index"`
	FromOwner OwnerID      `gorm:"type:uuid;not null"`
	ToOwner   OwnerID      `gorm:"type:uuid;not null"`
	TokenID   *TokenID     `gorm:"type:uuid"`
	Kind      TransferKind `gorm:"type:text;not null"`
	IP        string       `gorm:"type:text"`
	UserAgent string       `gorm:"type:text"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (TransferHistory) TableName() string { return "transfer_history" }

type AuthPurpose string

const (
	AuthPurposePasswordReset AuthPurpose = "password_reset"
	AuthPurposeLoginCode     AuthPurpose = "login_code"
)

type AuthToken struct {
	ID        TokenID     `gorm:"type:uuid;primaryKey"`
	Purpose   AuthPurpose `gorm:"type:text;not null;uniqueIndex:ux_auth_tokens_hash,priority:1"`
	OwnerID   OwnerID     `gorm:"type:uuid;not null;uniqueIndex:ux_auth_tokens_hash,priority:2"`
	TokenHash string      `gorm:"type:text;not null;uniqueIndex:ux_auth_tokens_hash,priority:3;index"`
	ExpiresAt time.Time   `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

func (AuthToken) TableName() string { return "auth_tokens" }

func (t *AuthToken) IsExpired(now time.Time) bool { return !now.Before(t.ExpiresAt) }
func (t *AuthToken) IsUsed() bool                 { return t.UsedAt != nil }
