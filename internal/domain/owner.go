package domain

import (
	"strings"
	"time"
)

type Owner struct {
	ID              OwnerID   `gorm:"type:uuid;primaryKey" json:"id"`
	Email           string    `gorm:"type:text;not null;uniqueIndex:ux_owners_email" json:"email"`
	DisplayName     *string   `gorm:"type:text" json:"displayName,omitempty"`
	PayoutAccountID *string   `gorm:"type:text" json:"-"`
	CreatedAt       time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"not null" json:"updatedAt"`
}

func (Owner) TableName() string { return "owners" }

// Name returns the display name, or an empty string when none was given.
func (o *Owner) Name() string {
	if o == nil || o.DisplayName == nil {
		return ""
	}
	return *o.DisplayName
}

// NormalizeEmail lower-cases and trims an address so it can be used as the owner key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type PasswordCredential struct {
	ID          OwnerID   `gorm:"type:uuid;primaryKey"`
	OwnerID     OwnerID   `gorm:"type:uuid;not null;uniqueIndex:ux_pwd_owner"`
	Algo        string    `gorm:"type:text;not null"`
	Hash        []byte    `gorm:"not null"`
	Salt        []byte    `gorm:"not null"`
	ParamsJSON  []byte    `gorm:"not null"`
	PasswordVer int       `gorm:"not null;default:1"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (PasswordCredential) TableName() string { return "password_credentials" }

func (p *PasswordCredential) GetAlgo() string       { return p.Algo }
func (p *PasswordCredential) GetHash() []byte       { return p.Hash }
func (p *PasswordCredential) GetSalt() []byte       { return p.Salt }
func (p *PasswordCredential) GetParamsJSON() []byte { return p.ParamsJSON }
func (p *PasswordCredential) GetPasswordVer() int   { return p.PasswordVer }
