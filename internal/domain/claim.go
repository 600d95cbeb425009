package domain

import (
	"strings"
	"time"
)

type CertStyle string

const (
	StyleClassic CertStyle = "classic"
	StyleMinimal CertStyle = "minimal"
	StyleNight   CertStyle = "night"
	StyleFloral  CertStyle = "floral"
)

var certStyles = []CertStyle{StyleClassic, StyleMinimal, StyleNight, StyleFloral}

// ParseCertStyle maps an empty value to the classic style.
func ParseCertStyle(s string) (CertStyle, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StyleClassic, nil
	}
	for _, st := range certStyles {
		if string(st) == s {
			return st, nil
		}
	}
	return "", Invalid("unknown certificate style %q", s)
}

type TimeDisplay string

const (
	TimeDisplayUTC   TimeDisplay = "utc"
	TimeDisplayLocal TimeDisplay = "local"
)

func ParseTimeDisplay(s string) (TimeDisplay, error) {
	switch td := TimeDisplay(strings.ToLower(strings.TrimSpace(s))); td {
	case "", TimeDisplayUTC:
		return TimeDisplayUTC, nil
	case TimeDisplayLocal:
		return td, nil
	}
	return "", Invalid("unknown time display %q", s)
}

type Claim struct {
	ID            ClaimID     `gorm:"type:uuid;primaryKey" json:"id"`
	TS            time.Time   `gorm:"not null;uniqueIndex:ux_claims_ts" json:"ts"`
	Granularity   Granularity `gorm:"type:text;not null" json:"granularity"`
	OwnerID       OwnerID     `gorm:"type:uuid;not null;index" json:"ownerId"`
	Price         int64       `gorm:"not null" json:"price"`
	Currency      string      `gorm:"type:text;not null" json:"currency"`
	Title         string      `gorm:"type:text;not null" json:"title"`
	Message       string      `gorm:"type:text;not null" json:"message"`
	LinkURL       string      `gorm:"type:text;not null" json:"linkUrl"`
	Style         CertStyle   `gorm:"type:text;not null" json:"style"`
	TimeDisplay   TimeDisplay `gorm:"type:text;not null" json:"timeDisplay"`
	LocalDateOnly bool        `gorm:"not null" json:"localDateOnly"`
	CertHash      string      `gorm:"type:text;not null;index" json:"certHash"`
	CertURL       string      `gorm:"type:text;not null" json:"certUrl"`
	CreatedAt     time.Time   `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time   `gorm:"not null" json:"updatedAt"`
}

func (Claim) TableName() string { return "claims" }

func (c *Claim) Unit() Unit { return Unit{Granularity: c.Granularity, TS: c.TS.UTC()} }

// ClaimMetadata holds the owner-editable fields of a claim.
type ClaimMetadata struct {
	Title         string
	Message       string
	LinkURL       string
	Style         CertStyle
	TimeDisplay   TimeDisplay
	LocalDateOnly bool
}

func (c *Claim) Apply(m ClaimMetadata) {
	c.Title = m.Title
	c.Message = m.Message
	c.LinkURL = m.LinkURL
	c.Style = m.Style
	c.TimeDisplay = m.TimeDisplay
	c.LocalDateOnly = m.LocalDateOnly
}

type RegistryEntry struct {
	ClaimID     ClaimID     `gorm:"type:uuid;primaryKey" json:"claimId"`
	TS          time.Time   `gorm:"not null;uniqueIndex:ux_registry_ts" json:"ts"`
	Granularity Granularity `gorm:"type:text;not null" json:"granularity"`
	Title       string      `gorm:"type:text;not null" json:"title"`
	Message     string      `gorm:"type:text;not null" json:"message"`
	Style       CertStyle   `gorm:"type:text;not null" json:"style"`
	CreatedAt   time.Time   `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time   `gorm:"not null" json:"updatedAt"`
}

func (RegistryEntry) TableName() string { return "registry_entries" }

// RegistryEntryFor projects the public fields of a claim.
func RegistryEntryFor(c *Claim, now time.Time) *RegistryEntry {
	return &RegistryEntry{
		ClaimID:     c.ID,
		TS:          c.TS,
		Granularity: c.Granularity,
		Title:       c.Title,
		Message:     c.Message,
		Style:       c.Style,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

type ProcessedEvent struct {
	EventKey  string    `gorm:"type:text;primaryKey"`
	Kind      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (ProcessedEvent) TableName() string { return "processed_events" }
