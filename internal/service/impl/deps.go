package impl

import (
	"fmt"
	"strings"
	"time"

	"parcels/internal/certificate"
	"parcels/internal/codes"
	"parcels/internal/domain"
	"parcels/internal/events"
	"parcels/internal/mail"
	"parcels/internal/payment"
	"parcels/internal/store"
)

// Pricing holds the configured amounts in the smallest currency unit.
type Pricing struct {
	Currency      string
	Day           int64
	Minute        int64
	ListingMin    int64
	CommissionBPS int64
	CommissionMin int64
}

func (p Pricing) For(g domain.Granularity) int64 {
	if g == domain.GranularityMinute {
		return p.Minute
	}
	return p.Day
}

// Deps is shared by every workflow implementation.
type Deps struct {
	Store    *store.Store
	Payments payment.Provider
	Mailer   *mail.Mailer
	Events   events.Publisher
	Hasher   *certificate.Hasher
	Keyer    *codes.Keyer
	Renderer *certificate.Renderer
	Pricing  Pricing

	BaseURL      string
	ResetTTL     time.Duration
	LoginCodeTTL time.Duration

	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Deps) publisher() events.Publisher {
	if d.Events == nil {
		return events.Noop{}
	}
	return d.Events
}

func (d *Deps) mailer() *mail.Mailer {
	if d.Mailer == nil {
		d.Mailer = mail.NewMailer(nil)
	}
	return d.Mailer
}

func (d *Deps) url(path string) string {
	return strings.TrimRight(d.BaseURL, "/") + path
}

func (d *Deps) certURL(u domain.Unit) string  { return d.url("/cert/" + u.Key()) }
func (d *Deps) claimURL(u domain.Unit) string { return d.url("/day/" + u.Key()) }

// formatAmount renders minor units for humans, e.g. "5.00 USD".
func formatAmount(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, strings.ToUpper(currency))
}
