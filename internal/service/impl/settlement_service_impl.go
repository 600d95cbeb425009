package impl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"parcels/internal/certificate"
	"parcels/internal/domain"
	"parcels/internal/dto"
	"parcels/internal/events"
	"parcels/internal/mail"
	obsmw "parcels/internal/observability/middleware"
	"parcels/internal/observability/metrics"
	"parcels/internal/payment"
	"parcels/internal/service"
	"parcels/internal/store"

	"github.com/google/uuid"
)

// Checkout metadata keys.
const (
	metaUnit          = "unit"
	metaEmail         = "email"
	metaDisplayName   = "display_name"
	metaTitle         = "title"
	metaMessage       = "message"
	metaLink          = "link"
	metaStyle         = "style"
	metaTimeDisplay   = "time_display"
	metaLocalDateOnly = "local_date_only"
	metaPublic        = "public"
	metaGift          = "gift"
	metaListingID     = "listing_id"
)

const maxDisplayNameRunes = 80

type SettlementServiceImpl struct {
	*Deps
}

var _ service.SettlementService = (*SettlementServiceImpl)(nil)

func NewSettlementService(d *Deps) *SettlementServiceImpl {
	return &SettlementServiceImpl{Deps: d}
}

func (s *SettlementServiceImpl) StartCheckout(ctx context.Context, r dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	unit, err := domain.ParseUnit(r.Unit)
	if err != nil {
		return nil, err
	}
	email, err := validEmail(r.Email)
	if err != nil {
		return nil, err
	}
	name, err := validDisplayName(r.DisplayName)
	if err != nil {
		return nil, err
	}
	meta, err := validMetadata(metadataInput{
		Title:         r.Title,
		Message:       r.Message,
		Link:          r.Link,
		Style:         r.Style,
		TimeDisplay:   r.TimeDisplay,
		LocalDateOnly: bool(r.LocalDateOnly),
	})
	if err != nil {
		return nil, err
	}

	switch _, err := s.Store.Claims().GetByTS(ctx, unit.TS); {
	case err == nil:
		return nil, domain.ErrUnitTaken
	case !errors.Is(err, store.ErrRecordNotFound):
		return nil, err
	}

	md := map[string]string{
		metaUnit:          unit.Key(),
		metaEmail:         email,
		metaTitle:         meta.Title,
		metaMessage:       meta.Message,
		metaLink:          meta.LinkURL,
		metaStyle:         string(meta.Style),
		metaTimeDisplay:   string(meta.TimeDisplay),
		metaLocalDateOnly: r.LocalDateOnly.String(),
		metaPublic:        r.Public.String(),
		metaGift:          r.Gift.String(),
	}
	if name != nil {
		md[metaDisplayName] = *name
	}
	sess, err := s.Payments.CreateCheckout(ctx, payment.CheckoutRequest{
		Kind:        payment.KindClaim,
		Email:       email,
		Amount:      s.Pricing.For(unit.Granularity),
		Currency:    s.Pricing.Currency,
		ProductName: "Parcel of time " + unit.Key(),
		Metadata:    md,
		SuccessURL:  s.url("/checkout/confirm?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:   s.claimURL(unit),
	})
	if err != nil {
		return nil, err
	}
	return &dto.CheckoutResponse{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *SettlementServiceImpl) ConfirmCheckout(ctx context.Context, sessionID string) (*dto.SettlementResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.Invalid("missing session id")
	}
	p, err := s.Payments.GetPayment(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: checkout session", domain.ErrNotFound)
		}
		return nil, err
	}
	return s.settle(ctx, p)
}

func (s *SettlementServiceImpl) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.Payments.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	log := obsmw.Logger(ctx).With("event_id", ev.ID, "event_type", ev.Type)
	if ev.Payment == nil {
		log.Debug("ignoring webhook event")
		return nil
	}

	res, err := s.settle(ctx, ev.Payment)
	switch {
	case err == nil:
		log.Info("webhook settled", "session_id", ev.Payment.SessionID, "duplicate", res.Duplicate)
		return nil
	case errors.Is(err, domain.ErrPaymentIncomplete):
		log.Info("checkout not paid yet", "session_id", ev.Payment.SessionID)
		return nil
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotFound):
		// Redelivery cannot succeed. The payment needs a manual refund.
		log.Error("settlement rejected", "session_id", ev.Payment.SessionID, "error", err)
		return nil
	default:
		return err
	}
}

func (s *SettlementServiceImpl) settle(ctx context.Context, p *payment.Payment) (*dto.SettlementResult, error) {
	kind := p.Kind()
	var (
		res *dto.SettlementResult
		err error
	)
	switch {
	case !p.Paid:
		err = domain.ErrPaymentIncomplete
	case kind == payment.KindClaim:
		res, err = s.settleClaim(ctx, p)
	case kind == payment.KindListing:
		res, err = s.settleListing(ctx, p)
	default:
		err = domain.Invalid("unknown checkout kind %q", kind)
	}

	result := metrics.Result(err)
	if err == nil && res.Duplicate {
		result = "duplicate"
	}
	metrics.SettlementsTotal.WithLabelValues(kind, result).Inc()
	if err != nil {
		return nil, err
	}
	return res, nil
}

func eventKey(sessionID string) string { return "checkout:" + sessionID }

func (s *SettlementServiceImpl) settleClaim(ctx context.Context, p *payment.Payment) (*dto.SettlementResult, error) {
	md := p.Metadata
	unit, err := domain.ParseUnit(md[metaUnit])
	if err != nil {
		return nil, err
	}
	email := p.Email
	if email == "" {
		email = md[metaEmail]
	}
	if email, err = validEmail(email); err != nil {
		return nil, err
	}
	meta, err := validMetadata(metadataInput{
		Title:         md[metaTitle],
		Message:       md[metaMessage],
		Link:          md[metaLink],
		Style:         md[metaStyle],
		TimeDisplay:   md[metaTimeDisplay],
		LocalDateOnly: dto.ParseFlexBool(md[metaLocalDateOnly]),
	})
	if err != nil {
		return nil, err
	}
	public := dto.ParseFlexBool(md[metaPublic])
	gift := dto.ParseFlexBool(md[metaGift])
	amount, currency := p.Amount, domain.NormalizeCurrency(p.Currency)
	if amount <= 0 {
		amount = s.Pricing.For(unit.Granularity)
	}
	if currency == "" {
		currency = s.Pricing.Currency
	}

	res := &dto.SettlementResult{Kind: payment.KindClaim, Unit: unit.Key()}
	var (
		claim    *domain.Claim
		giftCode string
	)
	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		first, err := tx.Events().MarkProcessed(ctx, eventKey(p.SessionID), payment.KindClaim)
		if err != nil {
			return err
		}
		if !first {
			res.Duplicate = true
			c, err := tx.Claims().GetByTS(ctx, unit.TS)
			if err == nil {
				claim = c
			} else if !errors.Is(err, store.ErrRecordNotFound) {
				return err
			}
			return nil
		}

		owner, err := tx.Owners().UpsertByEmail(ctx, email, optionalName(md[metaDisplayName]))
		if err != nil {
			return err
		}
		now := s.now()
		c := &domain.Claim{
			TS:          unit.TS,
			Granularity: unit.Granularity,
			OwnerID:     owner.ID,
			Price:       amount,
			Currency:    currency,
			CreatedAt:   now,
		}
		c.Apply(meta)
		stored, created, err := tx.Claims().Upsert(ctx, c)
		if err != nil {
			return err
		}
		if created {
			hash, err := s.Hasher.Sum(certificate.FactsOf(stored))
			if err != nil {
				return err
			}
			stored.CertHash, stored.CertURL = hash, s.certURL(unit)
			if err := tx.Claims().SetCertificate(ctx, stored.ID, stored.CertHash, stored.CertURL); err != nil {
				return err
			}
		}
		if public {
			if err := tx.Registry().Upsert(ctx, domain.RegistryEntryFor(stored, now)); err != nil {
				return fmt.Errorf("registry: %w", err)
			}
		}
		if gift {
			if giftCode, err = s.issueTransferToken(ctx, tx, stored, domain.TransferPurposeGift, owner.ID); err != nil {
				return err
			}
		}
		claim = stored
		res.Created = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claim != nil {
		res.ClaimID = claim.ID.String()
		res.OwnerID = claim.OwnerID.String()
		res.CertHash = claim.CertHash
		res.CertURL = claim.CertURL
	}
	if res.Duplicate {
		return res, nil
	}
	res.GiftCode = giftCode

	obsmw.Logger(ctx).Info("claim settled",
		"unit", unit.Key(),
		"claim_id", res.ClaimID,
		"created", res.Created,
		"gift", gift,
	)
	s.mailer().Receipt(ctx, email, mail.ReceiptData{
		UnitKey:  unit.Key(),
		Amount:   formatAmount(amount, currency),
		CertURL:  claim.CertURL,
		ClaimURL: s.claimURL(unit),
		GiftCode: giftCode,
		ClaimID:  res.ClaimID,
		CertHash: claim.CertHash,
	})
	events.Emit(ctx, s.publisher(), events.SubjectClaimSettled, events.ClaimSettled{
		ClaimID:   res.ClaimID,
		Unit:      unit.Key(),
		OwnerID:   res.OwnerID,
		Amount:    amount,
		Currency:  currency,
		SessionID: p.SessionID,
		Gift:      gift,
		At:        s.now(),
	})
	return res, nil
}

func (s *SettlementServiceImpl) settleListing(ctx context.Context, p *payment.Payment) (*dto.SettlementResult, error) {
	listingID, err := uuid.Parse(p.Metadata[metaListingID])
	if err != nil {
		return nil, domain.Invalid("malformed listing id")
	}
	email := p.Email
	if email == "" {
		email = p.Metadata[metaEmail]
	}
	if email, err = validEmail(email); err != nil {
		return nil, err
	}

	res := &dto.SettlementResult{Kind: payment.KindListing}
	var (
		listing       *domain.Listing
		claim         *domain.Claim
		buyer, seller *domain.Owner
	)
	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		first, err := tx.Events().MarkProcessed(ctx, eventKey(p.SessionID), payment.KindListing)
		if err != nil {
			return err
		}
		if !first {
			res.Duplicate = true
			if l, err := tx.Listings().GetByID(ctx, listingID); err == nil {
				if c, err := tx.Claims().GetByID(ctx, l.ClaimID); err == nil {
					claim = c
				}
			}
			return nil
		}

		listing, claim, err = lockListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if claim == nil {
			return domain.ErrSellerChanged
		}
		if _, err := domain.Transition(listing.Status, domain.ActionSell); err != nil {
			return domain.ErrListingClosed
		}
		if claim.OwnerID != listing.SellerID {
			return domain.ErrSellerChanged
		}
		if buyer, err = tx.Owners().UpsertByEmail(ctx, email, nil); err != nil {
			return err
		}
		if buyer.ID == listing.SellerID {
			return fmt.Errorf("%w: buyer already owns the claim", domain.ErrConflict)
		}
		if seller, err = tx.Owners().GetByID(ctx, listing.SellerID); err != nil {
			return err
		}

		now := s.now()
		if err := tx.Listings().MarkSold(ctx, listing.ID, buyer.ID, now); err != nil {
			return err
		}
		if err := s.reassign(ctx, tx, claim, buyer.ID); err != nil {
			return err
		}
		if _, err := tx.TransferTokens().RevokeActive(ctx, claim.ID); err != nil {
			return err
		}
		return tx.History().Append(ctx, &domain.TransferHistory{
			ClaimID:   claim.ID,
			TS:        claim.TS,
			FromOwner: seller.ID,
			ToOwner:   buyer.ID,
			Kind:      domain.TransferKindSale,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	if claim != nil {
		res.Unit = claim.Unit().Key()
		res.ClaimID = claim.ID.String()
		res.OwnerID = claim.OwnerID.String()
		res.CertHash = claim.CertHash
		res.CertURL = claim.CertURL
	}
	if res.Duplicate {
		return res, nil
	}

	unit := claim.Unit()
	fee := domain.Commission(listing.Price, s.Pricing.CommissionBPS, s.Pricing.CommissionMin)
	obsmw.Logger(ctx).Info("listing sold",
		"listing_id", listing.ID.String(),
		"unit", unit.Key(),
		"fee", fee,
	)
	sale := mail.SaleData{
		UnitKey:  unit.Key(),
		Amount:   formatAmount(listing.Price, listing.Currency),
		ClaimURL: s.claimURL(unit),
		CertURL:  claim.CertURL,
	}
	s.mailer().SaleSeller(ctx, seller.Email, sale)
	s.mailer().SaleBuyer(ctx, buyer.Email, sale)
	events.Emit(ctx, s.publisher(), events.SubjectListingSold, events.ListingSold{
		ListingID: listing.ID.String(),
		ClaimID:   claim.ID.String(),
		Unit:      unit.Key(),
		SellerID:  seller.ID.String(),
		BuyerID:   buyer.ID.String(),
		Price:     listing.Price,
		Currency:  listing.Currency,
		Fee:       fee,
		At:        s.now(),
	})
	return res, nil
}

func validDisplayName(s string) (*string, error) {
	name := optionalName(s)
	if name != nil && len([]rune(*name)) > maxDisplayNameRunes {
		return nil, domain.Invalid("display name exceeds %d characters", maxDisplayNameRunes)
	}
	return name, nil
}
