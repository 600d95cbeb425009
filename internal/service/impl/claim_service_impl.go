package impl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"parcels/internal/certificate"
	"parcels/internal/domain"
	"parcels/internal/dto"
	"parcels/internal/events"
	obsmw "parcels/internal/observability/middleware"
	"parcels/internal/observability/metrics"
	"parcels/internal/service"
	"parcels/internal/store"
)

type ClaimServiceImpl struct {
	*Deps
}

var _ service.ClaimService = (*ClaimServiceImpl)(nil)

func NewClaimService(d *Deps) *ClaimServiceImpl {
	return &ClaimServiceImpl{Deps: d}
}

func claimNotFound(err error) error {
	if errors.Is(err, store.ErrRecordNotFound) {
		return fmt.Errorf("%w: claim", domain.ErrNotFound)
	}
	return err
}

func (cs *ClaimServiceImpl) lookup(ctx context.Context, unitKey string) (*domain.Claim, error) {
	unit, err := domain.ParseUnit(unitKey)
	if err != nil {
		return nil, err
	}
	c, err := cs.Store.Claims().GetByTS(ctx, unit.TS)
	if err != nil {
		return nil, claimNotFound(err)
	}
	return c, nil
}

func (cs *ClaimServiceImpl) isPublic(ctx context.Context, tx *store.Store, id domain.ClaimID) (bool, error) {
	_, err := tx.Registry().GetByClaim(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrRecordNotFound):
		return false, nil
	}
	return false, err
}

func (cs *ClaimServiceImpl) PublicView(ctx context.Context, unitKey string) (*dto.ClaimView, error) {
	c, err := cs.lookup(ctx, unitKey)
	if err != nil {
		return nil, err
	}
	owner, err := cs.Store.Owners().GetByID(ctx, c.OwnerID)
	if err != nil {
		return nil, err
	}
	public, err := cs.isPublic(ctx, cs.Store, c.ID)
	if err != nil {
		return nil, err
	}
	v := claimView(c, owner.Name(), public)
	return &v, nil
}

func (cs *ClaimServiceImpl) Availability(ctx context.Context, unitKey string) (*dto.Availability, error) {
	unit, err := domain.ParseUnit(unitKey)
	if err != nil {
		return nil, err
	}
	n, err := cs.Store.Claims().CountByTS(ctx, unit.TS)
	if err != nil {
		return nil, err
	}
	return &dto.Availability{
		Unit:      unit.Key(),
		Available: n == 0,
		Price:     cs.Pricing.For(unit.Granularity),
		Currency:  cs.Pricing.Currency,
	}, nil
}

// Update edits owner metadata. Setting public adds or removes the registry entry;
// leaving it unset refreshes an existing entry with the new text.
func (cs *ClaimServiceImpl) Update(ctx context.Context, owner domain.OwnerID, unitKey string, r dto.ClaimUpdateRequest) (*dto.OwnedClaim, error) {
	unit, err := domain.ParseUnit(unitKey)
	if err != nil {
		return nil, err
	}
	var out dto.OwnedClaim
	err = cs.Store.WithTx(ctx, func(tx *store.Store) error {
		c, err := tx.Claims().GetByTSForUpdate(ctx, unit.TS)
		if err != nil {
			return claimNotFound(err)
		}
		if c.OwnerID != owner {
			return domain.ErrNotOwner
		}
		in := metadataInput{
			Title:         c.Title,
			Message:       c.Message,
			Link:          c.LinkURL,
			Style:         string(c.Style),
			TimeDisplay:   string(c.TimeDisplay),
			LocalDateOnly: c.LocalDateOnly,
		}
		if r.Title != nil {
			in.Title = *r.Title
		}
		if r.Message != nil {
			in.Message = *r.Message
		}
		if r.Link != nil {
			in.Link = *r.Link
		}
		if r.Style != nil {
			in.Style = *r.Style
		}
		if r.TimeDisplay != nil {
			in.TimeDisplay = *r.TimeDisplay
		}
		if r.LocalDateOnly != nil {
			in.LocalDateOnly = bool(*r.LocalDateOnly)
		}
		meta, err := validMetadata(in)
		if err != nil {
			return err
		}
		if err := tx.Claims().UpdateMetadata(ctx, c.ID, meta); err != nil {
			return err
		}
		c.Apply(meta)

		public, err := cs.isPublic(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		if r.Public != nil {
			public = bool(*r.Public)
		}
		if public {
			err = tx.Registry().Upsert(ctx, domain.RegistryEntryFor(c, cs.now()))
		} else {
			err = tx.Registry().DeleteByClaim(ctx, c.ID)
		}
		if err != nil {
			return fmt.Errorf("registry: %w", err)
		}
		out = ownedClaim(c, public)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (cs *ClaimServiceImpl) ListMine(ctx context.Context, owner domain.OwnerID) ([]dto.OwnedClaim, error) {
	claims, err := cs.Store.Claims().ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]dto.OwnedClaim, 0, len(claims))
	for i := range claims {
		public, err := cs.isPublic(ctx, cs.Store, claims[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ownedClaim(&claims[i], public))
	}
	return out, nil
}

func (cs *ClaimServiceImpl) Registry(ctx context.Context, q dto.RegistryQuery) (*dto.RegistryPage, error) {
	after, err := store.DecodeCursor(q.Cursor)
	if err != nil {
		return nil, domain.Invalid("malformed cursor")
	}
	f := store.RegistryFilter{Query: cleanText(q.Query), After: after, Limit: pageSize(q.Limit) + 1}
	if q.Granularity != "" {
		if f.Granularity, err = domain.ParseGranularity(q.Granularity); err != nil {
			return nil, err
		}
	}
	if q.Style != "" {
		if f.Style, err = domain.ParseCertStyle(q.Style); err != nil {
			return nil, err
		}
	}
	if q.From != "" {
		u, err := domain.ParseUnit(q.From)
		if err != nil {
			return nil, err
		}
		f.From = &u.TS
	}
	if q.To != "" {
		u, err := domain.ParseUnit(q.To)
		if err != nil {
			return nil, err
		}
		// A day bound covers every minute of that day.
		to := u.TS
		if u.Granularity == domain.GranularityDay {
			to = to.Add(24*time.Hour - time.Minute)
		}
		f.To = &to
	}

	rows, err := cs.Store.Registry().List(ctx, f)
	if err != nil {
		return nil, err
	}
	limit := f.Limit - 1
	page := &dto.RegistryPage{Items: make([]dto.RegistryItem, 0, len(rows))}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		page.NextCursor = store.Cursor{TS: last.TS, ID: last.ClaimID}.Encode()
	}
	for _, e := range rows {
		page.Items = append(page.Items, dto.RegistryItem{
			ClaimID:     e.ClaimID.String(),
			Unit:        domain.Unit{Granularity: e.Granularity, TS: e.TS.UTC()}.Key(),
			Granularity: string(e.Granularity),
			Title:       e.Title,
			Message:     e.Message,
			Style:       string(e.Style),
		})
	}
	return page, nil
}

// Certificate renders the PDF for a claimed unit in the best matching language.
func (cs *ClaimServiceImpl) Certificate(ctx context.Context, unitKey, acceptLanguage string) (*dto.Certificate, error) {
	c, err := cs.lookup(ctx, unitKey)
	if err != nil {
		return nil, err
	}
	owner, err := cs.Store.Owners().GetByID(ctx, c.OwnerID)
	if err != nil {
		return nil, err
	}
	doc := certificate.Document{
		Unit:          c.Unit(),
		OwnerName:     owner.Name(),
		Title:         c.Title,
		Message:       c.Message,
		Style:         c.Style,
		TimeDisplay:   c.TimeDisplay,
		LocalDateOnly: c.LocalDateOnly,
		CertHash:      c.CertHash,
		CertURL:       c.CertURL,
		IssuedAt:      c.CreatedAt,
	}
	var buf bytes.Buffer
	lang, err := cs.Renderer.Render(&buf, doc, certificate.MatchLanguage(acceptLanguage))
	if err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return &dto.Certificate{
		ETag: certificate.ETag(doc, lang),
		Lang: string(lang),
		Body: buf.Bytes(),
	}, nil
}

// Release deletes the owner's claim and everything hanging off it. Transfer
// history is kept.
func (cs *ClaimServiceImpl) Release(ctx context.Context, owner domain.OwnerID, unitKey string) error {
	_, err := cs.release(ctx, unitKey, &owner)
	metrics.ReleasesTotal.WithLabelValues(metrics.Result(err)).Inc()
	return err
}

func (cs *ClaimServiceImpl) OperatorRelease(ctx context.Context, unitKey string) (*domain.Claim, error) {
	return cs.release(ctx, unitKey, nil)
}

func (cs *ClaimServiceImpl) release(ctx context.Context, unitKey string, owner *domain.OwnerID) (*domain.Claim, error) {
	unit, err := domain.ParseUnit(unitKey)
	if err != nil {
		return nil, err
	}
	var released *domain.Claim
	err = cs.Store.WithTx(ctx, func(tx *store.Store) error {
		c, err := tx.Claims().GetByTSForUpdate(ctx, unit.TS)
		if err != nil {
			return claimNotFound(err)
		}
		if owner != nil && c.OwnerID != *owner {
			return domain.ErrNotOwner
		}
		if err := tx.Registry().DeleteByClaim(ctx, c.ID); err != nil {
			return err
		}
		if err := tx.Listings().DeleteByTS(ctx, c.TS); err != nil {
			return err
		}
		if err := tx.TransferTokens().DeleteByClaim(ctx, c.ID); err != nil {
			return err
		}
		if err := tx.Claims().Delete(ctx, c.ID); err != nil {
			return err
		}
		released = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	obsmw.Logger(ctx).Info("claim released",
		"unit", unit.Key(),
		"claim_id", released.ID.String(),
		"operator", owner == nil,
	)
	events.Emit(ctx, cs.publisher(), events.SubjectClaimReleased, events.ClaimReleased{
		ClaimID: released.ID.String(),
		Unit:    released.Unit().Key(),
		OwnerID: released.OwnerID.String(),
		At:      cs.now(),
	})
	return released, nil
}

func claimView(c *domain.Claim, ownerName string, public bool) dto.ClaimView {
	return dto.ClaimView{
		ClaimID:       c.ID.String(),
		Unit:          c.Unit().Key(),
		Granularity:   string(c.Granularity),
		OwnerName:     ownerName,
		Title:         c.Title,
		Message:       c.Message,
		Link:          c.LinkURL,
		Style:         string(c.Style),
		TimeDisplay:   string(c.TimeDisplay),
		LocalDateOnly: c.LocalDateOnly,
		CertURL:       c.CertURL,
		Public:        public,
		ClaimedAt:     c.CreatedAt,
	}
}

func ownedClaim(c *domain.Claim, public bool) dto.OwnedClaim {
	return dto.OwnedClaim{
		ClaimView: claimView(c, "", public),
		CertHash:  c.CertHash,
		Price:     c.Price,
		Currency:  c.Currency,
	}
}
