package impl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"parcels/internal/domain"
	"parcels/internal/dto"
	"parcels/internal/events"
	"parcels/internal/netutil"
	obsmw "parcels/internal/observability/middleware"
	"parcels/internal/observability/metrics"
	"parcels/internal/service"
	"parcels/internal/store"

	"github.com/google/uuid"
)

type TransferServiceImpl struct {
	*Deps
}

var _ service.TransferService = (*TransferServiceImpl)(nil)

func NewTransferService(d *Deps) *TransferServiceImpl {
	return &TransferServiceImpl{Deps: d}
}

// IssueCode replaces any active code for the owner's claim on unit.
func (t *TransferServiceImpl) IssueCode(ctx context.Context, owner domain.OwnerID, unitKey string) (*dto.TransferCodeResponse, error) {
	unit, err := domain.ParseUnit(unitKey)
	if err != nil {
		return nil, err
	}
	var out dto.TransferCodeResponse
	err = t.Store.WithTx(ctx, func(tx *store.Store) error {
		c, err := tx.Claims().GetByTSForUpdate(ctx, unit.TS)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return fmt.Errorf("%w: claim", domain.ErrNotFound)
			}
			return err
		}
		if c.OwnerID != owner {
			return domain.ErrNotOwner
		}
		code, err := t.issueTransferToken(ctx, tx, c, domain.TransferPurposeTransfer, owner)
		if err != nil {
			return err
		}
		out = dto.TransferCodeResponse{
			ClaimID:  c.ID.String(),
			CertHash: c.CertHash,
			Code:     code,
			Unit:     unit.Key(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Redeem consumes a transfer or gift code on behalf of caller. The claim row is
// locked before the token row.
func (t *TransferServiceImpl) Redeem(ctx context.Context, caller domain.OwnerID, r dto.TransferRequest, ip, ua string) (*dto.TransferResponse, error) {
	res, err := t.redeem(ctx, caller, r, ip, ua)
	metrics.TransfersTotal.WithLabelValues(transferResult(err)).Inc()
	return res, err
}

func (t *TransferServiceImpl) redeem(ctx context.Context, caller domain.OwnerID, r dto.TransferRequest, ip, ua string) (*dto.TransferResponse, error) {
	claimID, err := uuid.Parse(strings.TrimSpace(r.ClaimID))
	if err != nil {
		return nil, domain.Invalid("malformed claim id")
	}
	certHash := strings.ToLower(strings.TrimSpace(r.CertHash))
	if certHash == "" || strings.TrimSpace(r.Code) == "" {
		return nil, domain.Invalid("claim id, certificate hash and code are required")
	}
	var title, message *string
	if r.Title != nil {
		v, err := validTitle(*r.Title)
		if err != nil {
			return nil, err
		}
		title = &v
	}
	if r.Message != nil {
		v, err := validMessage(*r.Message)
		if err != nil {
			return nil, err
		}
		message = &v
	}

	var (
		out  dto.TransferResponse
		from domain.OwnerID
		kind domain.TransferKind
		unit domain.Unit
	)
	err = t.Store.WithTx(ctx, func(tx *store.Store) error {
		c, err := tx.Claims().GetByIDAndHashForUpdate(ctx, claimID, certHash)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return fmt.Errorf("%w: claim", domain.ErrNotFound)
			}
			return err
		}
		tok, err := tx.TransferTokens().GetForUpdate(ctx, c.ID, t.Keyer.TransferCode(r.Code))
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrInvalidCode
			}
			return err
		}
		switch {
		case tok.IsRevoked:
			return domain.ErrTokenRevoked
		case tok.IsUsed():
			return domain.ErrTokenUsed
		}

		from, unit = c.OwnerID, c.Unit()
		kind = domain.TransferKindTransfer
		if tok.Purpose == domain.TransferPurposeGift {
			kind = domain.TransferKindGift
		}
		if c.OwnerID != caller {
			if err := t.reassign(ctx, tx, c, caller); err != nil {
				return err
			}
			out.Changed = true
		}
		if kind == domain.TransferKindGift && (title != nil || message != nil) {
			m := domain.ClaimMetadata{
				Title:         c.Title,
				Message:       c.Message,
				LinkURL:       c.LinkURL,
				Style:         c.Style,
				TimeDisplay:   c.TimeDisplay,
				LocalDateOnly: c.LocalDateOnly,
			}
			if title != nil {
				m.Title = *title
			}
			if message != nil {
				m.Message = *message
			}
			if err := tx.Claims().UpdateMetadata(ctx, c.ID, m); err != nil {
				return err
			}
		}

		now := t.now()
		if err := tx.TransferTokens().MarkUsed(ctx, tok.ID, caller, now); err != nil {
			return err
		}
		tokenID := tok.ID
		if err := tx.History().Append(ctx, &domain.TransferHistory{
			ClaimID:   c.ID,
			TS:        c.TS,
			FromOwner: from,
			ToOwner:   caller,
			TokenID:   &tokenID,
			Kind:      kind,
			IP:        ip,
			UserAgent: netutil.TruncateUserAgent(ua),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		out.ClaimID = c.ID.String()
		out.Unit = unit.Key()
		out.OwnerID = caller.String()
		out.CertHash = c.CertHash
		return nil
	})
	if err != nil {
		return nil, err
	}

	obsmw.Logger(ctx).Info("claim transferred",
		"claim_id", out.ClaimID,
		"kind", string(kind),
		"changed", out.Changed,
	)
	events.Emit(ctx, t.publisher(), events.SubjectClaimTransferred, events.ClaimTransferred{
		ClaimID:   out.ClaimID,
		Unit:      out.Unit,
		FromOwner: from.String(),
		ToOwner:   out.OwnerID,
		Kind:      string(kind),
		At:        t.now(),
	})
	return &out, nil
}

func transferResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, domain.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, domain.ErrTokenUsed):
		return "already_used"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "failure"
}
