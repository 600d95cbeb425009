package impl

import (
	"context"
	"errors"
	"fmt"

	"parcels/internal/certificate"
	"parcels/internal/codes"
	"parcels/internal/domain"
	"parcels/internal/store"
)

// reassign moves c to a new owner inside tx. The content hash is recomputed,
// open listings for the unit are cancelled and the registry entry is dropped
// so nothing published by the previous owner survives.
func (d *Deps) reassign(ctx context.Context, tx *store.Store, c *domain.Claim, to domain.OwnerID) error {
	c.OwnerID = to
	hash, err := d.Hasher.Sum(certificate.FactsOf(c))
	if err != nil {
		return err
	}
	if err := tx.Claims().SetOwner(ctx, c.ID, to, hash); err != nil {
		return fmt.Errorf("set owner: %w", err)
	}
	c.CertHash = hash
	if _, err := tx.Listings().CancelOpenByTS(ctx, c.TS); err != nil {
		return fmt.Errorf("cancel listings: %w", err)
	}
	if err := tx.Registry().DeleteByClaim(ctx, c.ID); err != nil {
		return fmt.Errorf("drop registry entry: %w", err)
	}
	return nil
}

// issueTransferToken revokes any active token for the claim and stores a new
// one. The plaintext code is returned once and never persisted.
func (d *Deps) issueTransferToken(ctx context.Context, tx *store.Store, c *domain.Claim, purpose domain.TransferPurpose, by domain.OwnerID) (string, error) {
	code, err := codes.NewTransferCode()
	if err != nil {
		return "", err
	}
	if _, err := tx.TransferTokens().RevokeActive(ctx, c.ID); err != nil {
		return "", fmt.Errorf("revoke tokens: %w", err)
	}
	tok := &domain.TransferToken{
		ClaimID:   c.ID,
		CodeHash:  d.Keyer.TransferCode(code),
		Purpose:   purpose,
		CreatedBy: by,
		CreatedAt: d.now(),
	}
	if err := tx.TransferTokens().Create(ctx, tok); err != nil {
		return "", fmt.Errorf("create token: %w", err)
	}
	return code, nil
}

// lockListing row-locks a listing and its claim in the same order every other
// workflow uses: claim first, then listing. The listing is read once unlocked
// to learn its claim. A nil claim means the unit was released meanwhile.
func lockListing(ctx context.Context, tx *store.Store, id domain.ListingID) (*domain.Listing, *domain.Claim, error) {
	peek, err := tx.Listings().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: listing", domain.ErrNotFound)
		}
		return nil, nil, err
	}
	c, err := tx.Claims().GetByIDForUpdate(ctx, peek.ClaimID)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return nil, nil, err
	}
	l, err := tx.Listings().GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: listing", domain.ErrNotFound)
		}
		return nil, nil, err
	}
	return l, c, nil
}
