package store

import (
	"context"
	"fmt"
	"time"

	"parcels/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OwnerStore struct{ db *gorm.DB }

func (s *Store) Owners() *OwnerStore { return &OwnerStore{db: s.DB} }

func (o *OwnerStore) Create(ctx context.Context, owner *domain.Owner) error {
	now := time.Now().UTC()
	if owner.ID == uuid.Nil {
		owner.ID = uuid.New()
	}
	owner.Email = domain.NormalizeEmail(owner.Email)
	owner.CreatedAt, owner.UpdatedAt = now, now
	return o.db.WithContext(ctx).Create(owner).Error
}

func (o *OwnerStore) GetByID(ctx context.Context, id domain.OwnerID) (*domain.Owner, error) {
	var owner domain.Owner
	if err := o.db.WithContext(ctx).First(&owner, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &owner, nil
}

func (o *OwnerStore) GetByEmail(ctx context.Context, email string) (*domain.Owner, error) {
	var owner domain.Owner
	if err := o.db.WithContext(ctx).First(&owner, "email = ?", domain.NormalizeEmail(email)).Error; err != nil {
		return nil, notFound(err)
	}
	return &owner, nil
}

// UpsertByEmail returns the owner for email, creating it if needed. An existing
// display name is never overwritten.
func (o *OwnerStore) UpsertByEmail(ctx context.Context, email string, displayName *string) (*domain.Owner, error) {
	now := time.Now().UTC()
	owner := &domain.Owner{
		ID:          uuid.New(),
		Email:       domain.NormalizeEmail(email),
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := o.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(map[string]any{
			"display_name": gorm.Expr("COALESCE(owners.display_name, excluded.display_name)"),
			"updated_at":   now,
		}),
	}).Create(owner).Error
	if err != nil {
		return nil, fmt.Errorf("upsert owner: %w", err)
	}
	return o.GetByEmail(ctx, owner.Email)
}

func (o *OwnerStore) UpdateDisplayName(ctx context.Context, id domain.OwnerID, name *string) error {
	res := o.db.WithContext(ctx).Model(&domain.Owner{}).
		Where("id = ?", id).
		Updates(map[string]any{"display_name": name, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// SetPayoutAccount records the connected account only if none is set yet.
func (o *OwnerStore) SetPayoutAccount(ctx context.Context, id domain.OwnerID, account string) error {
	return o.db.WithContext(ctx).Model(&domain.Owner{}).
		Where("id = ? AND payout_account_id IS NULL", id).
		Updates(map[string]any{"payout_account_id": account, "updated_at": time.Now().UTC()}).Error
}
