package store

import (
	"context"
	"time"

	"parcels/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuthTokenStore struct{ db *gorm.DB }

func (s *Store) AuthTokens() *AuthTokenStore { return &AuthTokenStore{db: s.DB} }

func (as *AuthTokenStore) Create(ctx context.Context, t *domain.AuthToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return as.db.WithContext(ctx).Create(t).Error
}

// DeleteUnused drops the owner's outstanding tokens of one purpose.
func (as *AuthTokenStore) DeleteUnused(ctx context.Context, owner domain.OwnerID, purpose domain.AuthPurpose) error {
	return as.db.WithContext(ctx).
		Where("owner_id = ? AND purpose = ? AND used_at IS NULL", owner, purpose).
		Delete(&domain.AuthToken{}).Error
}

// GetByHashForUpdate locks the token for purpose and hash. A nil owner matches any owner.
func (as *AuthTokenStore) GetByHashForUpdate(ctx context.Context, purpose domain.AuthPurpose, owner *domain.OwnerID, tokenHash string) (*domain.AuthToken, error) {
	q := as.db.WithContext(ctx).Clauses(forUpdate()).
		Where("purpose = ? AND token_hash = ?", purpose, tokenHash)
	if owner != nil {
		q = q.Where("owner_id = ?", *owner)
	}
	var t domain.AuthToken
	if err := q.First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (as *AuthTokenStore) MarkUsed(ctx context.Context, id domain.TokenID, at time.Time) error {
	res := as.db.WithContext(ctx).Model(&domain.AuthToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTokenUsed
	}
	return nil
}

func (as *AuthTokenStore) GetByID(ctx context.Context, id domain.TokenID) (*domain.AuthToken, error) {
	var t domain.AuthToken
	if err := as.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}
