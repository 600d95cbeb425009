package store

import (
	"context"
	"time"

	"parcels/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransferTokenStore struct{ db *gorm.DB }

func (s *Store) TransferTokens() *TransferTokenStore { return &TransferTokenStore{db: s.DB} }

func (ts *TransferTokenStore) Create(ctx context.Context, t *domain.TransferToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return ts.db.WithContext(ctx).Create(t).Error
}

// RevokeActive revokes every unused, unrevoked token for the claim.
func (ts *TransferTokenStore) RevokeActive(ctx context.Context, claimID domain.ClaimID) (int64, error) {
	res := ts.db.WithContext(ctx).Model(&domain.TransferToken{}).
		Where("claim_id = ? AND is_revoked = ? AND used_at IS NULL", claimID, false).
		Update("is_revoked", true)
	return res.RowsAffected, res.Error
}

// GetForUpdate row-locks the token matching claim and code hash.
func (ts *TransferTokenStore) GetForUpdate(ctx context.Context, claimID domain.ClaimID, codeHash string) (*domain.TransferToken, error) {
	var t domain.TransferToken
	err := ts.db.WithContext(ctx).Clauses(forUpdate()).
		Where("claim_id = ? AND code_hash = ?", claimID, codeHash).
		Order("created_at DESC").
		First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (ts *TransferTokenStore) MarkUsed(ctx context.Context, id domain.TokenID, by domain.OwnerID, at time.Time) error {
	res := ts.db.WithContext(ctx).Model(&domain.TransferToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Updates(map[string]any{"used_at": at.UTC(), "used_by": by})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTokenUsed
	}
	return nil
}

func (ts *TransferTokenStore) DeleteByClaim(ctx context.Context, claimID domain.ClaimID) error {
	return ts.db.WithContext(ctx).Where("claim_id = ?", claimID).Delete(&domain.TransferToken{}).Error
}

func (ts *TransferTokenStore) ListByClaim(ctx context.Context, claimID domain.ClaimID) ([]domain.TransferToken, error) {
	var out []domain.TransferToken
	err := ts.db.WithContext(ctx).Where("claim_id = ?", claimID).Order("created_at ASC").Find(&out).Error
	return out, err
}
