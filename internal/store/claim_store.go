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

type ClaimStore struct{ db *gorm.DB }

func (s *Store) Claims() *ClaimStore { return &ClaimStore{db: s.DB} }

var claimMetadataColumns = []string{"title", "message", "link_url", "style", "time_display", "local_date_only", "updated_at"}

// Upsert inserts c, or on a ts conflict updates only the metadata columns of a
// row held by the same owner. It returns the stored row and whether it was
// inserted by this call. A row held by someone else yields domain.ErrUnitTaken.
func (cs *ClaimStore) Upsert(ctx context.Context, c *domain.Claim) (*domain.Claim, bool, error) {
	now := time.Now().UTC()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	err := cs.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ts"}},
		DoUpdates: clause.AssignmentColumns(claimMetadataColumns),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "claims.owner_id = excluded.owner_id"},
		}},
	}).Create(c).Error
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, false, domain.ErrUnitTaken
		}
		return nil, false, fmt.Errorf("upsert claim: %w", err)
	}

	stored, err := cs.GetByTS(ctx, c.TS)
	if err != nil {
		return nil, false, err
	}
	if stored.OwnerID != c.OwnerID {
		return nil, false, domain.ErrUnitTaken
	}
	return stored, stored.ID == c.ID, nil
}

func (cs *ClaimStore) GetByTS(ctx context.Context, ts time.Time) (*domain.Claim, error) {
	var c domain.Claim
	if err := cs.db.WithContext(ctx).First(&c, "ts = ?", ts.UTC()).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (cs *ClaimStore) GetByID(ctx context.Context, id domain.ClaimID) (*domain.Claim, error) {
	var c domain.Claim
	if err := cs.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// GetByTSForUpdate row-locks the claim for ts.
func (cs *ClaimStore) GetByTSForUpdate(ctx context.Context, ts time.Time) (*domain.Claim, error) {
	var c domain.Claim
	err := cs.db.WithContext(ctx).Clauses(forUpdate()).
		Where("ts = ?", ts.UTC()).
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// GetByIDAndHashForUpdate row-locks the claim matching both id and content hash.
func (cs *ClaimStore) GetByIDAndHashForUpdate(ctx context.Context, id domain.ClaimID, certHash string) (*domain.Claim, error) {
	var c domain.Claim
	err := cs.db.WithContext(ctx).Clauses(forUpdate()).
		Where("id = ? AND cert_hash = ?", id, certHash).
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// GetByIDForUpdate row-locks the claim by id.
func (cs *ClaimStore) GetByIDForUpdate(ctx context.Context, id domain.ClaimID) (*domain.Claim, error) {
	var c domain.Claim
	err := cs.db.WithContext(ctx).Clauses(forUpdate()).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (cs *ClaimStore) SetCertificate(ctx context.Context, id domain.ClaimID, certHash, certURL string) error {
	return cs.db.WithContext(ctx).Model(&domain.Claim{}).
		Where("id = ?", id).
		Updates(map[string]any{"cert_hash": certHash, "cert_url": certURL, "updated_at": time.Now().UTC()}).Error
}

// SetOwner reassigns the claim and stores its recomputed content hash.
func (cs *ClaimStore) SetOwner(ctx context.Context, id domain.ClaimID, owner domain.OwnerID, certHash string) error {
	res := cs.db.WithContext(ctx).Model(&domain.Claim{}).
		Where("id = ?", id).
		Updates(map[string]any{"owner_id": owner, "cert_hash": certHash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (cs *ClaimStore) UpdateMetadata(ctx context.Context, id domain.ClaimID, m domain.ClaimMetadata) error {
	return cs.db.WithContext(ctx).Model(&domain.Claim{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":           m.Title,
			"message":         m.Message,
			"link_url":        m.LinkURL,
			"style":           m.Style,
			"time_display":    m.TimeDisplay,
			"local_date_only": m.LocalDateOnly,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (cs *ClaimStore) Delete(ctx context.Context, id domain.ClaimID) error {
	return cs.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Claim{}).Error
}

func (cs *ClaimStore) ListByOwner(ctx context.Context, owner domain.OwnerID) ([]domain.Claim, error) {
	var out []domain.Claim
	err := cs.db.WithContext(ctx).
		Where("owner_id = ?", owner).
		Order("ts ASC").
		Find(&out).Error
	return out, err
}

func (cs *ClaimStore) CountByTS(ctx context.Context, ts time.Time) (int64, error) {
	var n int64
	err := cs.db.WithContext(ctx).Model(&domain.Claim{}).Where("ts = ?", ts.UTC()).Count(&n).Error
	return n, err
}
