package store

import (
	"context"
	"time"

	"parcels/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HistoryStore struct{ db *gorm.DB }

func (s *Store) History() *HistoryStore { return &HistoryStore{db: s.DB} }

// Append inserts an audit row. Rows are never updated or deleted.
func (hs *HistoryStore) Append(ctx context.Context, h *domain.TransferHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	return hs.db.WithContext(ctx).Create(h).Error
}

func (hs *HistoryStore) ListByTS(ctx context.Context, ts time.Time) ([]domain.TransferHistory, error) {
	var out []domain.TransferHistory
	err := hs.db.WithContext(ctx).Where("ts = ?", ts.UTC()).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (hs *HistoryStore) ListByClaim(ctx context.Context, claimID domain.ClaimID) ([]domain.TransferHistory, error) {
	var out []domain.TransferHistory
	err := hs.db.WithContext(ctx).Where("claim_id = ?", claimID).Order("created_at ASC").Find(&out).Error
	return out, err
}
