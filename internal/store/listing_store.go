package store

import (
	"context"
	"time"

	"parcels/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ListingStore struct{ db *gorm.DB }

func (s *Store) Listings() *ListingStore { return &ListingStore{db: s.DB} }

func (ls *ListingStore) Create(ctx context.Context, l *domain.Listing) error {
	now := time.Now().UTC()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt, l.UpdatedAt = now, now
	return ls.db.WithContext(ctx).Create(l).Error
}

func (ls *ListingStore) GetByID(ctx context.Context, id domain.ListingID) (*domain.Listing, error) {
	var l domain.Listing
	if err := ls.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (ls *ListingStore) GetForUpdate(ctx context.Context, id domain.ListingID) (*domain.Listing, error) {
	var l domain.Listing
	err := ls.db.WithContext(ctx).Clauses(forUpdate()).Where("id = ?", id).First(&l).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

// LockOpenBySeller row-locks the seller's non-terminal listings for ts, newest first.
func (ls *ListingStore) LockOpenBySeller(ctx context.Context, ts time.Time, seller domain.OwnerID) ([]domain.Listing, error) {
	var out []domain.Listing
	err := ls.db.WithContext(ctx).Clauses(forUpdate()).
		Where("ts = ? AND seller_id = ? AND status IN ?", ts.UTC(), seller, domain.NonTerminalStatuses).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (ls *ListingStore) UpdatePrice(ctx context.Context, id domain.ListingID, price int64, currency string) error {
	return ls.db.WithContext(ctx).Model(&domain.Listing{}).
		Where("id = ?", id).
		Updates(map[string]any{"price": price, "currency": currency, "updated_at": time.Now().UTC()}).Error
}

func (ls *ListingStore) SetStatus(ctx context.Context, id domain.ListingID, status domain.ListingStatus) error {
	return ls.db.WithContext(ctx).Model(&domain.Listing{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (ls *ListingStore) MarkSold(ctx context.Context, id domain.ListingID, buyer domain.OwnerID, at time.Time) error {
	return ls.db.WithContext(ctx).Model(&domain.Listing{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.ListingSold,
			"buyer_id":   buyer,
			"sold_at":    at.UTC(),
			"updated_at": at.UTC(),
		}).Error
}

// CancelOpenByTS cancels every non-terminal listing for ts, whoever the seller.
func (ls *ListingStore) CancelOpenByTS(ctx context.Context, ts time.Time) (int64, error) {
	res := ls.db.WithContext(ctx).Model(&domain.Listing{}).
		Where("ts = ? AND status IN ?", ts.UTC(), domain.NonTerminalStatuses).
		Updates(map[string]any{"status": domain.ListingCancelled, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (ls *ListingStore) DeleteByTS(ctx context.Context, ts time.Time) error {
	return ls.db.WithContext(ctx).Where("ts = ?", ts.UTC()).Delete(&domain.Listing{}).Error
}

func (ls *ListingStore) ListByTS(ctx context.Context, ts time.Time) ([]domain.Listing, error) {
	var out []domain.Listing
	err := ls.db.WithContext(ctx).Where("ts = ?", ts.UTC()).Order("created_at ASC").Find(&out).Error
	return out, err
}

// ListActive pages active listings ordered by (ts, id).
func (ls *ListingStore) ListActive(ctx context.Context, after *Cursor, limit int) ([]domain.Listing, error) {
	q := ls.db.WithContext(ctx).Where("status = ?", domain.ListingActive)
	if after != nil {
		q = q.Where("ts > ? OR (ts = ? AND id > ?)", after.TS, after.TS, after.ID)
	}
	var out []domain.Listing
	err := q.Order("ts ASC").Order("id ASC").Limit(limit).Find(&out).Error
	return out, err
}
