package store

import (
	"context"
	"time"

	"parcels/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventStore struct{ db *gorm.DB }

func (s *Store) Events() *EventStore { return &EventStore{db: s.DB} }

// MarkProcessed records key and reports whether this call was the first to do so.
func (es *EventStore) MarkProcessed(ctx context.Context, key, kind string) (bool, error) {
	res := es.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.ProcessedEvent{EventKey: key, Kind: kind, CreatedAt: time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (es *EventStore) Seen(ctx context.Context, key string) (bool, error) {
	var n int64
	err := es.db.WithContext(ctx).Model(&domain.ProcessedEvent{}).Where("event_key = ?", key).Count(&n).Error
	return n > 0, err
}
