package store

import (
	"context"
	"strings"
	"time"

	"parcels/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RegistryStore struct{ db *gorm.DB }

func (s *Store) Registry() *RegistryStore { return &RegistryStore{db: s.DB} }

func (rs *RegistryStore) Upsert(ctx context.Context, e *domain.RegistryEntry) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	return rs.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "claim_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "message", "style", "updated_at"}),
	}).Create(e).Error
}

func (rs *RegistryStore) DeleteByClaim(ctx context.Context, claimID domain.ClaimID) error {
	return rs.db.WithContext(ctx).Where("claim_id = ?", claimID).Delete(&domain.RegistryEntry{}).Error
}

func (rs *RegistryStore) GetByClaim(ctx context.Context, claimID domain.ClaimID) (*domain.RegistryEntry, error) {
	var e domain.RegistryEntry
	if err := rs.db.WithContext(ctx).First(&e, "claim_id = ?", claimID).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

type RegistryFilter struct {
	Query       string
	Granularity domain.Granularity
	Style       domain.CertStyle
	From        *time.Time
	To          *time.Time
	After       *Cursor
	Limit       int
}

// List pages entries newest first, keyed on (ts desc, claim_id asc).
func (rs *RegistryStore) List(ctx context.Context, f RegistryFilter) ([]domain.RegistryEntry, error) {
	q := rs.db.WithContext(ctx).Model(&domain.RegistryEntry{})
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		q = q.Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(message) LIKE ? ESCAPE '\\')", like, like)
	}
	if f.Granularity != "" {
		q = q.Where("granularity = ?", f.Granularity)
	}
	if f.Style != "" {
		q = q.Where("style = ?", f.Style)
	}
	if f.From != nil {
		q = q.Where("ts >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("ts <= ?", f.To.UTC())
	}
	if f.After != nil {
		q = q.Where("ts < ? OR (ts = ? AND claim_id > ?)", f.After.TS, f.After.TS, f.After.ID)
	}
	var out []domain.RegistryEntry
	err := q.Order("ts DESC").Order("claim_id ASC").Limit(f.Limit).Find(&out).Error
	return out, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
