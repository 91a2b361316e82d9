package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/prite36/watering-control/internal/models"
)

// recentActivityView is a reporting view over pump_activities carrying the
// composite (mode, start_time desc) index. It is created by a SQL migration,
// not AutoMigrate, so a fresh deployment may not have it yet.
const recentActivityView = "recent_pump_activity"

// undefinedTable is the Postgres SQLSTATE raised when the view is missing.
const undefinedTable = "42P01"

// GormStore persists pump activities in Postgres through GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Append(ctx context.Context, act *models.PumpActivity) error {
	return s.db.WithContext(ctx).Create(act).Error
}

// QueryIndexed pushes the range filter, mode filter, ordering and limit to
// the reporting view. A missing view maps to ErrIndexUnavailable so the
// recorder can degrade instead of failing.
func (s *GormStore) QueryIndexed(ctx context.Context, start time.Time, mode models.Mode, limit int) ([]models.PumpActivity, error) {
	q := s.db.WithContext(ctx).
		Table(recentActivityView).
		Where("start_time >= ?", start)
	if mode != "" {
		q = q.Where("mode = ?", mode)
	}

	var acts []models.PumpActivity
	err := q.Order("start_time DESC").Limit(limit).Find(&acts).Error
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
			return nil, ErrIndexUnavailable
		}
		return nil, fmt.Errorf("indexed activity query: %w", err)
	}
	return acts, nil
}

func (s *GormStore) Recent(ctx context.Context, limit int) ([]models.PumpActivity, error) {
	var acts []models.PumpActivity
	err := s.db.WithContext(ctx).
		Order("start_time DESC").
		Limit(limit).
		Find(&acts).Error
	if err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	return acts, nil
}

func (s *GormStore) Since(ctx context.Context, start time.Time) ([]models.PumpActivity, error) {
	var acts []models.PumpActivity
	err := s.db.WithContext(ctx).
		Where("start_time >= ?", start).
		Order("start_time DESC").
		Find(&acts).Error
	if err != nil {
		return nil, fmt.Errorf("activities since %v: %w", start, err)
	}
	return acts, nil
}
