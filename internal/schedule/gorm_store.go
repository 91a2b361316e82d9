package schedule

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/prite36/watering-control/internal/models"
)

// GormStore persists schedules in Postgres through GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Insert(ctx context.Context, sched *models.Schedule) error {
	return s.db.WithContext(ctx).Create(sched).Error
}

func (s *GormStore) DeleteByPlantName(ctx context.Context, plantName string) error {
	return s.db.WithContext(ctx).
		Where("plant_name = ?", plantName).
		Delete(&models.Schedule{}).Error
}

// SetInactive updates zero or one rows. Zero matched rows — an unknown id or
// an already-inactive schedule — is the idempotent repeat case, not an error.
func (s *GormStore) SetInactive(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{"active": false, "updated_at": at}).Error
}

func (s *GormStore) Active(ctx context.Context) ([]models.Schedule, error) {
	var scheds []models.Schedule
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Find(&scheds).Error
	if err != nil {
		return nil, err
	}
	return scheds, nil
}
