package device

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prite36/watering-control/internal/models"
)

// automationKey is the settings row holding the automation flag.
const automationKey = "automation_enabled"

// GormStateStore keeps the singleton DeviceState row and settings in
// Postgres. State lives in the store rather than in-process so it survives
// restarts and is shared across instances.
type GormStateStore struct {
	db *gorm.DB
}

func NewGormStateStore(db *gorm.DB) *GormStateStore {
	return &GormStateStore{db: db}
}

// Load reads the "main" state row, creating it with {manual, OFF} defaults on
// first read.
func (s *GormStateStore) Load(ctx context.Context) (models.DeviceState, error) {
	state := models.DeviceState{
		ID:   models.StateKeyMain,
		Mode: models.ModeManual,
		Pump: models.PumpOff,
	}
	err := s.db.WithContext(ctx).
		Where("id = ?", models.StateKeyMain).
		FirstOrCreate(&state).Error
	if err != nil {
		return models.DeviceState{}, fmt.Errorf("load device state: %w", err)
	}
	return state, nil
}

func (s *GormStateStore) Save(ctx context.Context, state models.DeviceState) error {
	state.ID = models.StateKeyMain
	if err := s.db.WithContext(ctx).Save(&state).Error; err != nil {
		return fmt.Errorf("save device state: %w", err)
	}
	return nil
}

func (s *GormStateStore) AutomationEnabled(ctx context.Context) (bool, error) {
	var setting models.Setting
	err := s.db.WithContext(ctx).
		Where("key = ?", automationKey).
		First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load automation setting: %w", err)
	}
	return setting.Value == "true", nil
}

func (s *GormStateStore) SetAutomationEnabled(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&models.Setting{Key: automationKey, Value: value}).Error
	if err != nil {
		return fmt.Errorf("save automation setting: %w", err)
	}
	return nil
}
