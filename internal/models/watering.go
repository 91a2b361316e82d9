package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Frequency says how often a schedule recurs.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Mode identifies which trigger path owns the pump.
type Mode string

const (
	ModeManual    Mode = "manual"
	ModeAutomatic Mode = "automatic"
	ModeScheduled Mode = "scheduled"
)

// Trigger is the reason a pump activation happened.
type Trigger string

const (
	TriggerManualButton Trigger = "manual_button"
	TriggerSchedule     Trigger = "schedule"
	TriggerMoistureLow  Trigger = "moisture_low"
)

// PumpState is the pump's ON/OFF status.
type PumpState string

const (
	PumpOn  PumpState = "ON"
	PumpOff PumpState = "OFF"
)

// Schedule is one recurring watering intent for a plant. At most one row with
// Active=true exists per PlantName; the repository enforces this by deleting
// all earlier rows for the same name before inserting.
type Schedule struct {
	ID          string      `gorm:"type:uuid;primaryKey" json:"id"`
	PlantID     *string     `gorm:"type:uuid" json:"plantId"`
	PlantName   string      `gorm:"index;not null" json:"plantName"`
	Frequency   Frequency   `gorm:"type:varchar(10);not null" json:"frequency"`
	TimeOfDay   string      `gorm:"type:varchar(5);not null" json:"timeOfDay"` // "HH:MM", 24h
	DaysOfWeek  WeekdayList `gorm:"type:varchar(20)" json:"daysOfWeek"`        // 0=Sunday..6=Saturday, weekly only
	DurationSec int         `gorm:"not null" json:"durationSec"`
	Active      bool        `gorm:"index;not null" json:"active"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func (Schedule) TableName() string {
	return "schedules"
}

func (s *Schedule) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// DeviceState is the singleton record of the pump's current owner. Exactly one
// row exists, keyed StateKeyMain; it is created lazily on first read and
// mutated in place by every trigger path.
type DeviceState struct {
	ID        string    `gorm:"primaryKey" json:"-"`
	Mode      Mode      `gorm:"type:varchar(10);not null" json:"mode"`
	Pump      PumpState `gorm:"type:varchar(3);not null" json:"pump"`
	PlantID   *string   `gorm:"type:uuid" json:"plantId"`
	PlantName *string   `json:"plantName"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StateKeyMain is the well-known key of the single DeviceState row.
const StateKeyMain = "main"

func (DeviceState) TableName() string {
	return "device_states"
}

// PumpActivity is one immutable activation log entry. Rows are appended and
// never updated or deleted.
type PumpActivity struct {
	ID            string     `gorm:"type:uuid;primaryKey" json:"id"`
	StartTime     time.Time  `gorm:"index;not null" json:"startTime"`
	Duration      float64    `gorm:"not null" json:"duration"`
	Mode          Mode       `gorm:"type:varchar(10);not null" json:"mode"`
	Trigger       Trigger    `gorm:"type:varchar(20)" json:"trigger"`
	MoistureLevel *float64   `json:"moistureLevel,omitempty"`
	ScheduledTime *time.Time `json:"scheduledTime,omitempty"`
	PlantID       *string    `gorm:"type:uuid" json:"plantId,omitempty"`
	PlantName     *string    `json:"plantName,omitempty"`
	Note          string     `json:"note,omitempty"`
}

func (PumpActivity) TableName() string {
	return "pump_activities"
}

func (a *PumpActivity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Setting is a single named configuration value, persisted so it survives
// restarts and is shared across instances.
type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (Setting) TableName() string {
	return "settings"
}
