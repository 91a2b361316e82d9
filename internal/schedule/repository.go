// Package schedule stores per-plant watering schedules and resolves which one
// fires next.
//
// Completing a schedule flips its active flag off and it never fires again
// unless recreated; whether schedules should instead self-reactivate after
// firing is an open question inherited from the system this replaces, left as
// observed rather than guessed at.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prite36/watering-control/internal/models"
)

// ErrNotFound is returned when a schedule id does not exist.
var ErrNotFound = errors.New("schedule not found")

// Definition is the caller-supplied shape of a new schedule.
type Definition struct {
	PlantID     *string            `json:"plantId"`
	PlantName   string             `json:"plantName"`
	Frequency   models.Frequency   `json:"frequency"`
	TimeOfDay   string             `json:"timeOfDay"`
	DaysOfWeek  models.WeekdayList `json:"daysOfWeek"`
	DurationSec int                `json:"durationSec"`
}

// Validate rejects definitions before any store mutation.
func (d Definition) Validate() error {
	if d.PlantName == "" {
		return errors.New("plant name is required")
	}
	if d.Frequency != models.FrequencyDaily && d.Frequency != models.FrequencyWeekly {
		return fmt.Errorf("invalid frequency %q", d.Frequency)
	}
	if _, _, err := ParseTimeOfDay(d.TimeOfDay); err != nil {
		return err
	}
	if d.DurationSec <= 0 {
		return errors.New("durationSec must be positive")
	}
	if d.Frequency == models.FrequencyWeekly && len(d.DaysOfWeek) == 0 {
		return errors.New("weekly schedule needs at least one weekday")
	}
	for _, day := range d.DaysOfWeek {
		if day < 0 || day > 6 {
			return fmt.Errorf("invalid weekday %d", day)
		}
	}
	return nil
}

// Store is the persistence surface the repository needs. SetInactive on an
// unknown or already-inactive id is a no-op, not an error.
type Store interface {
	Insert(ctx context.Context, sched *models.Schedule) error
	DeleteByPlantName(ctx context.Context, plantName string) error
	SetInactive(ctx context.Context, id string, at time.Time) error
	Active(ctx context.Context) ([]models.Schedule, error)
}

// Repository persists schedules. One active schedule exists per plant name;
// Create enforces this with replace semantics (delete matching names, then
// insert). Concurrent creates for the same name may race; the last committed
// insert wins.
type Repository struct {
	store Store
	now   func() time.Time
}

func NewRepository(store Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

// Create validates def, removes every schedule carrying the same plant name
// and inserts the replacement as active. Returns the new schedule's id.
func (r *Repository) Create(ctx context.Context, def Definition) (string, error) {
	if err := def.Validate(); err != nil {
		return "", err
	}

	if err := r.DeleteByPlantName(ctx, def.PlantName); err != nil {
		return "", err
	}

	sched := models.Schedule{
		PlantID:     def.PlantID,
		PlantName:   def.PlantName,
		Frequency:   def.Frequency,
		TimeOfDay:   def.TimeOfDay,
		DaysOfWeek:  def.DaysOfWeek,
		DurationSec: def.DurationSec,
		Active:      true,
	}
	if err := r.store.Insert(ctx, &sched); err != nil {
		return "", fmt.Errorf("insert schedule: %w", err)
	}
	return sched.ID, nil
}

// DeleteByPlantName batch-deletes all schedules for the given plant name.
func (r *Repository) DeleteByPlantName(ctx context.Context, plantName string) error {
	if err := r.store.DeleteByPlantName(ctx, plantName); err != nil {
		return fmt.Errorf("delete schedules for %q: %w", plantName, err)
	}
	return nil
}

// MarkInactive flips a schedule's active flag off. Calling it again for the
// same id is a no-op, not an error.
func (r *Repository) MarkInactive(ctx context.Context, id string) error {
	if err := r.store.SetInactive(ctx, id, r.now()); err != nil {
		return fmt.Errorf("mark schedule %s inactive: %w", id, err)
	}
	return nil
}

// Active returns every schedule still eligible for selection.
func (r *Repository) Active(ctx context.Context) ([]models.Schedule, error) {
	scheds, err := r.store.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active schedules: %w", err)
	}
	return scheds, nil
}
