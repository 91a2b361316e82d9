// Package activity keeps the append-only pump activation log and answers
// history queries over it.
package activity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/prite36/watering-control/internal/models"
)

// ErrIndexUnavailable is reported by a Store when the indexed query path
// cannot be used because the reporting view and its composite index are
// missing. The recorder downgrades it to a degraded in-process filter.
var ErrIndexUnavailable = errors.New("activity reporting index unavailable")

const (
	// QueryLimit caps every history response.
	QueryLimit = 50
	// FallbackWindow is how many of the newest records the degraded path
	// scans. Matching records older than the window are silently dropped;
	// that completeness loss is the price of staying available.
	FallbackWindow = 120
	// IndexWarning tells the operator how to restore the fast path.
	IndexWarning = "Activity reporting view missing. Run migrations/001_recent_activity_view.sql to create recent_pump_activity (mode Asc, start_time Desc)."
)

// Record is one activation attempt to be appended to the log.
type Record struct {
	Duration      float64
	Mode          models.Mode
	Trigger       models.Trigger
	MoistureLevel *float64
	ScheduledTime *time.Time
	PlantID       *string
	PlantName     *string
	Note          string
}

// Store is the persistence surface the recorder needs. QueryIndexed may fail
// with ErrIndexUnavailable; Recent and Since must not.
type Store interface {
	Append(ctx context.Context, act *models.PumpActivity) error
	QueryIndexed(ctx context.Context, start time.Time, mode models.Mode, limit int) ([]models.PumpActivity, error)
	Recent(ctx context.Context, limit int) ([]models.PumpActivity, error)
	Since(ctx context.Context, start time.Time) ([]models.PumpActivity, error)
}

// Recorder appends activation records and serves range+mode queries with a
// degraded fallback when the store's indexed path is missing.
type Recorder struct {
	store Store
	now   func() time.Time
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record appends one immutable activation record stamped with the current
// instant and returns its id.
func (r *Recorder) Record(ctx context.Context, rec Record) (string, error) {
	act := models.PumpActivity{
		StartTime:     r.now(),
		Duration:      rec.Duration,
		Mode:          rec.Mode,
		Trigger:       rec.Trigger,
		MoistureLevel: rec.MoistureLevel,
		ScheduledTime: rec.ScheduledTime,
		PlantID:       rec.PlantID,
		PlantName:     rec.PlantName,
		Note:          rec.Note,
	}
	if err := r.store.Append(ctx, &act); err != nil {
		return "", fmt.Errorf("record pump activity: %w", err)
	}
	return act.ID, nil
}

// Query returns activations with StartTime >= start, filtered by mode when
// mode is non-empty, newest first, at most QueryLimit entries. When the
// indexed path is unavailable the newest FallbackWindow records are filtered
// in-process instead and the returned warning is non-empty.
func (r *Recorder) Query(ctx context.Context, start time.Time, mode models.Mode) ([]models.PumpActivity, string, error) {
	acts, err := r.store.QueryIndexed(ctx, start, mode, QueryLimit)
	if err == nil {
		return acts, "", nil
	}
	if !errors.Is(err, ErrIndexUnavailable) {
		return nil, "", fmt.Errorf("query pump activities: %w", err)
	}

	log.Printf("[WARN] Activity index missing; filtering the newest %d records in-process.", FallbackWindow)
	recent, err := r.store.Recent(ctx, FallbackWindow)
	if err != nil {
		return nil, "", fmt.Errorf("fallback activity query: %w", err)
	}

	filtered := make([]models.PumpActivity, 0, QueryLimit)
	for _, act := range recent {
		if act.StartTime.Before(start) {
			continue
		}
		if mode != "" && act.Mode != mode {
			continue
		}
		filtered = append(filtered, act)
		if len(filtered) == QueryLimit {
			break
		}
	}
	return filtered, IndexWarning, nil
}

// FrequencyReport is the trailing-week activation trend, one entry per
// calendar day, oldest day first, zero-filled for days with no activity.
type FrequencyReport struct {
	Dates       []string    `json:"dates"`
	TotalCounts []int       `json:"totalCounts"`
	ModeCounts  []ModeCount `json:"modeCounts"`
}

// ModeCount splits one day's activations by trigger mode.
type ModeCount struct {
	Manual    int `json:"manual"`
	Automatic int `json:"automatic"`
	Scheduled int `json:"scheduled"`
}

// DailyFrequency buckets the last 7 days of activations by calendar day and
// mode. Used for trend reporting only, never for control decisions.
func (r *Recorder) DailyFrequency(ctx context.Context) (FrequencyReport, error) {
	now := r.now()
	weekAgo := now.AddDate(0, 0, -7)

	acts, err := r.store.Since(ctx, weekAgo)
	if err != nil {
		return FrequencyReport{}, fmt.Errorf("load weekly activities: %w", err)
	}

	const dayFormat = "2006-01-02"
	totals := make(map[string]int, 7)
	byMode := make(map[string]*ModeCount, 7)
	dates := make([]string, 0, 7)
	for i := 6; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format(dayFormat)
		dates = append(dates, day)
		totals[day] = 0
		byMode[day] = &ModeCount{}
	}

	for _, act := range acts {
		day := act.StartTime.Format(dayFormat)
		counts, ok := byMode[day]
		if !ok {
			continue
		}
		totals[day]++
		switch act.Mode {
		case models.ModeManual:
			counts.Manual++
		case models.ModeAutomatic:
			counts.Automatic++
		case models.ModeScheduled:
			counts.Scheduled++
		}
	}

	report := FrequencyReport{Dates: dates}
	for _, day := range dates {
		report.TotalCounts = append(report.TotalCounts, totals[day])
		report.ModeCounts = append(report.ModeCounts, *byMode[day])
	}
	return report, nil
}
