package schedule

import (
	"context"
	"log"
	"time"

	"github.com/prite36/watering-control/internal/models"
)

// NextRun is the globally soonest pending schedule, with its resolved fire
// instant. FullDateTime is always an absolute timestamp, never a relative
// duration.
type NextRun struct {
	ID           string    `json:"id"`
	PlantID      *string   `json:"plantId"`
	PlantName    string    `json:"plantName"`
	DurationSec  int       `json:"durationSec"`
	FullDateTime time.Time `json:"fullDateTime"`
}

// activeSource is the slice of Repository the resolver needs.
type activeSource interface {
	Active(ctx context.Context) ([]models.Schedule, error)
}

// Resolver selects the active schedule whose next occurrence is earliest.
type Resolver struct {
	store activeSource
}

func NewResolver(store activeSource) *Resolver {
	return &Resolver{store: store}
}

// ResolveNext scans all active schedules, computes each one's next occurrence
// at or after now and returns the minimum. Returns nil when no active
// schedule produces a valid occurrence. The scan is O(n) per call on purpose:
// the set is bounded by the number of plants, not history depth.
func (r *Resolver) ResolveNext(ctx context.Context, now time.Time) (*NextRun, error) {
	scheds, err := r.store.Active(ctx)
	if err != nil {
		return nil, err
	}

	var soonest *NextRun
	for _, sched := range scheds {
		next, ok, err := NextOccurrence(sched, now)
		if err != nil {
			// A stored schedule with a malformed time cannot fire; skip it
			// rather than blocking every other plant behind it.
			log.Printf("[WARN] Skipping schedule %s: %v", sched.ID, err)
			continue
		}
		if !ok {
			continue
		}
		if soonest == nil || next.Before(soonest.FullDateTime) {
			soonest = &NextRun{
				ID:           sched.ID,
				PlantID:      sched.PlantID,
				PlantName:    sched.PlantName,
				DurationSec:  sched.DurationSec,
				FullDateTime: next,
			}
		}
	}
	return soonest, nil
}
