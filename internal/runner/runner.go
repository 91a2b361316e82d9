// Package runner polls the schedule resolver and the moisture readings and
// drives the pump for the scheduled and automatic trigger paths.
package runner

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/prite36/watering-control/internal/device"
	"github.com/prite36/watering-control/internal/models"
	"github.com/prite36/watering-control/internal/schedule"
	"github.com/prite36/watering-control/internal/slack"
)

// nextResolver answers "which schedule fires next".
type nextResolver interface {
	ResolveNext(ctx context.Context, now time.Time) (*schedule.NextRun, error)
}

// completer flips a fired schedule inactive.
type completer interface {
	MarkInactive(ctx context.Context, id string) error
}

// pump is the slice of the device state machine the runner drives.
type pump interface {
	TurnOn(ctx context.Context, act device.Activation) error
	TurnOff(ctx context.Context, mode models.Mode, trigger models.Trigger, duration float64) error
	Status(ctx context.Context) (models.DeviceState, error)
	AutomationEnabled(ctx context.Context) (bool, error)
}

// moistureSource exposes a snapshot of the latest device status report.
type moistureSource interface {
	GetDeviceStatus(deviceID string) (models.PumpDeviceStatus, bool)
}

// Options bound the runner's behavior.
type Options struct {
	DeviceID          string
	PollInterval      time.Duration
	MoistureThreshold float64
	AutoDurationSec   int
}

// Runner executes due schedules and the low-moisture automatic trigger on a
// fixed cadence.
type Runner struct {
	scheduler *gocron.Scheduler
	resolver  nextResolver
	schedules completer
	pump      pump
	statuses  moistureSource
	notifier  *slack.Client
	opts      Options

	now   func() time.Time
	sleep func(time.Duration)
}

func New(resolver nextResolver, schedules completer, pump pump, statuses moistureSource, notifier *slack.Client, opts Options) *Runner {
	return &Runner{
		scheduler: gocron.NewScheduler(time.Local),
		resolver:  resolver,
		schedules: schedules,
		pump:      pump,
		statuses:  statuses,
		notifier:  notifier,
		opts:      opts,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// Start begins polling. Ticks never overlap: a watering in progress holds the
// job until it finishes.
func (r *Runner) Start() {
	_, err := r.scheduler.Every(r.opts.PollInterval).SingletonMode().Do(r.Tick)
	if err != nil {
		log.Fatalf("Failed to schedule runner tick: %v", err)
	}
	r.scheduler.StartAsync()
	log.Printf("Runner polling every %v for device %s", r.opts.PollInterval, r.opts.DeviceID)
}

// Stop gracefully shuts down the poll loop.
func (r *Runner) Stop() {
	log.Println("Stopping runner...")
	r.scheduler.Stop()
}

// Tick runs one poll pass. Exported so cmd/debug can invoke a single pass
// directly.
func (r *Runner) Tick() {
	ctx := context.Background()
	if err := r.runDueSchedule(ctx); err != nil {
		log.Printf("[ERROR] Scheduled watering failed: %v", err)
	}
	if err := r.runMoistureCheck(ctx); err != nil {
		log.Printf("[ERROR] Moisture check failed: %v", err)
	}
}

// runDueSchedule resolves the soonest pending schedule and, when it falls
// inside this poll window, waits for the instant and executes the watering.
func (r *Runner) runDueSchedule(ctx context.Context) error {
	now := r.now()
	next, err := r.resolver.ResolveNext(ctx, now)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	wait := next.FullDateTime.Sub(now)
	if wait > r.opts.PollInterval {
		return nil
	}
	if wait > 0 {
		r.sleep(wait)
	}

	log.Printf("[INFO] Executing schedule %s for plant %s (%ds)", next.ID, next.PlantName, next.DurationSec)
	scheduledAt := next.FullDateTime
	err = r.pump.TurnOn(ctx, device.Activation{
		Mode:          models.ModeScheduled,
		Trigger:       models.TriggerSchedule,
		PlantID:       next.PlantID,
		PlantName:     &next.PlantName,
		ScheduledTime: &scheduledAt,
	})
	if err != nil {
		r.notifier.NotifyFailure("Scheduled watering start", err)
		return err
	}
	r.notifier.NotifyWateringStarted(next.PlantName, string(models.ModeScheduled))

	r.sleep(time.Duration(next.DurationSec) * time.Second)

	if err := r.pump.TurnOff(ctx, models.ModeScheduled, models.TriggerSchedule, float64(next.DurationSec)); err != nil {
		r.notifier.NotifyFailure("Scheduled watering stop", err)
		return err
	}

	// Completion makes the schedule one-shot: it stays inactive until the
	// dashboard recreates it.
	if err := r.schedules.MarkInactive(ctx, next.ID); err != nil {
		return err
	}
	r.notifier.NotifyWateringCompleted(next.PlantName, next.DurationSec)
	return nil
}

// runMoistureCheck fires the automatic trigger when automation is enabled and
// the latest reading sits below the threshold.
func (r *Runner) runMoistureCheck(ctx context.Context) error {
	enabled, err := r.pump.AutomationEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}

	status, ok := r.statuses.GetDeviceStatus(r.opts.DeviceID)
	if !ok || !status.MoistureSeen {
		return nil
	}
	if status.MoistureLevel >= r.opts.MoistureThreshold {
		return nil
	}

	state, err := r.pump.Status(ctx)
	if err != nil {
		return err
	}
	if state.Pump == models.PumpOn {
		// Someone already owns the pump; do not stack an automatic run on top.
		return nil
	}

	log.Printf("[INFO] Moisture %.1f below threshold %.1f, starting automatic watering", status.MoistureLevel, r.opts.MoistureThreshold)
	level := status.MoistureLevel
	err = r.pump.TurnOn(ctx, device.Activation{
		Mode:          models.ModeAutomatic,
		Trigger:       models.TriggerMoistureLow,
		MoistureLevel: &level,
	})
	if err != nil {
		r.notifier.NotifyFailure("Automatic watering start", err)
		return err
	}
	r.notifier.NotifyWateringStarted("moisture trigger", string(models.ModeAutomatic))

	r.sleep(time.Duration(r.opts.AutoDurationSec) * time.Second)

	if err := r.pump.TurnOff(ctx, models.ModeAutomatic, models.TriggerMoistureLow, float64(r.opts.AutoDurationSec)); err != nil {
		r.notifier.NotifyFailure("Automatic watering stop", err)
		return err
	}
	r.notifier.NotifyWateringCompleted("moisture trigger", r.opts.AutoDurationSec)
	return nil
}
