// Package device tracks which trigger path currently owns the pump.
//
// The pump is a single exclusive resource but the machine deliberately does
// not arbitrate between manual, automatic and scheduled triggers: any of them
// may overwrite the state at any time and the last writer is authoritative.
// A mutex serializes transitions within this process only; no cross-process
// owner token exists.
package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prite36/watering-control/internal/activity"
	"github.com/prite36/watering-control/internal/models"
)

// Actuator is the command channel to the physical pump. Both calls are
// synchronous and must be bounded by the implementation; once a command is
// sent it cannot be retracted, callers compensate with the opposite command.
type Actuator interface {
	PumpOn(ctx context.Context) error
	PumpOff(ctx context.Context) error
}

// StateStore persists the singleton DeviceState row and the automation flag.
// Load creates the row with {manual, OFF} defaults when it does not exist.
type StateStore interface {
	Load(ctx context.Context) (models.DeviceState, error)
	Save(ctx context.Context, state models.DeviceState) error
	AutomationEnabled(ctx context.Context) (bool, error)
	SetAutomationEnabled(ctx context.Context, enabled bool) error
}

// recorder is the slice of activity.Recorder the machine appends through.
type recorder interface {
	Record(ctx context.Context, rec activity.Record) (string, error)
}

// Activation describes one ON transition: who triggered it and which plant is
// being watered.
type Activation struct {
	Mode          models.Mode
	Trigger       models.Trigger
	PlantID       *string
	PlantName     *string
	MoistureLevel *float64
	ScheduledTime *time.Time
}

// Machine is the device state machine shared by all three trigger paths.
type Machine struct {
	mu       sync.Mutex
	actuator Actuator
	store    StateStore
	recorder recorder
}

func NewMachine(actuator Actuator, store StateStore, recorder recorder) *Machine {
	return &Machine{actuator: actuator, store: store, recorder: recorder}
}

// TurnOn sends the on command and, only after it succeeds, commits the new
// owner state and appends the start-of-activation record. An actuator failure
// aborts the whole transition: no state write, no record.
func (m *Machine) TurnOn(ctx context.Context, act Activation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.actuator.PumpOn(ctx); err != nil {
		return fmt.Errorf("pump on command: %w", err)
	}

	state, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	state.Mode = act.Mode
	state.Pump = models.PumpOn
	state.PlantID = act.PlantID
	state.PlantName = act.PlantName
	if err := m.store.Save(ctx, state); err != nil {
		return err
	}

	// Duration is recorded on the OFF transition; the ON record marks the
	// start of the activation, not elapsed time.
	_, err = m.recorder.Record(ctx, activity.Record{
		Duration:      0,
		Mode:          act.Mode,
		Trigger:       act.Trigger,
		MoistureLevel: act.MoistureLevel,
		ScheduledTime: act.ScheduledTime,
		PlantID:       act.PlantID,
		PlantName:     act.PlantName,
	})
	return err
}

// TurnOff sends the off command, clears the owner state and appends a record
// reusing the plant identity captured before the clear.
func (m *Machine) TurnOff(ctx context.Context, mode models.Mode, trigger models.Trigger, duration float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.actuator.PumpOff(ctx); err != nil {
		return fmt.Errorf("pump off command: %w", err)
	}

	prior, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	plantID, plantName := prior.PlantID, prior.PlantName

	prior.Mode = mode
	prior.Pump = models.PumpOff
	prior.PlantID = nil
	prior.PlantName = nil
	if err := m.store.Save(ctx, prior); err != nil {
		return err
	}

	_, err = m.recorder.Record(ctx, activity.Record{
		Duration:  duration,
		Mode:      mode,
		Trigger:   trigger,
		PlantID:   plantID,
		PlantName: plantName,
	})
	return err
}

// ManualOn flips the pump on at a user's request.
func (m *Machine) ManualOn(ctx context.Context, plantID, plantName *string) error {
	return m.TurnOn(ctx, Activation{
		Mode:      models.ModeManual,
		Trigger:   models.TriggerManualButton,
		PlantID:   plantID,
		PlantName: plantName,
	})
}

// ManualOff flips the pump off at a user's request.
func (m *Machine) ManualOff(ctx context.Context) error {
	return m.TurnOff(ctx, models.ModeManual, models.TriggerManualButton, 0)
}

// Status returns the current device state, creating the default row on first
// read.
func (m *Machine) Status(ctx context.Context) (models.DeviceState, error) {
	return m.store.Load(ctx)
}

// AutomationEnabled reports whether the moisture-triggered path may fire.
func (m *Machine) AutomationEnabled(ctx context.Context) (bool, error) {
	return m.store.AutomationEnabled(ctx)
}

// SetAutomationEnabled persists the automation flag so it survives restarts.
func (m *Machine) SetAutomationEnabled(ctx context.Context, enabled bool) error {
	return m.store.SetAutomationEnabled(ctx, enabled)
}
