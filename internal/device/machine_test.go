package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prite36/watering-control/internal/activity"
	"github.com/prite36/watering-control/internal/models"
)

func testScheduledTime() time.Time {
	return time.Date(2025, 6, 2, 7, 0, 0, 0, time.Local)
}

// fakeActuator records commands and can fail on demand.
type fakeActuator struct {
	onCalls  int
	offCalls int
	onErr    error
	offErr   error
}

func (f *fakeActuator) PumpOn(ctx context.Context) error {
	f.onCalls++
	return f.onErr
}

func (f *fakeActuator) PumpOff(ctx context.Context) error {
	f.offCalls++
	return f.offErr
}

// fakeStateStore holds the singleton state in memory.
type fakeStateStore struct {
	state      models.DeviceState
	saves      int
	automation bool
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{state: models.DeviceState{
		ID:   models.StateKeyMain,
		Mode: models.ModeManual,
		Pump: models.PumpOff,
	}}
}

func (f *fakeStateStore) Load(ctx context.Context) (models.DeviceState, error) {
	return f.state, nil
}

func (f *fakeStateStore) Save(ctx context.Context, state models.DeviceState) error {
	f.state = state
	f.saves++
	return nil
}

func (f *fakeStateStore) AutomationEnabled(ctx context.Context) (bool, error) {
	return f.automation, nil
}

func (f *fakeStateStore) SetAutomationEnabled(ctx context.Context, enabled bool) error {
	f.automation = enabled
	return nil
}

// fakeRecorder captures appended records.
type fakeRecorder struct {
	records []activity.Record
}

func (f *fakeRecorder) Record(ctx context.Context, rec activity.Record) (string, error) {
	f.records = append(f.records, rec)
	return "rec-id", nil
}

func strPtr(s string) *string { return &s }

func TestManualOnCommitsStateAndRecord(t *testing.T) {
	act := &fakeActuator{}
	store := newFakeStateStore()
	rec := &fakeRecorder{}
	machine := NewMachine(act, store, rec)

	err := machine.ManualOn(context.Background(), strPtr("p1"), strPtr("Basil"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if act.onCalls != 1 {
		t.Errorf("on command sent %d times, want 1", act.onCalls)
	}
	if store.state.Pump != models.PumpOn || store.state.Mode != models.ModeManual {
		t.Errorf("state not committed: %+v", store.state)
	}
	if store.state.PlantName == nil || *store.state.PlantName != "Basil" {
		t.Errorf("plant identity not committed: %+v", store.state)
	}
	if len(rec.records) != 1 {
		t.Fatalf("expected 1 activity record, got %d", len(rec.records))
	}
	got := rec.records[0]
	if got.Trigger != models.TriggerManualButton || got.Mode != models.ModeManual {
		t.Errorf("record has wrong trigger/mode: %+v", got)
	}
	if got.Duration != 0 {
		t.Errorf("the ON record marks the start, duration must be 0, got %v", got.Duration)
	}
}

func TestManualOnActuatorFailureAbortsUnit(t *testing.T) {
	act := &fakeActuator{onErr: errors.New("device unreachable")}
	store := newFakeStateStore()
	rec := &fakeRecorder{}
	machine := NewMachine(act, store, rec)

	err := machine.ManualOn(context.Background(), nil, strPtr("Basil"))
	if err == nil {
		t.Fatal("expected the actuator failure to surface")
	}
	if store.saves != 0 {
		t.Errorf("state was written despite actuator failure (%d saves)", store.saves)
	}
	if store.state.Pump != models.PumpOff {
		t.Errorf("pump state flipped despite failure: %+v", store.state)
	}
	if len(rec.records) != 0 {
		t.Errorf("activity log grew despite failure: %d records", len(rec.records))
	}
}

func TestManualOffRecoversPlantIdentityBeforeClear(t *testing.T) {
	act := &fakeActuator{}
	store := newFakeStateStore()
	store.state.Pump = models.PumpOn
	store.state.PlantID = strPtr("p1")
	store.state.PlantName = strPtr("Basil")
	rec := &fakeRecorder{}
	machine := NewMachine(act, store, rec)

	if err := machine.ManualOff(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if act.offCalls != 1 {
		t.Errorf("off command sent %d times, want 1", act.offCalls)
	}
	if store.state.Pump != models.PumpOff {
		t.Errorf("pump still on: %+v", store.state)
	}
	if store.state.PlantID != nil || store.state.PlantName != nil {
		t.Errorf("plant identity not cleared: %+v", store.state)
	}
	if len(rec.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(rec.records))
	}
	got := rec.records[0]
	if got.PlantName == nil || *got.PlantName != "Basil" {
		t.Errorf("record lost the pre-clear plant identity: %+v", got)
	}
}

func TestScheduledActivationCarriesDetails(t *testing.T) {
	act := &fakeActuator{}
	store := newFakeStateStore()
	rec := &fakeRecorder{}
	machine := NewMachine(act, store, rec)

	scheduled := testScheduledTime()
	err := machine.TurnOn(context.Background(), Activation{
		Mode:          models.ModeScheduled,
		Trigger:       models.TriggerSchedule,
		PlantName:     strPtr("Fern"),
		ScheduledTime: &scheduled,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.state.Mode != models.ModeScheduled {
		t.Errorf("mode %s, want scheduled", store.state.Mode)
	}
	got := rec.records[0]
	if got.ScheduledTime == nil || !got.ScheduledTime.Equal(scheduled) {
		t.Errorf("scheduled time not recorded: %+v", got)
	}

	if err := machine.TurnOff(context.Background(), models.ModeScheduled, models.TriggerSchedule, 45); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	off := rec.records[1]
	if off.Duration != 45 {
		t.Errorf("off record duration %v, want 45", off.Duration)
	}
	if off.PlantName == nil || *off.PlantName != "Fern" {
		t.Errorf("off record lost plant identity: %+v", off)
	}
}

func TestLastWriterWins(t *testing.T) {
	act := &fakeActuator{}
	store := newFakeStateStore()
	rec := &fakeRecorder{}
	machine := NewMachine(act, store, rec)

	ctx := context.Background()
	if err := machine.ManualOn(ctx, nil, strPtr("Basil")); err != nil {
		t.Fatal(err)
	}
	level := 12.0
	err := machine.TurnOn(ctx, Activation{
		Mode:          models.ModeAutomatic,
		Trigger:       models.TriggerMoistureLow,
		PlantName:     strPtr("Fern"),
		MoistureLevel: &level,
	})
	if err != nil {
		t.Fatal(err)
	}

	// No arbitration: the automatic trigger simply overwrote the manual one.
	if store.state.Mode != models.ModeAutomatic {
		t.Errorf("mode %s, want automatic (last writer)", store.state.Mode)
	}
	if *store.state.PlantName != "Fern" {
		t.Errorf("plant %s, want Fern", *store.state.PlantName)
	}
}

func TestAutomationFlagRoundtrip(t *testing.T) {
	machine := NewMachine(&fakeActuator{}, newFakeStateStore(), &fakeRecorder{})
	ctx := context.Background()

	enabled, err := machine.AutomationEnabled(ctx)
	if err != nil || enabled {
		t.Fatalf("expected automation off by default, got %v err=%v", enabled, err)
	}
	if err := machine.SetAutomationEnabled(ctx, true); err != nil {
		t.Fatal(err)
	}
	enabled, err = machine.AutomationEnabled(ctx)
	if err != nil || !enabled {
		t.Fatalf("expected automation on after set, got %v err=%v", enabled, err)
	}
}
