package activity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prite36/watering-control/internal/models"
)

// fakeStore implements Store in memory for test assertions.
type fakeStore struct {
	records      []models.PumpActivity
	appendErr    error
	indexMissing bool
	queryErr     error
}

func (f *fakeStore) Append(ctx context.Context, act *models.PumpActivity) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	if act.ID == "" {
		act.ID = "fake-id"
	}
	f.records = append(f.records, *act)
	return nil
}

func (f *fakeStore) QueryIndexed(ctx context.Context, start time.Time, mode models.Mode, limit int) ([]models.PumpActivity, error) {
	if f.indexMissing {
		return nil, ErrIndexUnavailable
	}
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := []models.PumpActivity{}
	for _, act := range f.newestFirst() {
		if act.StartTime.Before(start) {
			continue
		}
		if mode != "" && act.Mode != mode {
			continue
		}
		out = append(out, act)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) Recent(ctx context.Context, limit int) ([]models.PumpActivity, error) {
	all := f.newestFirst()
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeStore) Since(ctx context.Context, start time.Time) ([]models.PumpActivity, error) {
	out := []models.PumpActivity{}
	for _, act := range f.newestFirst() {
		if !act.StartTime.Before(start) {
			out = append(out, act)
		}
	}
	return out, nil
}

func (f *fakeStore) newestFirst() []models.PumpActivity {
	out := make([]models.PumpActivity, len(f.records))
	copy(out, f.records)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].StartTime.After(out[i].StartTime) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

var testBase = time.Date(2025, 6, 2, 12, 0, 0, 0, time.Local)

func seedActivities(store *fakeStore, n int, mode models.Mode, from time.Time) {
	for i := 0; i < n; i++ {
		store.records = append(store.records, models.PumpActivity{
			ID:        "seed",
			StartTime: from.Add(time.Duration(i) * time.Minute),
			Mode:      mode,
		})
	}
}

func TestRecordAppends(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store)
	rec.now = func() time.Time { return testBase }

	level := 17.5
	id, err := rec.Record(context.Background(), Record{
		Duration:      30,
		Mode:          models.ModeAutomatic,
		Trigger:       models.TriggerMoistureLow,
		MoistureLevel: &level,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Error("expected a non-empty id")
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(store.records))
	}
	got := store.records[0]
	if !got.StartTime.Equal(testBase) {
		t.Errorf("start time %v, want %v", got.StartTime, testBase)
	}
	if got.MoistureLevel == nil || *got.MoistureLevel != 17.5 {
		t.Errorf("moisture level not carried: %+v", got.MoistureLevel)
	}
}

func TestQueryIndexedPath(t *testing.T) {
	store := &fakeStore{}
	seedActivities(store, 10, models.ModeAutomatic, testBase.Add(-time.Hour))
	seedActivities(store, 10, models.ModeManual, testBase.Add(-time.Hour))
	rec := NewRecorder(store)

	start := testBase.Add(-2 * time.Hour)
	acts, warning, err := rec.Query(context.Background(), start, models.ModeAutomatic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if warning != "" {
		t.Errorf("unexpected warning on the indexed path: %q", warning)
	}
	if len(acts) != 10 {
		t.Fatalf("got %d activities, want 10", len(acts))
	}
	for i, act := range acts {
		if act.Mode != models.ModeAutomatic {
			t.Errorf("record %d has mode %s", i, act.Mode)
		}
		if act.StartTime.Before(start) {
			t.Errorf("record %d starts before the range", i)
		}
		if i > 0 && act.StartTime.After(acts[i-1].StartTime) {
			t.Error("results are not newest first")
		}
	}
}

func TestQueryFallbackWindowAndCap(t *testing.T) {
	store := &fakeStore{indexMissing: true}
	// 200 matching records; only the newest 120 are scanned, 50 returned.
	seedActivities(store, 200, models.ModeManual, testBase.Add(-5*time.Hour))
	rec := NewRecorder(store)

	acts, warning, err := rec.Query(context.Background(), testBase.Add(-6*time.Hour), models.ModeManual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if warning != IndexWarning {
		t.Errorf("got warning %q, want IndexWarning", warning)
	}
	if len(acts) != QueryLimit {
		t.Fatalf("got %d activities, want %d", len(acts), QueryLimit)
	}
}

func TestQueryFallbackDropsBeyondWindow(t *testing.T) {
	store := &fakeStore{indexMissing: true}
	// 130 old manual records then 120 newer automatic ones: the manual rows
	// fall outside the 120-record window and are silently dropped.
	seedActivities(store, 130, models.ModeManual, testBase.Add(-10*time.Hour))
	seedActivities(store, 120, models.ModeAutomatic, testBase.Add(-2*time.Hour))
	rec := NewRecorder(store)

	acts, warning, err := rec.Query(context.Background(), testBase.Add(-24*time.Hour), models.ModeManual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if warning == "" {
		t.Error("expected a degraded-mode warning")
	}
	if len(acts) != 0 {
		t.Errorf("expected older matches outside the window to be dropped, got %d", len(acts))
	}
}

func TestQueryFallbackAppliesFilters(t *testing.T) {
	store := &fakeStore{indexMissing: true}
	seedActivities(store, 5, models.ModeAutomatic, testBase.Add(-30*time.Minute))
	seedActivities(store, 5, models.ModeManual, testBase.Add(-30*time.Minute))
	seedActivities(store, 5, models.ModeAutomatic, testBase.Add(-48*time.Hour))
	rec := NewRecorder(store)

	acts, _, err := rec.Query(context.Background(), testBase.Add(-time.Hour), models.ModeAutomatic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(acts) != 5 {
		t.Fatalf("got %d activities, want 5 recent automatic ones", len(acts))
	}
	for _, act := range acts {
		if act.Mode != models.ModeAutomatic {
			t.Errorf("fallback returned mode %s", act.Mode)
		}
	}
}

func TestQueryOtherStoreErrorsPropagate(t *testing.T) {
	storeErr := errors.New("connection refused")
	rec := NewRecorder(&fakeStore{queryErr: storeErr})
	_, _, err := rec.Query(context.Background(), testBase, "")
	if !errors.Is(err, storeErr) {
		t.Errorf("expected the store error to propagate, got %v", err)
	}
}

func TestDailyFrequencyZeroFills(t *testing.T) {
	store := &fakeStore{}
	store.records = append(store.records,
		models.PumpActivity{StartTime: testBase.Add(-time.Hour), Mode: models.ModeManual},
		models.PumpActivity{StartTime: testBase.Add(-time.Hour), Mode: models.ModeScheduled},
		models.PumpActivity{StartTime: testBase.AddDate(0, 0, -2), Mode: models.ModeAutomatic},
	)
	rec := NewRecorder(store)
	rec.now = func() time.Time { return testBase }

	report, err := rec.DailyFrequency(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Dates) != 7 || len(report.TotalCounts) != 7 || len(report.ModeCounts) != 7 {
		t.Fatalf("expected 7 buckets, got %d/%d/%d", len(report.Dates), len(report.TotalCounts), len(report.ModeCounts))
	}
	if report.Dates[6] != testBase.Format("2006-01-02") {
		t.Errorf("last bucket is %s, want today", report.Dates[6])
	}
	if !strings.HasPrefix(report.Dates[0], "2025-05-") {
		t.Errorf("first bucket is %s, want six days back", report.Dates[0])
	}

	today := report.TotalCounts[6]
	if today != 2 {
		t.Errorf("today count %d, want 2", today)
	}
	if report.ModeCounts[6].Manual != 1 || report.ModeCounts[6].Scheduled != 1 {
		t.Errorf("today mode counts wrong: %+v", report.ModeCounts[6])
	}
	if report.TotalCounts[4] != 1 || report.ModeCounts[4].Automatic != 1 {
		t.Errorf("two-days-ago bucket wrong: total=%d counts=%+v", report.TotalCounts[4], report.ModeCounts[4])
	}

	empty := 0
	for _, c := range report.TotalCounts {
		if c == 0 {
			empty++
		}
	}
	if empty != 5 {
		t.Errorf("expected 5 zero-filled days, got %d", empty)
	}
}
