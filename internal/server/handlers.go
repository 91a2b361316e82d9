package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/prite36/watering-control/internal/activity"
	"github.com/prite36/watering-control/internal/config"
	"github.com/prite36/watering-control/internal/models"
	"github.com/prite36/watering-control/internal/schedule"
)

// ScheduleService is the slice of schedule.Repository the handlers need.
type ScheduleService interface {
	Create(ctx context.Context, def schedule.Definition) (string, error)
	MarkInactive(ctx context.Context, id string) error
}

// NextResolver answers the external poller's "what's next" question.
type NextResolver interface {
	ResolveNext(ctx context.Context, now time.Time) (*schedule.NextRun, error)
}

// PumpService is the slice of the device state machine the handlers need.
type PumpService interface {
	ManualOn(ctx context.Context, plantID, plantName *string) error
	ManualOff(ctx context.Context) error
	Status(ctx context.Context) (models.DeviceState, error)
	AutomationEnabled(ctx context.Context) (bool, error)
	SetAutomationEnabled(ctx context.Context, enabled bool) error
}

// ActivityService is the slice of activity.Recorder the handlers need.
type ActivityService interface {
	Record(ctx context.Context, rec activity.Record) (string, error)
	Query(ctx context.Context, start time.Time, mode models.Mode) ([]models.PumpActivity, string, error)
	DailyFrequency(ctx context.Context) (activity.FrequencyReport, error)
}

// Deps carries the services the server routes to.
type Deps struct {
	Schedules  ScheduleService
	Resolver   NextResolver
	Pump       PumpService
	Activities ActivityService
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": err.Error()})
}

// CreateScheduleHandler replaces any existing schedule for the plant and
// inserts the new one as active.
func CreateScheduleHandler(schedules ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var def schedule.Definition
		if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
			return
		}
		if err := def.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		id, err := schedules.Create(r.Context(), def)
		if err != nil {
			log.Printf("[ERROR] Create schedule failed: %v", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "id": id})
	}
}

// NextScheduleHandler returns the globally soonest pending schedule, or a
// null schedule when nothing is pending.
func NextScheduleHandler(resolver NextResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		next, err := resolver.ResolveNext(r.Context(), time.Now())
		if err != nil {
			log.Printf("[ERROR] Resolve next schedule failed: %v", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "schedule": next})
	}
}

// CompleteScheduleHandler marks a fired schedule inactive. Idempotent.
func CompleteScheduleHandler(schedules ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			ScheduleID string `json:"scheduleId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScheduleID == "" {
			writeError(w, http.StatusBadRequest, errors.New("missing scheduleId"))
			return
		}

		if err := schedules.MarkInactive(r.Context(), req.ScheduleID); err != nil {
			log.Printf("[ERROR] Complete schedule %s failed: %v", req.ScheduleID, err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// PumpOnHandler drives the manual ON transition.
func PumpOnHandler(pump PumpService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			PlantID   *string `json:"plantId"`
			PlantName *string `json:"plantName"`
		}
		if r.Body != nil && r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
				writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
				return
			}
		}

		if err := pump.ManualOn(r.Context(), req.PlantID, req.PlantName); err != nil {
			log.Printf("[ERROR] Manual pump on failed: %v", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// PumpOffHandler drives the manual OFF transition.
func PumpOffHandler(pump PumpService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := pump.ManualOff(r.Context()); err != nil {
			log.Printf("[ERROR] Manual pump off failed: %v", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// PumpStatusHandler returns the current device state.
func PumpStatusHandler(pump PumpService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		state, err := pump.Status(r.Context())
		if err != nil {
			log.Printf("[ERROR] Pump status failed: %v", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "state": state})
	}
}

// ActivitiesHandler serves GET (range+mode query) and POST (record).
func ActivitiesHandler(activities ActivityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			queryActivities(w, r, activities)
		case http.MethodPost:
			recordActivity(w, r, activities)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func queryActivities(w http.ResponseWriter, r *http.Request, activities ActivityService) {
	// Default to the last 24 hours when no range is given.
	start := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("startDate"); raw != "" {
		parsed, err := parseStartDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start = parsed
	}

	mode := models.Mode(r.URL.Query().Get("mode"))
	switch mode {
	case "", models.ModeManual, models.ModeAutomatic, models.ModeScheduled:
	default:
		writeError(w, http.StatusBadRequest, errors.New("invalid mode"))
		return
	}

	acts, warning, err := activities.Query(r.Context(), start, mode)
	if err != nil {
		log.Printf("[ERROR] Activity query failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := map[string]interface{}{"success": true, "activities": acts}
	if warning != "" {
		resp["warning"] = warning
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseStartDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New("invalid startDate")
}

func recordActivity(w http.ResponseWriter, r *http.Request, activities ActivityService) {
	var req struct {
		Duration float64     `json:"duration"`
		Mode     models.Mode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	id, err := activities.Record(r.Context(), activity.Record{
		Duration: req.Duration,
		Mode:     req.Mode,
	})
	if err != nil {
		log.Printf("[ERROR] Record activity failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "id": id})
}

// DailyFrequencyHandler serves the trailing-week watering trend.
func DailyFrequencyHandler(activities ActivityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		report, err := activities.DailyFrequency(r.Context())
		if err != nil {
			log.Printf("[ERROR] Daily frequency failed: %v", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": report})
	}
}

// AutomationHandler reads and writes the persisted automation flag.
func AutomationHandler(pump PumpService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			enabled, err := pump.AutomationEnabled(r.Context())
			if err != nil {
				log.Printf("[ERROR] Read automation flag failed: %v", err)
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "enabled": enabled})

		case http.MethodPost:
			var req struct {
				Enable *bool `json:"enable"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enable == nil {
				writeError(w, http.StatusBadRequest, errors.New("enable must be boolean"))
				return
			}
			if err := pump.SetAutomationEnabled(r.Context(), *req.Enable); err != nil {
				log.Printf("[ERROR] Set automation flag failed: %v", err)
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "enabled": *req.Enable})

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// SlackEventsHandler verifies and acknowledges Slack event callbacks.
func SlackEventsHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verifier, err := slack.NewSecretsVerifier(r.Header, cfg.Slack.SigningSecret)
		if err != nil {
			log.Printf("[ERROR] Failed to create secrets verifier: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Printf("[ERROR] Failed to read request body: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		r.Body = io.NopCloser(bytes.NewBuffer(body))

		if _, err := verifier.Write(body); err != nil {
			log.Printf("[ERROR] Failed to write body to verifier: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if err := verifier.Ensure(); err != nil {
			log.Printf("[WARN] Invalid Slack signature: %v", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
		if err != nil {
			log.Printf("[ERROR] Failed to parse Slack event: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if eventsAPIEvent.Type == slackevents.URLVerification {
			var challenge *slackevents.ChallengeResponse
			if err := json.Unmarshal(body, &challenge); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(challenge.Challenge))
			return
		}

		if eventsAPIEvent.Type == slackevents.CallbackEvent {
			log.Printf("[INFO] Received a callback event: %v", eventsAPIEvent.InnerEvent.Type)
			w.WriteHeader(http.StatusOK)
		}
	}
}
