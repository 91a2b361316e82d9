package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/rs/cors"

	"github.com/prite36/watering-control/internal/config"
)

// New creates the API server and sets up the routes.
func New(cfg *config.Config, deps Deps) *http.Server {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "OK")
	})

	// Slack events endpoint
	mux.HandleFunc("/slack/events", SlackEventsHandler(cfg))

	// Schedules
	mux.HandleFunc("/api/v1/schedules", CreateScheduleHandler(deps.Schedules))
	mux.HandleFunc("/api/v1/schedules/next", NextScheduleHandler(deps.Resolver))
	mux.HandleFunc("/api/v1/schedules/complete", CompleteScheduleHandler(deps.Schedules))

	// Pump control
	mux.HandleFunc("/api/v1/pump/on", PumpOnHandler(deps.Pump))
	mux.HandleFunc("/api/v1/pump/off", PumpOffHandler(deps.Pump))
	mux.HandleFunc("/api/v1/pump/status", PumpStatusHandler(deps.Pump))

	// Activity log
	mux.HandleFunc("/api/v1/activities", ActivitiesHandler(deps.Activities))
	mux.HandleFunc("/api/v1/activities/frequency", DailyFrequencyHandler(deps.Activities))

	// Automation flag
	mux.HandleFunc("/api/v1/automation", AutomationHandler(deps.Pump))

	addr := cfg.Server.Addr
	log.Printf("API Server configured to listen on %s", addr)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
	})
	handler := c.Handler(mux)

	return &http.Server{
		Addr:    addr,
		Handler: handler,
	}
}
