package service

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/prite36/watering-control/internal/activity"
	"github.com/prite36/watering-control/internal/config"
	"github.com/prite36/watering-control/internal/device"
	"github.com/prite36/watering-control/internal/models"
	"github.com/prite36/watering-control/internal/mqtt"
	"github.com/prite36/watering-control/internal/runner"
	"github.com/prite36/watering-control/internal/schedule"
	"github.com/prite36/watering-control/internal/server"
	"github.com/prite36/watering-control/internal/slack"
)

// App owns the wired components and their lifecycle.
type App struct {
	cfg        *config.Config
	db         *gorm.DB
	mqttClient *mqtt.Client
	runner     *runner.Runner
	httpServer *http.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	// Initialize PostgreSQL database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate the base tables. The activity reporting view is created by
	// migrations/001_recent_activity_view.sql separately; until then the
	// activity query serves the degraded path.
	err = db.AutoMigrate(
		&models.Schedule{},
		&models.DeviceState{},
		&models.PumpActivity{},
		&models.Setting{},
	)
	if err != nil {
		return nil, err
	}

	// Initialize MQTT client
	mqttClient, err := mqtt.NewClient(
		cfg.MQTT.Broker,
		cfg.MQTT.ClientID,
		cfg.MQTT.Username,
		cfg.MQTT.Password,
	)
	if err != nil {
		return nil, err
	}
	mqttClient.SubscribeToDeviceTopics(cfg.DeviceID)

	notifier := slack.NewClient(cfg.Slack.BotToken, cfg.Slack.ChannelID)

	repo := schedule.NewRepository(schedule.NewGormStore(db))
	resolver := schedule.NewResolver(repo)
	recorder := activity.NewRecorder(activity.NewGormStore(db))
	machine := device.NewMachine(
		mqtt.NewPumpActuator(mqttClient, cfg.DeviceID),
		device.NewGormStateStore(db),
		recorder,
	)

	run := runner.New(resolver, repo, machine, mqttClient, notifier, runner.Options{
		DeviceID:          cfg.DeviceID,
		PollInterval:      cfg.PollInterval(),
		MoistureThreshold: cfg.Runner.MoistureThreshold,
		AutoDurationSec:   cfg.Runner.AutoDurationSec,
	})

	httpServer := server.New(cfg, server.Deps{
		Schedules:  repo,
		Resolver:   resolver,
		Pump:       machine,
		Activities: recorder,
	})

	return &App{
		cfg:        cfg,
		db:         db,
		mqttClient: mqttClient,
		runner:     run,
		httpServer: httpServer,
	}, nil
}

func (a *App) Start() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	a.runner.Start()

	go func() {
		log.Printf("API server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[ERROR] HTTP server: %v", err)
		}
	}()

	log.Println("Watering control started. Press Ctrl+C to stop.")

	<-sigChan

	a.Stop()
	return nil
}

func (a *App) Stop() {
	log.Println("Shutting down...")

	if a.runner != nil {
		a.runner.Stop()
	}

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(ctx); err != nil {
			log.Printf("[ERROR] HTTP shutdown: %v", err)
		}
	}

	if a.mqttClient != nil {
		a.mqttClient.Close()
	}

	log.Println("Watering control stopped")
}
