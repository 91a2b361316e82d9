package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ServerConfig struct {
	Addr string
}

type SlackConfig struct {
	BotToken      string
	ChannelID     string
	SigningSecret string
}

// RunnerConfig drives the in-process poll loop: how often to check for a due
// schedule and when the moisture trigger fires.
type RunnerConfig struct {
	PollSeconds       int
	MoistureThreshold float64
	AutoDurationSec   int
}

type Config struct {
	MQTT     MQTTConfig
	Database DatabaseConfig
	Server   ServerConfig
	Slack    SlackConfig
	Runner   RunnerConfig
	DeviceID string
}

func LoadConfig() (*Config, error) {
	v := viper.New()

	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")

	v.BindEnv("mqtt.broker", "MQTT_BROKER")
	v.BindEnv("mqtt.clientid", "MQTT_CLIENT_ID")
	v.BindEnv("mqtt.username", "MQTT_USERNAME")
	v.BindEnv("mqtt.password", "MQTT_PASSWORD")

	v.BindEnv("server.addr", "SERVER_ADDR")

	v.BindEnv("slack.bottoken", "SLACK_BOT_TOKEN")
	v.BindEnv("slack.channelid", "SLACK_CHANNEL_ID")
	v.BindEnv("slack.signingsecret", "SLACK_SIGNING_SECRET")

	v.BindEnv("runner.pollseconds", "RUNNER_POLL_SECONDS")
	v.BindEnv("runner.moisturethreshold", "RUNNER_MOISTURE_THRESHOLD")
	v.BindEnv("runner.autodurationsec", "RUNNER_AUTO_DURATION_SEC")

	v.BindEnv("deviceid", "PUMP_DEVICE_ID")

	v.SetDefault("server.addr", ":3005")
	v.SetDefault("runner.pollseconds", 30)
	v.SetDefault("runner.moisturethreshold", 20.0)
	v.SetDefault("runner.autodurationsec", 30)
	v.SetDefault("deviceid", "pump_01")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}

	if env == "local" {
		v.SetConfigFile(".env.local")
		v.SetConfigType("env")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				if _, statErr := os.Stat(".env.local"); statErr == nil {
					return nil, fmt.Errorf("error reading config file .env.local: %w", err)
				}
			}
			log.Println("Info: .env.local not found, relying on environment variables.")
		} else {
			log.Printf("Loaded configuration from %s", v.ConfigFileUsed())
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// DSN returns the PostgreSQL connection string.
func (cfg *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		cfg.Database.Host,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.Port,
		cfg.Database.SSLMode,
	)
}

// PollInterval is the runner's check cadence.
func (cfg *Config) PollInterval() time.Duration {
	if cfg.Runner.PollSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.Runner.PollSeconds) * time.Second
}
