// Package config loads ekran settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the server needs.
type Config struct {
	Environment string
	LogLevel    string

	ServerAddress  string
	DatabaseURL    string
	MigrationsPath string

	AuthEnabled       bool
	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	DeviceURL        string
	DeviceTimeout    time.Duration
	DiscoveryTimeout time.Duration
	PollInterval     time.Duration
	CommandTimeout   time.Duration
	LockTimeout      time.Duration
	StartupDelay     time.Duration

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
	DeviceID        string

	ArchiveUploads  bool
	UploadDir       string
	UseSpaces       bool
	SpacesEndpoint  string
	SpacesRegion    string
	SpacesBucket    string
	SpacesCDNURL    string
	SpacesAccessKey string
	SpacesSecretKey string
}

var defaults = map[string]any{
	"APP_ENV":           "production",
	"LOG_LEVEL":         "info",
	"SERVER_ADDRESS":    ":8080",
	"MIGRATIONS_PATH":   "./migrations",
	"AUTH_ENABLED":      true,
	"ADMIN_USERNAME":    "admin",
	"DEVICE_URL":        "http://127.0.0.1:5000",
	"DEVICE_TIMEOUT":    "10s",
	"DISCOVERY_TIMEOUT": "30s",
	"POLL_INTERVAL":     "5s",
	"COMMAND_TIMEOUT":   "15s",
	"LOCK_TIMEOUT":      "30s",
	"STARTUP_DELAY":     "5s",
	"MQTT_CLIENT_ID":    "ekran-controller",
	"MQTT_TOPIC_PREFIX": "ekran",
	"DEVICE_ID":         "default",
	"ARCHIVE_UPLOADS":   false,
	"UPLOAD_DIR":        "./uploads",
	"USE_SPACES":        false,
}

// Load reads .env (if present), then cfgFile (if given), then the process
// environment. Environment variables win.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    strings.ToLower(v.GetString("LOG_LEVEL")),

		ServerAddress:  v.GetString("SERVER_ADDRESS"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),

		AuthEnabled:       v.GetBool("AUTH_ENABLED"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		AdminUsername:     v.GetString("ADMIN_USERNAME"),
		AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),

		RedisAddress:  v.GetString("REDIS_ADDRESS"),
		RedisUsername: v.GetString("REDIS_USERNAME"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),

		DeviceURL:        strings.TrimRight(v.GetString("DEVICE_URL"), "/"),
		DeviceTimeout:    v.GetDuration("DEVICE_TIMEOUT"),
		DiscoveryTimeout: v.GetDuration("DISCOVERY_TIMEOUT"),
		PollInterval:     v.GetDuration("POLL_INTERVAL"),
		CommandTimeout:   v.GetDuration("COMMAND_TIMEOUT"),
		LockTimeout:      v.GetDuration("LOCK_TIMEOUT"),
		StartupDelay:     v.GetDuration("STARTUP_DELAY"),

		MQTTBroker:      v.GetString("MQTT_BROKER"),
		MQTTClientID:    v.GetString("MQTT_CLIENT_ID"),
		MQTTTopicPrefix: v.GetString("MQTT_TOPIC_PREFIX"),
		DeviceID:        v.GetString("DEVICE_ID"),

		ArchiveUploads:  v.GetBool("ARCHIVE_UPLOADS"),
		UploadDir:       v.GetString("UPLOAD_DIR"),
		UseSpaces:       v.GetBool("USE_SPACES"),
		SpacesEndpoint:  v.GetString("SPACES_ENDPOINT"),
		SpacesRegion:    v.GetString("SPACES_REGION"),
		SpacesBucket:    v.GetString("SPACES_BUCKET"),
		SpacesCDNURL:    v.GetString("SPACES_CDN_URL"),
		SpacesAccessKey: v.GetString("SPACES_ACCESS_KEY"),
		SpacesSecretKey: v.GetString("SPACES_SECRET_KEY"),
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.DeviceURL == "" {
		return fmt.Errorf("DEVICE_URL is required")
	}
	periods := []struct {
		name string
		d    time.Duration
	}{
		{"DEVICE_TIMEOUT", c.DeviceTimeout},
		{"DISCOVERY_TIMEOUT", c.DiscoveryTimeout},
		{"POLL_INTERVAL", c.PollInterval},
		{"COMMAND_TIMEOUT", c.CommandTimeout},
		{"LOCK_TIMEOUT", c.LockTimeout},
	}
	for _, p := range periods {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive", p.name)
		}
	}
	if c.StartupDelay < 0 {
		return fmt.Errorf("STARTUP_DELAY cannot be negative")
	}
	if c.LockTimeout < c.CommandTimeout {
		return fmt.Errorf("LOCK_TIMEOUT (%s) must not be shorter than COMMAND_TIMEOUT (%s)", c.LockTimeout, c.CommandTimeout)
	}
	if c.AuthEnabled {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_ENABLED is true")
		}
		if c.AdminPasswordHash == "" {
			return fmt.Errorf("ADMIN_PASSWORD_HASH is required when AUTH_ENABLED is true")
		}
	}
	if c.ArchiveUploads && c.UseSpaces {
		if c.SpacesEndpoint == "" || c.SpacesBucket == "" || c.SpacesAccessKey == "" || c.SpacesSecretKey == "" {
			return fmt.Errorf("SPACES_ENDPOINT, SPACES_BUCKET, SPACES_ACCESS_KEY and SPACES_SECRET_KEY are required when USE_SPACES is true")
		}
	}
	return nil
}

// Development reports whether APP_ENV selects developer-friendly output.
func (c *Config) Development() bool {
	return c.Environment == "development"
}
