package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"discoverycall/internal/calendar"
	"discoverycall/internal/widget"
)

const (
	defaultPath           = "configs/config.yaml"
	defaultReloadInterval = 30 * time.Second
)

type Config struct {
	Server struct {
		Port               int `yaml:"port"`
		ReadTimeoutSeconds int `yaml:"read_timeout_seconds"`
	} `yaml:"server"`

	Redis struct {
		Address           string `yaml:"address"`
		Password          string `yaml:"password"`
		DB                int    `yaml:"db"`
		SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	Log struct {
		Level   string `yaml:"level"`
		Console bool   `yaml:"console"`
	} `yaml:"log"`

	Widget Widget `yaml:"widget"`
}

// Widget is the YAML form of widget.Config. StartMonth is 1-based here.
type Widget struct {
	Title                 string   `yaml:"title"`
	Description           string   `yaml:"description"`
	AvailableDates        []int    `yaml:"available_dates"`
	TimeSlots             []string `yaml:"time_slots"`
	EventTitle            string   `yaml:"event_title"`
	EventLocation         string   `yaml:"event_location"`
	StartMonth            int      `yaml:"start_month"`
	StartYear             int      `yaml:"start_year"`
	ReloadIntervalSeconds int      `yaml:"reload_interval_seconds"`
}

// LoadEnv reads KEY=VALUE pairs from the given .env files into the process
// environment. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML config bytes and fills defaults.
func Parse(data []byte) (*Config, error) {
	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	if cfg.Monitoring.PrometheusPort == 0 {
		cfg.Monitoring.PrometheusPort = 9090
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 5
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return &cfg, nil
}

func (c *Config) ReadTimeout() time.Duration {
	if c.Server.ReadTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	if c.Redis.SessionTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Redis.SessionTTLMinutes) * time.Minute
}

func (w Widget) ReloadInterval() time.Duration {
	if w.ReloadIntervalSeconds <= 0 {
		return defaultReloadInterval
	}
	return time.Duration(w.ReloadIntervalSeconds) * time.Second
}

// WidgetConfig converts the YAML section into a widget.Config. Unset fields
// keep the widget defaults.
func (w Widget) WidgetConfig() widget.Config {
	cfg := widget.Config{
		Title:          w.Title,
		Description:    w.Description,
		AvailableDates: w.AvailableDates,
		TimeSlots:      w.TimeSlots,
		EventTitle:     w.EventTitle,
		EventLocation:  w.EventLocation,
	}
	if w.StartMonth > 0 && w.StartYear > 0 {
		cfg.StartCursor = calendar.NewCursor(w.StartMonth-1, w.StartYear)
	}
	return cfg
}
