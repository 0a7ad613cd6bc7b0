package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	NATS          NATSConfig          `yaml:"nats"`
	MinIO         MinIOConfig         `yaml:"minio"`
	Extractor     ExtractorConfig     `yaml:"extractor"`
	Engine        EngineConfig        `yaml:"engine"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Webhooks      WebhooksConfig      `yaml:"webhooks"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// ExtractorConfig points at the external face extraction service that
// computes embeddings.
type ExtractorConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// EngineConfig holds the recognition pipeline policy knobs. The numeric
// values are tunable; Validate enforces the orderings the pipeline depends on.
type EngineConfig struct {
	// FrameSkip drops all but 1 of every FrameSkip+1 frames per connection.
	FrameSkip int `yaml:"frame_skip"`

	// Confidence bands: >= IdentifiedThreshold is a trusted identity,
	// [UncertainThreshold, IdentifiedThreshold) is uncertain, below is a
	// stranger candidate.
	IdentifiedThreshold float64 `yaml:"identified_threshold"`
	UncertainThreshold  float64 `yaml:"uncertain_threshold"`

	// Stranger clustering.
	MergeThreshold    float64       `yaml:"merge_threshold"`
	SuppressThreshold float64       `yaml:"suppress_threshold"`
	SuppressWindow    time.Duration `yaml:"suppress_window"`
	ConfirmWindow     time.Duration `yaml:"confirm_window"`
	ConfirmThreshold  int           `yaml:"confirm_threshold"`
	BucketIdleTimeout time.Duration `yaml:"bucket_idle_timeout"`

	// Session lifecycle.
	SessionGrace       time.Duration `yaml:"session_grace"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	TempVisitorTimeout time.Duration `yaml:"temp_visitor_timeout"`
}

type NotificationsConfig struct {
	StableDetectionCount int           `yaml:"stable_detection_count"`
	StabilityWindow      time.Duration `yaml:"stability_window"`
	FirstInterval        time.Duration `yaml:"first_interval"`
	RegularInterval      time.Duration `yaml:"regular_interval"`
	MaxNotifyHistory     int           `yaml:"max_notify_history"`
	MaxDetectionHistory  int           `yaml:"max_detection_history"`
}

type WebhooksConfig struct {
	EmployeeURL string        `yaml:"employee_url"`
	StrangerURL string        `yaml:"stranger_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxInFlight int           `yaml:"max_in_flight"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the threshold orderings the pipeline relies on.
func (c *Config) Validate() error {
	if c.Engine.UncertainThreshold >= c.Engine.IdentifiedThreshold {
		return fmt.Errorf("uncertain_threshold (%.2f) must be below identified_threshold (%.2f)",
			c.Engine.UncertainThreshold, c.Engine.IdentifiedThreshold)
	}
	if c.Engine.MergeThreshold < c.Engine.SuppressThreshold {
		return fmt.Errorf("merge_threshold (%.2f) must not be below suppress_threshold (%.2f)",
			c.Engine.MergeThreshold, c.Engine.SuppressThreshold)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Extractor.URL == "" {
		cfg.Extractor.URL = "http://localhost:8001"
	}
	if cfg.Extractor.Timeout == 0 {
		cfg.Extractor.Timeout = 10 * time.Second
	}
	if cfg.Engine.FrameSkip == 0 {
		cfg.Engine.FrameSkip = 2
	}
	if cfg.Engine.IdentifiedThreshold == 0 {
		cfg.Engine.IdentifiedThreshold = 0.40
	}
	if cfg.Engine.UncertainThreshold == 0 {
		cfg.Engine.UncertainThreshold = 0.15
	}
	if cfg.Engine.MergeThreshold == 0 {
		cfg.Engine.MergeThreshold = 0.6
	}
	if cfg.Engine.SuppressThreshold == 0 {
		cfg.Engine.SuppressThreshold = 0.6
	}
	if cfg.Engine.SuppressWindow == 0 {
		cfg.Engine.SuppressWindow = 30 * time.Second
	}
	if cfg.Engine.ConfirmWindow == 0 {
		cfg.Engine.ConfirmWindow = 30 * time.Second
	}
	if cfg.Engine.ConfirmThreshold == 0 {
		cfg.Engine.ConfirmThreshold = 5
	}
	if cfg.Engine.BucketIdleTimeout == 0 {
		cfg.Engine.BucketIdleTimeout = 5 * time.Minute
	}
	if cfg.Engine.SessionGrace == 0 {
		cfg.Engine.SessionGrace = 5 * time.Minute
	}
	if cfg.Engine.SweepInterval == 0 {
		cfg.Engine.SweepInterval = 60 * time.Second
	}
	if cfg.Engine.TempVisitorTimeout == 0 {
		cfg.Engine.TempVisitorTimeout = 5 * time.Minute
	}
	if cfg.Notifications.StableDetectionCount == 0 {
		cfg.Notifications.StableDetectionCount = 3
	}
	if cfg.Notifications.StabilityWindow == 0 {
		cfg.Notifications.StabilityWindow = 10 * time.Second
	}
	if cfg.Notifications.FirstInterval == 0 {
		cfg.Notifications.FirstInterval = 60 * time.Second
	}
	if cfg.Notifications.RegularInterval == 0 {
		cfg.Notifications.RegularInterval = 5 * time.Minute
	}
	if cfg.Notifications.MaxNotifyHistory == 0 {
		cfg.Notifications.MaxNotifyHistory = 5
	}
	if cfg.Notifications.MaxDetectionHistory == 0 {
		cfg.Notifications.MaxDetectionHistory = 10
	}
	if cfg.Webhooks.Timeout == 0 {
		cfg.Webhooks.Timeout = 5 * time.Second
	}
	if cfg.Webhooks.MaxInFlight == 0 {
		cfg.Webhooks.MaxInFlight = 16
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRESENCE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PRESENCE_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PRESENCE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PRESENCE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PRESENCE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PRESENCE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PRESENCE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PRESENCE_EXTRACTOR_URL"); v != "" {
		cfg.Extractor.URL = v
	}
	if v := os.Getenv("PRESENCE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PRESENCE_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PRESENCE_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PRESENCE_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PRESENCE_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PRESENCE_WEBHOOK_EMPLOYEE_URL"); v != "" {
		cfg.Webhooks.EmployeeURL = v
	}
	if v := os.Getenv("PRESENCE_WEBHOOK_STRANGER_URL"); v != "" {
		cfg.Webhooks.StrangerURL = v
	}
}
