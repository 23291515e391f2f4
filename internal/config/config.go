package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/airshedlabs/enviro-risk-service/internal/domain"
	"github.com/airshedlabs/enviro-risk-service/internal/history"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaAlertTopic  string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	MySQLDSN string

	// Analytics tunables.
	SmoothingWindow        int
	HistoryCapacity        int
	ValidationTimeWindow   time.Duration
	ValidationRadiusKm     float64
	AutoValidateConfidence float64

	// InfluxDB time-series sink configuration. Disabled unless a URL is set.
	InfluxEnabled bool
	InfluxURL     string
	InfluxToken   string
	InfluxOrg     string
	InfluxBucket  string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	flushInterval, err := parseDuration("BATCH_FLUSH_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	validationWindow, err := parseDuration("VALIDATION_TIME_WINDOW", "45m")
	if err != nil {
		return nil, err
	}
	batchSize, err := parsePositiveInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	smoothingWindow, err := parsePositiveInt("SMOOTHING_WINDOW", domain.DefaultSmoothingWindow)
	if err != nil {
		return nil, err
	}
	historyCapacity, err := parsePositiveInt("HISTORY_CAPACITY", history.DefaultCapacity)
	if err != nil {
		return nil, err
	}
	mapboxCacheSize, err := parsePositiveInt("MAPBOX_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	validationRadius, err := parseFloat("VALIDATION_RADIUS_KM", 10)
	if err != nil {
		return nil, err
	}
	autoValidate, err := parseFloat("AUTO_VALIDATE_CONFIDENCE", 0.6)
	if err != nil {
		return nil, err
	}

	influxURL := os.Getenv("INFLUX_URL")
	influxEnabled := influxURL != ""
	if v := os.Getenv("INFLUX_ENABLED"); v != "" {
		influxEnabled = v == "true"
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   envOrDefault("KAFKA_SOURCE_TOPIC", "raw-sensor-samples"),
		KafkaAlertTopic:    envOrDefault("KAFKA_ALERT_TOPIC", "environmental-alerts"),
		KafkaGroupID:       envOrDefault("KAFKA_GROUP_ID", "enviro-risk-monitor"),
		HTTPAddr:           envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		MySQLDSN: envOrDefault("MYSQL_DSN", "enviro:enviro@tcp(localhost:3306)/enviro_risk?parseTime=true"),

		SmoothingWindow:        smoothingWindow,
		HistoryCapacity:        historyCapacity,
		ValidationTimeWindow:   validationWindow,
		ValidationRadiusKm:     validationRadius,
		AutoValidateConfidence: autoValidate,

		InfluxEnabled: influxEnabled,
		InfluxURL:     influxURL,
		InfluxToken:   os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:     envOrDefault("INFLUX_ORG", "airshed"),
		InfluxBucket:  envOrDefault("INFLUX_BUCKET", "enviro-risk"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: mapboxCacheSize,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required")
	}
	if cfg.MySQLDSN == "" {
		return nil, errors.New("MYSQL_DSN is required")
	}
	if cfg.InfluxEnabled && cfg.InfluxURL == "" {
		return nil, errors.New("INFLUX_ENABLED is true but INFLUX_URL is not set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.AutoValidateConfidence < 0 || cfg.AutoValidateConfidence > 1 {
		return nil, errors.New("AUTO_VALIDATE_CONFIDENCE must be in [0,1]")
	}

	return cfg, nil
}

// Normalizer returns the normalizer tunables derived from this config.
func (c *Config) Normalizer() domain.NormalizerConfig {
	return domain.NormalizerConfig{SmoothingWindow: c.SmoothingWindow}
}

// Validation returns the report-validation tunables derived from this config.
func (c *Config) Validation() domain.ValidationConfig {
	v := domain.DefaultValidationConfig()
	v.TimeWindow = c.ValidationTimeWindow
	v.SpatialRadiusKm = c.ValidationRadiusKm
	return v
}

// Credibility returns the status-transition tunables derived from this config.
func (c *Config) Credibility() domain.CredibilityConfig {
	cr := domain.DefaultCredibilityConfig()
	cr.AutoValidateConfidence = c.AutoValidateConfidence
	return cr
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}
