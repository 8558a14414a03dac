package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default upstream endpoints. Each can be overridden for testing or when an
// upstream moves.
const (
	DefaultUSGSURL     = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/2.5_day.geojson"
	DefaultEMSCURL     = "https://www.seismicportal.eu/fdsnws/event/1/query?format=json&limit=50&minmag=2.5"
	DefaultAFADURL     = "https://deprem.afad.gov.tr/apiserver/events?limit=50&sort=eventDate,desc"
	DefaultKandilliURL = "https://api.orhanaydogdu.com.tr/deprem/kandilli/live"
	DefaultKRDAEURL    = "http://www.koeri.boun.edu.tr/scripts/lst1.asp"
	DefaultSolarURL    = "https://api.sunrise-sunset.org/json"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	SolarTimeout    time.Duration
	SourceRateRPS   float64

	// Initial user context; mutable at runtime via the settings surface.
	UserLat           float64
	UserLon           float64
	RadiusKm          float64
	MinMagnitude      float64
	TimeWindowHours   int
	AlertThreshold    float64
	CriticalThreshold float64

	DedupCapacity    int
	WarmupThreshold  uint64
	EventLogCapacity int
	SourceBatchCap   int

	USGSURL     string
	EMSCURL     string
	AFADURL     string
	KandilliURL string
	KRDAEURL    string
	SolarURL    string

	// Optional Kafka publishing of admitted events and alert decisions.
	KafkaBrokers    []string
	KafkaEventTopic string
	KafkaAlertTopic string
}

// KafkaEnabled reports whether event/alert publishing is configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	refreshInterval, err := envDuration("REFRESH_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := envDuration("FETCH_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	solarTimeout, err := envDuration("SOLAR_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	userLat, err := envFloat("USER_LAT", 39.93) // Ankara
	if err != nil {
		return nil, err
	}
	userLon, err := envFloat("USER_LON", 32.85)
	if err != nil {
		return nil, err
	}
	radius, err := envFloat("RADIUS_KM", 500)
	if err != nil {
		return nil, err
	}
	minMag, err := envFloat("MIN_MAGNITUDE", 0)
	if err != nil {
		return nil, err
	}
	alertThreshold, err := envFloat("ALERT_THRESHOLD", 4.5)
	if err != nil {
		return nil, err
	}
	criticalThreshold, err := envFloat("CRITICAL_THRESHOLD", 6.0)
	if err != nil {
		return nil, err
	}
	rateRPS, err := envFloat("SOURCE_RATE_RPS", 2)
	if err != nil {
		return nil, err
	}

	timeWindow, err := envInt("TIME_WINDOW_HOURS", 24)
	if err != nil {
		return nil, err
	}
	dedupCap, err := envInt("DEDUP_CAPACITY", 5000)
	if err != nil {
		return nil, err
	}
	warmup, err := envInt("WARMUP_THRESHOLD", 60)
	if err != nil {
		return nil, err
	}
	logCap, err := envInt("EVENT_LOG_CAPACITY", 1000)
	if err != nil {
		return nil, err
	}
	batchCap, err := envInt("SOURCE_BATCH_CAP", 60)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RefreshInterval: refreshInterval,
		FetchTimeout:    fetchTimeout,
		SolarTimeout:    solarTimeout,
		SourceRateRPS:   rateRPS,

		UserLat:           userLat,
		UserLon:           userLon,
		RadiusKm:          radius,
		MinMagnitude:      minMag,
		TimeWindowHours:   timeWindow,
		AlertThreshold:    alertThreshold,
		CriticalThreshold: criticalThreshold,

		DedupCapacity:    dedupCap,
		WarmupThreshold:  uint64(warmup),
		EventLogCapacity: logCap,
		SourceBatchCap:   batchCap,

		USGSURL:     envOrDefault("USGS_URL", DefaultUSGSURL),
		EMSCURL:     envOrDefault("EMSC_URL", DefaultEMSCURL),
		AFADURL:     envOrDefault("AFAD_URL", DefaultAFADURL),
		KandilliURL: envOrDefault("KANDILLI_URL", DefaultKandilliURL),
		KRDAEURL:    envOrDefault("KRDAE_URL", DefaultKRDAEURL),
		SolarURL:    envOrDefault("SOLAR_URL", DefaultSolarURL),

		KafkaBrokers:    splitBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaEventTopic: envOrDefault("KAFKA_EVENT_TOPIC", "quake-events"),
		KafkaAlertTopic: envOrDefault("KAFKA_ALERT_TOPIC", "quake-alerts"),
	}

	if cfg.RefreshInterval <= 0 {
		return nil, errors.New("REFRESH_INTERVAL must be positive")
	}
	if cfg.FetchTimeout <= 0 {
		return nil, errors.New("FETCH_TIMEOUT must be positive")
	}
	if cfg.RadiusKm <= 0 {
		return nil, errors.New("RADIUS_KM must be positive")
	}
	if cfg.AlertThreshold < 0 || cfg.CriticalThreshold < cfg.AlertThreshold {
		return nil, errors.New("CRITICAL_THRESHOLD must be at least ALERT_THRESHOLD")
	}
	if cfg.TimeWindowHours <= 0 {
		return nil, errors.New("TIME_WINDOW_HOURS must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func splitBrokers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
