// Package config handles configuration loading for tirewatch.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tirewatch/internal/schema"
)

// ErrInvalid is wrapped by every validation failure so callers can
// distinguish configuration errors from I/O errors.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Simulation SimulationConfig `yaml:"simulation"`
	Sensors    []SensorConfig   `yaml:"sensors"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Detect     DetectConfig     `yaml:"detect"`
	Alerting   AlertingConfig   `yaml:"alerting"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPPort     int           `yaml:"http_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// SimulationConfig holds tick-driver and sensor-model settings.
type SimulationConfig struct {
	Seed         int64             `yaml:"seed"`
	TickInterval time.Duration     `yaml:"tick_interval"` // wall-clock pace of the daemon tick driver
	TickSeconds  float64           `yaml:"tick_seconds"`  // simulated seconds per tick
	Temperature  TemperatureConfig `yaml:"temperature"`
}

// TemperatureConfig models the shared tire temperature process.
type TemperatureConfig struct {
	AmbientC   float64 `yaml:"ambient_c"`
	HeatingC   float64 `yaml:"heating_c"`
	TauSeconds float64 `yaml:"tau_seconds"`
	JitterC    float64 `yaml:"jitter_c"`
	MinC       float64 `yaml:"min_c"`
	MaxC       float64 `yaml:"max_c"`
}

// SensorConfig describes one simulated impedance sensor.
type SensorConfig struct {
	ID          string  `yaml:"id"`
	Location    string  `yaml:"location"`
	Baseline    float64 `yaml:"baseline_ohms"`
	NoiseAmp    float64 `yaml:"noise_amp"`    // fraction of baseline
	TempCoeff   float64 `yaml:"temp_coeff"`   // ohms per degree C
	DriftAmp    float64 `yaml:"drift_amp"`    // ohms, slow sinusoidal drift
	DriftPeriod int     `yaml:"drift_period"` // ticks per drift cycle
}

// Spec converts the sensor configuration to its schema form.
func (s SensorConfig) Spec() schema.SensorSpec {
	return schema.SensorSpec{
		ID:        s.ID,
		Location:  schema.Location(s.Location),
		Baseline:  s.Baseline,
		NoiseAmp:  s.NoiseAmp,
		TempCoeff: s.TempCoeff,
	}
}

// PreprocessConfig holds smoothing and compensation settings.
type PreprocessConfig struct {
	SmoothingWindow int     `yaml:"smoothing_window"`
	ClampFloor      float64 `yaml:"clamp_floor"`
}

// DetectConfig holds detection-rule settings.
type DetectConfig struct {
	WindowSize          int                `yaml:"window_size"`
	MidThreshold        float64            `yaml:"mid_threshold"`
	HighThreshold       float64            `yaml:"high_threshold"`
	LocationHigh        map[string]float64 `yaml:"location_high"` // per-location high-threshold overrides
	RateWindow          int                `yaml:"rate_window"`
	RateDelta           float64            `yaml:"rate_delta"`
	DivergenceTolerance float64            `yaml:"divergence_tolerance"`
	DivergenceTicks     int                `yaml:"divergence_ticks"`
	TrendSlope          float64            `yaml:"trend_slope"`
	SpikeZScore         float64            `yaml:"spike_z_score"`
	TempHighC           float64            `yaml:"temp_high_c"`
	TempLowC            float64            `yaml:"temp_low_c"`
}

// HighThresholdFor returns the high ratio threshold for a location,
// honoring per-location overrides.
func (d DetectConfig) HighThresholdFor(loc schema.Location) float64 {
	if v, ok := d.LocationHigh[string(loc)]; ok {
		return v
	}
	return d.HighThreshold
}

// AlertingConfig holds alert deduplication and history settings.
type AlertingConfig struct {
	CooldownTicks int `yaml:"cooldown_ticks"`
	HistoryLimit  int `yaml:"history_limit"` // 0 = unbounded
}

// KafkaConfig holds the optional alert-stream publisher settings.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration: a four-sensor array
// with one sensor per tire zone.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Simulation: SimulationConfig{
			Seed:         42,
			TickInterval: time.Second,
			TickSeconds:  1.0,
			Temperature: TemperatureConfig{
				AmbientC:   25.0,
				HeatingC:   30.0,
				TauSeconds: 120.0,
				JitterC:    0.5,
				MinC:       10.0,
				MaxC:       80.0,
			},
		},
		Sensors: []SensorConfig{
			{ID: "tread-left", Location: "tread-left", Baseline: 100.0, NoiseAmp: 0.03, TempCoeff: 0.1, DriftAmp: 0.5, DriftPeriod: 600},
			{ID: "tread-right", Location: "tread-right", Baseline: 100.0, NoiseAmp: 0.03, TempCoeff: 0.1, DriftAmp: 0.5, DriftPeriod: 600},
			{ID: "sidewall", Location: "sidewall", Baseline: 120.0, NoiseAmp: 0.05, TempCoeff: 0.1, DriftAmp: 0.5, DriftPeriod: 600},
			{ID: "bead", Location: "bead", Baseline: 150.0, NoiseAmp: 0.02, TempCoeff: 0.1, DriftAmp: 0.5, DriftPeriod: 600},
		},
		Preprocess: PreprocessConfig{
			SmoothingWindow: 5,
			ClampFloor:      0.5,
		},
		Detect: DetectConfig{
			WindowSize:    30,
			MidThreshold:  1.1,
			HighThreshold: 1.3,
			LocationHigh: map[string]float64{
				"sidewall": 1.4,
				"bead":     1.2,
			},
			RateWindow:          3,
			RateDelta:           0.03,
			DivergenceTolerance: 0.15,
			DivergenceTicks:     3,
			TrendSlope:          0.002,
			SpikeZScore:         4.0,
			TempHighC:           65.0,
			TempLowC:            5.0,
		},
		Alerting: AlertingConfig{
			CooldownTicks: 5,
			HistoryLimit:  10000,
		},
		Kafka: KafkaConfig{
			Enabled:      false, // Enable when a broker is available
			Brokers:      []string{"localhost:9092"},
			Topic:        "tirewatch.alerts",
			BatchTimeout: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a file or returns defaults.
// The result is always validated; a bad value fails the load instead of
// being silently replaced.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := os.Getenv("TIREWATCH_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// File doesn't exist, use defaults
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("TIREWATCH_HTTP_PORT"); port != "" {
		if v, err := strconv.Atoi(port); err == nil {
			c.Server.HTTPPort = v
		}
	}

	if level := os.Getenv("TIREWATCH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if seed := os.Getenv("TIREWATCH_SEED"); seed != "" {
		if v, err := strconv.ParseInt(seed, 10, 64); err == nil {
			c.Simulation.Seed = v
		}
	}

	if iv := os.Getenv("TIREWATCH_TICK_INTERVAL"); iv != "" {
		if v, err := time.ParseDuration(iv); err == nil {
			c.Simulation.TickInterval = v
		}
	}

	// Alert stream settings
	if enabled := os.Getenv("TIREWATCH_KAFKA_ENABLED"); enabled == "true" {
		c.Kafka.Enabled = true
	}

	if brokers := os.Getenv("TIREWATCH_KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitAndTrim(brokers, ",")
	}

	if topic := os.Getenv("TIREWATCH_KAFKA_TOPIC"); topic != "" {
		c.Kafka.Topic = topic
	}
}

// splitAndTrim splits a string by separator and trims whitespace from each part.
func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// Validate validates the configuration. A non-nil result wraps ErrInvalid.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("%w: http_port %d out of range", ErrInvalid, c.Server.HTTPPort)
	}

	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("%w: tick_interval must be positive", ErrInvalid)
	}
	if c.Simulation.TickSeconds <= 0 {
		return fmt.Errorf("%w: tick_seconds must be positive", ErrInvalid)
	}
	if t := c.Simulation.Temperature; t.MinC >= t.MaxC {
		return fmt.Errorf("%w: temperature min_c %.1f must be below max_c %.1f", ErrInvalid, t.MinC, t.MaxC)
	}

	if len(c.Sensors) == 0 {
		return fmt.Errorf("%w: at least one sensor is required", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Sensors))
	for i, s := range c.Sensors {
		if s.ID == "" {
			return fmt.Errorf("%w: sensor %d has no id", ErrInvalid, i)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate sensor id %q", ErrInvalid, s.ID)
		}
		seen[s.ID] = true
		if !schema.Location(s.Location).IsValid() {
			return fmt.Errorf("%w: sensor %q has unknown location %q", ErrInvalid, s.ID, s.Location)
		}
		if s.Baseline <= 0 {
			return fmt.Errorf("%w: sensor %q baseline must be positive", ErrInvalid, s.ID)
		}
		if s.NoiseAmp < 0 || s.NoiseAmp >= 1 {
			return fmt.Errorf("%w: sensor %q noise_amp %.3f out of [0, 1)", ErrInvalid, s.ID, s.NoiseAmp)
		}
		if s.DriftPeriod < 0 {
			return fmt.Errorf("%w: sensor %q drift_period must not be negative", ErrInvalid, s.ID)
		}
	}

	if c.Preprocess.SmoothingWindow <= 0 {
		return fmt.Errorf("%w: smoothing_window must be positive", ErrInvalid)
	}
	if c.Preprocess.ClampFloor <= 0 || c.Preprocess.ClampFloor >= 1 {
		return fmt.Errorf("%w: clamp_floor %.2f out of (0, 1)", ErrInvalid, c.Preprocess.ClampFloor)
	}

	if c.Detect.WindowSize <= 0 {
		return fmt.Errorf("%w: window_size must be positive", ErrInvalid)
	}
	if c.Detect.MidThreshold >= c.Detect.HighThreshold {
		return fmt.Errorf("%w: mid_threshold %.2f must be below high_threshold %.2f",
			ErrInvalid, c.Detect.MidThreshold, c.Detect.HighThreshold)
	}
	for loc, v := range c.Detect.LocationHigh {
		if !schema.Location(loc).IsValid() {
			return fmt.Errorf("%w: location_high override for unknown location %q", ErrInvalid, loc)
		}
		if v <= c.Detect.MidThreshold {
			return fmt.Errorf("%w: location_high for %q must exceed mid_threshold", ErrInvalid, loc)
		}
	}
	if c.Detect.RateWindow <= 0 || c.Detect.RateDelta <= 0 {
		return fmt.Errorf("%w: rate_window and rate_delta must be positive", ErrInvalid)
	}
	if c.Detect.DivergenceTolerance <= 0 || c.Detect.DivergenceTicks <= 0 {
		return fmt.Errorf("%w: divergence settings must be positive", ErrInvalid)
	}
	if c.Detect.TrendSlope <= 0 {
		return fmt.Errorf("%w: trend_slope must be positive", ErrInvalid)
	}
	if c.Detect.SpikeZScore <= 0 {
		return fmt.Errorf("%w: spike_z_score must be positive", ErrInvalid)
	}
	if c.Detect.TempLowC >= c.Detect.TempHighC {
		return fmt.Errorf("%w: temp_low_c must be below temp_high_c", ErrInvalid)
	}

	if c.Alerting.CooldownTicks <= 0 {
		return fmt.Errorf("%w: cooldown_ticks must be positive", ErrInvalid)
	}
	if c.Alerting.HistoryLimit < 0 {
		return fmt.Errorf("%w: history_limit must not be negative", ErrInvalid)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: kafka enabled without brokers", ErrInvalid)
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("%w: kafka enabled without topic", ErrInvalid)
		}
	}

	return nil
}
