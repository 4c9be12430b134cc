package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExampleConfigPath is the path to the example configuration shipped with
// the repository. Every key is optional.
const ExampleConfigPath = "config/cellwatch.example.json"

// Upper bounds accepted by Validate.
const (
	MaxWindowSize = 16384
	MaxRenderFPS  = 1000
)

// Config is the root configuration for the simulation and its hand-offs.
// Fields are pointers so a partial file only overrides what it names; the
// Get* methods supply the defaults for anything left unset.
type Config struct {
	// Viewport / grid geometry
	CellSize     *int `json:"cell_size,omitempty"`
	WindowWidth  *int `json:"window_width,omitempty"`
	WindowHeight *int `json:"window_height,omitempty"`

	// Cadences
	SimInterval   *string `json:"sim_interval,omitempty"`   // duration string like "100ms"
	BatchInterval *string `json:"batch_interval,omitempty"` // duration string like "1s"
	RenderFPS     *int    `json:"render_fps,omitempty"`
	StallTimeout  *string `json:"stall_timeout,omitempty"` // duration string like "30s"
	StatsInterval *string `json:"stats_interval,omitempty"`

	// Detection handling
	PersonClassID         *int     `json:"person_class_id,omitempty"`
	MinConfidence         *float64 `json:"min_confidence,omitempty"`
	DetectionQueueSize    *int     `json:"detection_queue_size,omitempty"`
	SignalQueueSize       *int     `json:"signal_queue_size,omitempty"`
	MaxBufferedDetections *int     `json:"max_buffered_detections,omitempty"`

	// Seed for the grid random source; 0 seeds from the wall clock.
	Seed *int64 `json:"seed,omitempty"`
}

// Empty returns a Config with all fields set to nil.
func Empty() *Config {
	return &Config{}
}

// Load loads a Config from a JSON file. The file must have a .json extension
// and be under 1MB. Fields omitted from the file keep their defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.CellSize != nil && *c.CellSize <= 0 {
		return fmt.Errorf("cell_size must be positive, got %d", *c.CellSize)
	}
	if c.WindowWidth != nil && (*c.WindowWidth < 0 || *c.WindowWidth > MaxWindowSize) {
		return fmt.Errorf("window_width must be between 0 and %d, got %d", MaxWindowSize, *c.WindowWidth)
	}
	if c.WindowHeight != nil && (*c.WindowHeight < 0 || *c.WindowHeight > MaxWindowSize) {
		return fmt.Errorf("window_height must be between 0 and %d, got %d", MaxWindowSize, *c.WindowHeight)
	}
	if c.RenderFPS != nil && (*c.RenderFPS <= 0 || *c.RenderFPS > MaxRenderFPS) {
		return fmt.Errorf("render_fps must be between 1 and %d, got %d", MaxRenderFPS, *c.RenderFPS)
	}

	durations := []struct {
		name  string
		value *string
	}{
		{"sim_interval", c.SimInterval},
		{"batch_interval", c.BatchInterval},
		{"stall_timeout", c.StallTimeout},
		{"stats_interval", c.StatsInterval},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		v, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, *d.value)
		}
	}

	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
		}
	}
	if c.DetectionQueueSize != nil && *c.DetectionQueueSize <= 0 {
		return fmt.Errorf("detection_queue_size must be positive, got %d", *c.DetectionQueueSize)
	}
	if c.SignalQueueSize != nil && *c.SignalQueueSize <= 0 {
		return fmt.Errorf("signal_queue_size must be positive, got %d", *c.SignalQueueSize)
	}
	if c.MaxBufferedDetections != nil && *c.MaxBufferedDetections < 0 {
		return fmt.Errorf("max_buffered_detections must be non-negative, got %d", *c.MaxBufferedDetections)
	}

	return nil
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil || d <= 0 {
		return def // default on parse error
	}
	return d
}

// GetCellSize returns the cell size in pixels.
func (c *Config) GetCellSize() int {
	if c.CellSize == nil {
		return 8
	}
	return *c.CellSize
}

// GetWindowWidth returns the initial viewport width in pixels.
func (c *Config) GetWindowWidth() int {
	if c.WindowWidth == nil {
		return 800
	}
	return *c.WindowWidth
}

// GetWindowHeight returns the initial viewport height in pixels.
func (c *Config) GetWindowHeight() int {
	if c.WindowHeight == nil {
		return 600
	}
	return *c.WindowHeight
}

// GetSimInterval returns the period between simulation ticks.
func (c *Config) GetSimInterval() time.Duration {
	return parseDurationOr(c.SimInterval, 100*time.Millisecond)
}

// GetBatchInterval returns the period between batch ticks.
func (c *Config) GetBatchInterval() time.Duration {
	return parseDurationOr(c.BatchInterval, time.Second)
}

// GetRenderFPS returns the target frame rate of the render/UI loop.
func (c *Config) GetRenderFPS() int {
	if c.RenderFPS == nil {
		return 60
	}
	return *c.RenderFPS
}

// GetRenderInterval converts GetRenderFPS into a frame period.
func (c *Config) GetRenderInterval() time.Duration {
	return time.Second / time.Duration(c.GetRenderFPS())
}

// GetStallTimeout returns how long a full grid may stall before transient
// cells are cleared.
func (c *Config) GetStallTimeout() time.Duration {
	return parseDurationOr(c.StallTimeout, 30*time.Second)
}

// GetStatsInterval returns how often the loop logs a stats line.
func (c *Config) GetStatsInterval() time.Duration {
	return parseDurationOr(c.StatsInterval, 5*time.Second)
}

// GetPersonClassID returns the detector class id treated as "person".
func (c *Config) GetPersonClassID() int {
	if c.PersonClassID == nil {
		return 0
	}
	return *c.PersonClassID
}

// GetMinConfidence returns the ingest confidence threshold.
func (c *Config) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.5
	}
	return *c.MinConfidence
}

// GetDetectionQueueSize returns the capacity of the detection hand-off.
func (c *Config) GetDetectionQueueSize() int {
	if c.DetectionQueueSize == nil {
		return 256
	}
	return *c.DetectionQueueSize
}

// GetSignalQueueSize returns the capacity of the signal hand-off.
func (c *Config) GetSignalQueueSize() int {
	if c.SignalQueueSize == nil {
		return 64
	}
	return *c.SignalQueueSize
}

// GetMaxBufferedDetections returns the detection buffer cap; 0 means unbounded.
func (c *Config) GetMaxBufferedDetections() int {
	if c.MaxBufferedDetections == nil {
		return 0
	}
	return *c.MaxBufferedDetections
}

// GetSeed returns the configured random seed, or 0 when unset.
func (c *Config) GetSeed() int64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}
