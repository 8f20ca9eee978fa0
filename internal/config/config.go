package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all converter settings, populated from environment variables.
// Path settings may be overridden by command-line flags before Validate.
type Config struct {
	InputPath    string // ERA5-Land NetCDF file
	CellMapPath  string // GIS alignment output (ESRI ASCII grid)
	OutputDir    string
	OutputPrefix string

	Variables []string  // ERA5 short names, in output order
	StartTime time.Time // zero = start of file
	EndTime   time.Time // zero = end of file
	Precision int       // decimal places in series files

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	startTime, err := parseTime("START_TIME")
	if err != nil {
		return nil, err
	}
	endTime, err := parseTime("END_TIME")
	if err != nil {
		return nil, err
	}

	precision, err := parsePositiveInt("PRECISION", 3)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		InputPath:    os.Getenv("ERA5_INPUT"),
		CellMapPath:  os.Getenv("CELL_MAP"),
		OutputDir:    envOrDefault("OUTPUT_DIR", "."),
		OutputPrefix: envOrDefault("OUTPUT_PREFIX", "era5"),
		Variables:    splitList(envOrDefault("VARIABLES", "e")),
		StartTime:    startTime,
		EndTime:      endTime,
		Precision:    precision,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}
	return cfg, nil
}

// Validate checks the settings a conversion run cannot start without. It runs
// after flag overrides have been applied.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("input NetCDF path is required (ERA5_INPUT or -input)")
	}
	if c.CellMapPath == "" {
		return errors.New("cell map path is required (CELL_MAP or -cellmap)")
	}
	if len(c.Variables) == 0 {
		return errors.New("at least one variable is required")
	}
	if !c.StartTime.IsZero() && !c.EndTime.IsZero() && !c.StartTime.Before(c.EndTime) {
		return fmt.Errorf("start time %s is not before end time %s",
			c.StartTime.Format(time.RFC3339), c.EndTime.Format(time.RFC3339))
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parseTime(key string) (time.Time, error) {
	s := os.Getenv(key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: want RFC3339", key, s)
	}
	return t.UTC(), nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return n, nil
}
