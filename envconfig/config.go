package envconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/V-Sekai-fire/forge/codec"
	"github.com/V-Sekai-fire/forge/inference"
)

// Config holds the settings of the responder process. The zero environment
// yields the built-in defaults.
type Config struct {
	// Set via MQTT_BROKER in the environment
	Broker string
	// Set via ZIMAGE_CLIENT_PREFIX in the environment
	ClientIDPrefix string
	// Set via ZIMAGE_CONNECT_TIMEOUT in the environment
	ConnectTimeout time.Duration
	// Set via ZIMAGE_ENCODING in the environment
	Encoding string
	// Set via ZIMAGE_OUTPUT_DIR in the environment
	OutputDir string
	// Set via ZIMAGE_SIMULATED_DELAY in the environment
	SimulatedDelay time.Duration
	// Set via ZIMAGE_STATUS_ADDR in the environment
	StatusAddr string
	// Set via ZIMAGE_DEBUG in the environment
	Debug int
}

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func Default() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		ClientIDPrefix: "zimage-responder-",
		ConnectTimeout: 10 * time.Second,
		Encoding:       codec.Default,
		OutputDir:      inference.DefaultOutputDir,
		SimulatedDelay: inference.DefaultDelay,
	}
}

func (c Config) AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"MQTT_BROKER":            {"MQTT_BROKER", c.Broker, "Bus endpoint (default \"tcp://localhost:1883\")"},
		"ZIMAGE_CLIENT_PREFIX":   {"ZIMAGE_CLIENT_PREFIX", c.ClientIDPrefix, "Bus client id prefix, a uuid is appended"},
		"ZIMAGE_CONNECT_TIMEOUT": {"ZIMAGE_CONNECT_TIMEOUT", c.ConnectTimeout, "How long to wait for the bus at startup (default 10s)"},
		"ZIMAGE_ENCODING":        {"ZIMAGE_ENCODING", c.Encoding, "Reply encoding: flatbuffers or json (default flatbuffers)"},
		"ZIMAGE_OUTPUT_DIR":      {"ZIMAGE_OUTPUT_DIR", c.OutputDir, "Directory reported in output paths (default /tmp)"},
		"ZIMAGE_SIMULATED_DELAY": {"ZIMAGE_SIMULATED_DELAY", c.SimulatedDelay, "Simulated generation time (default 100ms)"},
		"ZIMAGE_STATUS_ADDR":     {"ZIMAGE_STATUS_ADDR", c.StatusAddr, "Listen address of the status endpoint, disabled when empty"},
		"ZIMAGE_DEBUG":           {"ZIMAGE_DEBUG", c.Debug, "Show additional debug information (1 debug, 2 trace)"},
	}
}

func (c Config) Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range c.AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

// Load reads the environment. Invalid values are logged and the default is kept.
func Load() Config {
	cfg := Default()

	if v := clean("MQTT_BROKER"); v != "" {
		cfg.Broker = v
	}
	if v := clean("ZIMAGE_CLIENT_PREFIX"); v != "" {
		cfg.ClientIDPrefix = v
	}
	cfg.ConnectTimeout = duration("ZIMAGE_CONNECT_TIMEOUT", cfg.ConnectTimeout)

	if v := clean("ZIMAGE_ENCODING"); v != "" {
		if _, err := codec.ForName(strings.ToLower(v)); err != nil {
			slog.Error("invalid setting, ignoring", "ZIMAGE_ENCODING", v, "error", err)
		} else {
			cfg.Encoding = strings.ToLower(v)
		}
	}

	if v := clean("ZIMAGE_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	cfg.SimulatedDelay = duration("ZIMAGE_SIMULATED_DELAY", cfg.SimulatedDelay)
	cfg.StatusAddr = clean("ZIMAGE_STATUS_ADDR")

	if debug := clean("ZIMAGE_DEBUG"); debug != "" {
		if n, err := strconv.Atoi(debug); err == nil {
			cfg.Debug = n
		} else if b, err := strconv.ParseBool(debug); err == nil {
			if b {
				cfg.Debug = 1
			}
		} else {
			cfg.Debug = 1
		}
	}

	return cfg
}

func duration(key string, def time.Duration) time.Duration {
	v := clean(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare numbers are milliseconds.
		ms, nerr := strconv.ParseInt(v, 10, 64)
		if nerr != nil {
			slog.Error("invalid setting, ignoring", key, v, "error", err)
			return def
		}
		d = time.Duration(ms) * time.Millisecond
	}
	if d < 0 {
		slog.Error("invalid setting must not be negative, ignoring", key, v)
		return def
	}
	return d
}

// LoadDotEnv loads environment variables from path. A missing file is not an
// error; variables already set in the environment are not overridden.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not load %s: %w", path, err)
	}
	return nil
}
