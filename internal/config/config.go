// Package config loads topichub settings from a TOML or YAML file and
// the environment.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/topichub/internal/logging"
)

// Scheduler kinds.
const (
	// SchedulerQueue delivers as soon as possible, in publish order. Script
	// runtimes run these deliveries on the script goroutine after the chunk
	// returns.
	SchedulerQueue = "queue"

	// SchedulerTimer delays each delivery by Delay on the wall clock.
	SchedulerTimer = "timer"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel       = "TOPICHUB_LOG_LEVEL"
	EnvScheduler      = "TOPICHUB_SCHEDULER"
	EnvSchedulerDelay = "TOPICHUB_SCHEDULER_DELAY"
	EnvWatch          = "TOPICHUB_WATCH"
)

// Config holds all settings.
type Config struct {
	Log       LogConfig       `toml:"log" yaml:"log"`
	Scheduler SchedulerConfig `toml:"scheduler" yaml:"scheduler"`
	Script    ScriptConfig    `toml:"script" yaml:"script"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the root log level (trace, debug, info, warn, error).
	Level string `toml:"level" yaml:"level"`
}

// SchedulerConfig selects how deliveries are deferred.
type SchedulerConfig struct {
	// Kind is SchedulerQueue or SchedulerTimer.
	Kind string `toml:"kind" yaml:"kind"`

	// Delay is a duration string such as "10ms", used by the timer scheduler.
	Delay string `toml:"delay" yaml:"delay"`
}

// ScriptConfig configures script execution.
type ScriptConfig struct {
	// Watch re-runs scripts when they change.
	Watch bool `toml:"watch" yaml:"watch"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log:       LogConfig{Level: "info"},
		Scheduler: SchedulerConfig{Kind: SchedulerQueue, Delay: "0s"},
	}
}

// Load reads path over the defaults. The format is chosen by extension:
// .toml, or .yaml/.yml. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Annotatef(err, "reading config file %s", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.Annotatef(err, "parsing %s", path)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return nil, errors.Annotatef(err, "parsing %s", path)
		}
	default:
		return nil, errors.NotValidf("config format %q", ext)
	}

	return cfg, nil
}

// ApplyEnv overlays settings from TOPICHUB_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvScheduler); ok {
		c.Scheduler.Kind = v
	}
	if v, ok := lookup(EnvSchedulerDelay); ok {
		c.Scheduler.Delay = v
	}
	if v, ok := lookup(EnvWatch); ok {
		watch, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NotValidf("%s value %q", EnvWatch, v)
		}
		c.Script.Watch = watch
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.Trace(err)
	}

	switch c.Scheduler.Kind {
	case SchedulerQueue, SchedulerTimer:
	default:
		return errors.NotValidf("scheduler kind %q", c.Scheduler.Kind)
	}

	if _, err := c.Scheduler.DelayDuration(); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// DelayDuration parses Delay. An empty delay is zero.
func (s SchedulerConfig) DelayDuration() (time.Duration, error) {
	if s.Delay == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Delay)
	if err != nil || d < 0 {
		return 0, errors.NotValidf("scheduler delay %q", s.Delay)
	}
	return d, nil
}
