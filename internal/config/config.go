// Package config holds the immutable settings of a drag session. Values come
// from built-in defaults, an optional YAML file, TRENDDRAW_* environment
// variables and finally command line flags, in that order.
package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRENDDRAW_"

// Duration is a time.Duration that reads and writes as "30m", "100ms".
type Duration struct {
	time.Duration
}

// D is shorthand for building a Duration.
func D(d time.Duration) Duration { return Duration{d} }

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "line %d", node.Line)
	}
	d.Duration = parsed
	return nil
}

type Monitor struct {
	// Interval between pointer samples.
	Interval Duration `yaml:"interval"`
	// Threshold is the per-axis movement, in pixels, that must be exceeded
	// between two samples to count as interference.
	Threshold int `yaml:"threshold"`
	// RestartDelay is the cooldown between interference and the resumed drag.
	RestartDelay Duration `yaml:"restart_delay"`
}

type Timing struct {
	StartupDelay  Duration `yaml:"startup_delay"`
	ChordDelay    Duration `yaml:"chord_delay"`
	SettleDelay   Duration `yaml:"settle_delay"`
	FocusClickGap Duration `yaml:"focus_click_gap"`
}

type Chords struct {
	Enabled   bool   `yaml:"enabled"`
	Schedule  string `yaml:"schedule"`
	Terminate string `yaml:"terminate"`
}

type Remote struct {
	// Addr enables the websocket control server when non-empty.
	Addr string `yaml:"addr"`
}

type Config struct {
	StartX   int      `yaml:"start_x"`
	EndX     int      `yaml:"end_x"`
	Y        int      `yaml:"y"`
	Step     float64  `yaml:"step"`
	Duration Duration `yaml:"duration"`
	// MinX is the leftmost x a resumed drag may travel to.
	MinX    int    `yaml:"min_x"`
	Button  string `yaml:"button"`
	Display int    `yaml:"display"`

	Monitor Monitor `yaml:"monitor"`
	Timing  Timing  `yaml:"timing"`
	Chords  Chords  `yaml:"chords"`
	Remote  Remote  `yaml:"remote"`
}

// Default returns the settings the tool ships with.
func Default() Config {
	return Config{
		StartX:   1500,
		EndX:     500,
		Y:        500,
		Step:     0.7,
		Duration: D(30 * time.Minute),
		MinX:     10,
		Button:   "left",
		Monitor: Monitor{
			Interval:     D(100 * time.Millisecond),
			Threshold:    20,
			RestartDelay: D(3 * time.Second),
		},
		Timing: Timing{
			StartupDelay:  D(3 * time.Second),
			ChordDelay:    D(5 * time.Second),
			SettleDelay:   D(500 * time.Millisecond),
			FocusClickGap: D(100 * time.Millisecond),
		},
		Chords: Chords{
			Enabled:   true,
			Schedule:  "cmd+p",
			Terminate: "esc",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TRENDDRAW_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"START_X":   &c.StartX,
		"END_X":     &c.EndX,
		"Y":         &c.Y,
		"MIN_X":     &c.MinX,
		"DISPLAY":   &c.Display,
		"THRESHOLD": &c.Monitor.Threshold,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, key)
		}
		*dst = n
	}
	if v, ok := lookup(EnvPrefix + "STEP"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return errors.Wrapf(err, "%sSTEP", EnvPrefix)
		}
		c.Step = f
	}
	if v, ok := lookup(EnvPrefix + "DURATION"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%sDURATION", EnvPrefix)
		}
		c.Duration = D(d)
	}
	if v, ok := lookup(EnvPrefix + "ADDR"); ok {
		c.Remote.Addr = v
	}
	if v, ok := lookup(EnvPrefix + "BUTTON"); ok {
		c.Button = v
	}
	return nil
}

// Validate reports the first setting that cannot drive a drag.
func (c Config) Validate() error {
	switch {
	case !(c.Step > 0) || math.IsInf(c.Step, 0):
		return errors.Wrapf(ErrInvalid, "step must be positive, got %v", c.Step)
	case c.Duration.Duration < 0:
		return errors.Wrapf(ErrInvalid, "duration must not be negative, got %s", c.Duration)
	case c.Monitor.Interval.Duration <= 0:
		return errors.Wrapf(ErrInvalid, "monitor interval must be positive, got %s", c.Monitor.Interval)
	case c.Monitor.Threshold < 0:
		return errors.Wrapf(ErrInvalid, "monitor threshold must not be negative, got %d", c.Monitor.Threshold)
	case c.Monitor.RestartDelay.Duration < 0:
		return errors.Wrapf(ErrInvalid, "restart delay must not be negative, got %s", c.Monitor.RestartDelay)
	case c.Chords.Enabled && (strings.TrimSpace(c.Chords.Schedule) == "" || strings.TrimSpace(c.Chords.Terminate) == ""):
		return errors.Wrap(ErrInvalid, "chords must not be empty when enabled")
	}
	return nil
}

// Span is the signed horizontal distance of the configured drag.
func (c Config) Span() int { return c.EndX - c.StartX }

// StepCount is the number of pointer moves needed to go from one x to another.
func (c Config) StepCount(from, to int) int {
	dist := math.Abs(float64(to - from))
	if dist == 0 {
		return 0
	}
	// absorb float error so exact multiples of step do not gain a move
	return int(math.Ceil(dist/c.Step - 1e-9))
}

// StepDelay spreads the configured duration evenly over n steps.
func (c Config) StepDelay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return c.Duration.Duration / time.Duration(n)
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
