// Package config loads the rover's YAML configuration.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"math"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/obstacle"
)

//go:embed config.schema.json
var schemaText string

var schema = jsonschema.MustCompileString("config.schema.json", schemaText)

// ErrInvalid is returned for configurations that parse but cannot be used.
var ErrInvalid = errors.New("config: invalid configuration")

type Config struct {
	GridSize   int     `yaml:"grid_size"`
	Density    float64 `yaml:"density"`
	Seed       uint64  `yaml:"seed"`
	Topology   string  `yaml:"topology"`
	Strategy   string  `yaml:"strategy"`
	Start      Start   `yaml:"start"`
	DBPath     string  `yaml:"db_path,omitempty"`
	JournalDir string  `yaml:"journal_dir,omitempty"`
	// Animation is how long the drive view treats a move as in flight.
	Animation string `yaml:"animation"`
	Serve     Serve  `yaml:"serve"`
}

type Start struct {
	Face    string `yaml:"face"`
	X       int    `yaml:"x"`
	Y       int    `yaml:"y"`
	Heading string `yaml:"heading"`
}

type Serve struct {
	Addr           string `yaml:"addr"`
	InFlight       string `yaml:"in_flight"`
	MaxConnections int    `yaml:"max_connections"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		GridSize:  obstacle.DefaultGridSize,
		Density:   obstacle.DefaultDensity,
		Topology:  cube.NetReference.String(),
		Strategy:  obstacle.StrategyAuto.String(),
		Start:     Start{Face: cube.Front.String(), Heading: cube.N.String()},
		Animation: "120ms",
		Serve: Serve{
			Addr:           "127.0.0.1:8080",
			InFlight:       "120ms",
			MaxConnections: 64,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// Parse checks data against the schema, decodes it over the defaults and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}
	if doc == nil {
		doc = map[string]any{}
	}

	// The schema validator wants JSON-shaped values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "convert yaml")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "convert yaml")
	}
	if err := schema.Validate(v); err != nil {
		return nil, errors.Wrapf(ErrInvalid, "%v", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks what the schema cannot: the start cell against the grid
// size and the parsed forms of every name.
func (c *Config) Validate() error {
	if c.GridSize <= 0 {
		return errors.Wrapf(ErrInvalid, "grid_size %d", c.GridSize)
	}
	if math.IsNaN(c.Density) || c.Density < 0 || c.Density >= 1 {
		return errors.Wrapf(ErrInvalid, "density %g not in [0, 1)", c.Density)
	}
	if _, err := cube.ParseNet(c.Topology); err != nil {
		return errors.Wrapf(ErrInvalid, "%v", err)
	}
	if _, err := obstacle.ParseStrategy(c.Strategy); err != nil {
		return errors.Wrapf(ErrInvalid, "%v", err)
	}
	start, err := c.StartState()
	if err != nil {
		return err
	}
	if !start.Cell.InBounds(c.GridSize) {
		return errors.Wrapf(ErrInvalid, "start %s outside a %dx%d grid", start.Cell, c.GridSize, c.GridSize)
	}
	if _, err := c.AnimationDuration(); err != nil {
		return err
	}
	if _, err := c.InFlightDuration(); err != nil {
		return err
	}
	return nil
}

// StartState returns the configured landing state.
func (c *Config) StartState() (cube.State, error) {
	face, err := cube.ParseFace(c.Start.Face)
	if err != nil {
		return cube.State{}, errors.Wrapf(ErrInvalid, "start face: %v", err)
	}
	heading, err := cube.ParseHeading(c.Start.Heading)
	if err != nil {
		return cube.State{}, errors.Wrapf(ErrInvalid, "start heading: %v", err)
	}
	return cube.State{Face: face, Cell: cube.Cell{X: c.Start.X, Y: c.Start.Y}, Heading: heading}, nil
}

// AnimationDuration parses Animation.
func (c *Config) AnimationDuration() (time.Duration, error) {
	return parseDuration("animation", c.Animation)
}

// InFlightDuration parses Serve.InFlight.
func (c *Config) InFlightDuration() (time.Duration, error) {
	return parseDuration("serve.in_flight", c.Serve.InFlight)
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.Wrapf(ErrInvalid, "%s %q", field, s)
	}
	return d, nil
}

// Options converts the configuration into mission options.
func (c *Config) Options() ([]marsrover.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	net, _ := cube.ParseNet(c.Topology)
	strategy, _ := obstacle.ParseStrategy(c.Strategy)
	start, _ := c.StartState()
	return []marsrover.Option{
		marsrover.WithGridSize(c.GridSize),
		marsrover.WithDensity(c.Density),
		marsrover.WithSeed(c.Seed),
		marsrover.WithTopology(net),
		marsrover.WithStrategy(strategy),
		marsrover.WithStart(start),
	}, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
