package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultLinearizer     = "bfs"
	DefaultSerializer     = "graph"
	DefaultHeuristic      = "structural"
	DefaultHeuristicDepth = 3
	DefaultGrowth         = "double"
)

// Config selects the strategies used to turn a live snapshot into a fingerprint.
//
// Strategies are referenced by name and resolved once when the fingerprinter is prepared.
// A Config is read-only after it has been loaded.
type Config struct {
	// Abstractor selects how classes, statics and stack frames are abstracted.
	Abstractor AbstractorConfig `yaml:"abstractor"`

	// Linearizer is the name of the linearizer assigning canonical node ids.
	Linearizer string `yaml:"linearizer"`

	// Serializer is the name of the serializer producing the fingerprint.
	Serializer string `yaml:"serializer"`

	// Heuristic is the name of the node ordering heuristic used for order-insignificant successors.
	Heuristic string `yaml:"heuristic"`

	// HeuristicDepth bounds the recursion of the node ordering heuristic.
	HeuristicDepth int `yaml:"heuristic_depth"`

	// Transforms are applied to the built graph in the listed order.
	Transforms []string `yaml:"transforms"`

	Filter FilterConfig `yaml:"filter"`

	Vector VectorConfig `yaml:"vector"`
}

// AbstractorConfig maps class and method names onto abstractor names.
//
// Classes and methods that are not listed use the "default" abstractor.
type AbstractorConfig struct {
	Objects map[string]string `yaml:"objects"`
	Statics map[string]string `yaml:"statics"`
	Frames  map[string]string `yaml:"frames"`
}

// FilterConfig lists field hints in the form "Class.field".
type FilterConfig struct {
	Exclude []string `yaml:"exclude"`
	Include []string `yaml:"include"`
}

type VectorConfig struct {
	// Growth is either "double" or "linear:N"
	Growth string `yaml:"growth"`
}

// Returns the configuration used when nothing else is provided.
func Default() Config {
	return Config{
		Abstractor: AbstractorConfig{
			Objects: map[string]string{},
			Statics: map[string]string{},
			Frames:  map[string]string{},
		},
		Linearizer:     DefaultLinearizer,
		Serializer:     DefaultSerializer,
		Heuristic:      DefaultHeuristic,
		HeuristicDepth: DefaultHeuristicDepth,
		Vector:         VectorConfig{Growth: DefaultGrowth},
	}
}

// Load reads a YAML configuration.
//
// Fields missing from the document keep their default value.
// Unknown fields are rejected. The loaded configuration is validated before it is returned.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &ConfigError{Key: "config", Reason: err.Error()}
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads the YAML configuration at path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %v: %w", path, err)
	}
	return Load(bytes.NewReader(data))
}

func (c *Config) fillDefaults() {
	if c.Abstractor.Objects == nil {
		c.Abstractor.Objects = map[string]string{}
	}
	if c.Abstractor.Statics == nil {
		c.Abstractor.Statics = map[string]string{}
	}
	if c.Abstractor.Frames == nil {
		c.Abstractor.Frames = map[string]string{}
	}
	if c.Linearizer == "" {
		c.Linearizer = DefaultLinearizer
	}
	if c.Serializer == "" {
		c.Serializer = DefaultSerializer
	}
	if c.Heuristic == "" {
		c.Heuristic = DefaultHeuristic
	}
	if c.Vector.Growth == "" {
		c.Vector.Growth = DefaultGrowth
	}
}

// Validate checks the parts of the configuration that do not depend on registered strategies.
//
// Strategy names are checked when they are resolved.
func (c Config) Validate() error {
	if c.HeuristicDepth < 0 {
		return &ConfigError{Key: "heuristic_depth", Value: strconv.Itoa(c.HeuristicDepth), Reason: "must not be negative"}
	}
	for _, hint := range c.Filter.Exclude {
		if _, _, err := SplitFieldHint(hint); err != nil {
			return err
		}
	}
	for _, hint := range c.Filter.Include {
		if _, _, err := SplitFieldHint(hint); err != nil {
			return err
		}
	}
	if _, err := ParseGrowth(c.Vector.Growth); err != nil {
		return err
	}
	return nil
}

// SplitFieldHint splits a "Class.field" hint at its last dot.
func SplitFieldHint(hint string) (class, field string, err error) {
	i := strings.LastIndex(hint, ".")
	if i <= 0 || i == len(hint)-1 {
		return "", "", &ConfigError{Key: "filter", Value: hint, Reason: "expected Class.field"}
	}
	return hint[:i], hint[i+1:], nil
}

// ParseGrowth parses a vector growth specification.
//
// Returns 0 for "double" and the step for "linear:N".
func ParseGrowth(spec string) (int, error) {
	if spec == "double" {
		return 0, nil
	}
	step, ok := strings.CutPrefix(spec, "linear:")
	if !ok {
		return 0, &ConfigError{Key: "vector.growth", Value: spec, Reason: "expected double or linear:N"}
	}
	n, err := strconv.Atoi(step)
	if err != nil || n <= 0 {
		return 0, &ConfigError{Key: "vector.growth", Value: spec, Reason: "linear step must be a positive integer"}
	}
	return n, nil
}
