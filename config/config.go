// Package config holds the run configuration of the telemetry simulator.
package config

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Config holds the parameters of one telemetry run.
type Config struct {
	// TableBits is log2 of the number of predictor table entries.
	// Default: 18 (262144 entries).
	TableBits uint `json:"table_bits" yaml:"table_bits"`

	// HistoryBits is the global history width of the configurable
	// predictor (variant v). Default: 10.
	HistoryBits uint `json:"history_bits" yaml:"history_bits"`

	// InstructionWidth is the size of one instruction in bytes. Must be a
	// power of 2. Default: 8.
	InstructionWidth uint64 `json:"instruction_width" yaml:"instruction_width"`

	// HistogramBuckets is the number of offset bit-width buckets.
	// Default: 21.
	HistogramBuckets int `json:"histogram_buckets" yaml:"histogram_buckets"`

	// OutputDir is where the offset histogram is written. Default: ".".
	// Empty disables the histogram artifact.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// MaxInstructions stops a run after this many retired instructions.
	// 0 means no limit.
	MaxInstructions uint64 `json:"max_instructions" yaml:"max_instructions"`
}

// Limits on table geometry.
const (
	MaxTableBits   = 24
	MaxHistoryBits = 16
	MaxPatternBits = 30 // TableBits + HistoryBits
	MinHistBuckets = 2
	DefaultOutput  = "."
	defaultTable   = 18
	defaultHistory = 10
	defaultWidth   = 8
	defaultBuckets = 21
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		TableBits:        defaultTable,
		HistoryBits:      defaultHistory,
		InstructionWidth: defaultWidth,
		HistogramBuckets: defaultBuckets,
		OutputDir:        DefaultOutput,
		MaxInstructions:  0,
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads a Config from a JSON or YAML file, chosen by extension. Fields
// missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Save writes the Config to a file, as YAML or JSON by extension.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)

	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the table geometry and widths.
func (c *Config) Validate() error {
	if c.TableBits == 0 || c.TableBits > MaxTableBits {
		return fmt.Errorf("table_bits must be in [1, %d]", MaxTableBits)
	}
	if c.HistoryBits > MaxHistoryBits {
		return fmt.Errorf("history_bits must be <= %d", MaxHistoryBits)
	}
	if c.TableBits+c.HistoryBits > MaxPatternBits {
		return fmt.Errorf("table_bits + history_bits must be <= %d", MaxPatternBits)
	}
	if c.InstructionWidth == 0 || bits.OnesCount64(c.InstructionWidth) != 1 {
		return fmt.Errorf("instruction_width must be a power of 2")
	}
	if c.HistogramBuckets < MinHistBuckets {
		return fmt.Errorf("histogram_buckets must be >= %d", MinHistBuckets)
	}
	return nil
}

// Entries returns the number of predictor table entries.
func (c *Config) Entries() uint64 {
	return uint64(1) << c.TableBits
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
