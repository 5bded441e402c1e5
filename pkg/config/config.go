// Package config loads the hunter configuration: size thresholds, the
// supported archive container list, and the match-rule descriptors.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/huntlab/filehound/pkg/rules"
)

// ErrBadThreshold is returned when a size or depth setting is out of range.
var ErrBadThreshold = errors.New("bad threshold")

// DefaultMaxArchiveDepth bounds archive nesting to prevent zip-bomb
// recursion.
const DefaultMaxArchiveDepth = 8

// Config is the full hunter configuration. Thresholds of 0 disable the
// respective size gate.
type Config struct {
	MaxFileSizeBytes    int64              `yaml:"max_file_size_bytes"`
	MaxArchiveSizeBytes int64              `yaml:"max_archive_size_bytes"`
	MaxArchiveDepth     int                `yaml:"max_archive_depth"`
	SupportedArchives   []string           `yaml:"supported_archives"`
	MatchRules          []rules.Descriptor `yaml:"match_rules"`
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	return parse(defaultConfig)
}

// Load reads a configuration file, falling back to the embedded defaults
// when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	var c Config
	c.MaxArchiveDepth = DefaultMaxArchiveDepth
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.normalize()
	return &c, nil
}

func (c *Config) validate() error {
	if c.MaxFileSizeBytes < 0 {
		return fmt.Errorf("%w: max_file_size_bytes must be >= 0, got %d", ErrBadThreshold, c.MaxFileSizeBytes)
	}
	if c.MaxArchiveSizeBytes < 0 {
		return fmt.Errorf("%w: max_archive_size_bytes must be >= 0, got %d", ErrBadThreshold, c.MaxArchiveSizeBytes)
	}
	if c.MaxArchiveDepth < 1 {
		return fmt.Errorf("%w: max_archive_depth must be >= 1, got %d", ErrBadThreshold, c.MaxArchiveDepth)
	}
	return nil
}

// normalize lowercases and deduplicates the archive extension list.
func (c *Config) normalize() {
	seen := make(map[string]struct{}, len(c.SupportedArchives))
	var out []string
	for _, ext := range c.SupportedArchives {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	c.SupportedArchives = out
}

// IsArchive reports whether the path's extension is in the supported
// container list. Compound extensions like tar.gz match on their full
// suffix.
func (c *Config) IsArchive(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, ext := range c.SupportedArchives {
		if strings.HasSuffix(name, "."+ext) {
			return true
		}
	}
	return false
}

// CompileRules compiles the configured descriptors into a rule set.
func (c *Config) CompileRules() (*rules.Set, error) {
	return rules.Compile(c.MatchRules)
}
