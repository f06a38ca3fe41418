package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/streamrewrite/htmlrewriter"
)

// fileConfig mirrors htmlrewriter.Settings 1:1 for the -config YAML file,
// so a deployment can pin memory limits and strictness without a
// rebuild.
type fileConfig struct {
	Encoding string `yaml:"encoding"`
	Strict   bool   `yaml:"strict"`
	Memory   struct {
		MaxAllowedMemoryUsage         uint64 `yaml:"max_allowed_memory_usage"`
		PreallocatedParsingBufferSize uint64 `yaml:"preallocated_parsing_buffer_size"`
	} `yaml:"memory_settings"`
}

// loadConfig reads path and applies it on top of base, returning the
// merged Settings. A zero path leaves base untouched.
func loadConfig(path string, base htmlrewriter.Settings) (htmlrewriter.Settings, error) {
	if path == "" {
		return base, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.Encoding != "" {
		base.Encoding = fc.Encoding
	}
	base.Strict = base.Strict || fc.Strict
	if fc.Memory.MaxAllowedMemoryUsage != 0 {
		base.Memory.MaxAllowedMemoryUsage = fc.Memory.MaxAllowedMemoryUsage
	}
	if fc.Memory.PreallocatedParsingBufferSize != 0 {
		base.Memory.PreallocatedParsingBufferSize = fc.Memory.PreallocatedParsingBufferSize
	}
	return base, nil
}
