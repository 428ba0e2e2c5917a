package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CoreOverride customizes how one tunnel core's server binary is launched.
// Zero-value fields keep the built-in defaults.
type CoreOverride struct {
	Binary   string `yaml:"binary"`
	Fallback string `yaml:"fallback"`
}

// CoresFile is the optional cores.yaml document mapping core name to override.
type CoresFile struct {
	Cores map[string]CoreOverride `yaml:"cores"`
}

// LoadCoreOverrides reads the cores.yaml file configured via CORES_CONFIG_PATH.
// A missing path (or empty setting) yields an empty map.
func LoadCoreOverrides() (map[string]CoreOverride, error) {
	path := Cfg.CoresConfigPath
	if path == "" {
		return map[string]CoreOverride{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]CoreOverride{}, nil
		}
		return nil, fmt.Errorf("read cores config: %w", err)
	}

	var doc CoresFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cores config: %w", err)
	}
	if doc.Cores == nil {
		doc.Cores = map[string]CoreOverride{}
	}
	return doc.Cores, nil
}
