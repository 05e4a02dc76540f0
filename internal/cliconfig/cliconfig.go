// Package cliconfig loads optional YAML defaults for the xmiunload CLI,
// the way zm's internal/config.Load reads a YAML file into a plain struct
// before flags are applied on top of it -- here that means a project- or
// user-level default for encoding, unnum, and similar knobs a site wants
// to fix once rather than repeat on every invocation.
package cliconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults holds the subset of xmiunload's flags a YAML file may
// pre-populate. Flags explicitly passed on the command line always win
// over a loaded Defaults value.
type Defaults struct {
	Unnum     *bool  `yaml:"unnum"`
	Force     *bool  `yaml:"force"`
	Binary    *bool  `yaml:"binary"`
	Encoding  string `yaml:"encoding"`
	OutputDir string `yaml:"outputdir"`
	Lrecl     int    `yaml:"lrecl"`
}

// Load reads path as YAML. A missing path is not an error -- an absent
// config file just means every flag falls back to its built-in default.
func Load(path string) (*Defaults, error) {
	if path == "" {
		return &Defaults{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Defaults{}, nil
		}
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &d, nil
}
