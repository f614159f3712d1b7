package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the tinsource configuration file
// (~/.config/tinsource/config.yaml). Pointer fields distinguish "not set"
// from zero values. Command-line flags take precedence.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Constraint loading
	TagProperty string `yaml:"tag_property"`
	Attributes  *bool  `yaml:"attributes"`

	// Vertex export
	Classes      []int `yaml:"classes"`
	SkipWithheld *bool `yaml:"skip_withheld"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

// cfg is the configuration loaded by the root command.
var cfg Config

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tinsource", "config.yaml")
}

// loadConfig reads path, or the default config file when path is empty.
// A missing default file yields a zero Config; a missing explicit file is
// an error.
func loadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
		if path == "" {
			return Config{}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// applyConstraintConfig applies config defaults to constraint loading flags
// that were not set explicitly.
func applyConstraintConfig(c *cli.Command, cfg Config, tagProperty *string, attributes *bool) {
	if cfg.TagProperty != "" && !c.IsSet("tag-property") {
		*tagProperty = cfg.TagProperty
	}
	if cfg.Attributes != nil && !c.IsSet("attributes") {
		*attributes = *cfg.Attributes
	}
}

// applyVertexConfig applies config defaults to vertex export flags.
func applyVertexConfig(c *cli.Command, cfg Config, classes *[]string, skipWithheld *bool) {
	if len(cfg.Classes) > 0 && !c.IsSet("class") {
		*classes = make([]string, 0, len(cfg.Classes))
		for _, v := range cfg.Classes {
			*classes = append(*classes, strconv.Itoa(v))
		}
	}
	if cfg.SkipWithheld != nil && !c.IsSet("skip-withheld") {
		*skipWithheld = *cfg.SkipWithheld
	}
}

// applyServeConfig applies config defaults to serve flags.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

func outWriter(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriter(c *cli.Command) io.Writer {
	if w := c.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}
