package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// config is the YAML configuration of icsexpand. Values from the environment
// and flags override the file.
type config struct {
	Input    string `yaml:"input"`
	From     string `yaml:"from"`
	Days     int    `yaml:"days"`
	Timezone string `yaml:"timezone"`
	Strict   bool   `yaml:"strict"`
	FreeBusy bool   `yaml:"free_busy"`
	LogLevel string `yaml:"log_level"`
}

func defaultConfig() *config {
	return &config{Days: 30, Timezone: "UTC", LogLevel: "info"}
}

func (c *config) normalize() {
	if c.Days <= 0 {
		c.Days = 30
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// loadConfig reads path. A missing file yields the defaults.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// applyEnv overrides the configuration with ICSEXPAND_* variables.
func (c *config) applyEnv(getenv func(string) string) {
	if v := getenv("ICSEXPAND_INPUT"); v != "" {
		c.Input = v
	}
	if v := getenv("ICSEXPAND_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := getenv("ICSEXPAND_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// window returns the expansion window in the configured zone. An empty From
// starts today.
func (c *config) window(now time.Time) (time.Time, time.Time, *time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Time{}, time.Time{}, nil, err
	}
	var from time.Time
	if c.From == "" {
		n := now.In(loc)
		from = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	} else if from, err = time.ParseInLocation(time.DateOnly, c.From, loc); err != nil {
		return time.Time{}, time.Time{}, nil, fmt.Errorf("from: %w", err)
	}
	return from, from.AddDate(0, 0, c.Days), loc, nil
}
