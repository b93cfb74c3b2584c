package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/simonhull/opusmeta"
)

// configName is looked up in the home directory unless OPUSTAG_CONFIG
// names another file.
const configName = ".opustag.yaml"

// Config holds the defaults applied to every write.
type Config struct {
	// Padding reserved after the comments. 0 picks it automatically and
	// -1 writes no padding.
	Padding int `yaml:"padding"`

	// Backup suffix; empty disables backups.
	Backup string `yaml:"backup"`

	Validate        bool `yaml:"validate"`
	PreserveModTime bool `yaml:"preserve_mtime"`
	InPlace         bool `yaml:"in_place"`

	// Concurrency of bulk commands; 0 uses the number of CPUs.
	Jobs int `yaml:"jobs"`

	LogLevel string `yaml:"log_level"`
}

func configPath() (string, error) {
	if p := os.Getenv("OPUSTAG_CONFIG"); p != "" {
		return homedir.Expand(p)
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("locate home dir: %w", err)
	}
	return filepath.Join(home, configName), nil
}

// loadConfig reads the config file. A missing file yields the zero Config.
func loadConfig() (*Config, error) {
	cfg := &Config{}

	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	log.WithField("path", path).Debug("loaded config")
	return cfg, nil
}

// saveOptions turns the config into options for File.Save.
func (c *Config) saveOptions() []opusmeta.SaveOption {
	opts := []opusmeta.SaveOption{opusmeta.WithSaveLogger(log.StandardLogger())}
	switch {
	case c.Padding < 0:
		opts = append(opts, opusmeta.WithoutPadding())
	case c.Padding > 0:
		opts = append(opts, opusmeta.WithPadding(c.Padding))
	}
	if c.Backup != "" {
		opts = append(opts, opusmeta.WithBackup(c.Backup))
	}
	if c.Validate {
		opts = append(opts, opusmeta.WithValidation())
	}
	if c.PreserveModTime {
		opts = append(opts, opusmeta.WithPreserveModTime())
	}
	if c.InPlace {
		opts = append(opts, opusmeta.WithInPlace())
	}
	return opts
}

func setLogLevel(level string) {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	switch level {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
