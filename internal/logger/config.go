package logger

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds logging configuration
type Config struct {
	Level          string `yaml:"level"`
	ConsoleEnabled *bool  `yaml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format"`
	FileEnabled    bool   `yaml:"file_enabled"`
	FilePath       string `yaml:"file_path"`
	FileFormat     string `yaml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
	FileCompress   bool   `yaml:"file_compress"`
}

// fileConfig is the subset of the clanksim config file read by the logger.
type fileConfig struct {
	Logging Config `yaml:"logging"`
}

// DefaultConfig logs INFO and above as text to stderr.
func DefaultConfig() Config {
	enabled := true
	return Config{
		Level:          "INFO",
		ConsoleEnabled: &enabled,
		ConsoleFormat:  "text",
		FilePath:       "logs/clanksim.log",
		FileFormat:     "text",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// Console reports whether console logging is enabled.
func (c Config) Console() bool {
	return c.ConsoleEnabled == nil || *c.ConsoleEnabled
}

// LoadConfig reads the logging section of a clanksim YAML file and applies
// CLANKSIM_LOG_* environment overrides. A missing file leaves the defaults
// in place; an unparseable one is an error.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			var parsed fileConfig
			if err := yaml.Unmarshal(data, &parsed); err != nil {
				return config, fmt.Errorf("parse logging config %s: %w", configPath, err)
			}
			config.merge(parsed.Logging)
		case !os.IsNotExist(err):
			return config, fmt.Errorf("read logging config %s: %w", configPath, err)
		}
	}

	config.applyEnv()
	return config, nil
}

// merge copies the fields set in loaded over the defaults.
func (c *Config) merge(loaded Config) {
	if loaded.Level != "" {
		c.Level = loaded.Level
	}
	if loaded.ConsoleEnabled != nil {
		c.ConsoleEnabled = loaded.ConsoleEnabled
	}
	if loaded.ConsoleFormat != "" {
		c.ConsoleFormat = loaded.ConsoleFormat
	}
	c.FileEnabled = loaded.FileEnabled
	if loaded.FilePath != "" {
		c.FilePath = loaded.FilePath
	}
	if loaded.FileFormat != "" {
		c.FileFormat = loaded.FileFormat
	}
	if loaded.FileMaxSizeMB > 0 {
		c.FileMaxSizeMB = loaded.FileMaxSizeMB
	}
	if loaded.FileMaxBackups > 0 {
		c.FileMaxBackups = loaded.FileMaxBackups
	}
	if loaded.FileMaxAgeDays > 0 {
		c.FileMaxAgeDays = loaded.FileMaxAgeDays
	}
	c.FileCompress = loaded.FileCompress
}

func (c *Config) applyEnv() {
	if level := os.Getenv("CLANKSIM_LOG_LEVEL"); level != "" {
		c.Level = level
	}
	if format := os.Getenv("CLANKSIM_LOG_FORMAT"); format != "" {
		c.ConsoleFormat = format
	}
	if fileEnabled := os.Getenv("CLANKSIM_LOG_FILE_ENABLED"); fileEnabled != "" {
		if enabled, err := strconv.ParseBool(fileEnabled); err == nil {
			c.FileEnabled = enabled
		}
	}
	if path := os.Getenv("CLANKSIM_LOG_FILE_PATH"); path != "" {
		c.FilePath = path
	}
}
