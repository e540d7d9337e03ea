// Package config loads the tracker settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// ClientLogPath is the game client's log file to tail.
	ClientLogPath string `yaml:"clientLogPath"`
	// DatabasePath is the local SQLite file holding events and runs.
	DatabasePath string `yaml:"databasePath"`

	Account   string `yaml:"account"`
	Character string `yaml:"character"`
	League    string `yaml:"league"`
	// SessionID is the POESESSID cookie used for the fallback XP lookup.
	// Leave empty to disable the remote API entirely.
	SessionID string `yaml:"sessionId"`

	ListenAddr string `yaml:"listenAddr"`
	LogDir     string `yaml:"logDir"`
	LogLevel   string `yaml:"logLevel"`

	// XPPollIntervalSeconds controls how often the remote XP fallback is
	// sampled while a session is active.
	XPPollIntervalSeconds int `yaml:"xpPollIntervalSeconds"`

	Discord struct {
		Token     string `yaml:"token"`
		ChannelID string `yaml:"channelId"`
	} `yaml:"discord"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chatId"`
	} `yaml:"telegram"`
}

func defaults() Config {
	var c Config
	c.DatabasePath = "runtracker.db"
	c.ListenAddr = "127.0.0.1:8090"
	c.LogDir = "logs"
	c.LogLevel = "info"
	c.XPPollIntervalSeconds = 60
	return c
}

// XPPollInterval converts the configured seconds to a duration.
func (c Config) XPPollInterval() time.Duration {
	return time.Duration(c.XPPollIntervalSeconds) * time.Second
}

// Load reads path and fills unset fields with defaults. A missing file
// is not an error: the caller validates the fields it needs.
func Load(path string) (Config, error) {
	c := defaults()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// ValidateForServe checks the fields the serve command cannot run
// without.
func (c Config) ValidateForServe() error {
	if c.ClientLogPath == "" {
		return fmt.Errorf("clientLogPath is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("databasePath is required")
	}
	return nil
}
