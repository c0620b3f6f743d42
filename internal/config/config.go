package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Polling struct {
		EmailSeconds int `yaml:"email_seconds" json:"email_seconds"`
	} `yaml:"polling" json:"polling"`

	Email struct {
		Enabled          bool     `yaml:"enabled" json:"enabled"`
		IMAPHost         string   `yaml:"imap_host" json:"imap_host"`
		IMAPPort         int      `yaml:"imap_port" json:"imap_port"`
		Username         string   `yaml:"username" json:"username"`
		Mailbox          string   `yaml:"mailbox" json:"mailbox"`
		OnlyUnseen       bool     `yaml:"only_unseen" json:"only_unseen"`
		MarkSeen         bool     `yaml:"mark_seen" json:"mark_seen"`
		LookbackDays     int      `yaml:"lookback_days" json:"lookback_days"`
		MaxMessages      int      `yaml:"max_messages" json:"max_messages"`
		SearchSubjectAny []string `yaml:"search_subject_any" json:"search_subject_any"`
	} `yaml:"email" json:"email"`

	Matching struct {
		WindowDays int `yaml:"window_days" json:"window_days"`
	} `yaml:"matching" json:"matching"`

	Extract struct {
		Workers    int     `yaml:"workers" json:"workers"`
		RatePerSec float64 `yaml:"rate_per_sec" json:"rate_per_sec"`
		Burst      int     `yaml:"burst" json:"burst"`
	} `yaml:"extract" json:"extract"`

	Logging struct {
		Level  string `yaml:"level" json:"level"`
		Format string `yaml:"format" json:"format"`
	} `yaml:"logging" json:"logging"`
}

// Default is the config written on first start when no default file ships with the binary.
func Default() Config {
	var c Config
	c.App.Port = 38471
	c.App.DataDir = "."
	c.Polling.EmailSeconds = 300
	c.Email.IMAPHost = "imap.gmail.com"
	c.Email.IMAPPort = 993
	c.Email.Mailbox = "INBOX"
	c.Email.OnlyUnseen = true
	c.Email.LookbackDays = 14
	c.Email.MaxMessages = 200
	c.Email.SearchSubjectAny = []string{
		"application",
		"applied",
		"interview",
		"thank you for applying",
		"your candidacy",
		"offer",
	}
	c.Matching.WindowDays = 30
	c.Extract.Workers = 4
	c.Extract.RatePerSec = 2
	c.Extract.Burst = 2
	c.Logging.Level = "info"
	c.Logging.Format = "text"
	return c
}

// Load reads path on top of Default, so keys missing from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func (c Config) MatchWindow() time.Duration {
	if c.Matching.WindowDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(c.Matching.WindowDays) * 24 * time.Hour
}

func (c Config) PollInterval() time.Duration {
	if c.Polling.EmailSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Polling.EmailSeconds) * time.Second
}
