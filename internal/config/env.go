package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file into the process environment. A missing file is not
// an error; variables already set win over the file.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overlays JOBTRACK_* variables onto cfg. Unparseable numbers are ignored.
func ApplyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv("JOBTRACK_" + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv("JOBTRACK_" + key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv("JOBTRACK_" + key); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}

	num("PORT", &cfg.App.Port)
	str("DATA_DIR", &cfg.App.DataDir)
	num("POLL_SECONDS", &cfg.Polling.EmailSeconds)

	flag("EMAIL_ENABLED", &cfg.Email.Enabled)
	str("IMAP_HOST", &cfg.Email.IMAPHost)
	num("IMAP_PORT", &cfg.Email.IMAPPort)
	str("IMAP_USERNAME", &cfg.Email.Username)
	str("IMAP_MAILBOX", &cfg.Email.Mailbox)

	num("MATCH_WINDOW_DAYS", &cfg.Matching.WindowDays)

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
}
