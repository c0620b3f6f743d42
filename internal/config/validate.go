package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy of cfg and what is wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Email.SearchSubjectAny = trimList(out.Email.SearchSubjectAny)
	out.Email.IMAPHost = strings.TrimSpace(out.Email.IMAPHost)
	out.Email.Username = strings.TrimSpace(out.Email.Username)
	out.Email.Mailbox = strings.TrimSpace(out.Email.Mailbox)
	out.Logging.Level = strings.ToLower(strings.TrimSpace(out.Logging.Level))
	out.Logging.Format = strings.ToLower(strings.TrimSpace(out.Logging.Format))

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	// polling sanity
	if out.Polling.EmailSeconds <= 0 {
		res.addErr("polling.email_seconds must be > 0")
	} else if out.Polling.EmailSeconds < 10 {
		res.addWarn("polling.email_seconds is very low (%d) and may cause rate limits.", out.Polling.EmailSeconds)
	}

	// password not required here; it lives in the keychain
	if out.Email.Enabled {
		if out.Email.IMAPHost == "" {
			res.addErr("email.imap_host is required when email.enabled=true")
		}
		if out.Email.IMAPPort == 0 {
			res.addErr("email.imap_port is required when email.enabled=true")
		}
		if out.Email.Username == "" {
			res.addErr("email.username is required when email.enabled=true")
		}
		if out.Email.Mailbox == "" {
			res.addErr("email.mailbox is required when email.enabled=true")
		}
		if len(out.Email.SearchSubjectAny) == 0 {
			res.addWarn("email.search_subject_any is empty; every message in the mailbox will be parsed.")
		}
	}
	if out.Email.LookbackDays < 0 {
		res.addErr("email.lookback_days must be >= 0")
	}
	if out.Email.MaxMessages < 0 {
		res.addErr("email.max_messages must be >= 0")
	}

	if out.Matching.WindowDays <= 0 {
		res.addErr("matching.window_days must be > 0")
	} else if out.Matching.WindowDays > 180 {
		res.addWarn("matching.window_days is %d; unrelated applications to the same company may merge.", out.Matching.WindowDays)
	}

	if out.Extract.Workers <= 0 {
		res.addErr("extract.workers must be > 0")
	}
	if out.Extract.RatePerSec < 0 {
		res.addErr("extract.rate_per_sec must be >= 0")
	}
	if out.Extract.RatePerSec > 0 && out.Extract.Burst <= 0 {
		res.addErr("extract.burst must be > 0 when extract.rate_per_sec is set")
	}

	switch out.Logging.Level {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		res.addErr("logging.level %q is not a known level", out.Logging.Level)
	}
	switch out.Logging.Format {
	case "", "text", "json":
	default:
		res.addErr("logging.format must be text or json")
	}

	return out, res
}
