// Package logging owns the process logger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu   sync.RWMutex
	logg = New(os.Stderr, "info", "text")
)

func GetLogger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logg
}

// Configure replaces the process logger. Unknown levels fall back to info.
func Configure(level, format string) *logrus.Logger {
	l := New(os.Stderr, level, format)
	mu.Lock()
	logg = l
	mu.Unlock()
	return l
}

func New(out io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Component returns a logger tagged with the component name.
func Component(name string) *logrus.Entry {
	return GetLogger().WithField("component", name)
}

func LogError(logger logrus.FieldLogger, component, funcName string, data any, err error) {
	fields := logrus.Fields{
		"component": component,
		"funcName":  funcName,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
