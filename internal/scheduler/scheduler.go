// Package scheduler runs a task on a fixed interval until its context is done.
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Task func(ctx context.Context) error

// Every runs task immediately and then every interval. Errors are logged, never fatal.
// Runs do not overlap: a tick that fires during a long run is dropped.
func Every(ctx context.Context, interval time.Duration, name string, log logrus.FieldLogger, task Task) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("task", name)

	run := func() {
		if err := task(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("scheduled run failed")
		}
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
