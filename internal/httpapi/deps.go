package httpapi

import (
	"context"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/events"
	"jobtrack-engine/internal/poll"
	"jobtrack-engine/internal/store"
)

// Runner is the slice of poll.Runner the API needs.
type Runner interface {
	RunOnce(ctx context.Context, cfg config.Config) (poll.RunResult, error)
	Status() poll.Status
}

// Editor applies human edits under the status hierarchy.
type Editor interface {
	SetStatus(ctx context.Context, id, status string) (domain.Application, error)
	SetLocation(ctx context.Context, id, location string) (domain.Application, error)
}

type Deps struct {
	Apps   *store.Applications
	Ledger *store.Ledger
	Editor Editor
	Runner Runner

	Hub *events.Hub
	Log logrus.FieldLogger

	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Background runs started by POST /run use this context.
	BaseCtx context.Context
}

var validate = validator.New(validator.WithRequiredStructEnabled())
