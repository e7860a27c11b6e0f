package httpapi

import (
	"context"
	"sync/atomic"

	"valeads-engine/internal/config"
	"valeads-engine/internal/events"
	"valeads-engine/internal/pipeline"
)

type Deps struct {
	Service *pipeline.Service

	Hub *events.Hub

	// Atomic stores
	CfgVal          *atomic.Value // stores config.Config
	ReconcileStatus *atomic.Value // stores httpapi.RunStatus

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Checkpoint flushes the sqlite WAL; nil for other backends.
	Checkpoint func(ctx context.Context) error
}
