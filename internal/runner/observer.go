package runner

import (
	"go.uber.org/zap"

	"github.com/petasbytes/solver-agent/internal/metrics"
	"github.com/petasbytes/solver-agent/internal/telemetry"
)

// Observer bundles the logging, metrics and event sinks. Zero values are
// no-ops.
type Observer struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Events  *telemetry.Sink
}

func (o Observer) log() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
