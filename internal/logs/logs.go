// Package logs configures the structured loggers used across the
// ingestion pipeline. It mirrors the teacher's logp-over-zap pattern:
// every component asks for a named, optionally rate-limited logger
// instead of reaching for the standard library's log package.
package logs

import (
	"time"

	"github.com/elastic/beats/v7/libbeat/logp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Names of the loggers handed out to each pipeline component. Kept as
// constants so log filtering configuration has stable selectors.
const (
	Pipeline  = "pipeline"
	Intake    = "intake"
	Bulker    = "bulker"
	ESClient  = "esclient"
	ABICache  = "abicache"
	Processor = "processor"
	Worker    = "workerpool"
)

// New returns a logger named component. Loggers that emit on every
// event (queue backpressure, bulker rollover) are rate limited; the
// rest log as-is.
func New(component string) *logp.Logger {
	switch component {
	case Intake, Bulker, Worker:
		return logp.NewLogger(component, WithRateLimit(time.Minute))
	default:
		return logp.NewLogger(component)
	}
}

// WithRateLimit returns a logp.LogOption that caps each distinct
// message to one log line per window, then a capped number of
// follow-ups, the same helper the teacher keeps in its own log
// package for modelindexer's per-flush-failure logging.
func WithRateLimit(window time.Duration) logp.LogOption {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewSamplerWithOptions(core, window, 1, 100)
	})
}
