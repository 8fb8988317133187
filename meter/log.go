// Package meter provides aigate.Meter implementations.
package meter

import (
	"log/slog"

	"github.com/ineyio/aigate"
)

// LogMeter logs gateway events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ aigate.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnAttempt(e aigate.AttemptEvent) {
	m.Logger.Debug("attempt",
		"request_id", e.RequestID,
		"tenant", e.TenantID,
		"upstream", e.Upstream,
		"credential", e.CredentialID,
		"model", e.Model,
		"attempt", e.AttemptNum,
		"estimated_tokens", e.EstimatedIn,
	)
}

func (m *LogMeter) OnResult(e aigate.ResultEvent) {
	if !e.Success {
		m.Logger.Warn("result_error",
			"request_id", e.RequestID,
			"tenant", e.TenantID,
			"upstream", e.Upstream,
			"credential", e.CredentialID,
			"attempts", e.Attempts,
			"rate_limited", e.RateLimited,
			"duration_ms", e.Duration.Milliseconds(),
			"error", e.Error,
		)
		return
	}

	attrs := []any{
		"request_id", e.RequestID,
		"tenant", e.TenantID,
		"upstream", e.Upstream,
		"credential", e.CredentialID,
		"model", e.Model,
		"cache_hit", e.CacheHit,
		"attempts", e.Attempts,
		"duration_ms", e.Duration.Milliseconds(),
		"input_tokens", e.Usage.InputTokens,
		"output_tokens", e.Usage.OutputTokens,
		"estimated", e.Usage.Estimated,
		"cost", e.Cost,
	}
	if e.CommitError != nil {
		m.Logger.Error("result_uncommitted", append(attrs, "commit_error", e.CommitError)...)
		return
	}
	m.Logger.Info("result", attrs...)
}

func (m *LogMeter) OnReject(e aigate.RejectEvent) {
	if e.Feature != "" {
		m.Logger.Info("reject_feature",
			"tenant", e.TenantID,
			"tier", e.Tier,
			"feature", e.Feature,
		)
		return
	}
	m.Logger.Info("reject_quota",
		"tenant", e.TenantID,
		"tier", e.Tier,
		"resource", e.Resource,
		"current", e.Current,
		"limit", e.Limit,
	)
}
