package aigate

import (
	"time"

	"github.com/ineyio/aigate/quota"
)

// Meter observes gateway events for monitoring/logging.
type Meter interface {
	// OnAttempt is called before each upstream call.
	OnAttempt(event AttemptEvent)

	// OnResult is called once per Generate that reached the upstream or cache.
	OnResult(event ResultEvent)

	// OnReject is called when a quota or feature check refuses a request.
	OnReject(event RejectEvent)
}

// AttemptEvent describes one upstream attempt.
type AttemptEvent struct {
	RequestID    string
	TenantID     string
	Upstream     string
	CredentialID string
	Model        string
	AttemptNum   int
	EstimatedIn  int64
}

// ResultEvent describes the outcome of a generation.
type ResultEvent struct {
	RequestID    string
	TenantID     string
	Upstream     string
	CredentialID string
	Model        string
	Success      bool
	CacheHit     bool
	Attempts     int
	RateLimited  int
	Duration     time.Duration
	Usage        Usage
	Cost         float64
	Error        error
	CommitError  error
}

// RejectEvent describes a refused request.
type RejectEvent struct {
	TenantID string
	Tier     string
	Resource quota.Resource
	Feature  quota.Feature
	Current  int64
	Limit    int64
}

// noopMeter is a meter that does nothing.
type noopMeter struct{}

func (noopMeter) OnAttempt(AttemptEvent) {}
func (noopMeter) OnResult(ResultEvent)   {}
func (noopMeter) OnReject(RejectEvent)   {}
