package aigate

import (
	"errors"
	"fmt"

	"github.com/ineyio/aigate/quota"
)

// Sentinel errors.
var (
	ErrRateLimited         = errors.New("aigate: rate limited by upstream")
	ErrResourceExhausted   = errors.New("aigate: upstream quota exhausted")
	ErrAuthFailed          = errors.New("aigate: authentication failed")
	ErrInvalidRequest      = errors.New("aigate: invalid request")
	ErrUpstreamUnavailable = errors.New("aigate: upstream unavailable")
	ErrUpstreamExhausted   = errors.New("aigate: all credentials rate limited")
	ErrQuotaExceeded       = errors.New("aigate: quota exceeded")
	ErrFeatureUnavailable  = errors.New("aigate: feature not available on tier")
	ErrUnknownTenant       = errors.New("aigate: unknown tenant")
	ErrUnknownTier         = errors.New("aigate: unknown tier")
	ErrNegativeUsage       = errors.New("aigate: negative usage delta")
)

// QuotaExceededError is returned before any upstream call when a tenant has
// used up a resource. It carries what a caller needs to render an upgrade
// prompt.
type QuotaExceededError struct {
	TenantID string
	Tier     string
	Resource quota.Resource
	Current  int64
	Limit    int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("aigate: quota exceeded: tenant=%s tier=%s resource=%s current=%d limit=%d (upgrade plan to continue)",
		e.TenantID, e.Tier, e.Resource, e.Current, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// FeatureUnavailableError is returned when a request needs a feature the
// tenant's tier does not include.
type FeatureUnavailableError struct {
	TenantID string
	Tier     string
	Feature  quota.Feature
}

func (e *FeatureUnavailableError) Error() string {
	return fmt.Sprintf("aigate: feature %s not available: tenant=%s tier=%s", e.Feature, e.TenantID, e.Tier)
}

func (e *FeatureUnavailableError) Unwrap() error { return ErrFeatureUnavailable }

// UpstreamExhaustedError means every credential was rate limited. It is
// transient; backing off and retrying is the caller's decision.
type UpstreamExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *UpstreamExhaustedError) Error() string {
	return fmt.Sprintf("aigate: upstream busy, all %d credentials rate limited, retry later: %v", e.Attempts, e.LastErr)
}

func (e *UpstreamExhaustedError) Unwrap() []error { return []error{ErrUpstreamExhausted, e.LastErr} }

// UpstreamFatalError wraps a non rate-limit upstream failure. It is never
// retried with another credential.
type UpstreamFatalError struct {
	Err          error
	Upstream     string
	CredentialID string
	Model        string
	Attempts     int
}

func (e *UpstreamFatalError) Error() string {
	return fmt.Sprintf("aigate: upstream=%s credential=%s model=%s attempts=%d: %v",
		e.Upstream, e.CredentialID, e.Model, e.Attempts, e.Err)
}

func (e *UpstreamFatalError) Unwrap() error { return e.Err }

// PromptAssemblyError indicates a configuration problem while building the
// prompt.
type PromptAssemblyError struct {
	TenantID string
	Err      error
}

func (e *PromptAssemblyError) Error() string {
	return fmt.Sprintf("aigate: assemble prompt for tenant %s: %v", e.TenantID, e.Err)
}

func (e *PromptAssemblyError) Unwrap() error { return e.Err }

// FunctionHandlerFault is a panic or failure captured inside a function
// handler. It is reported in a FunctionCallResult, never returned.
type FunctionHandlerFault struct {
	Name  string
	Cause any
}

func (e *FunctionHandlerFault) Error() string {
	return fmt.Sprintf("handler %s faulted: %v", e.Name, e.Cause)
}

func (e *FunctionHandlerFault) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// IsRateLimited returns true for rate-limit class upstream errors, which
// rotate to the next credential.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrResourceExhausted)
}

// IsRetryable returns true if the caller may retry the whole request later.
func IsRetryable(err error) bool {
	return IsRateLimited(err) || errors.Is(err, ErrUpstreamExhausted)
}
