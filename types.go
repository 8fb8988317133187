package aigate

import "github.com/ineyio/aigate/prompt"

// GenerationRequest is a single generation call on behalf of a tenant.
type GenerationRequest struct {
	TenantID string
	Prompt   string
	Context  prompt.Context

	// Class names the request kind (e.g. "sentiment", "faq", "chat"). Only
	// classes listed in the cache config are served from the cache.
	Class string

	FunctionsEnabled bool
	// Functions overrides the gateway's default declarations when non-empty.
	Functions []FunctionDeclaration

	Temperature     *float64
	MaxOutputTokens *int
}

// GenerationResult is the parsed outcome of a generation.
type GenerationResult struct {
	ID           string                `json:"id"`
	Text         string                `json:"text"`
	Calls        []FunctionCallRequest `json:"calls,omitempty"`
	Usage        Usage                 `json:"usage"`
	Cost         float64               `json:"cost"`
	Model        string                `json:"model"`
	CredentialID string                `json:"credential_id,omitempty"`
	Attempts     int                   `json:"attempts"`
	Cached       bool                  `json:"cached"`
}

// Usage represents token usage for one generation.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	// Estimated is true when the upstream reported no counts and they were
	// derived from text length.
	Estimated bool `json:"estimated,omitempty"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int64 { return u.InputTokens + u.OutputTokens }

// FunctionDeclaration describes a function the model may call.
type FunctionDeclaration struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters"`
}

// FunctionCallRequest is a call emitted by the model.
type FunctionCallRequest struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionCallResult is the outcome of dispatching one FunctionCallRequest.
// Exactly one of Result or Error is meaningful, depending on Success.
type FunctionCallResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// IntPtr returns a pointer to the given int.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to the given float64.
func Float64Ptr(v float64) *float64 { return &v }
