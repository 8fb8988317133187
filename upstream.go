package aigate

import "context"

// Upstream is the interface that generative backend adapters must implement.
type Upstream interface {
	// Name returns the adapter identifier (e.g. "gemini", "openai").
	Name() string

	// Generate performs one generation with the given credential. Rate-limit
	// class failures must wrap ErrRateLimited or ErrResourceExhausted; auth
	// failures ErrAuthFailed; rejected requests ErrInvalidRequest.
	Generate(ctx context.Context, req UpstreamRequest) (UpstreamResponse, error)
}

// UpstreamRequest is the request sent to an upstream adapter.
type UpstreamRequest struct {
	Credential Credential
	Model      string
	Prompt     string

	Temperature     *float64
	MaxOutputTokens *int
	Functions       []FunctionDeclaration
}

// UpstreamResponse is the raw response from an upstream adapter.
type UpstreamResponse struct {
	// Text is the direct text field. Adapters without one leave it empty and
	// the text is recovered from Parts.
	Text         string
	Parts        []Part
	Usage        Usage
	Model        string
	FinishReason string
}

// Part is one structured element of a response: text or a function call.
type Part struct {
	Text         string
	FunctionCall *FunctionCallRequest
}
