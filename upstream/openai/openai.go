// Package openai adapts OpenAI-compatible chat completion APIs (OpenAI,
// Grok/xAI, Cerebras, Together, Ollama) to aigate.Upstream. Tool calls are
// mapped to function calls.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/ineyio/aigate"
)

// Upstream is an OpenAI-compatible adapter.
type Upstream struct {
	name       string
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*goopenai.Client // by credential id
}

var _ aigate.Upstream = (*Upstream)(nil)

// Option configures the adapter.
type Option func(*Upstream)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Upstream) { u.httpClient = c }
}

// New creates an adapter for the API at baseURL.
func New(name, baseURL string, opts ...Option) *Upstream {
	u := &Upstream{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		clients: make(map[string]*goopenai.Client),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// NewOpenAI creates an adapter for OpenAI.
func NewOpenAI(opts ...Option) *Upstream {
	return New("openai", "https://api.openai.com/v1", opts...)
}

// NewGrok creates an adapter for Grok/xAI.
func NewGrok(opts ...Option) *Upstream {
	return New("grok", "https://api.x.ai/v1", opts...)
}

// NewCerebras creates an adapter for Cerebras.
func NewCerebras(opts ...Option) *Upstream {
	return New("cerebras", "https://api.cerebras.ai/v1", opts...)
}

func (u *Upstream) Name() string { return u.name }

// client returns the SDK client bound to a credential. Credentials are
// immutable, so clients are built once per id.
func (u *Upstream) client(cred aigate.Credential) *goopenai.Client {
	u.mu.Lock()
	defer u.mu.Unlock()

	if c, ok := u.clients[cred.ID]; ok {
		return c
	}

	cfg := goopenai.DefaultConfig(cred.APIKey)
	cfg.BaseURL = u.baseURL
	if u.httpClient != nil {
		cfg.HTTPClient = u.httpClient
	}
	c := goopenai.NewClientWithConfig(cfg)
	u.clients[cred.ID] = c
	return c
}

func (u *Upstream) Generate(ctx context.Context, req aigate.UpstreamRequest) (aigate.UpstreamResponse, error) {
	resp, err := u.client(req.Credential).CreateChatCompletion(ctx, buildRequest(req))
	if err != nil {
		return aigate.UpstreamResponse{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return aigate.UpstreamResponse{}, fmt.Errorf("%w: empty choices in response", aigate.ErrUpstreamUnavailable)
	}

	choice := resp.Choices[0]
	out := aigate.UpstreamResponse{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
		Usage: aigate.Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
	}
	if out.Model == "" {
		out.Model = req.Model
	}

	for _, tc := range choice.Message.ToolCalls {
		out.Parts = append(out.Parts, aigate.Part{
			FunctionCall: &aigate.FunctionCallRequest{
				Name: tc.Function.Name,
				Args: decodeArguments(tc.Function.Arguments),
			},
		})
	}

	return out, nil
}

func buildRequest(req aigate.UpstreamRequest) goopenai.ChatCompletionRequest {
	r := goopenai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.Temperature != nil {
		r.Temperature = float32(*req.Temperature)
	}
	if req.MaxOutputTokens != nil {
		r.MaxTokens = *req.MaxOutputTokens
	}

	for _, f := range req.Functions {
		def := &goopenai.FunctionDefinition{Name: f.Name, Description: f.Description}
		if f.Parameters != nil {
			def.Parameters = f.Parameters
		}
		r.Tools = append(r.Tools, goopenai.Tool{Type: goopenai.ToolTypeFunction, Function: def})
	}
	return r
}

// decodeArguments parses tool call arguments. Arguments that are not a JSON
// object are kept verbatim under "arguments".
func decodeArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"arguments": raw}
	}
	return args
}

func mapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return mapStatus(apiErr.HTTPStatusCode, apiErr.Code, apiErr.Message)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return mapStatus(reqErr.HTTPStatusCode, nil, reqErr.Error())
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", aigate.ErrUpstreamUnavailable, err)
}

func mapStatus(status int, code any, msg string) error {
	switch {
	case status == http.StatusTooManyRequests && code == "insufficient_quota":
		return fmt.Errorf("%w: %s", aigate.ErrResourceExhausted, msg)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", aigate.ErrRateLimited, msg)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", aigate.ErrAuthFailed, msg)
	case status == http.StatusBadRequest, status == http.StatusNotFound, status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", aigate.ErrInvalidRequest, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", aigate.ErrUpstreamUnavailable, status, msg)
	}
}
