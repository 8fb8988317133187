// Package gemini is the Gemini generateContent adapter, including function
// calling.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ineyio/aigate"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Upstream is the Gemini API adapter.
type Upstream struct {
	baseURL    string
	httpClient *http.Client
}

var _ aigate.Upstream = (*Upstream)(nil)

// Option configures the adapter.
type Option func(*Upstream)

// WithBaseURL sets a custom base URL.
func WithBaseURL(u string) Option {
	return func(g *Upstream) { g.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Upstream) { g.httpClient = c }
}

// New creates a Gemini adapter.
func New(opts ...Option) *Upstream {
	g := &Upstream{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Upstream) Name() string { return "gemini" }

// Gemini API types.
type request struct {
	Contents         []content         `json:"contents"`
	Tools            []tool            `json:"tools,omitempty"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text         string        `json:"text,omitempty"`
	FunctionCall *functionCall `json:"functionCall,omitempty"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type tool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type response struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
		TotalTokenCount      int64 `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *Upstream) Generate(ctx context.Context, req aigate.UpstreamRequest) (aigate.UpstreamResponse, error) {
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return aigate.UpstreamResponse{}, fmt.Errorf("aigate: marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(req.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return aigate.UpstreamResponse{}, fmt.Errorf("aigate: create gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", req.Credential.APIKey)

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return aigate.UpstreamResponse{}, fmt.Errorf("%w: %v", aigate.ErrUpstreamUnavailable, err)
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return aigate.UpstreamResponse{}, err
	}

	var resp response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return aigate.UpstreamResponse{}, fmt.Errorf("%w: decode gemini response: %v", aigate.ErrUpstreamUnavailable, err)
	}
	if len(resp.Candidates) == 0 {
		return aigate.UpstreamResponse{}, fmt.Errorf("%w: empty candidates in gemini response", aigate.ErrUpstreamUnavailable)
	}

	cand := resp.Candidates[0]
	out := aigate.UpstreamResponse{
		FinishReason: strings.ToLower(cand.FinishReason),
		Model:        resp.ModelVersion,
		Usage: aigate.Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		},
	}
	if out.Model == "" {
		out.Model = req.Model
	}

	// Gemini has no top-level text field; text is recovered from parts.
	for _, p := range cand.Content.Parts {
		ap := aigate.Part{Text: p.Text}
		if p.FunctionCall != nil {
			ap.FunctionCall = &aigate.FunctionCallRequest{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args}
		}
		out.Parts = append(out.Parts, ap)
	}

	return out, nil
}

func buildRequest(req aigate.UpstreamRequest) request {
	r := request{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	}

	if len(req.Functions) > 0 {
		decls := make([]functionDeclaration, len(req.Functions))
		for i, f := range req.Functions {
			decls[i] = functionDeclaration{Name: f.Name, Description: f.Description, Parameters: f.Parameters}
		}
		r.Tools = []tool{{FunctionDeclarations: decls}}
	}

	if req.Temperature != nil || req.MaxOutputTokens != nil {
		r.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		}
	}
	return r
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
		msg = eb.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests && eb.Error.Status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %s", aigate.ErrResourceExhausted, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", aigate.ErrRateLimited, msg)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", aigate.ErrAuthFailed, msg)
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", aigate.ErrInvalidRequest, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", aigate.ErrUpstreamUnavailable, resp.StatusCode, msg)
	}
}
