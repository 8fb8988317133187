package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/aigate"
	"github.com/ineyio/aigate/upstream/openai"
)

func newServer(t *testing.T, status int, body string, inspect func(*http.Request, map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			raw, _ := io.ReadAll(r.Body)
			var payload map[string]any
			_ = json.Unmarshal(raw, &payload)
			inspect(r, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func request() aigate.UpstreamRequest {
	return aigate.UpstreamRequest{
		Credential: aigate.Credential{ID: "k1", APIKey: "sk-test"},
		Model:      "gpt-4o-mini",
		Prompt:     "hello",
	}
}

func TestGenerate_Text(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"model": "gpt-4o-mini-2024-07-18",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hi there"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 9, "completion_tokens": 2, "total_tokens": 11}
	}`, func(r *http.Request, payload map[string]any) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "gpt-4o-mini", payload["model"])
		assert.NotContains(t, payload, "tools")
	})

	resp, err := openai.New("test", srv.URL).Generate(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, "Hi there", resp.Text)
	assert.Empty(t, resp.Parts)
	assert.Equal(t, aigate.Usage{InputTokens: 9, OutputTokens: 2}, resp.Usage)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestGenerate_ToolCalls(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{
		"choices": [{"message": {"role": "assistant", "content": "", "tool_calls": [
			{"id": "c1", "type": "function", "function": {"name": "get_order_stats", "arguments": "{\"period\":\"week\"}"}},
			{"id": "c2", "type": "function", "function": {"name": "unknown_fn", "arguments": "not json"}}
		]}, "finish_reason": "tool_calls"}]
	}`, func(_ *http.Request, payload map[string]any) {
		tools, _ := payload["tools"].([]any)
		if assert.Len(t, tools, 1) {
			tool, _ := tools[0].(map[string]any)
			assert.Equal(t, "function", tool["type"])
			fn, _ := tool["function"].(map[string]any)
			assert.Equal(t, "get_order_stats", fn["name"])
		}
	})

	req := request()
	req.Functions = []aigate.FunctionDeclaration{{Name: "get_order_stats", Parameters: map[string]any{"type": "object"}}}

	resp, err := openai.New("test", srv.URL).Generate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Parts, 2)
	assert.Equal(t, "get_order_stats", resp.Parts[0].FunctionCall.Name)
	assert.Equal(t, map[string]any{"period": "week"}, resp.Parts[0].FunctionCall.Args)
	assert.Equal(t, "unknown_fn", resp.Parts[1].FunctionCall.Name)
	assert.Equal(t, map[string]any{"arguments": "not json"}, resp.Parts[1].FunctionCall.Args)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error": {"message": "slow down", "type": "requests", "code": "rate_limit_exceeded"}}`, aigate.ErrRateLimited},
		{"insufficient quota", http.StatusTooManyRequests, `{"error": {"message": "no credit", "type": "insufficient_quota", "code": "insufficient_quota"}}`, aigate.ErrResourceExhausted},
		{"unauthorized", http.StatusUnauthorized, `{"error": {"message": "bad key"}}`, aigate.ErrAuthFailed},
		{"bad request", http.StatusBadRequest, `{"error": {"message": "bad field"}}`, aigate.ErrInvalidRequest},
		{"server error", http.StatusBadGateway, `upstream down`, aigate.ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body, nil)
			_, err := openai.New("test", srv.URL).Generate(context.Background(), request())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGenerate_UsesCredentialKey(t *testing.T) {
	var seen atomic.Value
	srv := newServer(t, http.StatusOK, `{"choices": [{"message": {"content": "ok"}}]}`, func(r *http.Request, _ map[string]any) {
		seen.Store(r.Header.Get("Authorization"))
	})

	u := openai.New("test", srv.URL)

	_, err := u.Generate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-test", seen.Load())

	req := request()
	req.Credential = aigate.Credential{ID: "k2", APIKey: "sk-other"}
	_, err = u.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-other", seen.Load())
}
