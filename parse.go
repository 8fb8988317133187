package aigate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parsedResponse is the caller-facing view of an UpstreamResponse.
type parsedResponse struct {
	Text  string
	Calls []FunctionCallRequest
	Usage Usage
}

// parseResponse extracts text, function calls and token usage. Text comes
// from the direct field, falling back to the concatenated text parts. Calls
// keep their emission order. Missing usage is estimated from the prompt and
// the output.
func parseResponse(resp UpstreamResponse, promptText string) parsedResponse {
	var out parsedResponse

	out.Text = resp.Text
	if out.Text == "" {
		var b strings.Builder
		for _, p := range resp.Parts {
			b.WriteString(p.Text)
		}
		out.Text = b.String()
	}

	for _, p := range resp.Parts {
		if p.FunctionCall == nil || p.FunctionCall.Name == "" {
			continue
		}
		call := FunctionCallRequest{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args}
		if call.Args == nil {
			call.Args = map[string]any{}
		}
		out.Calls = append(out.Calls, call)
	}

	out.Usage = resp.Usage
	if out.Usage.InputTokens == 0 && out.Usage.OutputTokens == 0 {
		out.Usage = Usage{
			InputTokens:  EstimateTokens(promptText),
			OutputTokens: EstimateTokens(out.Text) + estimateCallTokens(out.Calls),
			Estimated:    true,
		}
	}

	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}
