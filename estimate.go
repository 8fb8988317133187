package aigate

import "unicode/utf8"

// charsPerToken is the heuristic used when the upstream reports no usage.
// It is an approximation; billing-grade precision needs a real tokenizer.
const charsPerToken = 4

// EstimateTokens approximates the token count of text as one token per four
// characters, rounded up.
func EstimateTokens(text string) int64 {
	n := utf8.RuneCountInString(text)
	return int64((n + charsPerToken - 1) / charsPerToken)
}

// estimateCallTokens approximates the output tokens spent on function calls.
func estimateCallTokens(calls []FunctionCallRequest) int64 {
	var total int64
	for _, c := range calls {
		total += EstimateTokens(c.Name)
		for k, v := range c.Args {
			total += EstimateTokens(k) + EstimateTokens(stringify(v))
		}
	}
	return total
}
