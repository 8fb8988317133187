package aigate

// Pricing converts token usage to an estimated dollar cost.
type Pricing struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// Cost returns the estimated dollar cost of usage.
func (p Pricing) Cost(u Usage) float64 {
	return float64(u.InputTokens)*p.InputPerMillion/1e6 +
		float64(u.OutputTokens)*p.OutputPerMillion/1e6
}

