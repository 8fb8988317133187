package meter

import "github.com/ineyio/aigate"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ aigate.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnAttempt(aigate.AttemptEvent) {}
func (m *NoopMeter) OnResult(aigate.ResultEvent)   {}
func (m *NoopMeter) OnReject(aigate.RejectEvent)   {}

// Multi fans events out to several meters in order.
type Multi []aigate.Meter

var _ aigate.Meter = Multi(nil)

func (m Multi) OnAttempt(e aigate.AttemptEvent) {
	for _, mm := range m {
		mm.OnAttempt(e)
	}
}

func (m Multi) OnResult(e aigate.ResultEvent) {
	for _, mm := range m {
		mm.OnResult(e)
	}
}

func (m Multi) OnReject(e aigate.RejectEvent) {
	for _, mm := range m {
		mm.OnReject(e)
	}
}
