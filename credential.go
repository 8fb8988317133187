package aigate

import (
	"fmt"
	"sync"
	"time"
)

// Credential is one upstream API credential. It is immutable for the life
// of the process.
type Credential struct {
	ID     string `yaml:"id" json:"id"`
	APIKey string `yaml:"api_key" json:"-"`
}

// String never includes the key.
func (c Credential) String() string {
	return "credential(" + c.ID + ")"
}

// CredentialStatus is a snapshot of one pool entry.
type CredentialStatus struct {
	ID            string
	Cooling       bool
	CooldownUntil time.Time
	PenalizedAt   time.Time
}

// CredentialPool rotates round-robin over interchangeable credentials and
// masks the ones cooling down after a rate limit.
type CredentialPool struct {
	mu          sync.Mutex
	creds       []Credential
	index       map[string]int
	cursor      int
	cooldown    []time.Time // cooldown until, per credential
	penalizedAt []time.Time
	now         func() time.Time
}

// PoolOption configures a CredentialPool.
type PoolOption func(*CredentialPool)

// WithPoolClock sets the time source used for cooldowns.
func WithPoolClock(now func() time.Time) PoolOption {
	return func(p *CredentialPool) { p.now = now }
}

// NewCredentialPool creates a pool over creds in the given order.
func NewCredentialPool(creds []Credential, opts ...PoolOption) (*CredentialPool, error) {
	if len(creds) == 0 {
		return nil, fmt.Errorf("aigate: credential pool: at least one credential is required")
	}

	p := &CredentialPool{
		creds:       make([]Credential, len(creds)),
		index:       make(map[string]int, len(creds)),
		cooldown:    make([]time.Time, len(creds)),
		penalizedAt: make([]time.Time, len(creds)),
		now:         time.Now,
	}
	copy(p.creds, creds)

	for i, c := range p.creds {
		if c.ID == "" {
			return nil, fmt.Errorf("aigate: credential pool: credential[%d]: id is required", i)
		}
		if _, dup := p.index[c.ID]; dup {
			return nil, fmt.Errorf("aigate: credential pool: duplicate credential id %q", c.ID)
		}
		p.index[c.ID] = i
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Size returns the number of credentials.
func (p *CredentialPool) Size() int {
	return len(p.creds)
}

// Next returns the first credential at or after the cursor that is not
// cooling down and moves the cursor past it. When every credential cools,
// the least recently penalized one is returned so a call can still be
// attempted.
func (p *CredentialPool) Next() Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	n := len(p.creds)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		if !now.Before(p.cooldown[idx]) {
			p.cursor = (idx + 1) % n
			return p.creds[idx]
		}
	}

	oldest := 0
	for i := 1; i < n; i++ {
		if p.penalizedAt[i].Before(p.penalizedAt[oldest]) {
			oldest = i
		}
	}
	return p.creds[oldest]
}

// Penalize puts a credential in cooldown for d and moves the cursor past it.
// It returns false for unknown ids.
func (p *CredentialPool) Penalize(id string, d time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.index[id]
	if !ok {
		return false
	}

	now := p.now()
	p.cooldown[idx] = now.Add(d)
	p.penalizedAt[idx] = now
	if p.cursor == idx {
		p.cursor = (idx + 1) % len(p.creds)
	}
	return true
}

// Cooling reports whether a credential is currently in cooldown.
func (p *CredentialPool) Cooling(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.index[id]
	if !ok {
		return false
	}
	return p.now().Before(p.cooldown[idx])
}

// Status returns a snapshot of every credential in pool order.
func (p *CredentialPool) Status() []CredentialStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	out := make([]CredentialStatus, len(p.creds))
	for i, c := range p.creds {
		out[i] = CredentialStatus{
			ID:            c.ID,
			Cooling:       now.Before(p.cooldown[i]),
			CooldownUntil: p.cooldown[i],
			PenalizedAt:   p.penalizedAt[i],
		}
	}
	return out
}
