package aigate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ineyio/aigate/prompt"
	"github.com/ineyio/aigate/quota"
)

// Gateway mediates generation calls for many tenants over a shared pool of
// upstream credentials.
type Gateway struct {
	cfg       Config
	upstream  Upstream
	pool      *CredentialPool
	ledger    UsageLedger
	tenants   TenantDirectory
	tiers     quota.Table
	cache     Cache
	meter     Meter
	log       *slog.Logger
	now       func() time.Time
	functions []FunctionDeclaration
	cacheable map[string]bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLedger sets the usage ledger.
func WithLedger(l UsageLedger) Option {
	return func(g *Gateway) { g.ledger = l }
}

// WithTenants sets the tenant directory. Required.
func WithTenants(d TenantDirectory) Option {
	return func(g *Gateway) { g.tenants = d }
}

// WithTiers sets the tier table, overriding Config.TiersFile.
func WithTiers(t quota.Table) Option {
	return func(g *Gateway) { g.tiers = t }
}

// WithCache enables the response cache for the classes in Config.Cache.
func WithCache(c Cache) Option {
	return func(g *Gateway) { g.cache = c }
}

// WithMeter sets the meter.
func WithMeter(m Meter) Option {
	return func(g *Gateway) { g.meter = m }
}

// WithLogger sets the logger used for reconciliation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithClock sets the time source for billing periods and cooldowns.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithFunctionDeclarations sets the functions offered to the model when a
// request enables function calling without declaring its own.
func WithFunctionDeclarations(decls []FunctionDeclaration) Option {
	return func(g *Gateway) { g.functions = decls }
}

// NewGateway creates a Gateway. Defaults (no-op ledger and meter, built-in
// tiers, slog.Default, no cache) are used unless overridden via options.
func NewGateway(cfg Config, up Upstream, opts ...Option) (*Gateway, error) {
	if up == nil {
		return nil, fmt.Errorf("aigate: an upstream is required")
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{
		cfg:      cfg,
		upstream: up,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.tenants == nil {
		return nil, fmt.Errorf("aigate: a tenant directory is required")
	}
	if g.ledger == nil {
		g.ledger = noopLedger{}
	}
	if g.meter == nil {
		g.meter = noopMeter{}
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.tiers == nil {
		if cfg.TiersFile != "" {
			table, err := quota.LoadTable(cfg.TiersFile)
			if err != nil {
				return nil, fmt.Errorf("aigate: %w", err)
			}
			g.tiers = table
		} else {
			g.tiers = quota.DefaultTable()
		}
	}

	pool, err := NewCredentialPool(cfg.Credentials, WithPoolClock(g.now))
	if err != nil {
		return nil, err
	}
	g.pool = pool

	if cfg.Cache.Enabled && g.cache != nil {
		g.cacheable = make(map[string]bool, len(cfg.Cache.Classes))
		for _, class := range cfg.Cache.Classes {
			g.cacheable[class] = true
		}
	}

	return g, nil
}

// Credentials returns the state of the credential pool.
func (g *Gateway) Credentials() []CredentialStatus {
	return g.pool.Status()
}

// Generate runs quota check, prompt assembly, cache lookup, upstream call
// with credential rotation, response parsing and usage commit.
//
// Quota and feature refusals return *QuotaExceededError or
// *FeatureUnavailableError without spending an upstream call. When every
// credential is rate limited the error is *UpstreamExhaustedError; other
// upstream failures are *UpstreamFatalError.
func (g *Gateway) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	start := time.Now()
	requestID := uuid.New().String()

	tenant, tier, err := g.resolve(ctx, req.TenantID)
	if err != nil {
		return GenerationResult{}, err
	}
	period := PeriodOf(g.now())

	if err := g.precheck(ctx, tenant, tier, period, req); err != nil {
		return GenerationResult{}, err
	}

	promptText, err := g.assemble(tenant, tier, req)
	if err != nil {
		return GenerationResult{}, err
	}

	cacheable := g.isCacheable(tier, req)
	var fingerprint string
	if cacheable {
		fingerprint = Fingerprint(promptText, req.Context)
		if cached, ok := g.cache.Get(ctx, fingerprint); ok {
			cached.ID = requestID
			cached.Cached = true
			g.meter.OnResult(ResultEvent{
				RequestID: requestID,
				TenantID:  tenant.ID,
				Upstream:  g.upstream.Name(),
				Model:     cached.Model,
				Success:   true,
				CacheHit:  true,
				Duration:  time.Since(start),
				Usage:     cached.Usage,
			})
			return cached, nil
		}
	}

	out, err := g.invoke(ctx, requestID, tenant.ID, promptText, req)
	if err != nil {
		g.meter.OnResult(ResultEvent{
			RequestID:    requestID,
			TenantID:     tenant.ID,
			Upstream:     g.upstream.Name(),
			CredentialID: out.credential.ID,
			Model:        g.cfg.Model,
			Attempts:     out.attempts,
			RateLimited:  out.rateLimited,
			Duration:     time.Since(start),
			Error:        err,
		})
		return GenerationResult{}, err
	}

	parsed := parseResponse(out.resp, promptText)
	model := out.resp.Model
	if model == "" {
		model = g.cfg.Model
	}

	result := GenerationResult{
		ID:           requestID,
		Text:         parsed.Text,
		Calls:        parsed.Calls,
		Usage:        parsed.Usage,
		Cost:         g.cfg.Pricing.Cost(parsed.Usage),
		Model:        model,
		CredentialID: out.credential.ID,
		Attempts:     out.attempts,
	}

	commitErr := g.commit(ctx, tenant.ID, period, parsed.Usage)
	if commitErr != nil {
		g.log.Error("usage commit failed, needs reconciliation",
			"request_id", requestID,
			"tenant", tenant.ID,
			"period", string(period),
			"input_tokens", parsed.Usage.InputTokens,
			"output_tokens", parsed.Usage.OutputTokens,
			"error", commitErr,
		)
	}

	if cacheable && len(result.Calls) == 0 {
		if err := g.cache.Put(context.WithoutCancel(ctx), fingerprint, result, g.cfg.Cache.TTL); err != nil {
			g.log.Warn("cache put failed", "request_id", requestID, "error", err)
		}
	}

	g.meter.OnResult(ResultEvent{
		RequestID:    requestID,
		TenantID:     tenant.ID,
		Upstream:     g.upstream.Name(),
		CredentialID: out.credential.ID,
		Model:        model,
		Success:      true,
		Attempts:     out.attempts,
		RateLimited:  out.rateLimited,
		Duration:     time.Since(start),
		Usage:        parsed.Usage,
		Cost:         result.Cost,
		CommitError:  commitErr,
	})

	return result, nil
}

// resolve looks up a tenant and its tier.
func (g *Gateway) resolve(ctx context.Context, tenantID string) (Tenant, quota.Tier, error) {
	tenant, err := g.tenants.Lookup(ctx, tenantID)
	if err != nil {
		return Tenant{}, quota.Tier{}, err
	}
	tier, ok := g.tiers.Lookup(tenant.Tier)
	if !ok {
		return Tenant{}, quota.Tier{}, fmt.Errorf("%w: %q (tenant %s)", ErrUnknownTier, tenant.Tier, tenant.ID)
	}
	return tenant, tier, nil
}

// precheck fails fast, before any upstream spend, when the tenant is out of
// requests or tokens or asks for a feature its tier lacks.
func (g *Gateway) precheck(ctx context.Context, tenant Tenant, tier quota.Tier, period Period, req GenerationRequest) error {
	if req.FunctionsEnabled && !tier.Has(quota.FeatureFunctionCalling) {
		g.meter.OnReject(RejectEvent{TenantID: tenant.ID, Tier: tier.Name, Feature: quota.FeatureFunctionCalling})
		return &FeatureUnavailableError{TenantID: tenant.ID, Tier: tier.Name, Feature: quota.FeatureFunctionCalling}
	}

	resources := []quota.Resource{quota.AIRequests}
	if _, limited := tier.Limit(quota.AITokens); limited {
		resources = append(resources, quota.AITokens)
	}

	for _, r := range resources {
		current, err := g.ledger.Current(ctx, tenant.ID, period, r)
		if err != nil {
			return fmt.Errorf("aigate: read usage %s for tenant %s: %w", r, tenant.ID, err)
		}

		d := tier.Check(r, current)
		if !d.Allowed {
			g.meter.OnReject(RejectEvent{
				TenantID: tenant.ID,
				Tier:     tier.Name,
				Resource: r,
				Current:  d.Current,
				Limit:    d.Limit,
			})
			return &QuotaExceededError{
				TenantID: tenant.ID,
				Tier:     tier.Name,
				Resource: r,
				Current:  d.Current,
				Limit:    d.Limit,
			}
		}
	}
	return nil
}

func (g *Gateway) assemble(tenant Tenant, tier quota.Tier, req GenerationRequest) (string, error) {
	var rules []prompt.Rule
	if tier.Has(quota.FeatureCustomRules) {
		rules = tenant.Rules
	}

	c := req.Context
	c.Query = req.Prompt

	text, err := prompt.Assemble(g.cfg.BaseInstructions, rules, c)
	if err != nil {
		return "", &PromptAssemblyError{TenantID: tenant.ID, Err: err}
	}
	if g.cfg.CompressPrompts {
		text = prompt.Compress(text)
	}
	return text, nil
}

func (g *Gateway) isCacheable(tier quota.Tier, req GenerationRequest) bool {
	return g.cacheable[req.Class] && tier.Has(quota.FeatureResponseCache)
}

// invocation is the outcome of the rotation loop.
type invocation struct {
	resp        UpstreamResponse
	credential  Credential
	attempts    int
	rateLimited int
}

// invoke calls the upstream, rotating credentials on rate limits. At most
// pool-size attempts are made. Non rate-limit errors abort immediately.
func (g *Gateway) invoke(ctx context.Context, requestID, tenantID, promptText string, req GenerationRequest) (invocation, error) {
	upReq := UpstreamRequest{
		Model:           g.cfg.Model,
		Prompt:          promptText,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if upReq.Temperature == nil {
		upReq.Temperature = g.cfg.Temperature
	}
	if upReq.MaxOutputTokens == nil {
		upReq.MaxOutputTokens = g.cfg.MaxOutputTokens
	}
	if req.FunctionsEnabled {
		upReq.Functions = req.Functions
		if len(upReq.Functions) == 0 {
			upReq.Functions = g.functions
		}
	}

	estimatedIn := EstimateTokens(promptText)
	maxAttempts := g.pool.Size()

	var out invocation
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// A caller that has gone away gets no new attempts; a call already
		// in flight is left to finish.
		if attempt > 1 && ctx.Err() != nil {
			return out, fmt.Errorf("aigate: request abandoned after %d attempts: %w", out.attempts, ctx.Err())
		}

		cred := g.pool.Next()
		out.credential = cred
		out.attempts = attempt
		upReq.Credential = cred

		g.meter.OnAttempt(AttemptEvent{
			RequestID:    requestID,
			TenantID:     tenantID,
			Upstream:     g.upstream.Name(),
			CredentialID: cred.ID,
			Model:        g.cfg.Model,
			AttemptNum:   attempt,
			EstimatedIn:  estimatedIn,
		})

		resp, err := g.call(ctx, upReq)
		if err == nil {
			out.resp = resp
			return out, nil
		}

		if !IsRateLimited(err) {
			return out, &UpstreamFatalError{
				Err:          err,
				Upstream:     g.upstream.Name(),
				CredentialID: cred.ID,
				Model:        g.cfg.Model,
				Attempts:     attempt,
			}
		}

		out.rateLimited++
		g.pool.Penalize(cred.ID, g.cfg.Cooldown)
		lastErr = err
	}

	return out, &UpstreamExhaustedError{Attempts: out.attempts, LastErr: lastErr}
}

// call performs one upstream attempt. The attempt is detached from caller
// cancellation so that quota already spent upstream is not wasted; the
// per-attempt timeout still bounds it.
func (g *Gateway) call(ctx context.Context, req UpstreamRequest) (UpstreamResponse, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.AttemptTimeout)
	defer cancel()
	return g.upstream.Generate(callCtx, req)
}

// commit records one request and its tokens.
func (g *Gateway) commit(ctx context.Context, tenantID string, period Period, usage Usage) error {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.AttemptTimeout)
	defer cancel()

	return g.ledger.Commit(commitCtx, tenantID, period, map[quota.Resource]int64{
		quota.AIRequests: 1,
		quota.AITokens:   usage.Total(),
	})
}
