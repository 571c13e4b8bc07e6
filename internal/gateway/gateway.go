package gateway

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/askdata/askdata/internal/diag"
	"github.com/askdata/askdata/internal/flags"
)

const diagCategory = "gateway"

// Options configures a Gateway.
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	HealthAttempts int           // health check retry bound, default 3
	HealthDelay    time.Duration // fixed delay between attempts, default 2s
}

// Gateway is the single data-access point. Each call reads the demo flag
// once at the top and dispatches to the live or mock source; call sites
// never branch on the mode themselves. Live transport failures soft-fail to
// empty or nil results with a warning diagnostic instead of propagating.
type Gateway struct {
	flags *flags.Store
	diag  *diag.Recorder
	log   *slog.Logger
	live  *LiveSource
	mock  *MockSource

	healthAttempts int
	healthDelay    time.Duration

	mu        sync.Mutex
	available bool

	unsubscribe []func()
}

// New builds a Gateway bound to the flag store: it follows demo-mode
// commits and backend address changes for the lifetime of the process (or
// until Close).
func New(fl *flags.Store, d *diag.Recorder, log *slog.Logger, opts Options) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	if opts.HealthAttempts <= 0 {
		opts.HealthAttempts = 3
	}
	if opts.HealthDelay <= 0 {
		opts.HealthDelay = 2 * time.Second
	}

	baseURL := fl.String(flags.KeyBackendURL)
	if baseURL == "" {
		baseURL = opts.BaseURL
	}

	g := &Gateway{
		flags:          fl,
		diag:           d,
		log:            log,
		live:           NewLiveSource(baseURL, opts.RequestTimeout),
		mock:           NewMockSource(),
		healthAttempts: opts.HealthAttempts,
		healthDelay:    opts.HealthDelay,
	}

	g.unsubscribe = append(g.unsubscribe,
		fl.OnChange(flags.DemoMode, g.demoChanged),
		fl.OnKeyChange(flags.KeyBackendURL, func(url string) {
			if url != "" {
				g.live.SetBaseURL(url)
				g.log.Info("backend address updated", "url", url)
			}
		}),
	)
	return g
}

// Close detaches the gateway from the flag store's change topics.
func (g *Gateway) Close() {
	for _, fn := range g.unsubscribe {
		fn()
	}
	g.unsubscribe = nil
}

// demoChanged reacts to a demo-mode commit. Turning demo on marks the
// gateway disconnected by design rather than by error; turning it off runs
// one fresh health check against the configured address.
func (g *Gateway) demoChanged(on bool) {
	if on {
		g.diag.Record(diag.SeverityInfo, diagCategory,
			"demo mode enabled; serving sample data without a backend", "")
		return
	}
	ok := g.healthOnce(context.Background())
	if ok {
		g.diag.Record(diag.SeveritySuccess, diagCategory,
			"demo mode disabled; backend reachable", g.live.BaseURL())
	} else {
		g.diag.Record(diag.SeverityWarning, diagCategory,
			"demo mode disabled but backend is unreachable", g.live.BaseURL())
	}
}

// DemoMode reports the current durable demo flag.
func (g *Gateway) DemoMode() bool {
	return g.flags.Bool(flags.DemoMode)
}

// Available reports whether the last health check succeeded.
func (g *Gateway) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.available
}

// Unreachable reports whether a "backend unreachable" surface should show.
// Demo mode suppresses it: no transport is attempted, so nothing is lost.
func (g *Gateway) Unreachable() bool {
	if g.DemoMode() {
		return false
	}
	return !g.Available()
}

// source picks the serving path for one call.
func (g *Gateway) source() Source {
	if g.flags.Bool(flags.DemoMode) {
		return g.mock
	}
	return g.live
}

// CheckHealth probes the current source, retrying the live backend up to
// the configured bound with a fixed delay. In demo mode it reports healthy
// without touching the network.
func (g *Gateway) CheckHealth(ctx context.Context) bool {
	if g.flags.Bool(flags.DemoMode) {
		return true
	}
	for attempt := 1; attempt <= g.healthAttempts; attempt++ {
		if g.healthOnce(ctx) {
			return true
		}
		if attempt < g.healthAttempts {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(g.healthDelay):
			}
		}
	}
	g.diag.Record(diag.SeverityWarning, diagCategory,
		"backend unavailable after health check retries", g.live.BaseURL())
	return false
}

// healthOnce performs a single live health probe and records availability.
func (g *Gateway) healthOnce(ctx context.Context) bool {
	err := g.live.Health(ctx)
	g.mu.Lock()
	g.available = err == nil
	g.mu.Unlock()
	if err != nil {
		g.log.Warn("health check failed", "url", g.live.BaseURL(), "error", err)
		return false
	}
	return true
}

// softFail logs a live-path failure and flags the gateway unavailable when
// the failure looks transport-shaped. Callers return their zero value.
func (g *Gateway) softFail(op string, err error) {
	g.diag.Record(diag.SeverityWarning, diagCategory, op+" failed", err.Error())
	g.log.Warn("gateway operation soft-failed", "op", op, "error", err)
}

// RegisterDataset registers a dataset by name. Returns nil on failure.
func (g *Gateway) RegisterDataset(ctx context.Context, name string) *Dataset {
	ds, err := g.source().RegisterDataset(ctx, name)
	if err != nil {
		g.softFail("register dataset", err)
		return nil
	}
	return ds
}

// UploadDataset uploads a file for a dataset. Returns false on failure.
func (g *Gateway) UploadDataset(ctx context.Context, datasetID, filename string, r io.Reader) bool {
	if err := g.source().UploadDataset(ctx, datasetID, filename, r); err != nil {
		g.softFail("upload dataset", err)
		return false
	}
	return true
}

// ListDatasets returns all datasets, empty on failure.
func (g *Gateway) ListDatasets(ctx context.Context) []Dataset {
	out, err := g.source().ListDatasets(ctx)
	if err != nil {
		g.softFail("list datasets", err)
		return nil
	}
	return out
}

// TriggerIngest starts an ingestion job. Returns nil on failure.
func (g *Gateway) TriggerIngest(ctx context.Context, datasetID string) *Job {
	job, err := g.source().TriggerIngest(ctx, datasetID)
	if err != nil {
		g.softFail("trigger ingest", err)
		return nil
	}
	return job
}

// ListJobs returns all jobs, empty on failure.
func (g *Gateway) ListJobs(ctx context.Context) []Job {
	out, err := g.source().ListJobs(ctx)
	if err != nil {
		g.softFail("list jobs", err)
		return nil
	}
	return out
}

// ExecuteQueries runs the named queries in the order supplied. Returns nil
// on failure; a successful run always returns a non-nil slice.
func (g *Gateway) ExecuteQueries(ctx context.Context, datasetID string, queries []NamedQuery) []Table {
	out, err := g.source().ExecuteQueries(ctx, datasetID, queries)
	if err != nil {
		g.softFail("execute queries", err)
		return nil
	}
	if out == nil {
		out = []Table{}
	}
	return out
}

// Catalog fetches a dataset's table/column inventory. Returns nil on
// failure.
func (g *Gateway) Catalog(ctx context.Context, datasetID string) *Catalog {
	c, err := g.source().Catalog(ctx, datasetID)
	if err != nil {
		g.softFail("fetch catalog", err)
		return nil
	}
	return c
}

// Chat sends one utterance. Returns nil on transport failure; shape
// validation of a non-nil response is the caller's concern so that protocol
// violations can be distinguished from transport loss.
func (g *Gateway) Chat(ctx context.Context, req ChatRequest) *ChatResponse {
	resp, err := g.source().Chat(ctx, req)
	if err != nil {
		g.softFail("chat", err)
		return nil
	}
	if resp != nil && resp.Answer != nil {
		// Stamp the data-handling posture in effect, identically on both
		// paths.
		resp.Answer.Audit.PrivacyMode = g.flags.Bool(flags.PrivacyMode)
		resp.Answer.Audit.SafeMode = g.flags.Bool(flags.SafeMode)
	}
	return resp
}
