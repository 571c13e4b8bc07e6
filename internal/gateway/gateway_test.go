package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/askdata/askdata/internal/bus"
	"github.com/askdata/askdata/internal/diag"
	"github.com/askdata/askdata/internal/flags"
)

// countingBackend records how many requests reach the live path.
func countingBackend(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGateway(t *testing.T, baseURL string) (*Gateway, *flags.Store, *diag.Recorder) {
	t.Helper()
	b := bus.New()
	fl, err := flags.Open(t.TempDir(), b, nil)
	if err != nil {
		t.Fatalf("flags.Open: %v", err)
	}
	d := diag.NewRecorder()
	g := New(fl, d, nil, Options{
		BaseURL:        baseURL,
		HealthAttempts: 1,
		HealthDelay:    time.Millisecond,
	})
	t.Cleanup(g.Close)
	return g, fl, d
}

func TestDemoModeNeverTouchesLivePath(t *testing.T) {
	var hits atomic.Int64
	srv := countingBackend(t, &hits)

	g, fl, _ := newTestGateway(t, srv.URL)
	if err := fl.Commit(flags.DemoMode, true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	hits.Store(0) // ignore anything before demo mode was on

	ctx := context.Background()
	g.CheckHealth(ctx)
	g.ListDatasets(ctx)
	g.ListJobs(ctx)
	g.Catalog(ctx, "ds_orders")
	resp := g.Chat(ctx, ChatRequest{DatasetID: "ds_orders", Message: "show me a trend"})
	if resp == nil {
		t.Fatal("mock chat returned nil")
	}
	g.ExecuteQueries(ctx, "ds_orders", resp.RunQueries)
	g.RegisterDataset(ctx, "scratch")
	g.TriggerIngest(ctx, "ds_orders")

	if n := hits.Load(); n != 0 {
		t.Errorf("%d requests reached the live backend in demo mode, want 0", n)
	}
}

func TestDemoOffTriggersSingleHealthCheck(t *testing.T) {
	var hits atomic.Int64
	srv := countingBackend(t, &hits)

	_, fl, _ := newTestGateway(t, srv.URL)
	if err := fl.Commit(flags.DemoMode, true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	hits.Store(0)

	if err := fl.Commit(flags.DemoMode, false); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if n := hits.Load(); n != 1 {
		t.Errorf("demo off triggered %d health attempts, want exactly 1", n)
	}
}

func TestDemoModeSuppressesUnreachable(t *testing.T) {
	// Point at a dead address; nothing listens there.
	g, fl, d := newTestGateway(t, "http://127.0.0.1:1")

	if g.CheckHealth(context.Background()) {
		t.Fatal("health check against dead address should fail")
	}
	if !g.Unreachable() {
		t.Error("gateway should report unreachable in live mode")
	}

	if err := fl.Commit(flags.DemoMode, true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if g.Unreachable() {
		t.Error("demo mode must suppress the unreachable surface")
	}

	// The demo-on transition is recorded as informational, not a warning.
	var found bool
	for _, ev := range d.Snapshot() {
		if ev.Severity == diag.SeverityInfo && ev.Category == "gateway" {
			found = true
		}
	}
	if !found {
		t.Error("expected an info diagnostic for entering demo mode")
	}
}

func TestLiveTransportFailureSoftFails(t *testing.T) {
	g, _, d := newTestGateway(t, "http://127.0.0.1:1")
	ctx := context.Background()

	if out := g.ListDatasets(ctx); out != nil {
		t.Errorf("ListDatasets = %v, want nil on transport failure", out)
	}
	if resp := g.Chat(ctx, ChatRequest{Message: "hello"}); resp != nil {
		t.Errorf("Chat = %+v, want nil on transport failure", resp)
	}
	if out := g.ExecuteQueries(ctx, "ds", []NamedQuery{{Name: "q", SQL: "select 1"}}); out != nil {
		t.Errorf("ExecuteQueries = %v, want nil on transport failure", out)
	}

	var warnings int
	for _, ev := range d.Snapshot() {
		if ev.Severity == diag.SeverityWarning {
			warnings++
		}
	}
	if warnings < 3 {
		t.Errorf("got %d warning diagnostics, want one per soft failure", warnings)
	}
}

func TestHealthCheckRetriesUpToBound(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	b := bus.New()
	fl, err := flags.Open(t.TempDir(), b, nil)
	if err != nil {
		t.Fatalf("flags.Open: %v", err)
	}
	g := New(fl, diag.NewRecorder(), nil, Options{
		BaseURL:        srv.URL,
		HealthAttempts: 3,
		HealthDelay:    time.Millisecond,
	})
	t.Cleanup(g.Close)

	if g.CheckHealth(context.Background()) {
		t.Fatal("health check should fail against a 503 backend")
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("got %d attempts, want 3", n)
	}
}

func TestAuditStampedWithPosture(t *testing.T) {
	g, fl, _ := newTestGateway(t, "http://127.0.0.1:1")
	if err := fl.Commit(flags.DemoMode, true); err != nil {
		t.Fatal(err)
	}
	if err := fl.Commit(flags.PrivacyMode, true); err != nil {
		t.Fatal(err)
	}

	resp := g.Chat(context.Background(), ChatRequest{Message: "category breakdown"})
	if resp == nil || resp.Answer == nil {
		t.Fatalf("expected final answer, got %+v", resp)
	}
	if !resp.Answer.Audit.PrivacyMode {
		t.Error("audit should carry privacy mode posture")
	}
	if resp.Answer.Audit.SafeMode {
		t.Error("audit should not claim safe mode when off")
	}
}
