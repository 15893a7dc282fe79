package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mstrel/dns-fanout/internal/metrics"
	"github.com/mstrel/dns-fanout/internal/provider"
	"github.com/mstrel/dns-fanout/internal/record"
)

type mockClient struct {
	mu      sync.Mutex
	calls   int
	active  int
	peak    int
	outcome provider.Outcome
	err     error
	block   chan struct{}
}

func (m *mockClient) Create(ctx context.Context, spec provider.RecordSpec) (provider.CreateResult, error) {
	m.mu.Lock()
	m.calls++
	m.active++
	if m.active > m.peak {
		m.peak = m.active
	}
	m.mu.Unlock()

	if m.block != nil {
		<-m.block
	}

	m.mu.Lock()
	m.active--
	m.mu.Unlock()

	if m.err != nil {
		return provider.CreateResult{}, m.err
	}
	return provider.CreateResult{Outcome: m.outcome, ProviderRecordID: "rec-" + spec.Hostname}, nil
}

func (m *mockClient) Delete(ctx context.Context, zone, providerRecordID string) error { return nil }

func (m *mockClient) Capabilities() provider.Capabilities { return provider.Capabilities{} }

func spec(providerID, hostname string) provider.RecordSpec {
	return provider.RecordSpec{
		ProviderID: providerID,
		Zone:       "example.com",
		Hostname:   hostname,
		Type:       record.TypeA,
		Content:    "10.0.0.1",
		TTL:        300,
	}
}

func TestExecutePartialFailure(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(provider.Provider{ID: "good"}, &mockClient{outcome: provider.OutcomeCreated})
	reg.Register(provider.Provider{ID: "dup"}, &mockClient{outcome: provider.OutcomeDuplicate})
	reg.Register(provider.Provider{ID: "bad"}, &mockClient{err: errors.New("api unavailable")})

	exec := New(reg, 2, metrics.New(false))
	res := exec.Execute(context.Background(), []provider.RecordSpec{
		spec("good", "a.example.com"),
		spec("bad", "b.example.com"),
		spec("dup", "c.example.com"),
	})

	if res.Total != 3 || res.Created != 1 || res.Duplicates != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v, want total=3 created=1 duplicates=1 failed=1", res)
	}

	// Results stay aligned with the submitted specs.
	if res.Results[0].Outcome != OutcomeCreated || res.Results[0].ProviderRecordID != "rec-a.example.com" {
		t.Errorf("results[0] = %+v", res.Results[0])
	}
	if res.Results[1].Outcome != OutcomeFailed || res.Results[1].Error != "api unavailable" {
		t.Errorf("results[1] = %+v", res.Results[1])
	}
	if res.Results[2].Outcome != OutcomeDuplicate {
		t.Errorf("results[2] = %+v", res.Results[2])
	}
}

func TestExecuteUnregisteredProvider(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(provider.Provider{ID: "nil-client"}, nil)

	exec := New(reg, 1, metrics.New(false))
	res := exec.Execute(context.Background(), []provider.RecordSpec{
		spec("missing", "a.example.com"),
		spec("nil-client", "b.example.com"),
	})

	if res.Failed != 2 {
		t.Fatalf("failed = %d, want 2", res.Failed)
	}
	for _, r := range res.Results {
		if r.Error == "" {
			t.Errorf("result %s has empty error", r.ProviderID)
		}
	}
}

func TestExecuteConcurrencyCap(t *testing.T) {
	block := make(chan struct{})
	client := &mockClient{outcome: provider.OutcomeCreated, block: block}
	reg := provider.NewRegistry()
	reg.Register(provider.Provider{ID: "p"}, client)

	exec := New(reg, 2, metrics.New(false))
	specs := make([]provider.RecordSpec, 6)
	for i := range specs {
		specs[i] = spec("p", "h.example.com")
	}

	done := make(chan Result, 1)
	go func() { done <- exec.Execute(context.Background(), specs) }()
	close(block)
	res := <-done

	if res.Created != 6 {
		t.Fatalf("created = %d, want 6", res.Created)
	}
	client.mu.Lock()
	peak := client.peak
	client.mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrent creates = %d, cap is 2", peak)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	client := &mockClient{outcome: provider.OutcomeCreated}
	reg := provider.NewRegistry()
	reg.Register(provider.Provider{ID: "p"}, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := New(reg, 2, metrics.New(false))
	res := exec.Execute(ctx, []provider.RecordSpec{spec("p", "a.example.com")})

	if res.Failed != 1 {
		t.Fatalf("failed = %d, want 1", res.Failed)
	}
	if client.calls != 0 {
		t.Errorf("client called %d times after cancellation", client.calls)
	}
}

// ctxClient honors context cancellation inside Create, like a real HTTP
// provider client would.
type ctxClient struct {
	started chan struct{}
	release chan struct{}
}

func (c *ctxClient) Create(ctx context.Context, spec provider.RecordSpec) (provider.CreateResult, error) {
	close(c.started)
	select {
	case <-ctx.Done():
		return provider.CreateResult{}, ctx.Err()
	case <-c.release:
		return provider.CreateResult{Outcome: provider.OutcomeCreated, ProviderRecordID: "rec-1"}, nil
	}
}

func (c *ctxClient) Delete(ctx context.Context, zone, providerRecordID string) error { return nil }

func (c *ctxClient) Capabilities() provider.Capabilities { return provider.Capabilities{} }

func TestExecuteInFlightSurvivesCancellation(t *testing.T) {
	client := &ctxClient{started: make(chan struct{}), release: make(chan struct{})}
	reg := provider.NewRegistry()
	reg.Register(provider.Provider{ID: "p"}, client)

	ctx, cancel := context.WithCancel(context.Background())
	exec := New(reg, 1, metrics.New(false))

	done := make(chan Result, 1)
	go func() { done <- exec.Execute(ctx, []provider.RecordSpec{spec("p", "a.example.com")}) }()

	// Cancel only after the target is dispatched, then let it finish.
	<-client.started
	cancel()
	close(client.release)
	res := <-done

	if res.Created != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v, dispatched target must complete after cancellation", res)
	}
	if res.Results[0].ProviderRecordID != "rec-1" {
		t.Errorf("results[0] = %+v, want recorded outcome", res.Results[0])
	}
}

func TestExecuteEmpty(t *testing.T) {
	exec := New(provider.NewRegistry(), 4, metrics.New(false))
	res := exec.Execute(context.Background(), nil)
	if res.Total != 0 || len(res.Results) != 0 {
		t.Fatalf("result = %+v, want empty", res)
	}
}
