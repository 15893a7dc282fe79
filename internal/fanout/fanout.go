// Package fanout submits planned per-provider specs independently.
// Outcomes are isolated: one provider's failure never aborts or delays a
// sibling target, and a partial-failure result is always returned.
package fanout

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mstrel/dns-fanout/internal/metrics"
	"github.com/mstrel/dns-fanout/internal/provider"
	"github.com/mstrel/dns-fanout/internal/record"
)

const (
	OutcomeCreated   = string(provider.OutcomeCreated)
	OutcomeDuplicate = string(provider.OutcomeDuplicate)
	OutcomeFailed    = "failed"
)

type PerTargetResult struct {
	ProviderID       string      `json:"providerId"`
	Hostname         string      `json:"hostname"`
	Type             record.Type `json:"type"`
	Outcome          string      `json:"outcome"`
	ProviderRecordID string      `json:"providerRecordId,omitempty"`
	Error            string      `json:"error,omitempty"`
}

type Result struct {
	Total      int               `json:"total"`
	Created    int               `json:"created"`
	Duplicates int               `json:"duplicates"`
	Failed     int               `json:"failed"`
	Results    []PerTargetResult `json:"results"`
}

type Executor struct {
	registry    *provider.Registry
	concurrency int
	metrics     *metrics.Metrics
}

func New(registry *provider.Registry, concurrency int, metrics *metrics.Metrics) *Executor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Executor{
		registry:    registry,
		concurrency: concurrency,
		metrics:     metrics,
	}
}

// Execute submits every spec to its provider under a bounded worker cap.
// The cap guards provider rate limits, not correctness; targets share no
// state. A cancelled context stops new submissions, while targets already
// dispatched run to completion and their results are recorded.
func (e *Executor) Execute(ctx context.Context, specs []provider.RecordSpec) Result {
	results := make([]PerTargetResult, len(specs))
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			results[i] = failedResult(spec, "not submitted: "+err.Error())
			e.metrics.IncFanoutOutcome(spec.ProviderID, OutcomeFailed)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, spec provider.RecordSpec) {
			defer wg.Done()
			defer func() { <-sem }()
			// Cancellation only stops new submissions; a dispatched
			// target runs to completion and its result is recorded.
			results[i] = e.submit(context.WithoutCancel(ctx), spec)
			e.metrics.IncFanoutOutcome(spec.ProviderID, results[i].Outcome)
		}(i, spec)
	}
	wg.Wait()

	res := Result{Total: len(specs), Results: results}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeCreated:
			res.Created++
		case OutcomeDuplicate:
			res.Duplicates++
		default:
			res.Failed++
		}
	}
	return res
}

func (e *Executor) submit(ctx context.Context, spec provider.RecordSpec) PerTargetResult {
	client, ok := e.registry.Client(spec.ProviderID)
	if !ok {
		return failedResult(spec, "no client registered for provider")
	}

	created, err := client.Create(ctx, spec)
	if err != nil {
		slog.Error("Failed to create record", "provider", spec.ProviderID, "hostname", spec.Hostname, "error", err)
		return failedResult(spec, err.Error())
	}

	slog.Debug("Submitted record", "provider", spec.ProviderID, "hostname", spec.Hostname, "outcome", created.Outcome)
	return PerTargetResult{
		ProviderID:       spec.ProviderID,
		Hostname:         spec.Hostname,
		Type:             spec.Type,
		Outcome:          string(created.Outcome),
		ProviderRecordID: created.ProviderRecordID,
	}
}

func failedResult(spec provider.RecordSpec, msg string) PerTargetResult {
	return PerTargetResult{
		ProviderID: spec.ProviderID,
		Hostname:   spec.Hostname,
		Type:       spec.Type,
		Outcome:    OutcomeFailed,
		Error:      msg,
	}
}
