package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mstrel/dns-fanout/internal/fanout"
	"github.com/mstrel/dns-fanout/internal/plan"
	"github.com/mstrel/dns-fanout/internal/record"
	"github.com/mstrel/dns-fanout/internal/store"
)

// MultiCreateResult enumerates every target with its individual outcome.
// There is no all-or-nothing semantics: partial success is the expected
// steady state when providers have heterogeneous capabilities.
type MultiCreateResult struct {
	Total      int                      `json:"total"`
	Created    int                      `json:"created"`
	Duplicates int                      `json:"duplicates"`
	Failed     int                      `json:"failed"`
	Results    []fanout.PerTargetResult `json:"results"`
	PlanErrors []plan.Error             `json:"planErrors,omitempty"`
	Warnings   []plan.Warning           `json:"warnings,omitempty"`
}

func (s *Server) handleMultiCreate(w http.ResponseWriter, r *http.Request) (int, error) {
	ctx := r.Context()

	var intent plan.RecordIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		return http.StatusBadRequest, fmt.Errorf("parse request: %w", err)
	}
	if intent.BaseHostname == "" {
		return http.StatusBadRequest, fmt.Errorf("hostname required")
	}
	if len(intent.Targets) == 0 {
		return http.StatusBadRequest, fmt.Errorf("at least one target required")
	}

	overrides, err := s.deps.Store.ListOverrides(ctx)
	if err != nil {
		return http.StatusInternalServerError, err
	}

	inputs := plan.Inputs{
		Providers:          s.deps.Registry.Providers(),
		Overrides:          overrides,
		GlobalTTL:          s.deps.Settings.DefaultTTL(ctx),
		TTLOverrideEnabled: s.deps.Settings.TTLOverrideEnabled(ctx),
		DefaultRecordType:  s.deps.Settings.DefaultRecordType(ctx),
		DefaultContent:     s.deps.Settings.DefaultContent(ctx),
		DefaultProxied:     s.deps.Settings.DefaultProxied(ctx),
	}

	planned := plan.Plan(intent, inputs)
	for _, spec := range planned.Specs {
		s.deps.Metrics.IncPlanTarget(spec.ProviderID, true)
	}
	for _, planErr := range planned.Errors {
		s.deps.Metrics.IncPlanTarget(planErr.ProviderID, false)
	}

	exec := s.deps.Executor.Execute(ctx, planned.Specs)

	// Track what the providers now hold. Results are index-aligned with
	// the submitted specs. Repeating an intent updates the existing row
	// for each target instead of accumulating duplicates; failed targets
	// are tracked in error status so operators can see and retry them.
	for i, res := range exec.Results {
		spec := planned.Specs[i]
		rec := record.DNSRecord{
			Hostname:         spec.Hostname,
			Type:             spec.Type,
			Content:          spec.Content,
			TTL:              spec.TTL,
			Proxied:          spec.Proxied,
			ProviderID:       spec.ProviderID,
			ProviderRecordID: res.ProviderRecordID,
			Managed:          true,
			Status:           record.StatusActive,
			Source:           "api",
			LastSyncedAt:     time.Now().UTC(),
		}
		if res.Outcome == fanout.OutcomeFailed {
			rec.Status = record.StatusError
		}

		existing, err := s.deps.Store.FindRecord(ctx, spec.ProviderID, spec.Hostname, spec.Type, spec.Content)
		switch {
		case err == nil:
			// A failed retry must not downgrade a row the provider
			// already holds.
			if rec.Status == record.StatusError && existing.Status != record.StatusError {
				continue
			}
			rec.ID = existing.ID
			if rec.ProviderRecordID == "" {
				rec.ProviderRecordID = existing.ProviderRecordID
			}
		case !errors.Is(err, store.ErrNotFound):
			slog.Error("Failed to look up tracked record", "hostname", spec.Hostname, "provider", spec.ProviderID, "error", err)
			continue
		}

		if _, err := s.deps.Store.PutRecord(ctx, rec); err != nil {
			slog.Error("Failed to persist record", "hostname", spec.Hostname, "provider", spec.ProviderID, "error", err)
		}
	}

	if intent.PreserveRequested {
		if _, err := s.deps.Store.PutPreserved(ctx, record.PreservedHostname{
			Hostname: intent.BaseHostname,
			Reason:   "requested at record creation",
		}); err != nil {
			slog.Error("Failed to persist preserved hostname", "hostname", intent.BaseHostname, "error", err)
		}
	}

	out := MultiCreateResult{
		Total:      len(intent.Targets),
		Created:    exec.Created,
		Duplicates: exec.Duplicates,
		Failed:     exec.Failed + len(planned.Errors),
		Results:    exec.Results,
		PlanErrors: planned.Errors,
		Warnings:   planned.Warnings,
	}
	for _, planErr := range planned.Errors {
		out.Results = append(out.Results, fanout.PerTargetResult{
			ProviderID: planErr.ProviderID,
			Hostname:   intent.BaseHostname,
			Outcome:    fanout.OutcomeFailed,
			Error:      planErr.Error(),
		})
	}

	writeJSON(w, http.StatusOK, out)
	return http.StatusOK, nil
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) (int, error) {
	records, err := s.deps.Store.ListRecords(r.Context())
	if err != nil {
		return http.StatusInternalServerError, err
	}
	if records == nil {
		records = []record.DNSRecord{}
	}
	writeJSON(w, http.StatusOK, records)
	return http.StatusOK, nil
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) (int, error) {
	ctx := r.Context()
	id := r.PathValue("id")

	rec, err := s.deps.Store.GetRecord(ctx, id)
	if err != nil {
		return 0, err
	}
	// Managed records are deleted only by the orphan lifecycle. Rows in
	// error status track failed creations and may be removed manually.
	if rec.Managed && rec.Status != record.StatusError {
		return http.StatusConflict, fmt.Errorf("record %s is managed; deletion is driven by the orphan lifecycle", id)
	}

	if rec.ProviderRecordID != "" {
		client, ok := s.deps.Registry.Client(rec.ProviderID)
		if ok {
			p, _ := s.deps.Registry.Provider(rec.ProviderID)
			if err := client.Delete(ctx, p.Zone, rec.ProviderRecordID); err != nil {
				return http.StatusBadGateway, fmt.Errorf("delete at provider: %w", err)
			}
		}
	}
	if err := s.deps.Store.DeleteRecord(ctx, id); err != nil {
		return http.StatusInternalServerError, err
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
	return http.StatusOK, nil
}

func (s *Server) handleExtendGrace(w http.ResponseWriter, r *http.Request) (int, error) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return http.StatusBadRequest, fmt.Errorf("parse request: %w", err)
	}

	rec, err := s.deps.Orphan.ExtendGrace(r.Context(), r.PathValue("id"), req.Minutes)
	if err != nil {
		return 0, err
	}
	writeJSON(w, http.StatusOK, rec)
	return http.StatusOK, nil
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) (int, error) {
	value, err := s.deps.Settings.Resolve(r.Context(), r.PathValue("key"))
	if err != nil {
		return 0, err
	}
	writeJSON(w, http.StatusOK, value)
	return http.StatusOK, nil
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) (int, error) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return http.StatusBadRequest, fmt.Errorf("parse request: %w", err)
	}
	key := r.PathValue("key")
	if err := s.deps.Settings.Set(r.Context(), key, req.Value); err != nil {
		return 0, err
	}
	value, err := s.deps.Settings.Resolve(r.Context(), key)
	if err != nil {
		return 0, err
	}
	writeJSON(w, http.StatusOK, value)
	return http.StatusOK, nil
}

func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) (int, error) {
	overrides, err := s.deps.Store.ListOverrides(r.Context())
	if err != nil {
		return http.StatusInternalServerError, err
	}
	if overrides == nil {
		overrides = []record.HostnameOverride{}
	}
	writeJSON(w, http.StatusOK, overrides)
	return http.StatusOK, nil
}

func (s *Server) handleCreateOverride(w http.ResponseWriter, r *http.Request) (int, error) {
	var o record.HostnameOverride
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		return http.StatusBadRequest, fmt.Errorf("parse request: %w", err)
	}
	if o.Hostname == "" {
		return http.StatusBadRequest, fmt.Errorf("hostname required")
	}
	saved, err := s.deps.Store.PutOverride(r.Context(), o)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	writeJSON(w, http.StatusCreated, saved)
	return http.StatusCreated, nil
}

func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) (int, error) {
	id := r.PathValue("id")
	if err := s.deps.Store.DeleteOverride(r.Context(), id); err != nil {
		return http.StatusInternalServerError, err
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
	return http.StatusOK, nil
}

func (s *Server) handleListPreserved(w http.ResponseWriter, r *http.Request) (int, error) {
	preserved, err := s.deps.Store.ListPreserved(r.Context())
	if err != nil {
		return http.StatusInternalServerError, err
	}
	if preserved == nil {
		preserved = []record.PreservedHostname{}
	}
	writeJSON(w, http.StatusOK, preserved)
	return http.StatusOK, nil
}

func (s *Server) handleCreatePreserved(w http.ResponseWriter, r *http.Request) (int, error) {
	var p record.PreservedHostname
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		return http.StatusBadRequest, fmt.Errorf("parse request: %w", err)
	}
	if p.Hostname == "" {
		return http.StatusBadRequest, fmt.Errorf("hostname required")
	}
	saved, err := s.deps.Store.PutPreserved(r.Context(), p)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	writeJSON(w, http.StatusCreated, saved)
	return http.StatusCreated, nil
}

func (s *Server) handleDeletePreserved(w http.ResponseWriter, r *http.Request) (int, error) {
	hostname := r.PathValue("hostname")
	if err := s.deps.Store.DeletePreserved(r.Context(), hostname); err != nil {
		return http.StatusInternalServerError, err
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": hostname})
	return http.StatusOK, nil
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) (int, error) {
	var req struct {
		Hostname string `json:"hostname"`
		Present  bool   `json:"present"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return http.StatusBadRequest, fmt.Errorf("parse request: %w", err)
	}
	if req.Hostname == "" {
		return http.StatusBadRequest, fmt.Errorf("hostname required")
	}

	var (
		transitioned []record.DNSRecord
		err          error
	)
	if req.Present {
		transitioned, err = s.deps.Orphan.HostPresent(r.Context(), req.Hostname)
	} else {
		transitioned, err = s.deps.Orphan.HostAbsent(r.Context(), req.Hostname)
	}
	if err != nil {
		return http.StatusInternalServerError, err
	}
	if transitioned == nil {
		transitioned = []record.DNSRecord{}
	}
	writeJSON(w, http.StatusOK, transitioned)
	return http.StatusOK, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
