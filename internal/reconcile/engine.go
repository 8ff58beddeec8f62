package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/evanofslack/dyndns-sync/internal/config"
	"github.com/evanofslack/dyndns-sync/internal/ipresolver"
	"github.com/evanofslack/dyndns-sync/internal/journal"
	"github.com/evanofslack/dyndns-sync/internal/metrics"
	"github.com/evanofslack/dyndns-sync/internal/provider"
)

type Engine interface {
	RunPass(ctx context.Context) (Results, error)
}

type engine struct {
	dns      provider.Client
	resolver ipresolver.Resolver
	journal  journal.Journal
	zones    []config.Zone
	metrics  *metrics.Metrics
}

// NewEngine builds a reconciliation engine over the configured zones.
// The journal may be nil; it only feeds logs, never decisions.
func NewEngine(dns provider.Client, resolver ipresolver.Resolver, jrnl journal.Journal, cfg *config.Config, metrics *metrics.Metrics) *engine {
	return &engine{
		dns:      dns,
		resolver: resolver,
		journal:  jrnl,
		zones:    cfg.Zones,
		metrics:  metrics,
	}
}

// RunPass performs one full reconciliation of all zones against provider
// state. Passes carry no state between each other and are idempotent:
// re-running against unchanged remote state issues zero mutations. Safe
// to call repeatedly after any outcome.
func (e *engine) RunPass(ctx context.Context) (Results, error) {
	var publicIP netip.Addr

	// Resolve the public IP once up front if anything needs it. A total
	// resolution failure aborts the pass before any provider call, so a
	// stale or missing address can never produce partial updates.
	if e.needsPublicIP() {
		addr, err := e.resolver.Resolve(ctx)
		if err != nil {
			return Results{}, fmt.Errorf("resolve public ip: %w", err)
		}
		publicIP = addr
		e.observeIPChange(ctx, addr)
	}

	results := Results{}
	for _, zone := range e.zones {
		e.reconcileZone(ctx, zone, publicIP, &results)
	}
	e.recordPass(ctx, publicIP, results)
	return results, nil
}

func (e *engine) needsPublicIP() bool {
	for _, zone := range e.zones {
		for _, rec := range zone.DNSRecords {
			if rec.UpdateMode == config.ModePublicIP {
				return true
			}
		}
	}
	return false
}

func (e *engine) reconcileZone(ctx context.Context, zone config.Zone, publicIP netip.Addr, results *Results) {
	existing, err := e.dns.ListRecords(ctx, zone.Name)
	if err != nil {
		slog.Error("Failed to list zone records, skipping zone", "zone", zone.Name, "error", err)
		results.FailedZones = append(results.FailedZones, zone.Name)
		return
	}
	slog.Debug("Got records from dns provider", "zone", zone.Name, "count", len(existing))

	// The fetched slice is this pass's working set: a successful removal
	// deletes its element so the add step below sees updated state.
	for _, rec := range zone.DNSRecords {
		removal := e.processRemoval(ctx, zone, rec, &existing, publicIP, results)
		e.metrics.IncRecordStep("remove", string(removal), zone.Name)
		if removal == OutcomeError {
			// No add attempt for this record this pass; the next
			// scheduled pass retries naturally.
			continue
		}
		add := e.processAdd(ctx, zone, rec, existing, publicIP, results)
		e.metrics.IncRecordStep("add", string(add), zone.Name)
	}
}

// processRemoval deletes a stale dynamic-IP record ahead of its
// replacement. EnsureExists records are never removed, whatever their
// current value.
func (e *engine) processRemoval(ctx context.Context, zone config.Zone, rec config.Record, existing *[]provider.Record, publicIP netip.Addr, results *Results) Outcome {
	idx, ok := matchRecord(zone, rec, *existing)
	if !ok || rec.UpdateMode != config.ModePublicIP {
		results.Skipped++
		return OutcomeSkipped
	}

	matched := (*existing)[idx]
	if matched.Value == publicIP.String() {
		results.Skipped++
		return OutcomeSkipped
	}

	if err := e.dns.RemoveRecord(ctx, matched); err != nil {
		slog.Error("Failed to remove stale record", "zone", zone.Name, "name", matched.Name, "type", matched.Type, "error", err)
		results.Failures = append(results.Failures, OperationResult{
			Zone:  zone.Name,
			Name:  matched.Name,
			Type:  matched.Type,
			Op:    "remove",
			Error: err.Error(),
		})
		return OutcomeError
	}

	*existing = append((*existing)[:idx], (*existing)[idx+1:]...)
	results.Removed = append(results.Removed, matched)
	return OutcomeSuccess
}

func (e *engine) processAdd(ctx context.Context, zone config.Zone, rec config.Record, existing []provider.Record, publicIP netip.Addr, results *Results) Outcome {
	if _, ok := matchRecord(zone, rec, existing); ok {
		results.Skipped++
		return OutcomeSkipped
	}

	value := rec.Value
	if rec.UpdateMode == config.ModePublicIP {
		if !publicIP.IsValid() {
			// The pass-level guard either resolved an address or aborted
			// the pass; reaching here without one is a programming error,
			// not an operational failure.
			panic("reconcile: add step for PublicIp record without resolved address")
		}
		value = publicIP.String()
	}

	qualified := Qualify(zone.Name, rec.Name)
	if err := e.dns.AddRecord(ctx, qualified, rec.Type, value); err != nil {
		slog.Error("Failed to add record", "zone", zone.Name, "name", qualified, "type", rec.Type, "error", err)
		results.Failures = append(results.Failures, OperationResult{
			Zone:  zone.Name,
			Name:  qualified,
			Type:  rec.Type,
			Op:    "add",
			Error: err.Error(),
		})
		return OutcomeError
	}

	results.Added = append(results.Added, provider.Record{Name: qualified, Type: rec.Type, Value: value})
	return OutcomeSuccess
}

func (e *engine) observeIPChange(ctx context.Context, addr netip.Addr) {
	if e.journal == nil {
		return
	}
	last, found, err := e.journal.Last(ctx)
	if err != nil {
		slog.Warn("fail read last observation from journal", "error", err)
		return
	}
	if found && last.PublicIP != "" && last.PublicIP != addr.String() {
		slog.Info("Public IP changed since last recorded pass", "previous", last.PublicIP, "current", addr)
	}
}

func (e *engine) recordPass(ctx context.Context, addr netip.Addr, results Results) {
	if e.journal == nil {
		return
	}
	obs := journal.Observation{
		Added:       len(results.Added),
		Removed:     len(results.Removed),
		Failed:      len(results.Failures),
		CompletedAt: time.Now().Unix(),
	}
	if addr.IsValid() {
		obs.PublicIP = addr.String()
	}
	if err := e.journal.Record(ctx, obs); err != nil {
		slog.Warn("fail record pass observation to journal", "error", err)
	}
}
