package service

import (
	"context"
	"sort"

	"leadrouter_backend/internal/agents/repository"
	"leadrouter_backend/internal/agents/transport"
	"leadrouter_backend/platform/apperr"

	"golang.org/x/sync/errgroup"
)

// AuditStore is the read interface onto the relational store used by the
// auditor.
type AuditStore interface {
	ListAllWithSources(ctx context.Context) ([]repository.AgentWithSources, error)
}

// Auditor compares the identity directory against the relational store and
// reports drift. It never mutates either store.
type Auditor struct {
	store AuditStore
	dir   Directory
}

// NewAuditor creates a new reconciliation auditor.
func NewAuditor(store AuditStore, dir Directory) *Auditor {
	return &Auditor{store: store, dir: dir}
}

// FindDiscrepancies loads both stores and reports every directory agent that
// is missing from the store and every agent whose authorization-source sets
// differ. Agents present only in the store are deliberately not reported:
// the store never deletes agents on directory removal.
func (a *Auditor) FindDiscrepancies(ctx context.Context) ([]transport.Discrepancy, error) {
	var (
		entries []transport.DirectoryEntry
		stored  []repository.AgentWithSources
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = a.dir.ListAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stored, err = a.store.ListAllWithSources(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Unavailable("failed to load stores for reconciliation", err)
	}

	byExternalID := make(map[string]repository.AgentWithSources, len(stored))
	for _, item := range stored {
		byExternalID[item.Agent.ExternalID] = item
	}

	discrepancies := make([]transport.Discrepancy, 0)
	for _, entry := range entries {
		item, ok := byExternalID[entry.ExternalID]
		if !ok {
			d := transport.Discrepancy{
				Type:       transport.DiscrepancyMissingInStore,
				ExternalID: entry.ExternalID,
			}
			if entry.Record.Email != nil {
				d.Email = *entry.Record.Email
			}
			discrepancies = append(discrepancies, d)
			continue
		}

		dirSources, comparable := directorySources(entry.Record)
		if !comparable {
			continue
		}
		storeSources := normalizeSources(item.Sources)
		if !equalSources(dirSources, storeSources) {
			discrepancies = append(discrepancies, transport.Discrepancy{
				Type:             transport.DiscrepancySourceMismatch,
				ExternalID:       entry.ExternalID,
				Email:            item.Agent.Email,
				DirectorySources: dirSources,
				StoreSources:     storeSources,
			})
		}
	}

	sort.Slice(discrepancies, func(i, j int) bool {
		return discrepancies[i].ExternalID < discrepancies[j].ExternalID
	})

	return discrepancies, nil
}

// directorySources resolves the effective authorization sources a directory
// record implies, honoring the legacy single-source field. Admin records
// normalize to the empty set so a correctly synced admin is never flagged.
// A silent record (no explicit list, no legacy field) is not comparable:
// sync preserves the local set for those, so the auditor has no claim to
// check it against.
func directorySources(rec transport.DirectoryRecord) (sources []string, comparable bool) {
	if rec.Role != nil && *rec.Role == RoleAdmin {
		return []string{}, true
	}
	if rec.Sources != nil {
		return normalizeSources(rec.Sources), true
	}
	if rec.LegacySource != nil && *rec.LegacySource != "" {
		return []string{*rec.LegacySource}, true
	}
	return nil, false
}

func equalSources(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
