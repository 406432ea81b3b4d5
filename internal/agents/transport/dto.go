// Package transport defines the DTOs exchanged with the identity directory
// and returned by the agents module's operations.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// DirectoryRecord is the full current state of an agent as reported by the
// identity directory. Pointer fields distinguish "absent" from zero values:
// an absent field preserves the locally stored value during sync.
type DirectoryRecord struct {
	Email       *string  `json:"email,omitempty"`
	DisplayName *string  `json:"displayName,omitempty"`
	Role        *string  `json:"role,omitempty"`
	Active      *bool    `json:"active,omitempty"`
	// Sources is the explicit authorization-source list. nil means the
	// directory did not provide one; an empty non-nil slice is an explicit
	// "no sources".
	Sources []string `json:"sources,omitempty"`
	// LegacySource is the single-source field older directory records carry
	// instead of Sources.
	LegacySource *string `json:"legacySource,omitempty"`
}

// DirectoryEntry pairs an external identity id with its directory record.
type DirectoryEntry struct {
	ExternalID string          `json:"externalId"`
	Record     DirectoryRecord `json:"record"`
}

// SyncResult reports the outcome of syncing a single agent.
type SyncResult struct {
	AgentID uuid.UUID `json:"agentId"`
	Created bool      `json:"created"`
}

// SyncFailure records one agent whose sync failed within a batch.
type SyncFailure struct {
	ExternalID string `json:"externalId"`
	Error      string `json:"error"`
}

// SyncReport summarizes a full directory sync pass.
type SyncReport struct {
	Total    int           `json:"total"`
	Created  int           `json:"created"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Failures []SyncFailure `json:"failures,omitempty"`
}

// Discrepancy types reported by the reconciliation auditor.
const (
	DiscrepancyMissingInStore = "missing_in_store"
	DiscrepancySourceMismatch = "source_mismatch"
)

// Discrepancy describes one divergence between the identity directory and
// the relational store.
type Discrepancy struct {
	Type             string   `json:"type"`
	ExternalID       string   `json:"externalId"`
	Email            string   `json:"email,omitempty"`
	DirectorySources []string `json:"directorySources,omitempty"`
	StoreSources     []string `json:"storeSources,omitempty"`
}

// AgentResponse is the outward representation of an agent row.
type AgentResponse struct {
	ID          uuid.UUID `json:"id"`
	ExternalID  string    `json:"externalId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"isActive"`
	Sources     []string  `json:"sources"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
