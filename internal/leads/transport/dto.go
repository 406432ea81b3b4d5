// Package transport defines the request/response DTOs of the leads module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// Lead status values. The status set is recorded, not enforced as a state
// machine; every transition lands in the history trail.
const (
	StatusNew           = "new"
	StatusContacted     = "contacted"
	StatusQualified     = "qualified"
	StatusNotInterested = "not_interested"
)

// CreateLeadRequest is the input for creating a lead.
type CreateLeadRequest struct {
	Source  string `json:"source" validate:"required,min=1,max=100"`
	Name    string `json:"name" validate:"max=200"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"max=40"`
	Message string `json:"message" validate:"max=5000"`
	// AssigneeID bypasses round-robin selection when set.
	AssigneeID *uuid.UUID `json:"assigneeId,omitempty"`
	// Detail carries the source-specific payload. Unknown fields are
	// filtered out, never rejected.
	Detail map[string]any `json:"detail,omitempty"`
}

// UpdateLeadStatusRequest is the input for a status transition.
type UpdateLeadStatusRequest struct {
	Status        string     `json:"status" validate:"required,oneof=new contacted qualified not_interested"`
	ActingAgentID *uuid.UUID `json:"actingAgentId,omitempty"`
	Note          string     `json:"note" validate:"max=2000"`
}

// LeadResponse is the outward representation of a lead.
type LeadResponse struct {
	ID              uuid.UUID      `json:"id"`
	Source          string         `json:"source"`
	ContactName     string         `json:"contactName"`
	ContactEmail    string         `json:"contactEmail"`
	ContactPhone    string         `json:"contactPhone"`
	Message         string         `json:"message"`
	Status          string         `json:"status"`
	AssignedAgentID *uuid.UUID     `json:"assignedAgentId"`
	Detail          map[string]any `json:"detail,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// HistoryEntryResponse is one row of the audit trail.
type HistoryEntryResponse struct {
	ID            uuid.UUID  `json:"id"`
	LeadID        uuid.UUID  `json:"leadId"`
	ActingAgentID *uuid.UUID `json:"actingAgentId"`
	OldStatus     *string    `json:"oldStatus"`
	NewStatus     string     `json:"newStatus"`
	Note          string     `json:"note"`
	CreatedAt     time.Time  `json:"createdAt"`
}
