package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/lead2close/crm-cli/internal/model"
)

// ErrNotFound is returned when a lead id does not exist.
var ErrNotFound = eris.New("store: lead not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	EnrichmentStatus model.EnrichmentStatus `json:"enrichment_status,omitempty"`
	OutreachStatus   model.OutreachStatus   `json:"outreach_status,omitempty"`
	City             string                 `json:"city,omitempty"`
	Limit            int                    `json:"limit,omitempty"`
	Offset           int                    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the CRM core.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadFields(ctx context.Context, id string, fields map[string]any) error

	// Enrichment transitions. Only the orchestrator calls these.
	SetEnrichmentStatus(ctx context.Context, id string, status model.EnrichmentStatus) error
	SaveEnrichmentSuccess(ctx context.Context, id string, report *model.IntelligenceReport) error
	SaveEnrichmentFailure(ctx context.Context, id string, detail model.ErrorDetail) error

	// Outreach queue. ClaimNextQueued atomically selects the oldest queued
	// lead and transitions it to processing; returns (nil, nil) when the
	// queue is empty.
	ClaimNextQueued(ctx context.Context) (*model.Lead, error)
	FinishOutreach(ctx context.Context, id string, status model.OutreachStatus, results map[string]any) error
	MarkContacted(ctx context.Context, id string) error

	// Send audit log, append-only.
	InsertSendLog(ctx context.Context, entry *model.SendLog) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
