package model

import (
	"time"
)

// EnrichmentStatus represents the enrichment state of a lead.
type EnrichmentStatus string

const (
	EnrichmentNotEnriched      EnrichmentStatus = "not_enriched"
	EnrichmentEnriching        EnrichmentStatus = "enriching"
	EnrichmentEnriched         EnrichmentStatus = "enriched"
	EnrichmentManuallyEnriched EnrichmentStatus = "manually_enriched"
	EnrichmentFailed           EnrichmentStatus = "failed"
)

// OutreachStatus represents the outreach-queue state of a lead.
type OutreachStatus string

const (
	OutreachNone       OutreachStatus = "none"
	OutreachQueued     OutreachStatus = "queued"
	OutreachProcessing OutreachStatus = "processing"
	OutreachSent       OutreachStatus = "sent"
	OutreachFailed     OutreachStatus = "failed"
)

// ErrorKind classifies an enrichment failure for operator diagnosis.
type ErrorKind string

const (
	ErrorKindNotFound       ErrorKind = "lead_not_found"
	ErrorKindClassification ErrorKind = "classification"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindStore          ErrorKind = "store"
)

// ErrorDetail records why an enrichment attempt failed. Persisted alongside
// the failed status so the UI contract (status-only polling) stays intact.
type ErrorDetail struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Lead is the central CRM entity: a prospective business contact tracked
// through sourcing, enrichment, qualification, and outreach.
type Lead struct {
	ID string `json:"id"`

	// Google-listing profile fields, populated at import.
	BusinessName string            `json:"business_name"`
	City         string            `json:"city,omitempty"`
	Category     string            `json:"category,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Email        string            `json:"email,omitempty"`
	WebsiteURL   string            `json:"website_url,omitempty"`
	Rating       float64           `json:"rating,omitempty"`
	ReviewCount  int               `json:"review_count,omitempty"`
	WorkingHours map[string]string `json:"working_hours,omitempty"`
	HasOptIn     bool              `json:"has_opt_in"`

	// Enrichment fields, mutated only by the orchestrator.
	EnrichmentStatus EnrichmentStatus    `json:"enrichment_status"`
	EnrichmentData   *IntelligenceReport `json:"enrichment_data,omitempty"`
	EnrichmentLastAt *time.Time          `json:"enrichment_last_at,omitempty"`
	EnrichmentError  *ErrorDetail        `json:"enrichment_error,omitempty"`

	// Qualification fields, produced by the sibling scanner and consumed
	// read-only as classifier context.
	ScanScore            *float64 `json:"scan_score,omitempty"`
	ScanConfidence       string   `json:"scan_confidence,omitempty"`
	ScanReasons          []string `json:"scan_reasons,omitempty"`
	ScanRecommendedAngle string   `json:"scan_recommended_angle,omitempty"`

	// Outreach queue fields, mutated only by the queue drainer.
	OutreachStatus      OutreachStatus `json:"outreach_status"`
	OutreachScheduledAt *time.Time     `json:"outreach_scheduled_at,omitempty"`
	OutreachResults     map[string]any `json:"outreach_results,omitempty"`
	LastContactedAt     *time.Time     `json:"last_contacted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SendLog is one append-only outreach audit record.
type SendLog struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	LeadID   string    `json:"lead_id"`
	Channel  string    `json:"channel"`  // "sms" or "email"
	Provider string    `json:"provider"` // "twilio" or "resend"
	ToValue  string    `json:"to_value"`
	Subject  string    `json:"subject,omitempty"`
	Body     string    `json:"body"`
	Status   string    `json:"status"`
	SentAt   time.Time `json:"sent_at"`
}

// SMSVariant names a generated SMS style.
type SMSVariant string

const (
	SMSUltraShort SMSVariant = "ultra_short"
	SMSShort      SMSVariant = "short"
	SMSFollowUp   SMSVariant = "follow_up"
)

// EmailVariant names a generated email style.
type EmailVariant string

const (
	EmailShort    EmailVariant = "short"
	EmailFollowUp EmailVariant = "follow_up"
)

// SMSMessage is one generated SMS candidate.
type SMSMessage struct {
	Variant SMSVariant `json:"variant"`
	Text    string     `json:"text"`
}

// EmailMessage is one generated email candidate.
type EmailMessage struct {
	Variant EmailVariant `json:"variant"`
	Subject string       `json:"subject"`
	Text    string       `json:"text"`
}

// OutreachContent is the copy generated for one lead's outreach attempt.
type OutreachContent struct {
	SMS   []SMSMessage   `json:"sms"`
	Email []EmailMessage `json:"email"`
}

// FirstSMS returns the text of the first SMS candidate, or "".
func (c *OutreachContent) FirstSMS() string {
	if c == nil || len(c.SMS) == 0 {
		return ""
	}
	return c.SMS[0].Text
}

// FirstEmail returns the subject and body of the first email candidate.
func (c *OutreachContent) FirstEmail() (subject, body string) {
	if c == nil || len(c.Email) == 0 {
		return "", ""
	}
	return c.Email[0].Subject, c.Email[0].Text
}
