package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lead2close/crm-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedLead(t *testing.T, st *SQLiteStore, lead *model.Lead) *model.Lead {
	t.Helper()
	created, err := st.CreateLead(context.Background(), lead)
	require.NoError(t, err)
	return created
}

// --- Leads ---

func TestSQLite_CreateAndGetLead(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created := seedLead(t, st, &model.Lead{
		BusinessName: "Acme Plumbing",
		City:         "Austin",
		Category:     "plumber",
		Phone:        "+15125550142",
		Email:        "info@acmeplumbing.com",
		WebsiteURL:   "https://acmeplumbing.com",
		Rating:       4.7,
		ReviewCount:  89,
		WorkingHours: map[string]string{"monday": "8-5"},
	})
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.EnrichmentNotEnriched, created.EnrichmentStatus)
	assert.Equal(t, model.OutreachNone, created.OutreachStatus)

	got, err := st.GetLead(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Plumbing", got.BusinessName)
	assert.Equal(t, "Austin", got.City)
	assert.Equal(t, 4.7, got.Rating)
	assert.Equal(t, map[string]string{"monday": "8-5"}, got.WorkingHours)
	assert.Nil(t, got.EnrichmentData)
}

func TestSQLite_GetLead_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetLead(context.Background(), "nonexistent")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListLeads_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedLead(t, st, &model.Lead{BusinessName: "A", City: "Austin"})
	seedLead(t, st, &model.Lead{BusinessName: "B", City: "Dallas"})
	seedLead(t, st, &model.Lead{BusinessName: "C", City: "Austin", EnrichmentStatus: model.EnrichmentEnriched})

	austin, err := st.ListLeads(ctx, LeadFilter{City: "Austin"})
	require.NoError(t, err)
	assert.Len(t, austin, 2)

	enriched, err := st.ListLeads(ctx, LeadFilter{EnrichmentStatus: model.EnrichmentEnriched})
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.Equal(t, "C", enriched[0].BusinessName)

	limited, err := st.ListLeads(ctx, LeadFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_UpdateLeadFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := seedLead(t, st, &model.Lead{BusinessName: "Acme", City: "Austin"})

	err := st.UpdateLeadFields(ctx, lead.ID, map[string]any{
		"city":            "Dallas",
		"outreach_status": string(model.OutreachQueued),
	})
	require.NoError(t, err)

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dallas", got.City)
	assert.Equal(t, model.OutreachQueued, got.OutreachStatus)
}

func TestSQLite_UpdateLeadFields_RejectsEnrichmentColumns(t *testing.T) {
	st := newTestSQLiteStore(t)

	lead := seedLead(t, st, &model.Lead{BusinessName: "Acme"})
	err := st.UpdateLeadFields(context.Background(), lead.ID, map[string]any{"enrichment_status": "enriched"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not updatable")
}

// --- Enrichment transitions ---

func TestSQLite_EnrichmentLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := seedLead(t, st, &model.Lead{BusinessName: "Acme"})

	require.NoError(t, st.SetEnrichmentStatus(ctx, lead.ID, model.EnrichmentEnriching))

	report := &model.IntelligenceReport{
		SchemaVersion: model.ReportSchemaVersion,
		Analysis: model.Analysis{
			BusinessType:           "Type A",
			BusinessSummary:        "local plumber",
			EstimatedTechSavviness: "low",
		},
		OutreachHook: "saw your reviews",
	}
	require.NoError(t, st.SaveEnrichmentSuccess(ctx, lead.ID, report))

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrichmentEnriched, got.EnrichmentStatus)
	require.NotNil(t, got.EnrichmentData)
	assert.Equal(t, "local plumber", got.EnrichmentData.Analysis.BusinessSummary)
	assert.Nil(t, got.EnrichmentError)
	require.NotNil(t, got.EnrichmentLastAt)
	assert.WithinDuration(t, time.Now(), *got.EnrichmentLastAt, time.Minute)
}

func TestSQLite_SaveEnrichmentFailure_PreservesData(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := seedLead(t, st, &model.Lead{BusinessName: "Acme"})
	report := &model.IntelligenceReport{
		SchemaVersion: model.ReportSchemaVersion,
		Analysis:      model.Analysis{BusinessSummary: "first pass", EstimatedTechSavviness: "low"},
		OutreachHook:  "hi",
	}
	require.NoError(t, st.SaveEnrichmentSuccess(ctx, lead.ID, report))

	// A failed retry records the diagnostic but keeps the prior report.
	err := st.SaveEnrichmentFailure(ctx, lead.ID, model.ErrorDetail{
		Kind:    model.ErrorKindTimeout,
		Message: "deadline exceeded",
	})
	require.NoError(t, err)

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrichmentFailed, got.EnrichmentStatus)
	require.NotNil(t, got.EnrichmentError)
	assert.Equal(t, model.ErrorKindTimeout, got.EnrichmentError.Kind)
	require.NotNil(t, got.EnrichmentData)
	assert.Equal(t, "first pass", got.EnrichmentData.Analysis.BusinessSummary)
}

func TestSQLite_SetEnrichmentStatus_MissingLead(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SetEnrichmentStatus(context.Background(), "ghost", model.EnrichmentEnriching)
	require.ErrorIs(t, err, ErrNotFound)
}

// --- Outreach queue ---

func TestSQLite_ClaimNextQueued_FIFO(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	older := time.Now().Add(-2 * time.Hour).UTC()
	newer := time.Now().Add(-1 * time.Hour).UTC()

	second := seedLead(t, st, &model.Lead{
		BusinessName:        "Second",
		OutreachStatus:      model.OutreachQueued,
		OutreachScheduledAt: &newer,
	})
	first := seedLead(t, st, &model.Lead{
		BusinessName:        "First",
		OutreachStatus:      model.OutreachQueued,
		OutreachScheduledAt: &older,
	})

	claimed, err := st.ClaimNextQueued(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first.ID, claimed.ID)
	assert.Equal(t, model.OutreachProcessing, claimed.OutreachStatus)

	claimed, err = st.ClaimNextQueued(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, second.ID, claimed.ID)

	claimed, err = st.ClaimNextQueued(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestSQLite_ClaimNextQueued_SkipsNonQueued(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedLead(t, st, &model.Lead{BusinessName: "Idle"})
	seedLead(t, st, &model.Lead{BusinessName: "Done", OutreachStatus: model.OutreachSent})

	claimed, err := st.ClaimNextQueued(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestSQLite_FinishOutreachAndMarkContacted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := seedLead(t, st, &model.Lead{BusinessName: "Acme", OutreachStatus: model.OutreachProcessing})

	require.NoError(t, st.FinishOutreach(ctx, lead.ID, model.OutreachSent, map[string]any{"sms": "ok"}))
	require.NoError(t, st.MarkContacted(ctx, lead.ID))

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutreachSent, got.OutreachStatus)
	assert.Equal(t, map[string]any{"sms": "ok"}, got.OutreachResults)
	require.NotNil(t, got.LastContactedAt)
}

// --- Send log ---

func TestSQLite_InsertSendLog(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := seedLead(t, st, &model.Lead{BusinessName: "Acme"})

	entry := &model.SendLog{
		UserID:   "user-1",
		LeadID:   lead.ID,
		Channel:  "sms",
		Provider: "twilio",
		ToValue:  "+15125550142",
		Body:     "hi there",
		Status:   "sent",
	}
	require.NoError(t, st.InsertSendLog(ctx, entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.SentAt.IsZero())
}

// --- Legacy report migration on read ---

func TestSQLite_GetLead_MigratesLegacyReport(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := seedLead(t, st, &model.Lead{BusinessName: "Acme"})

	// Version-1 payload written directly: no schema_version, no contact keys.
	legacy := `{"analysis": {"business_summary": "old", "estimated_tech_savviness": "low"}, "outreach_hook": "hi"}`
	_, err := st.db.ExecContext(ctx,
		`UPDATE leads SET enrichment_data = ?, enrichment_status = ? WHERE id = ?`,
		legacy, string(model.EnrichmentEnriched), lead.ID)
	require.NoError(t, err)

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EnrichmentData)
	assert.Equal(t, model.ReportSchemaVersion, got.EnrichmentData.SchemaVersion)
	assert.Len(t, got.EnrichmentData.ContactInfo.SocialPlatforms, len(model.SocialPlatforms))
	assert.NotNil(t, got.EnrichmentData.ContactInfo.EmailsFound)
}
