package outreach

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lead2close/crm-cli/internal/model"
	"github.com/lead2close/crm-cli/pkg/instantly"
)

func TestBuildCampaignLead(t *testing.T) {
	lead := queuedLead()
	lead.WebsiteURL = "https://acmeplumbing.com"

	payload, err := BuildCampaignLead(lead)
	require.NoError(t, err)

	assert.Equal(t, "info@acmeplumbing.com", payload.Email)
	assert.Equal(t, "Dave", payload.FirstName)
	assert.Equal(t, "Acme Plumbing", payload.CompanyName)
	assert.Equal(t, "https://acmeplumbing.com", payload.Website)
	assert.Equal(t, "Lead2Close", payload.CustomVariables["source"])
	assert.Equal(t, "a", payload.CustomVariables["quick_win_1"])
	assert.Equal(t, "c", payload.CustomVariables["quick_win_3"])
	assert.Equal(t, "15-25% more inquiries", payload.CustomVariables["estimated_lift"])
	assert.Equal(t, "drain cleaning", payload.CustomVariables["primary_service"])
}

func TestBuildCampaignLead_DiscoveredEmailBeatsProfile(t *testing.T) {
	lead := queuedLead()
	lead.Email = "front-desk@acmeplumbing.com"
	lead.EnrichmentData.ContactInfo.EmailsFound = []string{"MAILTO:Owner@AcmePlumbing.com"}

	payload, err := BuildCampaignLead(lead)
	require.NoError(t, err)
	assert.Equal(t, "owner@acmeplumbing.com", payload.Email)
}

func TestBuildCampaignLead_DiscoveredEmailFillsBlankProfile(t *testing.T) {
	lead := queuedLead()
	lead.Email = ""
	lead.EnrichmentData.ContactInfo.EmailsFound = []string{"not-an-address", "owner@acmeplumbing.com"}

	payload, err := BuildCampaignLead(lead)
	require.NoError(t, err)
	// The first usable discovered address wins; junk entries are skipped.
	assert.Equal(t, "owner@acmeplumbing.com", payload.Email)
}

func TestBuildCampaignLead_NoEmail(t *testing.T) {
	lead := queuedLead()
	lead.Email = ""

	_, err := BuildCampaignLead(lead)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoEmail))
}

func TestBuildCampaignLead_NoReportStillPushable(t *testing.T) {
	lead := queuedLead()
	lead.EnrichmentData = nil

	payload, err := BuildCampaignLead(lead)
	require.NoError(t, err)
	assert.Equal(t, "Lead2Close", payload.CustomVariables["source"])
	assert.Empty(t, payload.FirstName)
	assert.NotContains(t, payload.CustomVariables, "quick_win_1")
}

func TestPushAll_CountsOutcomes(t *testing.T) {
	good := queuedLead()
	noEmail := queuedLead()
	noEmail.ID = "lead-2"
	noEmail.Email = ""
	flaky := queuedLead()
	flaky.ID = "lead-3"
	flaky.Email = "flaky@acme.com"

	client := &mockInstantlyClient{}
	client.On("PushLead", mock.Anything, mock.MatchedBy(func(l instantly.Lead) bool {
		return l.Email == "info@acmeplumbing.com"
	}), "camp-1").Return(nil)
	client.On("PushLead", mock.Anything, mock.MatchedBy(func(l instantly.Lead) bool {
		return l.Email == "flaky@acme.com"
	}), "camp-1").Return(eris.New("instantly: status 400: bad payload"))

	p := NewPusher(client, "camp-1", 0)
	pushed, skipped, failed := p.PushAll(context.Background(), []model.Lead{*good, *noEmail, *flaky})

	assert.Equal(t, 1, pushed)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, failed)
}
