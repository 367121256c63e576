package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/lead2close/crm-cli/internal/fetcher"
	"github.com/lead2close/crm-cli/internal/model"
	"github.com/lead2close/crm-cli/internal/store"
)

func TestEnrichBatch_FailureDoesNotStopGroup(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	st := &mockStore{}
	for _, id := range ids {
		if id == "c" {
			// One bad id in the middle group must not block the rest.
			st.On("SetEnrichmentStatus", mock.Anything, "c", model.EnrichmentEnriching).
				Return(store.ErrNotFound)
			continue
		}
		lead := acmeLead()
		lead.ID = id
		lead.WebsiteURL = ""
		st.On("SetEnrichmentStatus", mock.Anything, id, model.EnrichmentEnriching).Return(nil)
		st.On("GetLead", mock.Anything, id).Return(lead, nil)
		st.On("SaveEnrichmentSuccess", mock.Anything, id, mock.Anything).Return(nil)
	}

	ai := &mockAIClient{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(validReportJSON), nil)

	o := NewOrchestrator(st, fetcher.New(time.Second), nil, NewClassifier(ai, "m", 4096), testEnrichCfg(), testSearchCfg())

	var updates [][2]int
	res := o.EnrichBatch(context.Background(), ids, 3, func(completed, total int) {
		updates = append(updates, [2]int{completed, total})
	})

	assert.Equal(t, 4, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	// Cumulative progress after each fully-awaited group.
	assert.Equal(t, [][2]int{{3, 5}, {5, 5}}, updates)
	st.AssertExpectations(t)
}

func TestEnrichBatch_Empty(t *testing.T) {
	o := NewOrchestrator(&mockStore{}, fetcher.New(time.Second), nil, NewClassifier(&mockAIClient{}, "m", 4096), testEnrichCfg(), testSearchCfg())

	called := false
	res := o.EnrichBatch(context.Background(), nil, 3, func(_, _ int) { called = true })

	assert.Zero(t, res.Succeeded)
	assert.Zero(t, res.Failed)
	assert.False(t, called)
}

func TestEnrichBatch_DefaultGroupSize(t *testing.T) {
	lead := acmeLead()
	lead.WebsiteURL = ""

	st := &mockStore{}
	st.On("SetEnrichmentStatus", mock.Anything, "lead-1", model.EnrichmentEnriching).Return(nil)
	st.On("GetLead", mock.Anything, "lead-1").Return(lead, nil)
	st.On("SaveEnrichmentSuccess", mock.Anything, "lead-1", mock.Anything).Return(nil)

	ai := &mockAIClient{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(validReportJSON), nil)

	o := NewOrchestrator(st, fetcher.New(time.Second), nil, NewClassifier(ai, "m", 4096), testEnrichCfg(), testSearchCfg())
	res := o.EnrichBatch(context.Background(), []string{"lead-1"}, 0, nil)

	assert.Equal(t, 1, res.Succeeded)
}
