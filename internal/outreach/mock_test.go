package outreach

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lead2close/crm-cli/internal/model"
	"github.com/lead2close/crm-cli/internal/store"
	"github.com/lead2close/crm-cli/pkg/anthropic"
	"github.com/lead2close/crm-cli/pkg/instantly"
)

// --- Anthropic Mock ---

type mockAIClient struct {
	mock.Mock
}

func (m *mockAIClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

// --- Channel Mocks ---

type mockSMSClient struct {
	mock.Mock
}

func (m *mockSMSClient) SendSMS(ctx context.Context, to, body string) error {
	args := m.Called(ctx, to, body)
	return args.Error(0)
}

type mockEmailClient struct {
	mock.Mock
}

func (m *mockEmailClient) SendEmail(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type mockInstantlyClient struct {
	mock.Mock
}

func (m *mockInstantlyClient) PushLead(ctx context.Context, lead instantly.Lead, campaignID string) error {
	args := m.Called(ctx, lead, campaignID)
	return args.Error(0)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	args := m.Called(ctx, lead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

func (m *mockStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

func (m *mockStore) ListLeads(ctx context.Context, filter store.LeadFilter) ([]model.Lead, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Lead), args.Error(1)
}

func (m *mockStore) UpdateLeadFields(ctx context.Context, id string, fields map[string]any) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *mockStore) SetEnrichmentStatus(ctx context.Context, id string, status model.EnrichmentStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockStore) SaveEnrichmentSuccess(ctx context.Context, id string, report *model.IntelligenceReport) error {
	args := m.Called(ctx, id, report)
	return args.Error(0)
}

func (m *mockStore) SaveEnrichmentFailure(ctx context.Context, id string, detail model.ErrorDetail) error {
	args := m.Called(ctx, id, detail)
	return args.Error(0)
}

func (m *mockStore) ClaimNextQueued(ctx context.Context) (*model.Lead, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

func (m *mockStore) FinishOutreach(ctx context.Context, id string, status model.OutreachStatus, results map[string]any) error {
	args := m.Called(ctx, id, status, results)
	return args.Error(0)
}

func (m *mockStore) MarkContacted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) InsertSendLog(ctx context.Context, entry *model.SendLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
