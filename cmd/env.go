package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lead2close/crm-cli/internal/enrich"
	"github.com/lead2close/crm-cli/internal/fetcher"
	"github.com/lead2close/crm-cli/internal/outreach"
	"github.com/lead2close/crm-cli/internal/store"
	anthropicpkg "github.com/lead2close/crm-cli/pkg/anthropic"
	"github.com/lead2close/crm-cli/pkg/ddg"
	"github.com/lead2close/crm-cli/pkg/resend"
	"github.com/lead2close/crm-cli/pkg/twilio"
)

// enrichEnv holds the store and orchestrator the enrich/batch/serve commands
// share. Callers should defer env.Close().
type enrichEnv struct {
	Store        store.Store
	Orchestrator *enrich.Orchestrator
}

func (e *enrichEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnrich sets up the store, AI client, fetcher, and search client, and
// builds the enrichment orchestrator.
func initEnrich(ctx context.Context) (*enrichEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic key is required (CRM_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	ai := anthropicpkg.NewClient(cfg.Anthropic.Key)
	classifier := enrich.NewClassifier(ai, cfg.Anthropic.ReportModel, cfg.Anthropic.MaxTokens)

	f := fetcher.New(time.Duration(cfg.Fetch.TimeoutSecs)*time.Second,
		fetcher.WithUserAgent(cfg.Fetch.UserAgent),
		fetcher.WithMaxBodyBytes(cfg.Fetch.MaxBodyBytes),
	)

	search := ddg.NewClient(
		ddg.WithBaseURL(cfg.Search.BaseURL),
		ddg.WithRateLimit(cfg.Search.RequestsPerSec),
		ddg.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Search.TimeoutSecs) * time.Second}),
	)

	return &enrichEnv{
		Store:        st,
		Orchestrator: enrich.NewOrchestrator(st, f, search, classifier, cfg.Enrich, cfg.Search),
	}, nil
}

// initDrainer sets up the queue drainer with whichever send channels are
// configured. Either channel may be absent.
func initDrainer(ctx context.Context) (store.Store, *outreach.Drainer, error) {
	if cfg.Anthropic.Key == "" {
		return nil, nil, eris.New("anthropic key is required (CRM_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	ai := anthropicpkg.NewClient(cfg.Anthropic.Key)
	gen := outreach.NewGenerator(ai, cfg.Anthropic.MessageModel, cfg.Anthropic.MaxTokens)

	var sms twilio.Client
	if cfg.Outreach.TwilioSID != "" && cfg.Outreach.TwilioToken != "" && cfg.Outreach.TwilioFrom != "" {
		sms = twilio.NewClient(cfg.Outreach.TwilioSID, cfg.Outreach.TwilioToken, cfg.Outreach.TwilioFrom)
	}

	var email resend.Client
	if cfg.Outreach.ResendKey != "" && cfg.Outreach.ResendFrom != "" {
		email = resend.NewClient(cfg.Outreach.ResendKey, cfg.Outreach.ResendFrom)
	}

	return st, outreach.NewDrainer(st, gen, sms, email, cfg.Outreach), nil
}
