// Package enrich implements the lead enrichment pipeline: fetch the
// business website, extract signal, classify via LLM, and persist the
// resulting Intelligence Report through a small status state machine.
package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lead2close/crm-cli/internal/config"
	"github.com/lead2close/crm-cli/internal/extract"
	"github.com/lead2close/crm-cli/internal/fetcher"
	"github.com/lead2close/crm-cli/internal/model"
	"github.com/lead2close/crm-cli/internal/resilience"
	"github.com/lead2close/crm-cli/internal/store"
	"github.com/lead2close/crm-cli/pkg/ddg"
)

// Orchestrator drives one lead through not_enriched → enriching →
// {enriched | failed}. It is the only component that writes those statuses.
type Orchestrator struct {
	store      store.Store
	fetcher    *fetcher.SiteFetcher
	search     ddg.Client // nil disables the search pass
	classifier *Classifier

	timeout         time.Duration
	maxWebsiteChars int
	maxSearchLinks  int
	searchRetry     resilience.RetryConfig
}

// NewOrchestrator wires the enrichment pipeline.
func NewOrchestrator(st store.Store, f *fetcher.SiteFetcher, search ddg.Client, cl *Classifier, enrichCfg config.EnrichConfig, searchCfg config.SearchConfig) *Orchestrator {
	retry := resilience.FromRetryConfig(searchCfg.Retries+1, searchCfg.BackoffMs, 0, 0, -1)
	retry.OnRetry = resilience.RetryLogger("ddg", "search")

	timeout := time.Duration(enrichCfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	return &Orchestrator{
		store:           st,
		fetcher:         f,
		search:          search,
		classifier:      cl,
		timeout:         timeout,
		maxWebsiteChars: enrichCfg.MaxWebsiteChars,
		maxSearchLinks:  searchCfg.MaxResults,
		searchRetry:     retry,
	}
}

// Enrich runs the full state machine for one lead. The outcome is always
// persisted; the returned error exists for CLI reporting and batch counting.
// A failed attempt never clears a previously persisted report.
func (o *Orchestrator) Enrich(ctx context.Context, id string) error {
	if err := o.store.SetEnrichmentStatus(ctx, id, model.EnrichmentEnriching); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return eris.Wrap(err, "enrich: lead not found")
		}
		return eris.Wrap(err, "enrich: mark enriching")
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	lead, err := o.store.GetLead(ctx, id)
	if err != nil {
		return o.fail(ctx, id, model.ErrorKindStore, eris.Wrap(err, "enrich: load lead"))
	}

	sig := o.collectSignal(ctx, lead)

	report, err := o.classifier.GenerateReport(ctx, lead, sig)
	if err != nil {
		kind := model.ErrorKindClassification
		if errors.Is(err, context.DeadlineExceeded) {
			kind = model.ErrorKindTimeout
		}
		return o.fail(ctx, id, kind, err)
	}

	if err := o.store.SaveEnrichmentSuccess(ctx, id, report); err != nil {
		return eris.Wrap(err, "enrich: persist report")
	}

	zap.L().Info("enrich: lead enriched",
		zap.String("lead_id", id),
		zap.Bool("website_reachable", sig.WebsiteReachable),
		zap.Int("emails_found", len(sig.Emails)),
	)
	return nil
}

// EnrichOne is the fire-and-forget form used by the webhook trigger: the
// outcome lands in the persisted status, never in a transport error.
func (o *Orchestrator) EnrichOne(ctx context.Context, id string) {
	if err := o.Enrich(ctx, id); err != nil {
		zap.L().Warn("enrich: lead failed",
			zap.String("lead_id", id),
			zap.Error(err),
		)
	}
}

// fail persists the failed status with a diagnostic detail, leaving prior
// enrichment data in place.
func (o *Orchestrator) fail(ctx context.Context, id string, kind model.ErrorKind, cause error) error {
	detail := model.ErrorDetail{
		Kind:    kind,
		Message: cause.Error(),
	}
	// The run context may already be past its deadline; the status write
	// still has to land.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.store.SaveEnrichmentFailure(persistCtx, id, detail); err != nil {
		zap.L().Error("enrich: persist failure status",
			zap.String("lead_id", id),
			zap.Error(err),
		)
	}
	return cause
}

// collectSignal runs the fetch, extraction, and optional search passes.
// Nothing here fails enrichment: every path degrades to weaker signal.
func (o *Orchestrator) collectSignal(ctx context.Context, lead *model.Lead) Signal {
	var sig Signal

	// A lead without a website skips the fetch entirely and keeps the text
	// empty. The unreachable marker is reserved for sites that exist but
	// could not be fetched.
	if lead.WebsiteURL != "" {
		res := o.fetcher.Fetch(ctx, lead.WebsiteURL)
		if res.Unreachable {
			sig.WebsiteText = fetcher.UnreachableMarker
		} else {
			sig.WebsiteReachable = true
			sig.WebsiteText = extract.VisibleText(res.RawHTML, o.maxWebsiteChars)
			sig.SocialLinks = extract.SocialLinks(res.RawHTML)
			sig.Emails = extract.Emails(res.RawHTML)
		}
	}

	if o.search == nil {
		return sig
	}

	query := extract.SearchQuery(lead.BusinessName, lead.City)
	html, err := resilience.DoVal(ctx, o.searchRetry, func(ctx context.Context) (string, error) {
		return o.search.Search(ctx, query)
	})
	if err != nil {
		zap.L().Warn("enrich: search pass failed",
			zap.String("lead_id", lead.ID),
			zap.String("query", query),
			zap.Error(err),
		)
		return sig
	}

	results := extract.ParseSearchResults(html, o.maxSearchLinks)
	lines := make([]string, 0, len(results))
	for _, r := range results {
		sig.SearchLinks = append(sig.SearchLinks, r.URL)
		if r.Title != "" {
			lines = append(lines, "- "+r.Title+": "+r.URL)
		} else {
			lines = append(lines, "- "+r.URL)
		}
	}
	sig.SearchContext = strings.Join(lines, "\n")
	return sig
}
