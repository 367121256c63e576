package outreach

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lead2close/crm-cli/internal/model"
	"github.com/lead2close/crm-cli/internal/resilience"
	"github.com/lead2close/crm-cli/pkg/instantly"
)

// ErrNoEmail marks a lead that cannot be pushed because it has no usable
// email address.
var ErrNoEmail = eris.New("push: lead has no email")

// Pusher upserts enriched leads into an Instantly campaign.
type Pusher struct {
	client     instantly.Client
	campaignID string
	retry      resilience.RetryConfig
}

// NewPusher creates a campaign pusher. retries counts attempts beyond the
// first.
func NewPusher(client instantly.Client, campaignID string, retries int) *Pusher {
	retry := resilience.DefaultRetryConfig()
	if retries >= 0 {
		retry.MaxAttempts = retries + 1
	}
	retry.OnRetry = resilience.RetryLogger("instantly", "push_lead")
	return &Pusher{client: client, campaignID: campaignID, retry: retry}
}

// BuildCampaignLead maps a lead and its report into the campaign payload.
// The custom-variables bag carries the personalization the campaign
// templates reference.
func BuildCampaignLead(lead *model.Lead) (instantly.Lead, error) {
	report := lead.EnrichmentData

	// Emails discovered during enrichment beat the imported profile email;
	// the profile field is often blank for scraped leads.
	var email string
	if report != nil {
		for _, found := range report.ContactInfo.EmailsFound {
			if email = SanitizeEmail(found); email != "" {
				break
			}
		}
	}
	if email == "" {
		email = SanitizeEmail(lead.Email)
	}
	if email == "" {
		return instantly.Lead{}, eris.Wrap(ErrNoEmail, lead.ID)
	}

	out := instantly.Lead{
		Email:       email,
		CompanyName: lead.BusinessName,
		Website:     lead.WebsiteURL,
		CustomVariables: map[string]any{
			"source": "Lead2Close",
		},
	}

	if report == nil || report.EmailData == nil {
		return out, nil
	}

	ed := report.EmailData
	if ed.FoundFirstName != nil && *ed.FoundFirstName != "" {
		out.FirstName = *ed.FoundFirstName
	}
	for i, win := range ed.QuickWins {
		switch i {
		case 0:
			out.CustomVariables["quick_win_1"] = win
		case 1:
			out.CustomVariables["quick_win_2"] = win
		case 2:
			out.CustomVariables["quick_win_3"] = win
		}
	}
	out.CustomVariables["estimated_lift"] = ed.EstimatedLift
	out.CustomVariables["primary_service"] = ed.PrimaryService

	return out, nil
}

// PushOne pushes a single lead, retrying transient provider failures.
func (p *Pusher) PushOne(ctx context.Context, lead *model.Lead) error {
	payload, err := BuildCampaignLead(lead)
	if err != nil {
		return err
	}
	return resilience.Do(ctx, p.retry, func(ctx context.Context) error {
		return p.client.PushLead(ctx, payload, p.campaignID)
	})
}

// PushAll pushes a set of enriched leads, skipping those without an email.
// One lead's provider failure does not stop the rest.
func (p *Pusher) PushAll(ctx context.Context, leads []model.Lead) (pushed, skipped, failed int) {
	for i := range leads {
		err := p.PushOne(ctx, &leads[i])
		switch {
		case err == nil:
			pushed++
		case eris.Is(err, ErrNoEmail):
			skipped++
		default:
			failed++
			zap.L().Warn("push: lead failed",
				zap.String("lead_id", leads[i].ID),
				zap.Error(err),
			)
		}
		if ctx.Err() != nil {
			return pushed, skipped, failed
		}
	}
	return pushed, skipped, failed
}
