package outreach

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lead2close/crm-cli/internal/config"
	"github.com/lead2close/crm-cli/internal/model"
	"github.com/lead2close/crm-cli/internal/resilience"
	"github.com/lead2close/crm-cli/internal/store"
	"github.com/lead2close/crm-cli/pkg/resend"
	"github.com/lead2close/crm-cli/pkg/twilio"
)

// Drainer pops queued leads one at a time, generates copy, and sends it over
// whichever channels have both a destination on the lead and a configured
// provider. Every send attempt lands in the append-only send log.
type Drainer struct {
	store    store.Store
	gen      *Generator
	sms      twilio.Client // nil when SMS is unconfigured
	email    resend.Client // nil when email is unconfigured
	userID   string
	breakers *resilience.ServiceBreakers
}

// NewDrainer wires the queue drainer. Either channel client may be nil.
func NewDrainer(st store.Store, gen *Generator, sms twilio.Client, email resend.Client, cfg config.OutreachConfig) *Drainer {
	bc := resilience.FromCircuitConfig(cfg.CircuitThreshold, cfg.CircuitResetSecs)
	return &Drainer{
		store:    st,
		gen:      gen,
		sms:      sms,
		email:    email,
		userID:   cfg.UserID,
		breakers: resilience.NewServiceBreakers(bc),
	}
}

// DrainOne claims the oldest queued lead and processes it to a terminal
// outreach status. Returns false when the queue is empty.
func (d *Drainer) DrainOne(ctx context.Context) (bool, error) {
	lead, err := d.store.ClaimNextQueued(ctx)
	if err != nil {
		return false, eris.Wrap(err, "drain: claim next")
	}
	if lead == nil {
		return false, nil
	}

	zap.L().Info("drain: processing lead",
		zap.String("lead_id", lead.ID),
		zap.String("business", lead.BusinessName),
	)

	if lead.EnrichmentData == nil {
		return true, d.failLead(ctx, lead.ID, "lead has no enrichment data")
	}

	content, err := d.gen.Generate(ctx, lead, lead.EnrichmentData)
	if err != nil {
		return true, d.failLead(ctx, lead.ID, err.Error())
	}

	results := map[string]any{}
	sentAny := false

	if lead.Phone != "" && d.sms != nil {
		if body := content.FirstSMS(); body != "" {
			ok := d.send(ctx, lead, "sms", "twilio", lead.Phone, "", body, func() error {
				return d.sms.SendSMS(ctx, lead.Phone, body)
			})
			results["sms"] = map[string]any{"to": lead.Phone, "sent": ok, "body": body}
			sentAny = sentAny || ok
		}
	}

	if addr := SanitizeEmail(lead.Email); addr != "" && d.email != nil {
		if subject, body := content.FirstEmail(); body != "" {
			ok := d.send(ctx, lead, "email", "resend", addr, subject, body, func() error {
				return d.email.SendEmail(ctx, addr, subject, body)
			})
			results["email"] = map[string]any{"to": addr, "sent": ok, "subject": subject}
			sentAny = sentAny || ok
		}
	}

	if !sentAny {
		if len(results) == 0 {
			results["error"] = "no usable channel: missing destination or provider"
		}
		if err := d.store.FinishOutreach(ctx, lead.ID, model.OutreachFailed, results); err != nil {
			return true, eris.Wrap(err, "drain: mark failed")
		}
		return true, nil
	}

	if err := d.store.FinishOutreach(ctx, lead.ID, model.OutreachSent, results); err != nil {
		return true, eris.Wrap(err, "drain: mark sent")
	}
	if err := d.store.MarkContacted(ctx, lead.ID); err != nil {
		zap.L().Warn("drain: mark contacted", zap.String("lead_id", lead.ID), zap.Error(err))
	}
	return true, nil
}

// Drain processes queued leads until the queue is empty or max is reached.
// max <= 0 means no cap.
func (d *Drainer) Drain(ctx context.Context, max int) (int, error) {
	processed := 0
	for max <= 0 || processed < max {
		drained, err := d.DrainOne(ctx)
		if err != nil {
			return processed, err
		}
		if !drained {
			break
		}
		processed++
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
	}
	return processed, nil
}

// send performs one channel send through the provider's circuit breaker and
// logs the attempt regardless of outcome.
func (d *Drainer) send(ctx context.Context, lead *model.Lead, channel, provider, to, subject, body string, doSend func() error) bool {
	sendErr := d.breakers.Get(provider).Execute(ctx, func(context.Context) error {
		return doSend()
	})

	status := "sent"
	if sendErr != nil {
		status = "failed"
		zap.L().Warn("drain: send failed",
			zap.String("lead_id", lead.ID),
			zap.String("channel", channel),
			zap.Error(sendErr),
		)
	}

	entry := &model.SendLog{
		ID:       uuid.NewString(),
		UserID:   d.userID,
		LeadID:   lead.ID,
		Channel:  channel,
		Provider: provider,
		ToValue:  to,
		Subject:  subject,
		Body:     body,
		Status:   status,
		SentAt:   time.Now().UTC(),
	}
	if err := d.store.InsertSendLog(ctx, entry); err != nil {
		zap.L().Error("drain: insert send log", zap.String("lead_id", lead.ID), zap.Error(err))
	}

	return sendErr == nil
}

func (d *Drainer) failLead(ctx context.Context, id, reason string) error {
	results := map[string]any{"error": reason}
	if err := d.store.FinishOutreach(ctx, id, model.OutreachFailed, results); err != nil {
		return eris.Wrap(err, "drain: mark failed")
	}
	return nil
}

// SanitizeEmail normalizes a CRM email field: mailto: prefixes stripped,
// lowercased, trimmed. Returns "" for values with no @.
func SanitizeEmail(raw string) string {
	addr := strings.ToLower(strings.TrimSpace(raw))
	addr = strings.TrimPrefix(addr, "mailto:")
	if !strings.Contains(addr, "@") {
		return ""
	}
	return addr
}
