package enrich

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/lead2close/crm-cli/internal/extract"
	"github.com/lead2close/crm-cli/internal/model"
	"github.com/lead2close/crm-cli/pkg/anthropic"
)

// ErrInvalidReport marks classifier output that parsed but failed the report
// contract. Not transient: retrying the same prompt rarely helps.
var ErrInvalidReport = eris.New("classifier: response violates report contract")

// Signal is the accumulated input to one classification call.
type Signal struct {
	WebsiteText      string
	WebsiteReachable bool
	SocialLinks      []string
	SearchLinks      []string
	Emails           []string
	SearchContext    string
}

// reportSchema is the structural contract for classifier output. Enum and
// length checks beyond what JSON Schema expresses cleanly live in
// model.IntelligenceReport.Validate.
const reportSchema = `{
  "type": "object",
  "required": ["analysis", "monitoring_signals", "outreach_hook"],
  "properties": {
    "analysis": {
      "type": "object",
      "required": ["business_summary", "estimated_tech_savviness"],
      "properties": {
        "business_type": {"type": "string"},
        "business_summary": {"type": "string", "minLength": 1},
        "target_audience": {"type": "string"},
        "key_strengths": {"type": "array", "items": {"type": "string"}, "maxItems": 5},
        "weaknesses_or_gaps": {"type": "array", "items": {"type": "string"}, "maxItems": 5},
        "improvement_opportunities": {"type": "array", "items": {"type": "string"}},
        "estimated_tech_savviness": {"type": "string"},
        "impact_analysis": {"type": "string"}
      }
    },
    "email_data": {
      "type": ["object", "null"],
      "properties": {
        "primary_service": {"type": "string"},
        "primary_conversion_goal": {"type": "string"},
        "likely_traffic_source": {"type": "string"},
        "quick_wins": {"type": "array", "items": {"type": "string"}, "minItems": 3, "maxItems": 3},
        "estimated_lift": {"type": "string"},
        "found_first_name": {"type": ["string", "null"]}
      }
    },
    "monitoring_signals": {
      "type": "object",
      "properties": {
        "social_activity_level": {"type": "string"},
        "website_update_frequency": {"type": "string"},
        "review_freshness": {"type": "string"},
        "missing_channels": {"type": "array", "items": {"type": "string"}}
      }
    },
    "outreach_hook": {"type": "string", "minLength": 1}
  }
}`

var reportSchemaLoader = gojsonschema.NewStringLoader(reportSchema)

// Classifier turns accumulated lead signal into an Intelligence Report via a
// single LLM call per attempt.
type Classifier struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
}

// NewClassifier creates a report classifier.
func NewClassifier(ai anthropic.Client, modelID string, maxTokens int64) *Classifier {
	return &Classifier{ai: ai, model: modelID, maxTokens: maxTokens}
}

// GenerateReport runs one classification call and validates the result.
// Contact info is filled deterministically from the extracted signal rather
// than trusted from the model.
func (c *Classifier) GenerateReport(ctx context.Context, lead *model.Lead, sig Signal) (*model.IntelligenceReport, error) {
	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.SystemBlock{{Text: reportSystemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: buildReportPrompt(lead, sig)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "classifier: create message")
	}
	resp.Usage.LogCost(c.model, "enrich_report")

	raw := cleanJSON(resp.Text())

	result, err := gojsonschema.Validate(reportSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, eris.Wrap(ErrInvalidReport, "unparseable response")
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, eris.Wrap(ErrInvalidReport, strings.Join(msgs, "; "))
	}

	var report model.IntelligenceReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, eris.Wrap(ErrInvalidReport, "decode response")
	}

	report.ContactInfo = model.ContactInfo{
		EmailsFound:     sig.Emails,
		SocialPlatforms: extract.MergeSocialLinks(sig.SocialLinks, sig.SearchLinks),
	}
	report.Migrate()

	if err := report.Validate(); err != nil {
		return nil, eris.Wrap(ErrInvalidReport, err.Error())
	}
	return &report, nil
}

// cleanJSON strips markdown fences and any prose around the outermost JSON
// object. Models wrap JSON in fences often enough that this is load-bearing.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
