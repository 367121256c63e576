// Package outreach drains the outreach queue: it generates first-touch copy
// from enrichment data, sends it over the configured channels, and pushes
// qualified leads to the campaign platform.
package outreach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/lead2close/crm-cli/internal/model"
	"github.com/lead2close/crm-cli/pkg/anthropic"
)

const messageSystemPrompt = `You write first-touch outreach for a web agency contacting local businesses. Plain, specific, no hype, no exclamation marks.

Respond with a single valid JSON object, nothing else:

{
  "sms": [
    {"variant": "ultra_short", "text": "<under 160 chars>"},
    {"variant": "short", "text": "<under 300 chars>"},
    {"variant": "follow_up", "text": "<under 300 chars>"}
  ],
  "email": [
    {"variant": "short", "subject": "<subject>", "text": "<under 120 words>"},
    {"variant": "follow_up", "subject": "<subject>", "text": "<under 80 words>"}
  ]
}`

// copySchema is the structural contract for generated copy: every variant
// entry must carry its text, emails their subject too.
const copySchema = `{
  "type": "object",
  "required": ["sms", "email"],
  "properties": {
    "sms": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["variant", "text"],
        "properties": {
          "variant": {"type": "string"},
          "text": {"type": "string", "minLength": 1}
        }
      }
    },
    "email": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["variant", "subject", "text"],
        "properties": {
          "variant": {"type": "string"},
          "subject": {"type": "string", "minLength": 1},
          "text": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var copySchemaLoader = gojsonschema.NewStringLoader(copySchema)

// Generator produces outreach copy from a lead's Intelligence Report.
type Generator struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
}

// NewGenerator creates an outreach copy generator.
func NewGenerator(ai anthropic.Client, modelID string, maxTokens int64) *Generator {
	return &Generator{ai: ai, model: modelID, maxTokens: maxTokens}
}

// Generate runs one generation call. The lead must carry enrichment data.
func (g *Generator) Generate(ctx context.Context, lead *model.Lead, report *model.IntelligenceReport) (*model.OutreachContent, error) {
	resp, err := g.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    []anthropic.SystemBlock{{Text: messageSystemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: buildMessagePrompt(lead, report)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "outreach: create message")
	}
	resp.Usage.LogCost(g.model, "outreach_copy")

	raw := cleanJSON(resp.Text())

	result, err := gojsonschema.Validate(copySchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "outreach: unparseable copy")
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, eris.Errorf("outreach: copy violates contract: %s", strings.Join(msgs, "; "))
	}

	var content model.OutreachContent
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return nil, eris.Wrap(err, "outreach: decode copy")
	}
	if len(content.SMS) == 0 && len(content.Email) == 0 {
		return nil, eris.New("outreach: response carries no copy")
	}
	return &content, nil
}

// buildMessagePrompt grounds the copy request in the report's hook, the
// qualification scan, and the quick wins.
func buildMessagePrompt(lead *model.Lead, report *model.IntelligenceReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Business: %s", lead.BusinessName)
	if lead.City != "" {
		fmt.Fprintf(&b, " (%s)", lead.City)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Summary: %s\n", report.Analysis.BusinessSummary)
	fmt.Fprintf(&b, "Hook: %s\n", report.OutreachHook)
	if lead.ScanScore != nil {
		fmt.Fprintf(&b, "Fit score: %.0f\n", *lead.ScanScore)
	}
	if len(lead.ScanReasons) > 0 {
		fmt.Fprintf(&b, "Known issues: %s\n", strings.Join(lead.ScanReasons, "; "))
	}
	if report.EmailData != nil {
		fmt.Fprintf(&b, "Primary service: %s\n", report.EmailData.PrimaryService)
		fmt.Fprintf(&b, "Quick wins: %s\n", strings.Join(report.EmailData.QuickWins, "; "))
		fmt.Fprintf(&b, "Estimated lift: %s\n", report.EmailData.EstimatedLift)
		if report.EmailData.FoundFirstName != nil {
			fmt.Fprintf(&b, "Owner first name: %s\n", *report.EmailData.FoundFirstName)
		}
	}

	return b.String()
}

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
