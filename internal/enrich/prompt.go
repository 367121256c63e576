package enrich

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lead2close/crm-cli/internal/model"
)

const reportSystemPrompt = `You are a local-business growth analyst producing an intelligence report for a CRM.

First decide which kind of business this is and reason accordingly:
- Type A, local/consumer-facing (plumbers, salons, restaurants, clinics): weight reviews, local visibility, booking friction, and response speed.
- Type B, professional/B2B (agencies, contractors serving businesses, wholesalers): weight credibility signals, case studies, lead capture, and referral channels.

Respond with a single valid JSON object and nothing else. No markdown fences, no commentary. The object must have exactly this shape:

{
  "analysis": {
    "business_type": "<one short phrase>",
    "business_summary": "<2-3 sentences>",
    "target_audience": "<one sentence>",
    "key_strengths": ["<3 to 5 items>"],
    "weaknesses_or_gaps": ["<3 to 5 items>"],
    "improvement_opportunities": ["<3 to 5 items>"],
    "estimated_tech_savviness": "low" | "medium" | "high",
    "impact_analysis": "<one sentence on revenue impact>"
  },
  "email_data": {
    "primary_service": "<the single service to lead with>",
    "primary_conversion_goal": "<e.g. booked calls, quote requests>",
    "likely_traffic_source": "<e.g. Google Maps, referrals>",
    "quick_wins": ["<exactly 3 concrete fixes>"],
    "estimated_lift": "<e.g. 15-25% more inquiries>",
    "found_first_name": "<owner first name if visible on the site, else null>"
  },
  "monitoring_signals": {
    "social_activity_level": "High" | "Medium" | "Low" | "Dormant",
    "website_update_frequency": "<descriptor>",
    "review_freshness": "<free text>",
    "missing_channels": ["<channels the business is absent from>"]
  },
  "outreach_hook": "<one personalized opening sentence referencing something specific about this business>"
}

If the website was unreachable, base the analysis on the profile and search signals alone and say so in the summary.`

// buildReportPrompt assembles the user turn: lead profile, qualification
// context, extracted website text, and discovered links.
func buildReportPrompt(lead *model.Lead, sig Signal) string {
	var b strings.Builder

	b.WriteString("Business profile:\n")
	fmt.Fprintf(&b, "- Name: %s\n", lead.BusinessName)
	if lead.City != "" {
		fmt.Fprintf(&b, "- City: %s\n", lead.City)
	}
	if lead.Category != "" {
		fmt.Fprintf(&b, "- Category: %s\n", lead.Category)
	}
	if lead.Phone != "" {
		fmt.Fprintf(&b, "- Phone: %s\n", lead.Phone)
	}
	if lead.WebsiteURL != "" {
		fmt.Fprintf(&b, "- Website: %s\n", lead.WebsiteURL)
	}
	if lead.Rating > 0 {
		fmt.Fprintf(&b, "- Rating: %.1f (%d reviews)\n", lead.Rating, lead.ReviewCount)
	}
	if len(lead.WorkingHours) > 0 {
		// json.Marshal sorts map keys, keeping the prompt deterministic.
		hours, err := json.Marshal(lead.WorkingHours)
		if err == nil {
			fmt.Fprintf(&b, "- Hours: %s\n", hours)
		}
	}

	if lead.ScanScore != nil {
		b.WriteString("\nQualification scan (read-only context):\n")
		fmt.Fprintf(&b, "- Fit score: %.0f (%s confidence)\n", *lead.ScanScore, lead.ScanConfidence)
		for _, reason := range lead.ScanReasons {
			fmt.Fprintf(&b, "- %s\n", reason)
		}
		if lead.ScanRecommendedAngle != "" {
			fmt.Fprintf(&b, "- Recommended angle: %s\n", lead.ScanRecommendedAngle)
		}
	}

	if len(sig.SocialLinks) > 0 {
		b.WriteString("\nSocial profiles found on the website:\n")
		for _, link := range sig.SocialLinks {
			fmt.Fprintf(&b, "- %s\n", link)
		}
	}

	if sig.SearchContext != "" {
		b.WriteString("\nWeb search results:\n")
		b.WriteString(sig.SearchContext)
		b.WriteString("\n")
	}

	// A lead with no website gets no website section at all; the system
	// prompt's unreachable-site guidance only applies when the marker shows.
	if sig.WebsiteText != "" {
		b.WriteString("\nWebsite text:\n")
		b.WriteString(sig.WebsiteText)
	}

	return b.String()
}
