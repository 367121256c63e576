package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ReportSchemaVersion is the current Intelligence Report schema version.
// Version 1 reports (no schema_version field, no youtube key, email_data
// sometimes absent) are migrated lazily on read — see Migrate.
const ReportSchemaVersion = 2

// SocialPlatforms enumerates the platforms tracked in contact info, in the
// order they are scanned for.
var SocialPlatforms = []string{"facebook", "instagram", "linkedin", "twitter", "youtube"}

// TechSavviness levels accepted in analysis.estimated_tech_savviness.
var TechSavvinessLevels = []string{"low", "medium", "high"}

// SocialActivityLevels accepted in monitoring_signals.social_activity_level.
var SocialActivityLevels = []string{"High", "Medium", "Low", "Dormant"}

// Analysis is the owner-facing audit portion of an Intelligence Report.
type Analysis struct {
	BusinessType             string   `json:"business_type,omitempty"`
	BusinessSummary          string   `json:"business_summary"`
	TargetAudience           string   `json:"target_audience,omitempty"`
	KeyStrengths             []string `json:"key_strengths"`
	WeaknessesOrGaps         []string `json:"weaknesses_or_gaps"`
	ImprovementOpportunities []string `json:"improvement_opportunities"`
	EstimatedTechSavviness   string   `json:"estimated_tech_savviness"`
	ImpactAnalysis           string   `json:"impact_analysis"`
}

// EmailData carries the cold-email campaign variables. Optional: older
// report variants omit it entirely.
type EmailData struct {
	PrimaryService        string   `json:"primary_service"`
	PrimaryConversionGoal string   `json:"primary_conversion_goal"`
	LikelyTrafficSource   string   `json:"likely_traffic_source"`
	QuickWins             []string `json:"quick_wins"`
	EstimatedLift         string   `json:"estimated_lift"`
	FoundFirstName        *string  `json:"found_first_name"`
}

// ContactInfo holds discovered contact channels.
type ContactInfo struct {
	EmailsFound     []string           `json:"emails_found"`
	SocialPlatforms map[string]*string `json:"social_platforms"`
}

// MonitoringSignals describe how actively the business maintains its
// digital footprint.
type MonitoringSignals struct {
	SocialActivityLevel    string   `json:"social_activity_level"`
	WebsiteUpdateFrequency string   `json:"website_update_frequency"`
	ReviewFreshness        string   `json:"review_freshness"`
	MissingChannels        []string `json:"missing_channels"`
}

// IntelligenceReport is the structured output of one enrichment run.
// It is overwritten whole on re-enrichment; a failed retry never clears a
// previously persisted report.
type IntelligenceReport struct {
	SchemaVersion     int               `json:"schema_version"`
	Analysis          Analysis          `json:"analysis"`
	EmailData         *EmailData        `json:"email_data,omitempty"`
	ContactInfo       ContactInfo       `json:"contact_info"`
	MonitoringSignals MonitoringSignals `json:"monitoring_signals"`
	OutreachHook      string            `json:"outreach_hook"`
}

// Validate checks the report against the output contract: required fields
// present, enums within the declared sets, list-length constraints honored.
func (r *IntelligenceReport) Validate() error {
	if r.Analysis.BusinessSummary == "" {
		return eris.New("report: analysis.business_summary is required")
	}
	if !containsFold(TechSavvinessLevels, r.Analysis.EstimatedTechSavviness) {
		return eris.Errorf("report: invalid tech savviness %q", r.Analysis.EstimatedTechSavviness)
	}
	if n := len(r.Analysis.KeyStrengths); n > 5 {
		return eris.Errorf("report: key_strengths has %d items, cap is 5", n)
	}
	if n := len(r.Analysis.WeaknessesOrGaps); n > 5 {
		return eris.Errorf("report: weaknesses_or_gaps has %d items, cap is 5", n)
	}
	if r.EmailData != nil {
		if n := len(r.EmailData.QuickWins); n != 3 {
			return eris.Errorf("report: email_data.quick_wins has %d items, want exactly 3", n)
		}
	}
	if lvl := r.MonitoringSignals.SocialActivityLevel; lvl != "" && !containsFold(SocialActivityLevels, lvl) {
		return eris.Errorf("report: invalid social activity level %q", lvl)
	}
	if r.OutreachHook == "" {
		return eris.New("report: outreach_hook is required")
	}
	return nil
}

// Migrate normalizes a report persisted under an older schema variant into
// the current shape. Safe to call on current reports; applied lazily on read
// rather than via a bulk rewrite.
func (r *IntelligenceReport) Migrate() {
	if r.ContactInfo.SocialPlatforms == nil {
		r.ContactInfo.SocialPlatforms = make(map[string]*string, len(SocialPlatforms))
	}
	// Version 1 omitted the youtube key (and occasionally others).
	for _, platform := range SocialPlatforms {
		if _, ok := r.ContactInfo.SocialPlatforms[platform]; !ok {
			r.ContactInfo.SocialPlatforms[platform] = nil
		}
	}
	if r.ContactInfo.EmailsFound == nil {
		r.ContactInfo.EmailsFound = []string{}
	}
	r.SchemaVersion = ReportSchemaVersion
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
