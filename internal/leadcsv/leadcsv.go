// Package leadcsv parses lead exports (Google Maps scrapes, list-broker
// dumps) into leads ready for bulk import.
package leadcsv

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/lead2close/crm-cli/internal/model"
)

// ImportColumns are the lead columns bulk import writes, in Rows order.
var ImportColumns = []string{
	"id", "business_name", "city", "category", "phone", "email", "website_url",
	"rating", "review_count", "has_opt_in",
	"enrichment_status", "outreach_status", "created_at", "updated_at",
}

// ParseFile reads a lead CSV. The header row is required; columns are matched
// by name, case-insensitively, and unknown columns are ignored. business_name
// is the only required field.
func ParseFile(path string) ([]model.Lead, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "leadcsv: open")
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads lead rows from r. See ParseFile.
func Parse(r io.Reader) ([]model.Lead, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "leadcsv: read header")
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := idx["business_name"]; !ok {
		return nil, eris.New("leadcsv: missing required column business_name")
	}

	field := func(record []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var leads []model.Lead
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "leadcsv: line %d", line)
		}

		name := field(record, "business_name")
		if name == "" {
			continue
		}

		lead := model.Lead{
			ID:           field(record, "id"),
			BusinessName: name,
			City:         field(record, "city"),
			Category:     field(record, "category"),
			Phone:        field(record, "phone"),
			Email:        field(record, "email"),
			WebsiteURL:   field(record, "website_url"),
		}
		if lead.ID == "" {
			lead.ID = uuid.New().String()
		}
		if v := field(record, "rating"); v != "" {
			rating, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "leadcsv: line %d: bad rating %q", line, v)
			}
			lead.Rating = rating
		}
		if v := field(record, "review_count"); v != "" {
			count, err := strconv.Atoi(v)
			if err != nil {
				return nil, eris.Wrapf(err, "leadcsv: line %d: bad review_count %q", line, v)
			}
			lead.ReviewCount = count
		}
		if v := strings.ToLower(field(record, "has_opt_in")); v != "" {
			lead.HasOptIn = v == "true" || v == "yes" || v == "1"
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// Rows converts parsed leads to bulk-import rows in ImportColumns order,
// filling status and timestamp defaults.
func Rows(leads []model.Lead) [][]any {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(leads))
	for _, l := range leads {
		status := l.EnrichmentStatus
		if status == "" {
			status = model.EnrichmentNotEnriched
		}
		outreach := l.OutreachStatus
		if outreach == "" {
			outreach = model.OutreachNone
		}
		rows = append(rows, []any{
			l.ID, l.BusinessName, l.City, l.Category, l.Phone, l.Email, l.WebsiteURL,
			l.Rating, l.ReviewCount, l.HasOptIn,
			string(status), string(outreach), now, now,
		})
	}
	return rows
}
