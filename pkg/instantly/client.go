// Package instantly provides a client for the Instantly.ai lead API,
// the campaign platform qualified leads are pushed to.
package instantly

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lead2close/crm-cli/internal/resilience"
)

// Lead is the campaign-platform lead payload.
type Lead struct {
	Email           string         `json:"email"`
	FirstName       string         `json:"first_name"`
	LastName        string         `json:"last_name"`
	CompanyName     string         `json:"company_name"`
	Website         string         `json:"website"`
	CustomVariables map[string]any `json:"custom_variables,omitempty"`
}

// Client defines the campaign platform operations.
type Client interface {
	// PushLead upserts one lead into a campaign. Duplicate workspace
	// leads are skipped server-side.
	PushLead(ctx context.Context, lead Lead, campaignID string) error
}

// Option configures the Instantly client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an Instantly client. The API version is detected from
// the key format: v2 keys are long bearer tokens, v1 keys ride in the body.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.instantly.ai",
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// isV2 reports whether the key is a v2 bearer token.
func (c *httpClient) isV2() bool {
	return len(c.apiKey) > 50
}

func (c *httpClient) PushLead(ctx context.Context, lead Lead, campaignID string) error {
	var endpoint string
	var payload map[string]any

	if c.isV2() {
		endpoint = c.baseURL + "/api/v2/leads"
		payload = map[string]any{
			"email":                lead.Email,
			"first_name":           lead.FirstName,
			"last_name":            lead.LastName,
			"company_name":         lead.CompanyName,
			"website":              lead.Website,
			"campaign_id":          campaignID,
			"skip_if_in_workspace": true,
			"custom_variables":     lead.CustomVariables,
		}
	} else {
		endpoint = c.baseURL + "/api/v1/lead/add"
		payload = map[string]any{
			"api_key":              c.apiKey,
			"campaign_id":          campaignID,
			"skip_if_in_workspace": true,
			"leads":                []Lead{lead},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "instantly: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "instantly: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.isV2() {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "instantly: push lead")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		statusErr := eris.Errorf("instantly: status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	}

	zap.L().Debug("instantly: lead pushed",
		zap.String("email", lead.Email),
		zap.String("campaign_id", campaignID),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}
