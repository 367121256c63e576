package resend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lead2close/crm-cli/internal/resilience"
)

func TestSendEmail_PostsJSON(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("re_key", "dave@agency.com", WithBaseURL(srv.URL))
	err := c.SendEmail(context.Background(), "owner@acmeplumbing.com", "Quick question", "Saw your reviews.")
	require.NoError(t, err)

	assert.Equal(t, "/emails", gotPath)
	assert.Equal(t, "Bearer re_key", gotAuth)
	assert.Equal(t, "dave@agency.com", gotBody["from"])
	assert.Equal(t, []any{"owner@acmeplumbing.com"}, gotBody["to"])
	assert.Equal(t, "Quick question", gotBody["subject"])
	assert.Equal(t, "Saw your reviews.", gotBody["text"])
}

func TestSendEmail_RejectionIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid to address"}`))
	}))
	defer srv.Close()

	c := NewClient("re_key", "dave@agency.com", WithBaseURL(srv.URL))
	err := c.SendEmail(context.Background(), "not-an-address", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 422")
	assert.False(t, resilience.IsTransient(err))
}

func TestSendEmail_OutageIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("re_key", "dave@agency.com", WithBaseURL(srv.URL))
	err := c.SendEmail(context.Background(), "owner@acmeplumbing.com", "s", "b")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}
