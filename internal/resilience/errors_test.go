package resilience

import (
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(eris.New("instantly: status 503: upstream down"), 503)
	assert.True(t, IsTransient(err))
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(eris.New("ddg: status 429"), 429)
	err := eris.Wrap(inner, "enrich: search lead")
	assert.True(t, IsTransient(err))
}

func TestIsTransient_Nil(t *testing.T) {
	assert.False(t, IsTransient(nil))
}

func TestIsTransient_ProviderRejectionIsNot(t *testing.T) {
	assert.False(t, IsTransient(eris.New("twilio: status 400: invalid To number")))
	assert.False(t, IsTransient(eris.New("resend: status 422: missing subject")))
}

func TestIsTransient_ConnectionSyscalls(t *testing.T) {
	assert.True(t, IsTransient(syscall.ECONNRESET))
	assert.True(t, IsTransient(syscall.ECONNREFUSED))
	assert.True(t, IsTransient(eris.Wrap(syscall.ECONNABORTED, "ddg: search")))
}

func TestIsTransient_NetTimeout(t *testing.T) {
	err := &net.DNSError{Err: "lookup timed out", Name: "api.instantly.ai", IsTimeout: true}
	assert.True(t, IsTransient(err))
}

func TestIsTransient_MessageFragments(t *testing.T) {
	for _, msg := range []string{
		"Get \"https://html.duckduckgo.com\": connection reset by peer",
		"write: broken pipe",
		"dial tcp: lookup api.resend.com: no such host",
		"net/http: TLS handshake timeout",
		"read tcp 10.0.0.2:443: i/o timeout",
	} {
		assert.True(t, IsTransient(eris.New(msg)), msg)
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 409, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestTransientError_CarriesStatusAndUnwraps(t *testing.T) {
	inner := eris.New("twilio: status 503: service unavailable")
	err := NewTransientError(inner, 503)

	assert.Equal(t, 503, err.StatusCode)
	assert.Equal(t, inner.Error(), err.Error())
	assert.True(t, eris.Is(err, inner))
}
