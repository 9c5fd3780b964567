package evidence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compligen-api/internal/config"
)

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://example.com/a", "https://example.com/a"},
		{"example.com/a", "https://example.com/a"},
		{"  example.com  ", "https://example.com"},
		{"ftp://example.com", ""},
		{"javascript:alert(1)", ""},
		{"https://", ""},
		{"", ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeURL(tc.in))
		})
	}
}

func TestStatusIndicatesExists(t *testing.T) {
	for _, code := range []int{200, 204, 301, 302, 399, 401, 403, 405, 429} {
		assert.True(t, statusIndicatesExists(code), "status %d", code)
	}
	for _, code := range []int{404, 410, 500, 502, 503} {
		assert.False(t, statusIndicatesExists(code), "status %d", code)
	}
}

func newTestVerifier() *Verifier {
	return NewVerifier(&config.VerifierConfig{}, nil)
}

func TestVerifyLiveURL(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	finalURL, ok := newTestVerifier().Verify(context.Background(), srv.URL)
	require.True(t, ok)
	assert.Equal(t, srv.URL, finalURL)
	assert.Equal(t, "bytes=0-0", gotRange)
}

func TestVerifyRateLimitedURLTreatedAsLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, ok := newTestVerifier().Verify(context.Background(), srv.URL)
	assert.True(t, ok)
}

func TestVerifyDeadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, ok := newTestVerifier().Verify(context.Background(), srv.URL)
	assert.False(t, ok)
}

func TestVerifyFollowsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	finalURL, ok := newTestVerifier().Verify(context.Background(), srv.URL+"/old")
	require.True(t, ok)
	assert.Equal(t, srv.URL+"/new", finalURL)
}

func TestVerifyRejectsNonHTTPScheme(t *testing.T) {
	_, ok := newTestVerifier().Verify(context.Background(), "ftp://example.com/file")
	assert.False(t, ok)
}
