package shopify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sectionhub-shopify-layer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExchanger(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *TokenExchanger {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	e := NewTokenExchanger("key", "secret", timeout, zerolog.Nop())
	e.tokenURL = func(string) string { return srv.URL + "/admin/oauth/access_token" }
	return e
}

func TestExchangeSuccess(t *testing.T) {
	e := newTestExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "code-1", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"shpat_123","scope":"write_themes"}`))
	}, time.Second)

	token, err := e.Exchange(context.Background(), "foo.myshopify.com", "code-1")
	require.NoError(t, err)
	assert.Equal(t, "shpat_123", token)
}

func TestExchangeRejectedCode(t *testing.T) {
	e := newTestExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
	}, time.Second)

	_, err := e.Exchange(context.Background(), "foo.myshopify.com", "used")
	assert.ErrorIs(t, err, domain.ErrExchangeFailed)
	assert.NotErrorIs(t, err, domain.ErrTransientUpstream)
}

func TestExchangeEmptyToken(t *testing.T) {
	e := newTestExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":""}`))
	}, time.Second)

	_, err := e.Exchange(context.Background(), "foo.myshopify.com", "code")
	assert.ErrorIs(t, err, domain.ErrExchangeFailed)
}

func TestExchangeMalformedBody(t *testing.T) {
	e := newTestExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}, time.Second)

	_, err := e.Exchange(context.Background(), "foo.myshopify.com", "code")
	assert.ErrorIs(t, err, domain.ErrExchangeFailed)
}

func TestExchangeTimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	e := newTestExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := e.Exchange(context.Background(), "foo.myshopify.com", "code")
	assert.ErrorIs(t, err, domain.ErrExchangeFailed)
	assert.ErrorIs(t, err, domain.ErrTransientUpstream)
}
