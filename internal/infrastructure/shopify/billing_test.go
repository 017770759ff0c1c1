package shopify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rewriteTransport sends every shop request to the test server
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	return NewClient(ClientOptions{
		APIKey:      "key",
		APISecret:   "secret",
		Scopes:      []string{"write_themes"},
		RedirectURL: "https://app.example.com/auth/callback",
		Timeout:     time.Second,
		Transport:   rewriteTransport{target: target},
	}, zerolog.Nop())
}

func writeData(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"data":` + data + `}`))
}

func TestCreateOneTimeCharge(t *testing.T) {
	var got graphQLRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/graphql.json"))
		assert.Equal(t, "shpat_token", r.Header.Get("X-Shopify-Access-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeData(w, `{"appPurchaseOneTimeCreate":{
			"appPurchaseOneTime":{"id":"gid://shopify/AppPurchaseOneTime/1017262346","status":"PENDING"},
			"confirmationUrl":"https://foo.myshopify.com/admin/charges/1017262346/confirm",
			"userErrors":[]}}`)
	})
	gateway := NewBillingGateway(client, true)

	created, err := gateway.CreateOneTimeCharge(context.Background(), "foo.myshopify.com", "shpat_token", ports.OneTimeChargeRequest{
		Name:      "Hero banner",
		Price:     decimal.RequireFromString("10"),
		ReturnURL: "https://app.example.com/billing/callback",
	})
	require.NoError(t, err)
	assert.Equal(t, "1017262346", created.ExternalID)
	assert.Contains(t, created.ConfirmationURL, "/confirm")

	assert.Contains(t, got.Query, "appPurchaseOneTimeCreate")
	assert.Equal(t, "Hero banner", got.Variables["name"])
	assert.Equal(t, true, got.Variables["test"])
	price := got.Variables["price"].(map[string]interface{})
	assert.Equal(t, "10.00", price["amount"])
}

func TestCreateOneTimeChargeUserErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, `{"appPurchaseOneTimeCreate":{
			"appPurchaseOneTime":null,
			"confirmationUrl":null,
			"userErrors":[{"field":["price","amount"],"message":"Price must be greater than 0"}]}}`)
	})
	gateway := NewBillingGateway(client, false)

	_, err := gateway.CreateOneTimeCharge(context.Background(), "foo.myshopify.com", "tok", ports.OneTimeChargeRequest{
		Name:  "Hero",
		Price: decimal.Zero,
	})
	rejected, ok := domain.IsBillingRejected(err)
	require.True(t, ok)
	assert.Equal(t, "price.amount", rejected.Field)
	assert.Equal(t, "Price must be greater than 0", rejected.Message)
}

func TestCreateSubscriptionCharge(t *testing.T) {
	var got graphQLRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeData(w, `{"appSubscriptionCreate":{
			"appSubscription":{"id":"gid://shopify/AppSubscription/4019585080","status":"PENDING"},
			"confirmationUrl":"https://foo.myshopify.com/admin/charges/4019585080/confirm",
			"userErrors":[]}}`)
	})
	gateway := NewBillingGateway(client, false)

	created, err := gateway.CreateSubscriptionCharge(context.Background(), "foo.myshopify.com", "tok", ports.SubscriptionChargeRequest{
		Name:      "Pro",
		Price:     decimal.RequireFromString("99"),
		Interval:  domain.IntervalAnnual,
		TrialDays: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "4019585080", created.ExternalID)

	assert.EqualValues(t, 7, got.Variables["trialDays"])
	lineItems := got.Variables["lineItems"].([]interface{})
	require.Len(t, lineItems, 1)
	pricing := lineItems[0].(map[string]interface{})["plan"].(map[string]interface{})["appRecurringPricingDetails"].(map[string]interface{})
	assert.Equal(t, "ANNUAL", pricing["interval"])
}

func TestCreateChargeServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	gateway := NewBillingGateway(client, false)

	_, err := gateway.CreateOneTimeCharge(context.Background(), "foo.myshopify.com", "tok", ports.OneTimeChargeRequest{
		Name:  "Hero",
		Price: decimal.RequireFromString("10"),
	})
	assert.ErrorIs(t, err, domain.ErrTransientUpstream)
}

func TestGetChargeStatus(t *testing.T) {
	var got graphQLRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeData(w, `{"node":{"id":"gid://shopify/AppSubscription/55","status":"ACTIVE"}}`)
	})
	gateway := NewBillingGateway(client, false)

	status, err := gateway.GetChargeStatus(context.Background(), "foo.myshopify.com", "tok", domain.ChargeSubscription, "55")
	require.NoError(t, err)
	assert.Equal(t, ports.PlatformChargeActive, status)
	assert.Equal(t, "gid://shopify/AppSubscription/55", got.Variables["id"])
}

func TestGetChargeStatusUnknown(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, `{"node":null}`)
	})
	gateway := NewBillingGateway(client, false)

	_, err := gateway.GetChargeStatus(context.Background(), "foo.myshopify.com", "tok", domain.ChargeOneTime, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLegacyAndGlobalID(t *testing.T) {
	assert.Equal(t, "1017262346", LegacyID("gid://shopify/AppPurchaseOneTime/1017262346"))
	assert.Equal(t, "42", LegacyID("42"))
	assert.Equal(t, "gid://shopify/AppPurchaseOneTime/42", GlobalID(domain.ChargeOneTime, "42"))
	assert.Equal(t, "gid://shopify/AppSubscription/42", GlobalID(domain.ChargeSubscription, "42"))
}

func TestBillingDocumentsParse(t *testing.T) {
	assert.Equal(t, "AppPurchaseOneTimeCreate", opOneTimeCharge.name)
	assert.Equal(t, "AppSubscriptionCreate", opSubscriptionCharge.name)
	assert.Equal(t, "ChargeStatus", opChargeStatus.name)
}

func TestAuthorizeURL(t *testing.T) {
	client := NewClient(ClientOptions{
		APIKey:      "key",
		APISecret:   "secret",
		Scopes:      []string{"read_themes", "write_themes"},
		RedirectURL: "https://app.example.com/auth/callback",
	}, zerolog.Nop())

	raw, err := client.AuthorizeURL("foo.myshopify.com", "state-1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "foo.myshopify.com", u.Host)
	assert.Equal(t, "/admin/oauth/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "key", q.Get("client_id"))
	assert.Equal(t, "read_themes,write_themes", q.Get("scope"))
	assert.Equal(t, "https://app.example.com/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "state-1", q.Get("state"))
}
