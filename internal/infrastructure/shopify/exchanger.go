package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// TokenExchanger calls the platform token endpoint directly so that the request
// carries a bounded timeout and the response status is inspected verbatim.
type TokenExchanger struct {
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	tokenURL   func(shop string) string
	logger     zerolog.Logger
}

// NewTokenExchanger creates an exchanger with the given upstream timeout
func NewTokenExchanger(apiKey, apiSecret string, timeout time.Duration, logger zerolog.Logger) *TokenExchanger {
	return &TokenExchanger{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: timeout},
		tokenURL: func(shop string) string {
			return fmt.Sprintf("https://%s/admin/oauth/access_token", shop)
		},
		logger: logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

// Exchange trades a single-use authorization code for the shop's access token
func (e *TokenExchanger) Exchange(ctx context.Context, shop string, code string) (string, error) {
	values := url.Values{}
	values.Set("client_id", e.apiKey)
	values.Set("client_secret", e.apiSecret)
	values.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL(shop), strings.NewReader(values.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", domain.ErrExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	timer := prometheus.NewTimer(metrics.PlatformCallDuration.WithLabelValues("TokenExchange"))
	resp, err := e.httpClient.Do(req)
	timer.ObserveDuration()
	if err != nil {
		return "", fmt.Errorf("%w: %w: %v", domain.ErrExchangeFailed, domain.ErrTransientUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.logger.Warn().
			Str("shop", shop).
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("Token endpoint rejected authorization code")
		return "", fmt.Errorf("%w: status %d", domain.ErrExchangeFailed, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrExchangeFailed, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access_token", domain.ErrExchangeFailed)
	}

	return token.AccessToken, nil
}
