package shopify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"sectionhub-shopify-layer/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// classify maps a platform client error onto the domain taxonomy. Timeouts,
// network failures, rate limits and 5xx responses are transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrTransientUpstream, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var rateErr goshopify.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		return respErr.Status >= http.StatusInternalServerError || respErr.Status == http.StatusTooManyRequests
	}
	return false
}
