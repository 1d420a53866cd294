package openai

import (
	"context"
	"errors"
	"fmt"
	"net"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lodgeit-ai/ragchat/internal/domain"
)

// wrapAPIError classifies an API failure into one of the upstream sentinels.
// Timeouts, 429 and 5xx are transient; other API responses are bad responses.
func wrapAPIError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrUpstreamTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%s: API error %d: %w: %w",
				op, apiErr.HTTPStatusCode, domain.ErrUpstreamUnavailable, err)
		}
		return fmt.Errorf("%s: API error %d: %w: %w",
			op, apiErr.HTTPStatusCode, domain.ErrUpstreamBadResponse, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%s: request error %d: %w: %w",
				op, reqErr.HTTPStatusCode, domain.ErrUpstreamUnavailable, err)
		}
		return fmt.Errorf("%s: request error %d: %w: %w",
			op, reqErr.HTTPStatusCode, domain.ErrUpstreamBadResponse, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%s: %w: %w", op, domain.ErrUpstreamTimeout, err)
		}
		return fmt.Errorf("%s: %w: %w", op, domain.ErrUpstreamUnavailable, err)
	}

	// Connection-level failures surface as plain errors from the HTTP client.
	return fmt.Errorf("%s: %w: %w", op, domain.ErrUpstreamUnavailable, err)
}
