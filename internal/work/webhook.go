package work

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookKind is the built-in work-unit kind that POSTs its params to a
// configured endpoint.
const WebhookKind = "webhook"

// NewWebhookHandler returns a Handler that delivers the unit's params as a
// JSON body to the endpoint. The params blob is forwarded verbatim.
func NewWebhookHandler(endpoint string) (Handler, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookHandlerWithClient(endpoint, client)
}

func NewWebhookHandlerWithClient(endpoint string, client *resty.Client) (Handler, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return func(ctx context.Context, params json.RawMessage) error {
		body := params
		if len(body) == 0 {
			body = json.RawMessage(`{}`)
		}

		response, err := client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody([]byte(body)).
			Post(trimmedEndpoint)
		if err != nil {
			return &Error{
				Message:   "webhook request failed",
				Transient: !errors.Is(err, context.Canceled),
				Cause:     err,
			}
		}
		if response == nil {
			return &Error{
				Message:   "webhook returned empty response",
				Transient: true,
			}
		}

		statusCode := response.StatusCode()
		if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
			return nil
		}

		return &Error{
			StatusCode: statusCode,
			Message:    webhookErrorMessage(statusCode, strings.TrimSpace(response.String())),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}, nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func webhookErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("webhook returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
