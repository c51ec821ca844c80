package provider

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

const defaultFunctionTimeout = 10 * time.Second

type notifyRequest struct {
	LeadID string `json:"leadId"`
}

type notifyResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *string         `json:"error"`
}

// EmailFunctionProvider invokes the serverless email function that fans a
// lead notification out to every eligible buyer in one call.
type EmailFunctionProvider struct {
	client   *resty.Client
	endpoint string
}

func NewEmailFunctionProvider(endpoint string) (*EmailFunctionProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultFunctionTimeout)
	client.SetRetryCount(0)

	return NewEmailFunctionProviderWithClient(endpoint, client)
}

func NewEmailFunctionProviderWithClient(endpoint string, client *resty.Client) (*EmailFunctionProvider, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("email function endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid email function endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultFunctionTimeout)
	}
	// Retries belong to the dispatcher so every invocation lands in the ledger.
	client.SetRetryCount(0)

	return &EmailFunctionProvider{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (p *EmailFunctionProvider) Send(ctx context.Context, leadID string) (*ChannelResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(leadID) == "" {
		return nil, fmt.Errorf("lead id is required")
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(notifyRequest{LeadID: strings.TrimSpace(leadID)}).
		Post(p.endpoint)
	if err != nil {
		return nil, &ChannelError{
			Message:   "email function request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ChannelError{
			Message:   "email function returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &ChannelError{
			StatusCode: statusCode,
			Message:    functionErrorMessage(statusCode, responseBody),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	// A 2xx status still carries a {data, error} body; an error field set by
	// the function is a definitive rejection, not a transport problem.
	var parsed notifyResponse
	if err := json.Unmarshal(response.Body(), &parsed); err != nil {
		return nil, &ChannelError{
			StatusCode: statusCode,
			Message:    "email function returned malformed body",
			Transient:  true,
			Cause:      err,
		}
	}
	if parsed.Error != nil && strings.TrimSpace(*parsed.Error) != "" {
		return nil, &ChannelError{
			StatusCode: statusCode,
			Message:    strings.TrimSpace(*parsed.Error),
			Transient:  false,
		}
	}

	return &ChannelResponse{
		StatusCode: statusCode,
		Body:       responseBody,
		Recipients: recipientCount(parsed.Data),
	}, nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func functionErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("email function returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func recipientCount(data json.RawMessage) int {
	if len(data) == 0 {
		return 0
	}

	var payload struct {
		Recipients int `json:"recipients"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0
	}
	return payload.Recipients
}
