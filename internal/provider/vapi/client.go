// Package vapi implements the voice agent call client on top of the VAPI API.
package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"outreach_backend/internal/provider"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/phone"
)

const (
	providerName   = "vapi"
	defaultTimeout = 30 * time.Second
)

// Client starts outbound voice agent calls.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// New creates a VAPI client from configuration.
func New(cfg config.VoiceConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:    cfg.GetVoiceBaseURL(),
		apiKey:     cfg.GetVoiceAPIKey(),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log,
	}
}

// CallRequest describes an outbound voice agent call. Context is free-form
// briefing text handed to the assistant as a variable override.
type CallRequest struct {
	AssistantID   string
	PhoneNumberID string
	ToNumber      string
	CustomerName  string
	Context       string
}

// Call is the created call resource.
type Call struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// StartCall queues an outbound call. The number is normalized to E.164
// before dispatch; calls are asynchronous on the provider side, so a
// successful response only means the call was accepted.
func (c *Client) StartCall(ctx context.Context, req CallRequest) (*Call, error) {
	if req.ToNumber == "" {
		return nil, provider.NewError(providerName, provider.CategoryValidation, 0, "missing phone number", nil)
	}

	body := map[string]any{
		"assistantId":   req.AssistantID,
		"phoneNumberId": req.PhoneNumberID,
		"customer": map[string]string{
			"number": phone.NormalizeE164(req.ToNumber),
			"name":   req.CustomerName,
		},
	}
	if req.Context != "" {
		body["assistantOverrides"] = map[string]any{
			"variableValues": map[string]string{"context": req.Context},
		}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, provider.NewError(providerName, provider.CategoryUnknown, 0, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(encoded))
	if err != nil {
		return nil, provider.NewError(providerName, provider.CategoryUnknown, 0, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, provider.NewError(providerName, provider.CategoryTransient, 0, "request timed out", err)
		}
		return nil, provider.NewError(providerName, provider.CategoryTransient, 0, "request failed", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var call Call
		if err := json.Unmarshal(payload, &call); err != nil {
			return nil, provider.NewError(providerName, provider.CategoryUnknown, resp.StatusCode, "decode response", err)
		}
		return &call, nil
	}

	category := provider.ClassifyStatus(resp.StatusCode)
	c.log.ProviderError(providerName, "POST /call", string(category), fmt.Errorf("status %d", resp.StatusCode))
	return nil, provider.NewError(providerName, category, resp.StatusCode, "call request rejected", nil)
}
