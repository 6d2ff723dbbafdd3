// Package instagram sends campaign direct messages through the Instagram
// DM gateway.
package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"outreach_backend/internal/provider"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

const providerName = "instagram"

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

type dmRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

func NewClient(cfg config.InstagramConfig, log *logger.Logger) *Client {
	if cfg.GetInstagramURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetInstagramURL(), "/"),
		token:   cfg.GetInstagramToken(),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// SendDM delivers a direct message to the given Instagram handle.
func (c *Client) SendDM(ctx context.Context, username, message string) error {
	if c == nil {
		return provider.NewError(providerName, provider.CategoryValidation, 0, "instagram gateway not configured", nil)
	}
	handle := strings.TrimPrefix(strings.TrimSpace(username), "@")
	if handle == "" {
		return provider.NewError(providerName, provider.CategoryValidation, 0, "missing instagram handle", nil)
	}

	body, err := json.Marshal(dmRequest{Username: handle, Message: message})
	if err != nil {
		return fmt.Errorf("marshal instagram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/dm/send", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return provider.NewError(providerName, provider.CategoryTransient, 0, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		category := provider.ClassifyStatus(resp.StatusCode)
		c.log.ProviderError(providerName, "dm/send", string(category),
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
		return provider.NewError(providerName, category, resp.StatusCode, strings.TrimSpace(string(data)), nil)
	}

	c.log.Info("instagram dm sent", "username", handle)
	return nil
}
