// Package unipile implements the LinkedIn messaging client on top of the
// Unipile account-gateway API.
package unipile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"outreach_backend/internal/provider"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

const providerName = "unipile"

// Client talks to the Unipile REST API. All LinkedIn actions are performed
// on behalf of a connected account, identified by its Unipile account id.
type Client struct {
	baseURL        string
	token          string
	lookupTimeout  time.Duration
	profileTimeout time.Duration
	httpClient     *http.Client
	log            *logger.Logger
}

// New creates a Unipile client from configuration.
func New(cfg config.UnipileConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:        cfg.GetUnipileDSN() + "/api/v1",
		token:          cfg.GetUnipileToken(),
		lookupTimeout:  cfg.GetUnipileLookupTimeout(),
		profileTimeout: cfg.GetUnipileProfileTimeout(),
		// Per-request deadlines come from context; keep a generous cap here.
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

// Profile is a LinkedIn user profile as returned by the gateway.
type Profile struct {
	ProviderID    string   `json:"provider_id"`
	PublicID      string   `json:"public_identifier"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	Headline      string   `json:"headline"`
	Summary       string   `json:"summary"`
	Location      string   `json:"location"`
	NetworkDegree int      `json:"network_distance"`
	IsConnection  bool     `json:"is_relationship"`
	PhoneNumbers  []string `json:"phone_numbers"`
	ContactEmails []string `json:"contact_emails"`
}

// FirstPhone returns the first harvested phone number, if any.
func (p *Profile) FirstPhone() string {
	if len(p.PhoneNumbers) > 0 {
		return p.PhoneNumbers[0]
	}
	return ""
}

// FirstEmail returns the first harvested contact email, if any.
func (p *Profile) FirstEmail() string {
	if len(p.ContactEmails) > 0 {
		return p.ContactEmails[0]
	}
	return ""
}

// Invitation is a sent connection invitation.
type Invitation struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"invited_user_provider_id"`
	PublicID   string    `json:"invited_user_public_id"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	SentAt     time.Time `json:"sent_at"`
}

// AccountStatus is the gateway-side health of a connected account.
type AccountStatus struct {
	AccountID string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
}

// Lookup resolves a public LinkedIn identifier (slug or profile URL) to the
// internal provider id, using the given account's session.
func (c *Client) Lookup(ctx context.Context, accountID, publicID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("account_id", accountID)

	var out Profile
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(normalizePublicID(publicID))+"?"+params.Encode(), nil, &out)
	if err != nil {
		return "", err
	}
	if out.ProviderID == "" {
		return "", provider.NewError(providerName, provider.CategoryNotFound, 0, "profile has no provider id", nil)
	}
	return out.ProviderID, nil
}

// Invite sends a connection invitation and returns the invitation id the
// provider assigned. An empty message sends a bare invite, which does not
// consume the account's monthly message-invite allowance. An invitation
// that was already sent earlier is reported as success with an empty id.
func (c *Client) Invite(ctx context.Context, accountID, providerID, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	body := map[string]string{
		"account_id":  accountID,
		"provider_id": providerID,
	}
	if message != "" {
		body["message"] = message
	}

	var out struct {
		InvitationID string `json:"invitation_id"`
	}
	err := c.do(ctx, http.MethodPost, "/users/invite", body, &out)
	if provider.CategoryOf(err) == provider.CategoryDuplicate {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return out.InvitationID, nil
}

// SendMessage sends a direct message to an existing connection.
func (c *Client) SendMessage(ctx context.Context, accountID, providerID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	body := map[string]any{
		"account_id":    accountID,
		"attendees_ids": []string{providerID},
		"text":          text,
	}
	return c.do(ctx, http.MethodPost, "/chats", body, nil)
}

// Follow follows the target profile without connecting.
func (c *Client) Follow(ctx context.Context, accountID, providerID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	body := map[string]string{"account_id": accountID}
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(providerID)+"/follow", body, nil)
}

// GetProfile fetches the full profile for a public identifier.
func (c *Client) GetProfile(ctx context.Context, accountID, publicID string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.profileTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("account_id", accountID)
	params.Set("linkedin_sections", "*")

	var out Profile
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(normalizePublicID(publicID))+"?"+params.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSentInvitations returns the account's pending sent invitations.
func (c *Client) ListSentInvitations(ctx context.Context, accountID string) ([]Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.profileTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("account_id", accountID)

	var out struct {
		Items []Invitation `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/invite/sent?"+params.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetAccountStatus probes the gateway for the account's connection health.
func (c *Client) GetAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	var out AccountStatus
	if err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(accountID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return provider.NewError(providerName, provider.CategoryUnknown, 0, "encode request", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return provider.NewError(providerName, provider.CategoryUnknown, 0, "build request", err)
	}
	req.Header.Set("X-API-KEY", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return provider.NewError(providerName, provider.CategoryTransient, 0, "request timed out", err)
		}
		return provider.NewError(providerName, provider.CategoryTransient, 0, "request failed", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(payload) > 0 {
			if err := json.Unmarshal(payload, out); err != nil {
				return provider.NewError(providerName, provider.CategoryUnknown, resp.StatusCode, "decode response", err)
			}
		}
		return nil
	}

	category := classifyResponse(resp.StatusCode, payload)
	c.log.ProviderError(providerName, method+" "+path, string(category),
		fmt.Errorf("status %d", resp.StatusCode))
	return provider.NewError(providerName, category, resp.StatusCode, errorMessage(payload), nil)
}

type apiError struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// classifyResponse maps a Unipile error response to an outcome category.
// Unprocessable responses need body inspection: "already invited" is a
// duplicate (treated as success upstream) while resend cooldowns and weekly
// invitation limits are rate limits, never success.
func classifyResponse(status int, payload []byte) provider.Category {
	base := provider.ClassifyStatus(status)
	if status != 422 && status != 400 {
		return base
	}

	var apiErr apiError
	_ = json.Unmarshal(payload, &apiErr)
	text := strings.ToLower(apiErr.Type + " " + apiErr.Title + " " + apiErr.Detail)

	switch {
	case strings.Contains(text, "already_invited"), strings.Contains(text, "already invited"):
		return provider.CategoryDuplicate
	case strings.Contains(text, "cannot_resend_yet"), strings.Contains(text, "cannot resend"):
		return provider.CategoryRateLimit
	case strings.Contains(text, "provider_limit"), strings.Contains(text, "limit reached"),
		strings.Contains(text, "too many"):
		return provider.CategoryRateLimit
	case strings.Contains(text, "checkpoint"):
		return provider.CategoryCheckpoint
	default:
		return base
	}
}

func errorMessage(payload []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		if apiErr.Title != "" {
			return apiErr.Title
		}
	}
	return "provider request rejected"
}

// PublicID normalizes a profile URL or bare slug to the public identifier
// used in gateway paths.
func PublicID(value string) string {
	return normalizePublicID(value)
}

// normalizePublicID accepts either a bare public identifier or a full
// profile URL and returns the identifier slug.
func normalizePublicID(value string) string {
	trimmed := strings.TrimSpace(strings.TrimSuffix(value, "/"))
	if idx := strings.Index(trimmed, "/in/"); idx >= 0 {
		return trimmed[idx+len("/in/"):]
	}
	return trimmed
}
