// Package summarizer condenses LinkedIn profile data into a short note
// attached to visit activities, using the Gemini API.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"google.golang.org/genai"
)

const requestTimeout = 20 * time.Second

// Service generates profile summaries. A nil service (no API key configured)
// is valid: Summarize then returns an empty string without error, and the
// visit activity is recorded without a summary.
type Service struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// New creates the summarizer, or nil when no API key is configured.
func New(ctx context.Context, cfg config.SummarizerConfig, log *logger.Logger) (*Service, error) {
	if !cfg.IsSummarizerEnabled() {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GetGenAIAPIKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	return &Service{client: client, model: cfg.GetGenAIModel(), log: log}, nil
}

// ProfileInput is the profile material handed to the model.
type ProfileInput struct {
	FirstName string
	LastName  string
	Headline  string
	Summary   string
	Location  string
	Company   string
	Title     string
}

// Summarize returns a two-sentence summary of the profile, or an empty
// string when the summarizer is disabled or the model call fails.
// Summaries are decoration on the visit activity, never a hard dependency.
func (s *Service) Summarize(ctx context.Context, in ProfileInput) string {
	if s == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	prompt := buildPrompt(in)
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		s.log.Warn("profile summary failed", "error", err)
		return ""
	}

	return strings.TrimSpace(resp.Text())
}

func buildPrompt(in ProfileInput) string {
	var b strings.Builder
	b.WriteString("Summarize this LinkedIn profile in at most two sentences, ")
	b.WriteString("focused on what matters for a sales conversation. ")
	b.WriteString("Reply with the summary only.\n\n")
	write := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	write("Name", strings.TrimSpace(in.FirstName+" "+in.LastName))
	write("Title", in.Title)
	write("Company", in.Company)
	write("Headline", in.Headline)
	write("Location", in.Location)
	write("About", in.Summary)
	return b.String()
}
