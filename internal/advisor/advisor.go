// Package advisor produces the client-facing consultation reply. A remote
// OpenAI-compatible model polishes the wording when configured; the
// deterministic composer in compose.go is always the floor, so a dead or slow
// model never blocks a turn and never decides action, phase or readiness.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/williamfrack18-alt/anmar-engine/internal/turn"
	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

const (
	// DefaultModel is used when the config names none.
	DefaultModel = "gpt-4o-mini"
	// DefaultTimeout bounds one generation call. MaxTimeout is the hard cap:
	// a turn must answer within the HTTP client budget even on a stuck model.
	DefaultTimeout = 22 * time.Second
	MaxTimeout     = 25 * time.Second
)

// Config points the advisor at an OpenAI-compatible chat completions API.
// An empty APIKey or BaseURL disables generation entirely.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls the generation API and falls back to the composer.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New builds an advisor client. Timeouts are clamped to MaxTimeout.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 || cfg.Timeout > MaxTimeout {
		if cfg.Timeout <= 0 {
			cfg.Timeout = DefaultTimeout
		} else {
			cfg.Timeout = MaxTimeout
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Enabled reports whether generation is configured at all.
func (c *Client) Enabled() bool {
	return c.cfg.APIKey != "" && c.cfg.BaseURL != ""
}

// Reply returns the consultation reply for one analyzed turn. Greetings and
// confirmed handoffs answer deterministically without spending a generation
// call; everything else tries the model first and composes on any failure.
func (c *Client) Reply(ctx context.Context, a turn.Analysis, input string, history []models.Message) string {
	if text, done := fixedReply(a, input); done {
		return text
	}
	if c.Enabled() {
		text, err := c.generate(ctx, buildPrompt(a, input, history))
		if err != nil {
			c.logger.Warn("advisor generation failed, composing reply", "err", err)
		} else if text != "" {
			return text
		}
	}
	return Compose(a, input)
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.4,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation API returned %d", resp.StatusCode)
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", err
	}
	if len(apiResp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

const systemPrompt = `You are a senior product architect turning client ideas into an actionable internal brief.
Strict Markdown. Mandatory structure:
1) ## What I Heard
2) ## Polished Proposal (MVP)
3) ## Internal Blueprint
4) ## Next Step
Execution mode: no long interviews, no repeated question lists.
Never re-ask something already answered in the memory or history.
If a detail is missing, assume a reasonable option and mark it "Assumption".
Ask at most one short question, and only if it fully blocks execution.
Maximum 230 words. If the client sounds frustrated, acknowledge briefly and redirect.
If the data is complete, use this exact sentence:
"We are ready. The technical blueprint is prepared. Shall I hand it to our engineering network?"`

func buildPrompt(a turn.Analysis, input string, history []models.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current phase: %s\n", a.Phase)
	fmt.Fprintf(&b, "Summary: %s\n", a.Memory.Summary)
	fmt.Fprintf(&b, "Known: %s\n", contextLine(a))
	fmt.Fprintf(&b, "Missing: %s\n", missingText(a))
	fmt.Fprintf(&b, "Next question: %s\n", a.NextQuestion)
	fmt.Fprintf(&b, "Ready by data: %v\n", a.ReadyByData)
	fmt.Fprintf(&b, "Client's last message: %s\n", input)
	b.WriteString("Recent history:\n")
	recent := history
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}
	for _, m := range recent {
		fmt.Fprintf(&b, "- %s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
