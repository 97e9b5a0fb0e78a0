// Package enrichment classifies an event type from its external link: the
// page is scraped to markdown, trimmed to its "About this event" section, and
// an OpenAI-compatible chat model picks a category and writes a short
// description. Everything here is best effort; callers treat ErrEnrichment as
// "keep the manual fields".
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrEnrichment wraps every failure in the scrape/classify pipeline so the
// caller can degrade with a single errors.Is check.
var ErrEnrichment = errors.New("enrichment failed")

// Categories the classifier is allowed to return. Anything else falls back to
// the first entry.
var Categories = []string{"Meeting", "Webinar", "Interview", "Sales Call", "Training", "Tech Talk"}

// Result is what enrichment contributes to an event type.
type Result struct {
	Category    string
	Description string
}

type Config struct {
	ScrapeURL    string // Firecrawl-style scrape endpoint
	ScrapeAPIKey string
	ChatURL      string // OpenAI-compatible chat completions endpoint
	ChatAPIKey   string
	ChatModel    string
	Timeout      time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Enabled reports whether both endpoints are configured. When false the owner
// API skips enrichment entirely.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.ScrapeURL != "" && c.cfg.ChatURL != ""
}

// CategoryAndDescription scrapes link and classifies it. Any failure comes
// back wrapped in ErrEnrichment.
func (c *Client) CategoryAndDescription(ctx context.Context, link string) (Result, error) {
	markdown, err := c.scrape(ctx, link)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrEnrichment, err)
	}
	res, err := c.classify(ctx, RelevantEventMarkdown(markdown))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrEnrichment, err)
	}
	return res, nil
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
}

func (c *Client) scrape(ctx context.Context, link string) (string, error) {
	body, err := json.Marshal(scrapeRequest{URL: link, Formats: []string{"markdown"}})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ScrapeURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ScrapeAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ScrapeAPIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scrape status %d", resp.StatusCode)
	}

	var out scrapeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return "", err
	}
	if !out.Success {
		return "", fmt.Errorf("scrape rejected: %s", out.Error)
	}
	if out.Data.Markdown == "" {
		return "", errors.New("scrape returned no markdown")
	}
	return out.Data.Markdown, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const classifyPrompt = `You're an assistant that helps users create calendar events.

From the content below, extract:
1. A category (one of): "Meeting", "Webinar", "Interview", "Sales Call", "Training", "Tech Talk"
2. A short 1-2 sentence event description.

Respond in JSON:
{
  "category": "...",
  "description": "..."
}

---
`

func (c *Client) classify(ctx context.Context, markdown string) (Result, error) {
	if len(markdown) > 1000 {
		markdown = markdown[:1000]
	}
	body, err := json.Marshal(chatRequest{
		Model:    c.cfg.ChatModel,
		Messages: []chatMessage{{Role: "user", Content: classifyPrompt + markdown}},
	})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ChatURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ChatAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ChatAPIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("chat status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Result{}, err
	}
	if len(out.Choices) == 0 {
		return Result{}, errors.New("chat returned no choices")
	}

	var parsed struct {
		Category    string `json:"category"`
		Description string `json:"description"`
	}
	raw := JSONFromCodeBlock(strings.TrimSpace(out.Choices[0].Message.Content))
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Result{}, fmt.Errorf("chat reply not parseable: %w", err)
	}
	return Result{
		Category:    normalizeCategory(parsed.Category),
		Description: strings.TrimSpace(parsed.Description),
	}, nil
}

func normalizeCategory(s string) string {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), c) {
			return c
		}
	}
	return Categories[0]
}

var (
	aboutSectionRe = regexp.MustCompile(`(?is)##\s+About this event\s+(.+?)\n{2,}`)
	codeBlockRe    = regexp.MustCompile("(?s)```(?:json)?\n?(.*?)\n?```")
)

// RelevantEventMarkdown trims a scraped page to the first two paragraphs of
// its "About this event" section. Pages without one pass through untouched so
// the classifier still has something to read.
func RelevantEventMarkdown(markdown string) string {
	m := aboutSectionRe.FindStringSubmatch(markdown + "\n\n")
	if m == nil {
		return markdown
	}
	var paragraphs []string
	for _, line := range strings.Split(m[1], "\n") {
		if strings.TrimSpace(line) != "" {
			paragraphs = append(paragraphs, line)
		}
		if len(paragraphs) == 2 {
			break
		}
	}
	return "### About\n" + strings.Join(paragraphs, "\n\n")
}

// JSONFromCodeBlock unwraps a fenced ```json block if the model replied with
// one, otherwise returns the text as-is.
func JSONFromCodeBlock(text string) string {
	if m := codeBlockRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}
