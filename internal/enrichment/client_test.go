package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `# Go Meetup

## Date and time

Monday, February 2

## About this event

Join us for a deep dive into production Go services.
We cover tracing, outboxes, and everything in between.
And a third paragraph that should be trimmed away.

## Organized by

The Go community
`

func TestRelevantEventMarkdown(t *testing.T) {
	got := RelevantEventMarkdown(samplePage)
	if !strings.Contains(got, "deep dive into production Go services") {
		t.Fatalf("missing first paragraph: %q", got)
	}
	if !strings.Contains(got, "tracing, outboxes") {
		t.Fatalf("missing second paragraph: %q", got)
	}
	if strings.Contains(got, "third paragraph") {
		t.Fatalf("third paragraph should be trimmed: %q", got)
	}
	if strings.Contains(got, "Organized by") {
		t.Fatalf("other sections should be trimmed: %q", got)
	}
}

func TestRelevantEventMarkdownWithoutAboutSection(t *testing.T) {
	raw := "# Just a title\n\nSome text."
	if got := RelevantEventMarkdown(raw); got != raw {
		t.Fatalf("pages without an About section must pass through, got %q", got)
	}
}

func TestJSONFromCodeBlock(t *testing.T) {
	fenced := "```json\n{\"category\": \"Webinar\"}\n```"
	if got := JSONFromCodeBlock(fenced); got != `{"category": "Webinar"}` {
		t.Fatalf("fenced json not unwrapped: %q", got)
	}
	bare := "```\n{\"category\": \"Webinar\"}\n```"
	if got := JSONFromCodeBlock(bare); got != `{"category": "Webinar"}` {
		t.Fatalf("bare fence not unwrapped: %q", got)
	}
	plain := `{"category": "Webinar"}`
	if got := JSONFromCodeBlock(plain); got != plain {
		t.Fatalf("plain json should pass through: %q", got)
	}
}

func TestCategoryAndDescription(t *testing.T) {
	scraper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scrapeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("scrape request decode: %v", err)
		}
		if req.URL != "https://example.com/meetup" {
			t.Fatalf("unexpected scrape url: %s", req.URL)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"markdown": samplePage},
		})
	}))
	defer scraper.Close()

	chat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("chat request decode: %v", err)
		}
		if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "deep dive") {
			t.Fatalf("prompt missing scraped content: %+v", req.Messages)
		}
		// Reply fenced, the way chat models like to.
		reply := "```json\n{\"category\": \"tech talk\", \"description\": \"A deep dive into Go services.\"}\n```"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	defer chat.Close()

	client := NewClient(Config{ScrapeURL: scraper.URL, ChatURL: chat.URL, ChatModel: "test-model"})
	res, err := client.CategoryAndDescription(context.Background(), "https://example.com/meetup")
	if err != nil {
		t.Fatalf("CategoryAndDescription: %v", err)
	}
	if res.Category != "Tech Talk" {
		t.Fatalf("category should be normalized to the fixed set, got %q", res.Category)
	}
	if res.Description != "A deep dive into Go services." {
		t.Fatalf("unexpected description: %q", res.Description)
	}
}

func TestScrapeFailureWrapsErrEnrichment(t *testing.T) {
	scraper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "blocked"})
	}))
	defer scraper.Close()

	client := NewClient(Config{ScrapeURL: scraper.URL, ChatURL: "http://unused.invalid"})
	_, err := client.CategoryAndDescription(context.Background(), "https://example.com/x")
	if !errors.Is(err, ErrEnrichment) {
		t.Fatalf("expected ErrEnrichment, got %v", err)
	}
}

func TestClassifyUnknownCategoryFallsBack(t *testing.T) {
	scraper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"markdown": samplePage},
		})
	}))
	defer scraper.Close()

	chat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": `{"category": "Party", "description": "d"}`}},
			},
		})
	}))
	defer chat.Close()

	client := NewClient(Config{ScrapeURL: scraper.URL, ChatURL: chat.URL})
	res, err := client.CategoryAndDescription(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatalf("CategoryAndDescription: %v", err)
	}
	if res.Category != "Meeting" {
		t.Fatalf("unknown category should fall back to Meeting, got %q", res.Category)
	}
}

func TestEnabled(t *testing.T) {
	if NewClient(Config{}).Enabled() {
		t.Fatal("unconfigured client must be disabled")
	}
	if !NewClient(Config{ScrapeURL: "http://s", ChatURL: "http://c"}).Enabled() {
		t.Fatal("configured client must be enabled")
	}
	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatal("nil client must be disabled")
	}
}
