package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/slotcal/slotcal/internal/enrichment"
	"github.com/slotcal/slotcal/internal/model"
)

type memEventStore struct {
	events map[string]model.EventType
	nextID int
}

func newMemEventStore() *memEventStore {
	return &memEventStore{events: map[string]model.EventType{}}
}

func (m *memEventStore) Create(_ context.Context, ev *model.EventType) error {
	m.nextID++
	ev.ID = fmt.Sprintf("evt-%d", m.nextID)
	m.events[ev.ID] = *ev
	return nil
}

func (m *memEventStore) GetByID(_ context.Context, ownerID, id string) (model.EventType, error) {
	ev, ok := m.events[id]
	if !ok || ev.OwnerID != ownerID {
		return model.EventType{}, pgx.ErrNoRows
	}
	return ev, nil
}

func (m *memEventStore) ListByOwner(_ context.Context, ownerID string) ([]model.EventType, error) {
	var out []model.EventType
	for _, ev := range m.events {
		if ev.OwnerID == ownerID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memEventStore) Update(_ context.Context, ev *model.EventType) error {
	if _, ok := m.events[ev.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.events[ev.ID] = *ev
	return nil
}

func (m *memEventStore) Delete(_ context.Context, ownerID, id string) error {
	ev, ok := m.events[id]
	if !ok || ev.OwnerID != ownerID {
		return pgx.ErrNoRows
	}
	delete(m.events, id)
	return nil
}

type fakeEnricher struct {
	res enrichment.Result
	err error
}

func (f *fakeEnricher) Enabled() bool { return true }

func (f *fakeEnricher) CategoryAndDescription(_ context.Context, _ string) (enrichment.Result, error) {
	return f.res, f.err
}

func createEvent(t *testing.T, h *EventTypeHandler, body string) eventTypeResponse {
	t.Helper()
	req := asOwner(httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body)), "owner-1")
	rec := httptest.NewRecorder()
	h.Collection(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp eventTypeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestEventCreateFillsBlanksFromEnrichment(t *testing.T) {
	enricher := &fakeEnricher{res: enrichment.Result{Category: "Tech Talk", Description: "A talk."}}
	h := NewEventTypeHandler(newMemEventStore(), enricher, testLogger)

	resp := createEvent(t, h, `{
		"name": "Go night",
		"link": "https://example.com/go-night",
		"duration_minutes": 60
	}`)
	if resp.Category != "Tech Talk" || resp.Description != "A talk." {
		t.Fatalf("enrichment should fill blanks: %+v", resp)
	}
	if resp.EnrichmentError != "" {
		t.Fatalf("unexpected enrichment error: %s", resp.EnrichmentError)
	}
}

func TestEventCreateKeepsManualFieldsOverEnrichment(t *testing.T) {
	enricher := &fakeEnricher{res: enrichment.Result{Category: "Webinar", Description: "generated"}}
	h := NewEventTypeHandler(newMemEventStore(), enricher, testLogger)

	resp := createEvent(t, h, `{
		"name": "Go night",
		"link": "https://example.com/go-night",
		"category": "Meeting",
		"duration_minutes": 60
	}`)
	if resp.Category != "Meeting" {
		t.Fatalf("manual category must win, got %s", resp.Category)
	}
	if resp.Description != "generated" {
		t.Fatalf("blank description should still be filled, got %q", resp.Description)
	}
}

func TestEventCreateSurvivesEnrichmentFailure(t *testing.T) {
	enricher := &fakeEnricher{err: fmt.Errorf("%w: scrape blocked", enrichment.ErrEnrichment)}
	h := NewEventTypeHandler(newMemEventStore(), enricher, testLogger)

	resp := createEvent(t, h, `{
		"name": "Go night",
		"link": "https://example.com/go-night",
		"duration_minutes": 60
	}`)
	if resp.EnrichmentError == "" {
		t.Fatal("expected enrichment_error in response")
	}
	if resp.ID == "" {
		t.Fatal("event must still be created")
	}
}

func TestEventCreateValidation(t *testing.T) {
	h := NewEventTypeHandler(newMemEventStore(), nil, testLogger)
	bad := []string{
		`{"name": "", "duration_minutes": 30}`,
		`{"name": "x", "duration_minutes": 0}`,
		`{"name": "x", "duration_minutes": -30}`,
		`{"name": "x", "duration_minutes": 2000}`,
		`not json`,
	}
	for _, body := range bad {
		req := asOwner(httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body)), "owner-1")
		rec := httptest.NewRecorder()
		h.Collection(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestEventItemLifecycle(t *testing.T) {
	store := newMemEventStore()
	h := NewEventTypeHandler(store, nil, testLogger)
	created := createEvent(t, h, `{"name": "Intro call", "duration_minutes": 30}`)

	// Update flips it inactive.
	req := asOwner(httptest.NewRequest(http.MethodPut, "/api/v1/events/"+created.ID,
		strings.NewReader(`{"name": "Intro call", "duration_minutes": 30, "is_active": false}`)), "owner-1")
	rec := httptest.NewRecorder()
	h.Item(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated eventTypeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.IsActive {
		t.Fatal("event should be inactive after update")
	}

	// Delete, then a second delete is 404.
	req = asOwner(httptest.NewRequest(http.MethodDelete, "/api/v1/events/"+created.ID, nil), "owner-1")
	rec = httptest.NewRecorder()
	h.Item(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	req = asOwner(httptest.NewRequest(http.MethodDelete, "/api/v1/events/"+created.ID, nil), "owner-1")
	rec = httptest.NewRecorder()
	h.Item(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestEventItemForeignOwnerIs404(t *testing.T) {
	store := newMemEventStore()
	h := NewEventTypeHandler(store, nil, testLogger)
	created := createEvent(t, h, `{"name": "Intro call", "duration_minutes": 30}`)

	req := asOwner(httptest.NewRequest(http.MethodGet, "/api/v1/events/"+created.ID, nil), "someone-else")
	rec := httptest.NewRecorder()
	h.Item(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign owner, got %d", rec.Code)
	}
}
