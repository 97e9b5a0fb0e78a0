package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/slotcal/slotcal/internal/availability"
	"github.com/slotcal/slotcal/internal/model"
)

type memScheduleStore struct {
	sched *model.Schedule
}

func (m *memScheduleStore) GetSchedule(_ context.Context, _ string) (model.Schedule, error) {
	if m.sched == nil {
		return model.Schedule{}, availability.ErrNoSchedule
	}
	return *m.sched, nil
}

func (m *memScheduleStore) Replace(_ context.Context, sched model.Schedule) error {
	m.sched = &sched
	return nil
}

func (m *memScheduleStore) Delete(_ context.Context, _ string) error {
	m.sched = nil
	return nil
}

func asOwner(r *http.Request, ownerID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ownerIDKey, ownerID))
}

func TestScheduleGetWithoutSchedule(t *testing.T) {
	h := NewScheduleHandler(&memScheduleStore{}, testLogger)
	req := asOwner(httptest.NewRequest(http.MethodGet, "/api/v1/schedule", nil), "owner-1")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSchedulePutAndGetRoundTrip(t *testing.T) {
	store := &memScheduleStore{}
	h := NewScheduleHandler(store, testLogger)

	body := `{
		"timezone": "America/New_York",
		"windows": [
			{"day": "monday", "start": "09:00", "end": "17:00"},
			{"day": "wednesday", "start": "10:00", "end": "12:00"}
		]
	}`
	req := asOwner(httptest.NewRequest(http.MethodPut, "/api/v1/schedule", strings.NewReader(body)), "owner-1")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = asOwner(httptest.NewRequest(http.MethodGet, "/api/v1/schedule", nil), "owner-1")
	rec = httptest.NewRecorder()
	h.Handle(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp schedulePayload
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Timezone != "America/New_York" || len(resp.Windows) != 2 {
		t.Fatalf("unexpected schedule: %+v", resp)
	}
	if resp.Windows[0].Day != "monday" || resp.Windows[0].Start != "09:00" {
		t.Fatalf("unexpected first window: %+v", resp.Windows[0])
	}
}

func TestSchedulePutRejectsBadInput(t *testing.T) {
	h := NewScheduleHandler(&memScheduleStore{}, testLogger)
	bad := []string{
		`{"timezone": "", "windows": []}`,
		`{"timezone": "Mars/Olympus", "windows": []}`,
		`{"timezone": "UTC", "windows": [{"day": "funday", "start": "09:00", "end": "17:00"}]}`,
		`{"timezone": "UTC", "windows": [{"day": "monday", "start": "25:00", "end": "26:00"}]}`,
		`{"timezone": "UTC", "windows": [{"day": "monday", "start": "09:00:00", "end": "17:00"}]}`,
		`{"timezone": "UTC", "windows": [{"day": "monday", "start": "17:00", "end": "09:00"}]}`,
		`{"timezone": "UTC", "windows": [{"day": "monday", "start": "09:00", "end": "09:00"}]}`,
	}
	for _, body := range bad {
		req := asOwner(httptest.NewRequest(http.MethodPut, "/api/v1/schedule", strings.NewReader(body)), "owner-1")
		rec := httptest.NewRecorder()
		h.Handle(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestScheduleDelete(t *testing.T) {
	store := &memScheduleStore{sched: &model.Schedule{OwnerID: "owner-1", Timezone: "UTC"}}
	h := NewScheduleHandler(store, testLogger)
	req := asOwner(httptest.NewRequest(http.MethodDelete, "/api/v1/schedule", nil), "owner-1")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if store.sched != nil {
		t.Fatal("schedule should be gone")
	}
}

func TestRequireOwnerRejectsMissingToken(t *testing.T) {
	h := RequireOwner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}), "secret", nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/schedule", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
