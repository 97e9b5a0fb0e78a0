package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotcal/slotcal/internal/enrichment"
	"github.com/slotcal/slotcal/internal/model"
	"github.com/slotcal/slotcal/internal/storage"
)

// EventTypeStore is what the owner event-type endpoints need from storage.
// Missing rows surface as pgx.ErrNoRows (checked via storage.IsNotFound).
type EventTypeStore interface {
	Create(ctx context.Context, ev *model.EventType) error
	GetByID(ctx context.Context, ownerID, id string) (model.EventType, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.EventType, error)
	Update(ctx context.Context, ev *model.EventType) error
	Delete(ctx context.Context, ownerID, id string) error
}

// Enricher classifies an event type from its external link. Failures never
// block a save.
type Enricher interface {
	Enabled() bool
	CategoryAndDescription(ctx context.Context, link string) (enrichment.Result, error)
}

type EventTypeHandler struct {
	store    EventTypeStore
	enricher Enricher
	logger   *slog.Logger
}

func NewEventTypeHandler(store EventTypeStore, enricher Enricher, logger *slog.Logger) *EventTypeHandler {
	return &EventTypeHandler{store: store, enricher: enricher, logger: logger}
}

type eventTypeRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Link            string `json:"link"`
	DurationMinutes int    `json:"duration_minutes"`
	IsActive        *bool  `json:"is_active"`
}

type eventTypeResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Link            string `json:"link"`
	DurationMinutes int    `json:"duration_minutes"`
	IsActive        bool   `json:"is_active"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	EnrichmentError string `json:"enrichment_error,omitempty"`
}

// Collection serves /api/v1/events.
func (h *EventTypeHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// Item serves /api/v1/events/{id}.
func (h *EventTypeHandler) Item(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/events/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "event type not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *EventTypeHandler) create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	ev := model.EventType{
		OwnerID:         OwnerID(r),
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		Link:            req.Link,
		DurationMinutes: req.DurationMinutes,
		IsActive:        true,
	}
	if req.IsActive != nil {
		ev.IsActive = *req.IsActive
	}

	enrichErr := h.enrich(r.Context(), &ev)

	if err := h.store.Create(r.Context(), &ev); err != nil {
		h.logger.Error("event type create failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create event type")
		return
	}
	writeJSON(w, http.StatusCreated, eventTypeResponseFrom(ev, enrichErr))
}

func (h *EventTypeHandler) list(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListByOwner(r.Context(), OwnerID(r))
	if err != nil {
		h.logger.Error("event type list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list event types")
		return
	}
	out := make([]eventTypeResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, eventTypeResponseFrom(ev, ""))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *EventTypeHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	ev, err := h.store.GetByID(r.Context(), OwnerID(r), id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "event type not found")
			return
		}
		h.logger.Error("event type load failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load event type")
		return
	}
	writeJSON(w, http.StatusOK, eventTypeResponseFrom(ev, ""))
}

func (h *EventTypeHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	ev, err := h.store.GetByID(r.Context(), OwnerID(r), id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "event type not found")
			return
		}
		h.logger.Error("event type load failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load event type")
		return
	}

	ev.Name = req.Name
	ev.Description = req.Description
	ev.Category = req.Category
	ev.Link = req.Link
	ev.DurationMinutes = req.DurationMinutes
	if req.IsActive != nil {
		ev.IsActive = *req.IsActive
	}

	enrichErr := h.enrich(r.Context(), &ev)

	if err := h.store.Update(r.Context(), &ev); err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "event type not found")
			return
		}
		h.logger.Error("event type update failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to update event type")
		return
	}
	writeJSON(w, http.StatusOK, eventTypeResponseFrom(ev, enrichErr))
}

func (h *EventTypeHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Delete(r.Context(), OwnerID(r), id); err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "event type not found")
			return
		}
		h.logger.Error("event type delete failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event type")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventTypeHandler) decode(w http.ResponseWriter, r *http.Request) (eventTypeRequest, bool) {
	var req eventTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return req, false
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Link = strings.TrimSpace(req.Link)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return req, false
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > 24*60 {
		writeError(w, http.StatusBadRequest, "duration_minutes must be between 1 and 1440")
		return req, false
	}
	return req, true
}

// enrich fills blank category/description from the linked page. The returned
// message is reported to the owner; the save always proceeds.
func (h *EventTypeHandler) enrich(ctx context.Context, ev *model.EventType) string {
	if h.enricher == nil || !h.enricher.Enabled() {
		return ""
	}
	if ev.Link == "" || (ev.Category != "" && ev.Description != "") {
		return ""
	}
	res, err := h.enricher.CategoryAndDescription(ctx, ev.Link)
	if err != nil {
		h.logger.Warn("enrichment failed; keeping manual fields", "link", ev.Link, "err", err)
		return err.Error()
	}
	if ev.Category == "" {
		ev.Category = res.Category
	}
	if ev.Description == "" {
		ev.Description = res.Description
	}
	return ""
}

func eventTypeResponseFrom(ev model.EventType, enrichErr string) eventTypeResponse {
	return eventTypeResponse{
		ID:              ev.ID,
		Name:            ev.Name,
		Description:     ev.Description,
		Category:        ev.Category,
		Link:            ev.Link,
		DurationMinutes: ev.DurationMinutes,
		IsActive:        ev.IsActive,
		CreatedAt:       ev.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       ev.UpdatedAt.UTC().Format(time.RFC3339),
		EnrichmentError: enrichErr,
	}
}
