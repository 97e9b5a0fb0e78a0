package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotcal/slotcal/internal/availability"
	"github.com/slotcal/slotcal/internal/booking"
	"github.com/slotcal/slotcal/internal/model"
)

// PublicEventStore is the visitor-facing read surface over event types.
type PublicEventStore interface {
	ListActive(ctx context.Context, ownerID string) ([]model.EventType, error)
	GetActive(ctx context.Context, ownerID, id string) (model.EventType, error)
}

// maxSlotRangeDays bounds a single slot query; wider ranges cost a projection
// per candidate date and nobody books that far out in one screen.
const maxSlotRangeDays = 92

type PublicHandler struct {
	events   PublicEventStore
	resolver *availability.Resolver
	booking  *booking.Service
	logger   *slog.Logger
	// now is injectable for tests; nil means time.Now.
	now func() time.Time
}

func NewPublicHandler(events PublicEventStore, resolver *availability.Resolver, bookingSvc *booking.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{events: events, resolver: resolver, booking: bookingSvc, logger: logger}
}

type publicEventItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	DurationMinutes int    `json:"duration_minutes"`
}

type slotItem struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type slotsResponse struct {
	ScheduleFound bool       `json:"schedule_found"`
	Slots         []slotItem `json:"slots"`
}

// Events serves GET /api/v1/public/events.
func (h *PublicHandler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id required")
		return
	}

	events, err := h.events.ListActive(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("public event list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list event types")
		return
	}
	out := make([]publicEventItem, 0, len(events))
	for _, ev := range events {
		out = append(out, publicEventItem{
			ID:              ev.ID,
			Name:            ev.Name,
			Description:     ev.Description,
			Category:        ev.Category,
			DurationMinutes: ev.DurationMinutes,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Slots serves GET /api/v1/public/slots. from/to are viewer-local dates
// (YYYY-MM-DD, inclusive); timezone is the viewer's IANA zone and defaults to
// UTC.
func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	ownerID := strings.TrimSpace(q.Get("owner_id"))
	eventTypeID := strings.TrimSpace(q.Get("event_type_id"))
	fromStr := strings.TrimSpace(q.Get("from"))
	toStr := strings.TrimSpace(q.Get("to"))
	if ownerID == "" || eventTypeID == "" || fromStr == "" || toStr == "" {
		writeError(w, http.StatusBadRequest, "owner_id, event_type_id, from, and to are required")
		return
	}

	viewer := time.UTC
	if tz := strings.TrimSpace(q.Get("timezone")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown timezone")
			return
		}
		viewer = loc
	}

	fromDay, err := time.ParseInLocation("2006-01-02", fromStr, viewer)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	toDay, err := time.ParseInLocation("2006-01-02", toStr, viewer)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}
	if toDay.Before(fromDay) {
		writeError(w, http.StatusBadRequest, "to must not precede from")
		return
	}
	// Inclusive end date: the range runs to the start of the following day.
	to := toDay.AddDate(0, 0, 1)
	if to.Sub(fromDay) > maxSlotRangeDays*24*time.Hour {
		writeError(w, http.StatusBadRequest, "date range too large")
		return
	}

	ev, err := h.events.GetActive(r.Context(), ownerID, eventTypeID)
	if err != nil {
		if errors.Is(err, booking.ErrEventTypeUnavailable) {
			writeError(w, http.StatusNotFound, "event type not found")
			return
		}
		h.logger.Error("public event load failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load event type")
		return
	}

	slots, err := h.resolver.ResolveSlots(r.Context(), availability.Request{
		OwnerID:  ownerID,
		Duration: ev.Duration(),
		From:     fromDay,
		To:       to,
		Viewer:   viewer,
		Now:      h.timeNow(),
	})
	if err != nil {
		if errors.Is(err, availability.ErrNoSchedule) {
			writeJSON(w, http.StatusOK, slotsResponse{ScheduleFound: false, Slots: []slotItem{}})
			return
		}
		h.logger.Error("slot resolution failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve slots")
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			Start: s.Start.Format(time.RFC3339),
			End:   s.End.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, slotsResponse{ScheduleFound: true, Slots: items})
}

type bookRequest struct {
	OwnerID     string `json:"owner_id"`
	EventTypeID string `json:"event_type_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	GuestName   string `json:"guest_name"`
	GuestEmail  string `json:"guest_email"`
	GuestNotes  string `json:"guest_notes"`
}

// Book serves POST /api/v1/public/book.
func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.EventTypeID = strings.TrimSpace(req.EventTypeID)
	if req.OwnerID == "" || req.EventTypeID == "" {
		writeError(w, http.StatusBadRequest, "owner_id and event_type_id required")
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time")
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_time")
		return
	}

	b, err := h.booking.Commit(r.Context(), booking.CommitRequest{
		OwnerID:     req.OwnerID,
		EventTypeID: req.EventTypeID,
		Slot:        availability.Interval{Start: start, End: end},
		GuestName:   req.GuestName,
		GuestEmail:  req.GuestEmail,
		GuestNotes:  req.GuestNotes,
	})
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrSlotTaken):
			writeError(w, http.StatusConflict, "slot no longer available, pick another time")
		case errors.Is(err, booking.ErrEventTypeUnavailable):
			writeError(w, http.StatusUnprocessableEntity, "event type unavailable")
		case errors.Is(err, booking.ErrInvalidSlot):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("booking commit failed", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to book slot")
		}
		return
	}

	writeJSON(w, http.StatusCreated, bookingResponseFrom(b))
}

func (h *PublicHandler) timeNow() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}
