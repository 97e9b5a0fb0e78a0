package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotcal/slotcal/internal/booking"
	"github.com/slotcal/slotcal/internal/model"
)

// BookingLister reads an owner's bookings; zero from/to mean unbounded.
type BookingLister interface {
	ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]model.Booking, error)
}

type OwnerBookingHandler struct {
	store   BookingLister
	service *booking.Service
	logger  *slog.Logger
}

func NewOwnerBookingHandler(store BookingLister, service *booking.Service, logger *slog.Logger) *OwnerBookingHandler {
	return &OwnerBookingHandler{store: store, service: service, logger: logger}
}

type bookingResponse struct {
	BookingID   string `json:"booking_id"`
	EventTypeID string `json:"event_type_id,omitempty"`
	GuestName   string `json:"guest_name"`
	GuestEmail  string `json:"guest_email"`
	GuestNotes  string `json:"guest_notes,omitempty"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func (h *OwnerBookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var from, to time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from")
			return
		}
		from = t
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to")
			return
		}
		to = t
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		writeError(w, http.StatusBadRequest, "to must be after from")
		return
	}

	bookings, err := h.store.ListByOwner(r.Context(), OwnerID(r), from, to)
	if err != nil {
		h.logger.Error("booking list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingResponseFrom(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OwnerBookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		BookingID string `json:"booking_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		writeError(w, http.StatusBadRequest, "booking_id required")
		return
	}

	b, err := h.service.Cancel(r.Context(), OwnerID(r), req.BookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		h.logger.Error("booking cancel failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel booking")
		return
	}
	writeJSON(w, http.StatusOK, bookingResponseFrom(b))
}

func bookingResponseFrom(b model.Booking) bookingResponse {
	return bookingResponse{
		BookingID:   b.ID,
		EventTypeID: b.EventTypeID,
		GuestName:   b.GuestName,
		GuestEmail:  b.GuestEmail,
		GuestNotes:  b.GuestNotes,
		StartTime:   b.StartTime.UTC().Format(time.RFC3339),
		EndTime:     b.EndTime.UTC().Format(time.RFC3339),
		Status:      b.Status,
		CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
	}
}
