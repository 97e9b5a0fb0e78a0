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
	"github.com/slotcal/slotcal/internal/model"
	"github.com/slotcal/slotcal/internal/timeutil"
)

// ScheduleStore is what the schedule endpoints need from storage.
type ScheduleStore interface {
	GetSchedule(ctx context.Context, ownerID string) (model.Schedule, error)
	Replace(ctx context.Context, sched model.Schedule) error
	Delete(ctx context.Context, ownerID string) error
}

type ScheduleHandler struct {
	store  ScheduleStore
	logger *slog.Logger
}

func NewScheduleHandler(store ScheduleStore, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{store: store, logger: logger}
}

type windowPayload struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type schedulePayload struct {
	Timezone string          `json:"timezone"`
	Windows  []windowPayload `json:"windows"`
}

func (h *ScheduleHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *ScheduleHandler) get(w http.ResponseWriter, r *http.Request) {
	sched, err := h.store.GetSchedule(r.Context(), OwnerID(r))
	if err != nil {
		if errors.Is(err, availability.ErrNoSchedule) {
			writeError(w, http.StatusNotFound, "no schedule configured")
			return
		}
		h.logger.Error("schedule load failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	writeJSON(w, http.StatusOK, schedulePayloadFrom(sched))
}

func (h *ScheduleHandler) put(w http.ResponseWriter, r *http.Request) {
	var req schedulePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone == "" {
		writeError(w, http.StatusBadRequest, "timezone required")
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeError(w, http.StatusBadRequest, "unknown timezone")
		return
	}

	sched := model.Schedule{OwnerID: OwnerID(r), Timezone: req.Timezone}
	for _, wp := range req.Windows {
		day, err := model.ParseWeekday(wp.Day)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		start, err := timeutil.ParseClock(wp.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start time: "+wp.Start)
			return
		}
		end, err := timeutil.ParseClock(wp.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end time: "+wp.End)
			return
		}
		win := model.AvailabilityWindow{Day: day, Start: start, End: end}
		if err := win.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sched.Windows = append(sched.Windows, win)
	}

	if err := h.store.Replace(r.Context(), sched); err != nil {
		h.logger.Error("schedule replace failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to save schedule")
		return
	}
	writeJSON(w, http.StatusOK, schedulePayloadFrom(sched))
}

func (h *ScheduleHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), OwnerID(r)); err != nil {
		h.logger.Error("schedule delete failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func schedulePayloadFrom(sched model.Schedule) schedulePayload {
	out := schedulePayload{Timezone: sched.Timezone, Windows: make([]windowPayload, 0, len(sched.Windows))}
	for _, win := range sched.Windows {
		out.Windows = append(out.Windows, windowPayload{
			Day:   model.WeekdayName(win.Day),
			Start: win.Start.String(),
			End:   win.End.String(),
		})
	}
	return out
}
