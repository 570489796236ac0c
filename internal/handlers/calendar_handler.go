package handlers

import (
	"net/http"
	"strconv"
	"time"

	"familysync/internal/service"
)

// CalendarHandler handles the family calendar
type CalendarHandler struct {
	calendarService *service.CalendarService
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(calendarService *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarService: calendarService}
}

// ListEvents returns the family's events between the start and end query parameters.
// Both accept RFC 3339 timestamps or YYYY-MM-DD dates in the family's time zone;
// a date end covers the whole day.
func (h *CalendarHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())
	loc := identity.Family.Location()

	start, err := parseRangeBound(r.URL.Query().Get("start"), loc, false)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "start must be a date or timestamp", Field: "start"})
		return
	}
	end, err := parseRangeBound(r.URL.Query().Get("end"), loc, true)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "end must be a date or timestamp", Field: "end"})
		return
	}

	events, err := h.calendarService.ListEventsInRange(r.Context(), identity, start, end)
	if err != nil {
		respondServiceError(w, err, "Error listing events")
		return
	}

	respondJSON(w, http.StatusOK, events)
}

func parseRangeBound(value string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(service.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
}

// CreateEvent adds an event to the family calendar
func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var input service.EventInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	event, err := h.calendarService.CreateEvent(r.Context(), GetIdentityFromContext(r.Context()), input)
	if err != nil {
		respondServiceError(w, err, "Error creating event")
		return
	}

	respondJSON(w, http.StatusCreated, event)
}

// GetEvent returns one event with its attendees
func (h *CalendarHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.calendarService.GetEvent(r.Context(), GetIdentityFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondServiceError(w, err, "Error loading event")
		return
	}

	respondJSON(w, http.StatusOK, event)
}

// Month returns the month grid for /api/calendar/{year}/{month}
func (h *CalendarHandler) Month(w http.ResponseWriter, r *http.Request) {
	year, yearErr := strconv.Atoi(r.PathValue("year"))
	month, monthErr := strconv.Atoi(r.PathValue("month"))
	if yearErr != nil || monthErr != nil {
		respondWithError(w, http.StatusNotFound, ErrNotFound, "", nil)
		return
	}

	y, m, err := service.ParseMonth(year, month)
	if err != nil {
		respondServiceError(w, err, "Error parsing month")
		return
	}

	view, err := h.calendarService.MonthView(r.Context(), GetIdentityFromContext(r.Context()), y, m)
	if err != nil {
		respondServiceError(w, err, "Error loading month")
		return
	}

	respondJSON(w, http.StatusOK, view)
}
