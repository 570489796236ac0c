package service

import (
	"context"
	"strings"
	"time"

	"familysync/internal/models"
	"familysync/internal/realtime"
	"familysync/internal/repository"
	"familysync/internal/validation"
)

// Wall-clock input layouts, interpreted in the family's time zone
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04"
)

// EventInput is a new calendar event as entered by a member
type EventInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	AllDay      bool     `json:"all_day"`
	Color       string   `json:"color"`
	AttendeeIDs []string `json:"attendee_ids"`
}

// MonthView is a month grid with the family's events bucketed by local day
type MonthView struct {
	Grid   models.MonthGrid                     `json:"grid"`
	Weeks  [][]MonthDay                         `json:"weeks"`
	Days   map[string][]models.EventWithCreator `json:"days"`
	Events []models.EventWithCreator            `json:"events"`
}

// MonthDay is one cell of the month grid
type MonthDay struct {
	Date    string `json:"date"`
	InMonth bool   `json:"in_month"`
	Events  int    `json:"events"`
}

// EventDetail is a single event with its invitations
type EventDetail struct {
	models.EventWithCreator
	Attendees []models.EventAttendee `json:"attendees"`
}

// CalendarService handles the family calendar
type CalendarService struct {
	eventRepo  *repository.EventRepository
	memberRepo *repository.MemberRepository
	hub        *realtime.Hub
}

// NewCalendarService creates a new calendar service
func NewCalendarService(eventRepo *repository.EventRepository, memberRepo *repository.MemberRepository, hub *realtime.Hub) *CalendarService {
	return &CalendarService{
		eventRepo:  eventRepo,
		memberRepo: memberRepo,
		hub:        hub,
	}
}

// ListEventsInRange returns the family's events starting within [start, end]
func (s *CalendarService) ListEventsInRange(ctx context.Context, identity *models.Identity, start, end time.Time) ([]models.EventWithCreator, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, ErrInvalidTimeRange
	}
	return s.eventRepo.ListEventsInRange(ctx, familyID, start, end, 0)
}

// MonthView loads every event visible in the month grid, including the padding weeks
func (s *CalendarService) MonthView(ctx context.Context, identity *models.Identity, year int, month time.Month) (*MonthView, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}
	if month < time.January || month > time.December {
		return nil, validation.ValidationError{Field: "month", Message: "month must be between 1 and 12"}
	}

	loc := identity.Family.Location()
	grid := models.BuildMonthGrid(year, month, loc)

	events, err := s.eventRepo.ListEventsInRange(ctx, familyID, grid.Start(), grid.End(), 0)
	if err != nil {
		return nil, err
	}

	days := models.GroupByDay(events, func(e models.EventWithCreator) time.Time { return e.StartTime }, loc)

	weeks := make([][]MonthDay, 0, 6)
	for _, week := range grid.Weeks() {
		row := make([]MonthDay, len(week))
		for i, day := range week {
			key := models.DayKey(day, loc)
			row[i] = MonthDay{Date: key, InMonth: grid.InMonth(day), Events: len(days[key])}
		}
		weeks = append(weeks, row)
	}

	return &MonthView{
		Grid:   grid,
		Weeks:  weeks,
		Days:   days,
		Events: events,
	}, nil
}

// GetEvent returns one of the caller's family events with its attendees.
// Events of other families are reported as not found.
func (s *CalendarService) GetEvent(ctx context.Context, identity *models.Identity, eventID string) (*EventDetail, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}

	event, err := s.eventRepo.GetEvent(ctx, familyID, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	attendees, err := s.eventRepo.ListAttendees(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	return &EventDetail{EventWithCreator: *event, Attendees: attendees}, nil
}

// TodayEvents returns up to limit events starting on the family-local day containing now
func (s *CalendarService) TodayEvents(ctx context.Context, identity *models.Identity, now time.Time, limit int) ([]models.EventWithCreator, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}

	local := now.In(identity.Family.Location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return s.eventRepo.ListEventsInRange(ctx, familyID, start, end, limit)
}

// CreateEvent adds an event to the caller's family calendar
func (s *CalendarService) CreateEvent(ctx context.Context, identity *models.Identity, input EventInput) (*models.CalendarEvent, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if err := validation.ValidateRequired("title", title, validation.MaxTitleLength); err != nil {
		return nil, err
	}

	start, end, err := parseEventTimes(input, identity.Family.Location())
	if err != nil {
		return nil, err
	}

	var color *string
	if c := strings.TrimSpace(input.Color); c != "" {
		if err := validation.ValidateColor(c); err != nil {
			return nil, err
		}
		color = &c
	}

	for _, attendeeID := range input.AttendeeIDs {
		member, err := s.memberRepo.GetFamilyMember(ctx, familyID, attendeeID)
		if err != nil {
			return nil, err
		}
		if member == nil {
			return nil, ErrAttendeeNotInFamily
		}
	}

	event := &models.CalendarEvent{
		FamilyID:    familyID,
		Title:       title,
		Description: blankToNil(input.Description),
		Location:    blankToNil(input.Location),
		StartTime:   start,
		EndTime:     end,
		AllDay:      input.AllDay,
		CreatedBy:   identity.Member.ID,
		Color:       color,
	}
	if err := s.eventRepo.CreateEvent(ctx, event, input.AttendeeIDs); err != nil {
		return nil, err
	}

	s.hub.Publish(familyID, realtime.NewEvent(realtime.EventEventCreated, models.EventWithCreator{
		CalendarEvent: *event,
		Creator:       identity.Member.Summary(),
	}))
	return event, nil
}

// parseEventTimes converts wall-clock input in loc to instants. All-day events span
// from 00:00 on the start date to 23:59 on the end date (the start date when omitted).
// Timed events without an end last one hour.
func parseEventTimes(input EventInput, loc *time.Location) (time.Time, time.Time, error) {
	startText := strings.TrimSpace(input.Start)
	endText := strings.TrimSpace(input.End)

	if input.AllDay {
		startDay, err := time.ParseInLocation(DateLayout, dateOnly(startText), loc)
		if err != nil {
			return time.Time{}, time.Time{}, validation.ValidationError{Field: "start", Message: "start must be a date (YYYY-MM-DD)"}
		}
		endDay := startDay
		if endText != "" {
			endDay, err = time.ParseInLocation(DateLayout, dateOnly(endText), loc)
			if err != nil {
				return time.Time{}, time.Time{}, validation.ValidationError{Field: "end", Message: "end must be a date (YYYY-MM-DD)"}
			}
		}
		end := time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 23, 59, 0, 0, loc)
		if end.Before(startDay) {
			return time.Time{}, time.Time{}, ErrInvalidTimeRange
		}
		return startDay, end, nil
	}

	start, err := time.ParseInLocation(DateTimeLayout, startText, loc)
	if err != nil {
		return time.Time{}, time.Time{}, validation.ValidationError{Field: "start", Message: "start must be a date and time (YYYY-MM-DDTHH:MM)"}
	}
	end := start.Add(time.Hour)
	if endText != "" {
		end, err = time.ParseInLocation(DateTimeLayout, endText, loc)
		if err != nil {
			return time.Time{}, time.Time{}, validation.ValidationError{Field: "end", Message: "end must be a date and time (YYYY-MM-DDTHH:MM)"}
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, ErrInvalidTimeRange
	}
	return start, end, nil
}

// dateOnly accepts either a date or a date-time and keeps the date part
func dateOnly(s string) string {
	if len(s) > len(DateLayout) {
		return s[:len(DateLayout)]
	}
	return s
}

func blankToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ParseMonth validates path-style year and month values
func ParseMonth(year, month int) (int, time.Month, error) {
	if year < 1970 || year > 9999 {
		return 0, 0, validation.ValidationError{Field: "year", Message: "year is out of range"}
	}
	if month < 1 || month > 12 {
		return 0, 0, validation.ValidationError{Field: "month", Message: "month must be between 1 and 12"}
	}
	return year, time.Month(month), nil
}
