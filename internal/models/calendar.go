package models

import "time"

// CalendarEvent is a family calendar entry. Recurrence fields are stored but never expanded.
type CalendarEvent struct {
	ID             string     `json:"id"`
	FamilyID       string     `json:"family_id"`
	Title          string     `json:"title"`
	Description    *string    `json:"description,omitempty"`
	Location       *string    `json:"location,omitempty"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	AllDay         bool       `json:"all_day"`
	RecurrenceRule *string    `json:"recurrence_rule,omitempty"`
	RecurrenceEnd  *time.Time `json:"recurrence_end,omitempty"`
	CreatedBy      string     `json:"created_by"`
	Color          *string    `json:"color,omitempty"`
	ExternalSource *string    `json:"external_source,omitempty"`
	ExternalID     *string    `json:"external_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// EventWithCreator is a calendar event joined with its creator's display identity
type EventWithCreator struct {
	CalendarEvent
	Creator MemberSummary `json:"creator"`
}

// RSVP is an attendee's response to an event
type RSVP string

const (
	RSVPPending   RSVP = "pending"
	RSVPAccepted  RSVP = "accepted"
	RSVPDeclined  RSVP = "declined"
	RSVPTentative RSVP = "tentative"
)

// EventAttendee pairs an event with a member
type EventAttendee struct {
	EventID  string `json:"event_id"`
	MemberID string `json:"member_id"`
	RSVP     RSVP   `json:"rsvp"`
}

// DayKeyLayout formats calendar day keys
const DayKeyLayout = "2006-01-02"

// DayKey returns the calendar day of t in loc as YYYY-MM-DD
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayKeyLayout)
}

// MonthGrid is the set of whole weeks (Sunday to Saturday) that intersect a month
type MonthGrid struct {
	Year  int         `json:"year"`
	Month time.Month  `json:"month"`
	Days  []time.Time `json:"days"`
}

// BuildMonthGrid returns the visible grid for month: from the Sunday on or before the
// first of the month through the Saturday on or after its last day. Days are local midnights.
func BuildMonthGrid(year int, month time.Month, loc *time.Location) MonthGrid {
	if loc == nil {
		loc = time.UTC
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)

	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := last.AddDate(0, 0, int(time.Saturday-last.Weekday()))

	grid := MonthGrid{Year: first.Year(), Month: first.Month()}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		grid.Days = append(grid.Days, d)
	}
	return grid
}

// Start is the first instant of the grid
func (g MonthGrid) Start() time.Time {
	if len(g.Days) == 0 {
		return time.Time{}
	}
	return g.Days[0]
}

// End is the last instant of the grid (just before the following Sunday)
func (g MonthGrid) End() time.Time {
	if len(g.Days) == 0 {
		return time.Time{}
	}
	return g.Days[len(g.Days)-1].AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Weeks splits the grid into rows of seven days
func (g MonthGrid) Weeks() [][]time.Time {
	weeks := make([][]time.Time, 0, len(g.Days)/7)
	for i := 0; i+7 <= len(g.Days); i += 7 {
		weeks = append(weeks, g.Days[i:i+7])
	}
	return weeks
}

// InMonth reports whether day belongs to the grid's month rather than a padding week
func (g MonthGrid) InMonth(day time.Time) bool {
	return day.Month() == g.Month && day.Year() == g.Year
}

// GroupByDay buckets items by the local calendar day returned by at
func GroupByDay[T any](items []T, at func(T) time.Time, loc *time.Location) map[string][]T {
	if loc == nil {
		loc = time.UTC
	}
	buckets := make(map[string][]T)
	for _, item := range items {
		key := DayKey(at(item), loc)
		buckets[key] = append(buckets[key], item)
	}
	return buckets
}
