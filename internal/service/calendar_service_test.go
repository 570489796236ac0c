package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familysync/internal/models"
	"familysync/internal/realtime"
)

func TestCreateAllDayEventUsesFamilyTimezone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.founder(t, "ann@example.com", "Ann")
	_, err := env.families.UpdateFamily(ctx, env.identity(t, u), "The Anns", "America/New_York")
	require.NoError(t, err)
	identity := env.identity(t, u)

	event, err := env.calendar.CreateEvent(ctx, identity, EventInput{
		Title:  "School holiday",
		Start:  "2025-03-10",
		AllDay: true,
	})
	require.NoError(t, err)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.True(t, event.StartTime.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, ny)))
	assert.True(t, event.EndTime.Equal(time.Date(2025, 3, 10, 23, 59, 0, 0, ny)))
	assert.True(t, event.AllDay)
	assert.Nil(t, event.Description, "blank optional fields are stored as NULL")

	month, err := env.calendar.MonthView(ctx, identity, 2025, time.March)
	require.NoError(t, err)
	require.Len(t, month.Days["2025-03-10"], 1)
	assert.Equal(t, "School holiday", month.Days["2025-03-10"][0].Title)
	assert.Equal(t, "Ann", month.Days["2025-03-10"][0].Creator.Name)
}

func TestCreateEventTimes(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.founder(t, "ann@example.com", "Ann")
	identity := env.identity(t, u)

	tests := []struct {
		name      string
		input     EventInput
		wantStart time.Time
		wantEnd   time.Time
		wantErr   error
	}{
		{
			name:      "timed without end lasts an hour",
			input:     EventInput{Title: "Swim", Start: "2025-03-10T16:00"},
			wantStart: time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC),
		},
		{
			name:      "timed with end",
			input:     EventInput{Title: "Swim", Start: "2025-03-10T16:00", End: "2025-03-10T18:30"},
			wantStart: time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC),
		},
		{
			name:      "multi-day all-day",
			input:     EventInput{Title: "Camp", Start: "2025-07-01", End: "2025-07-03", AllDay: true},
			wantStart: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 7, 3, 23, 59, 0, 0, time.UTC),
		},
		{
			name:    "end before start",
			input:   EventInput{Title: "Swim", Start: "2025-03-10T16:00", End: "2025-03-10T15:00"},
			wantErr: ErrInvalidTimeRange,
		},
		{
			name:    "all-day end before start",
			input:   EventInput{Title: "Camp", Start: "2025-07-03", End: "2025-07-01", AllDay: true},
			wantErr: ErrInvalidTimeRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := env.calendar.CreateEvent(context.Background(), identity, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, event.StartTime.Equal(tt.wantStart), "start = %v", event.StartTime)
			assert.True(t, event.EndTime.Equal(tt.wantEnd), "end = %v", event.EndTime)
		})
	}
}

func TestCreateEventRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.founder(t, "ann@example.com", "Ann")
	identity := env.identity(t, u)

	tests := []struct {
		name  string
		input EventInput
	}{
		{name: "missing title", input: EventInput{Title: " ", Start: "2025-03-10T16:00"}},
		{name: "unparseable start", input: EventInput{Title: "Swim", Start: "next tuesday"}},
		{name: "date where time needed", input: EventInput{Title: "Swim", Start: "2025-03-10"}},
		{name: "color outside palette", input: EventInput{Title: "Swim", Start: "2025-03-10T16:00", Color: "red"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.calendar.CreateEvent(context.Background(), identity, tt.input)
			assert.Error(t, err)
		})
	}
}

func TestCreateEventAttendeesMustBeInFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ann, family := env.founder(t, "ann@example.com", "Ann")
	bob := env.joiner(t, "bob@example.com", "Bob", family)
	outsider, _ := env.founder(t, "zed@example.com", "Zed")

	_, err := env.calendar.CreateEvent(ctx, env.identity(t, ann), EventInput{
		Title:       "Picnic",
		Start:       "2025-05-01T12:00",
		AttendeeIDs: []string{env.identity(t, outsider).Member.ID},
	})
	assert.ErrorIs(t, err, ErrAttendeeNotInFamily)

	sub := env.hub.Subscribe(family.ID)
	defer sub.Close()

	event, err := env.calendar.CreateEvent(ctx, env.identity(t, ann), EventInput{
		Title:       "Picnic",
		Start:       "2025-05-01T12:00",
		AttendeeIDs: []string{env.identity(t, bob).Member.ID},
	})
	require.NoError(t, err)

	select {
	case got := <-sub.C:
		assert.Equal(t, realtime.EventEventCreated, got.Type)
		payload, ok := got.Payload.(models.EventWithCreator)
		require.True(t, ok)
		assert.Equal(t, event.ID, payload.ID)
		assert.Equal(t, "Ann", payload.Creator.Name)
	case <-time.After(time.Second):
		t.Fatal("no event.created event")
	}
}

func TestListEventsInRangeIsFamilyScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ann, _ := env.founder(t, "ann@example.com", "Ann")
	zed, _ := env.founder(t, "zed@example.com", "Zed")

	_, err := env.calendar.CreateEvent(ctx, env.identity(t, ann), EventInput{Title: "Ann's", Start: "2025-03-10T10:00"})
	require.NoError(t, err)
	_, err = env.calendar.CreateEvent(ctx, env.identity(t, zed), EventInput{Title: "Zed's", Start: "2025-03-10T11:00"})
	require.NoError(t, err)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	events, err := env.calendar.ListEventsInRange(ctx, env.identity(t, ann), start, end)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Ann's", events[0].Title)

	_, err = env.calendar.ListEventsInRange(ctx, env.identity(t, ann), end, start)
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestMonthViewIncludesPaddingWeeks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, _ := env.founder(t, "ann@example.com", "Ann")
	identity := env.identity(t, u)

	// March 2025's grid runs from Sunday Feb 23 through Saturday Apr 5
	for _, start := range []string{"2025-02-23T09:00", "2025-03-15T09:00", "2025-04-05T20:00", "2025-04-06T09:00"} {
		_, err := env.calendar.CreateEvent(ctx, identity, EventInput{Title: start, Start: start})
		require.NoError(t, err)
	}

	month, err := env.calendar.MonthView(ctx, identity, 2025, time.March)
	require.NoError(t, err)
	assert.Len(t, month.Grid.Days, 42)
	assert.Len(t, month.Events, 3)
	assert.Contains(t, month.Days, "2025-02-23")
	assert.Contains(t, month.Days, "2025-04-05")
	assert.NotContains(t, month.Days, "2025-04-06")

	_, err = env.calendar.MonthView(ctx, identity, 2025, time.Month(13))
	assert.Error(t, err)
}

func TestParseMonth(t *testing.T) {
	_, month, err := ParseMonth(2025, 12)
	require.NoError(t, err)
	assert.Equal(t, time.December, month)

	_, _, err = ParseMonth(2025, 0)
	assert.Error(t, err)
	_, _, err = ParseMonth(1, 5)
	assert.Error(t, err)
}
