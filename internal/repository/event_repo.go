package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"familysync/internal/database"
	"familysync/internal/models"
)

// EventRepository handles database operations for calendar events
type EventRepository struct {
	db *database.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

func eventSelect() sq.SelectBuilder {
	return builder.Select(
		"e.id", "e.family_id", "e.title", "e.description", "e.location", "e.start_time", "e.end_time",
		"e.all_day", "e.recurrence_rule", "e.recurrence_end", "e.created_by", "e.color",
		"e.external_source", "e.external_id", "e.created_at", "e.updated_at",
		"m.id", "m.name", "m.color",
	).
		From("calendar_events e").
		Join("members m ON m.id = e.created_by")
}

func scanEvent(row scanner) (*models.EventWithCreator, error) {
	var (
		event                           models.EventWithCreator
		description, location, rule     sql.NullString
		color, externalSource, external sql.NullString
		recurrenceEnd                   sql.NullTime
	)

	err := row.Scan(
		&event.ID,
		&event.FamilyID,
		&event.Title,
		&description,
		&location,
		&event.StartTime,
		&event.EndTime,
		&event.AllDay,
		&rule,
		&recurrenceEnd,
		&event.CreatedBy,
		&color,
		&externalSource,
		&external,
		&event.CreatedAt,
		&event.UpdatedAt,
		&event.Creator.ID,
		&event.Creator.Name,
		&event.Creator.Color,
	)
	if err != nil {
		return nil, err
	}

	event.Description = stringPtr(description)
	event.Location = stringPtr(location)
	event.RecurrenceRule = stringPtr(rule)
	event.RecurrenceEnd = timePtr(recurrenceEnd)
	event.Color = stringPtr(color)
	event.ExternalSource = stringPtr(externalSource)
	event.ExternalID = stringPtr(external)
	return &event, nil
}

func (r *EventRepository) queryEvents(ctx context.Context, q sq.SelectBuilder) ([]models.EventWithCreator, error) {
	rows, err := queryBuilt(ctx, r.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []models.EventWithCreator{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// ListEventsInRange returns a family's events starting within [start, end], earliest first.
// A limit of 0 returns every match.
func (r *EventRepository) ListEventsInRange(ctx context.Context, familyID string, start, end time.Time, limit int) ([]models.EventWithCreator, error) {
	q := eventSelect().
		Where(sq.Eq{"e.family_id": familyID}).
		Where(sq.GtOrEq{"e.start_time": start.UTC()}).
		Where(sq.LtOrEq{"e.start_time": end.UTC()}).
		OrderBy("e.start_time ASC", "e.created_at ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.queryEvents(ctx, q)
}

// GetEvent retrieves one of a family's events
func (r *EventRepository) GetEvent(ctx context.Context, familyID, eventID string) (*models.EventWithCreator, error) {
	events, err := r.queryEvents(ctx, eventSelect().Where(sq.Eq{"e.id": eventID, "e.family_id": familyID}))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// CreateEvent inserts an event and invites attendeeIDs in one transaction.
// ID, CreatedAt and UpdatedAt are filled in. Repeated attendee ids are invited once.
func (r *EventRepository) CreateEvent(ctx context.Context, event *models.CalendarEvent, attendeeIDs []string) error {
	ts := now()
	event.ID = newID()
	event.CreatedAt = ts
	event.UpdatedAt = ts

	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `
			INSERT INTO calendar_events (id, family_id, title, description, location, start_time, end_time, all_day,
				recurrence_rule, recurrence_end, created_by, color, external_source, external_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			event.ID,
			event.FamilyID,
			event.Title,
			nullableString(event.Description),
			nullableString(event.Location),
			event.StartTime.UTC(),
			event.EndTime.UTC(),
			event.AllDay,
			nullableString(event.RecurrenceRule),
			nullableTime(event.RecurrenceEnd),
			event.CreatedBy,
			nullableString(event.Color),
			nullableString(event.ExternalSource),
			nullableString(event.ExternalID),
			event.CreatedAt,
			event.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}

		invited := make(map[string]bool, len(attendeeIDs))
		for _, memberID := range attendeeIDs {
			if invited[memberID] {
				continue
			}
			invited[memberID] = true

			_, err := tx.ExecContext(ctx,
				"INSERT INTO event_attendees (event_id, member_id, rsvp) VALUES (?, ?, ?)",
				event.ID, memberID, models.RSVPPending)
			if err != nil {
				return fmt.Errorf("failed to add attendee: %w", err)
			}
		}
		return nil
	})
}

// ListAttendees returns an event's attendees
func (r *EventRepository) ListAttendees(ctx context.Context, eventID string) ([]models.EventAttendee, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT event_id, member_id, rsvp FROM event_attendees WHERE event_id = ? ORDER BY member_id", eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendees: %w", err)
	}
	defer rows.Close()

	attendees := []models.EventAttendee{}
	for rows.Next() {
		var a models.EventAttendee
		if err := rows.Scan(&a.EventID, &a.MemberID, &a.RSVP); err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		attendees = append(attendees, a)
	}
	return attendees, rows.Err()
}
