package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"familysync/internal/database"
)

// BackupVersion is written into every export and checked on import
const BackupVersion = "1.0"

// BackupData represents the complete database backup structure. Sessions are never included.
type BackupData struct {
	Version      string           `json:"version"`
	ExportedAt   time.Time        `json:"exported_at"`
	DatabaseType string           `json:"database_type"`
	Accounts     []AccountBackup  `json:"accounts"`
	Families     []FamilyBackup   `json:"families"`
	Members      []MemberBackup   `json:"members"`
	Events       []EventBackup    `json:"events"`
	Attendees    []AttendeeBackup `json:"attendees"`
	Lists        []ListBackup     `json:"lists"`
	Tasks        []TaskBackup     `json:"tasks"`
	Messages     []MessageBackup  `json:"messages"`
	Places       []PlaceBackup    `json:"places"`
}

// AccountBackup represents an account record for backup, password hash included
type AccountBackup struct {
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"password_hash"`
	OAuthProvider *string   `db:"oauth_provider" json:"oauth_provider,omitempty"`
	OAuthSubject  *string   `db:"oauth_subject" json:"oauth_subject,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// FamilyBackup represents a family record for backup
type FamilyBackup struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	InviteCode string    `db:"invite_code" json:"invite_code"`
	Timezone   string    `db:"timezone" json:"timezone"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// MemberBackup represents a member profile for backup
type MemberBackup struct {
	ID              string     `db:"id" json:"id"`
	AccountID       *string    `db:"account_id" json:"account_id,omitempty"`
	FamilyID        *string    `db:"family_id" json:"family_id,omitempty"`
	Email           *string    `db:"email" json:"email,omitempty"`
	Name            string     `db:"name" json:"name"`
	Color           string     `db:"color" json:"color"`
	Role            string     `db:"role" json:"role"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	LocationSharing bool       `db:"location_sharing" json:"location_sharing"`
	LastLatitude    *float64   `db:"last_latitude" json:"last_latitude,omitempty"`
	LastLongitude   *float64   `db:"last_longitude" json:"last_longitude,omitempty"`
	LastLocationAt  *time.Time `db:"last_location_at" json:"last_location_at,omitempty"`
	LastPlaceName   *string    `db:"last_place_name" json:"last_place_name,omitempty"`
	NotifyPush      bool       `db:"notify_push" json:"notify_push"`
	NotifyEmail     bool       `db:"notify_email" json:"notify_email"`
	DigestFrequency string     `db:"digest_frequency" json:"digest_frequency"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// EventBackup represents a calendar event for backup
type EventBackup struct {
	ID             string     `db:"id" json:"id"`
	FamilyID       string     `db:"family_id" json:"family_id"`
	Title          string     `db:"title" json:"title"`
	Description    *string    `db:"description" json:"description,omitempty"`
	Location       *string    `db:"location" json:"location,omitempty"`
	StartTime      time.Time  `db:"start_time" json:"start_time"`
	EndTime        time.Time  `db:"end_time" json:"end_time"`
	AllDay         bool       `db:"all_day" json:"all_day"`
	RecurrenceRule *string    `db:"recurrence_rule" json:"recurrence_rule,omitempty"`
	RecurrenceEnd  *time.Time `db:"recurrence_end" json:"recurrence_end,omitempty"`
	CreatedBy      string     `db:"created_by" json:"created_by"`
	Color          *string    `db:"color" json:"color,omitempty"`
	ExternalSource *string    `db:"external_source" json:"external_source,omitempty"`
	ExternalID     *string    `db:"external_id" json:"external_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// AttendeeBackup represents an event invitation for backup
type AttendeeBackup struct {
	EventID  string `db:"event_id" json:"event_id"`
	MemberID string `db:"member_id" json:"member_id"`
	RSVP     string `db:"rsvp" json:"rsvp"`
}

// ListBackup represents a task list for backup
type ListBackup struct {
	ID        string    `db:"id" json:"id"`
	FamilyID  string    `db:"family_id" json:"family_id"`
	Name      string    `db:"name" json:"name"`
	Icon      string    `db:"icon" json:"icon"`
	Color     *string   `db:"color" json:"color,omitempty"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TaskBackup represents a task for backup
type TaskBackup struct {
	ID             string     `db:"id" json:"id"`
	ListID         string     `db:"list_id" json:"list_id"`
	FamilyID       string     `db:"family_id" json:"family_id"`
	Title          string     `db:"title" json:"title"`
	Description    *string    `db:"description" json:"description,omitempty"`
	Status         string     `db:"status" json:"status"`
	Priority       string     `db:"priority" json:"priority"`
	DueDate        *time.Time `db:"due_date" json:"due_date,omitempty"`
	AssignedTo     *string    `db:"assigned_to" json:"assigned_to,omitempty"`
	RecurrenceRule *string    `db:"recurrence_rule" json:"recurrence_rule,omitempty"`
	Points         int        `db:"points" json:"points"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy    *string    `db:"completed_by" json:"completed_by,omitempty"`
	SortOrder      int        `db:"sort_order" json:"sort_order"`
	CreatedBy      string     `db:"created_by" json:"created_by"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// MessageBackup represents a chat message for backup
type MessageBackup struct {
	ID        string    `db:"id" json:"id"`
	FamilyID  string    `db:"family_id" json:"family_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	Content   *string   `db:"content" json:"content,omitempty"`
	Type      string    `db:"type" json:"type"`
	PingType  *string   `db:"ping_type" json:"ping_type,omitempty"`
	EventID   *string   `db:"event_id" json:"event_id,omitempty"`
	TaskID    *string   `db:"task_id" json:"task_id,omitempty"`
	ImageURL  *string   `db:"image_url" json:"image_url,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlaceBackup represents a saved family place for backup
type PlaceBackup struct {
	ID           string    `db:"id" json:"id"`
	FamilyID     string    `db:"family_id" json:"family_id"`
	Name         string    `db:"name" json:"name"`
	Address      *string   `db:"address" json:"address,omitempty"`
	Latitude     float64   `db:"latitude" json:"latitude"`
	Longitude    float64   `db:"longitude" json:"longitude"`
	RadiusMeters int       `db:"radius_meters" json:"radius_meters"`
	Icon         string    `db:"icon" json:"icon"`
	CreatedBy    string    `db:"created_by" json:"created_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ImportSummary counts the rows written and skipped by Import
type ImportSummary struct {
	Inserted map[string]int
	Skipped  map[string]int
}

// table describes how one table is exported and re-imported
type table struct {
	name    string
	columns []string
	keys    []string
	orderBy string
}

var (
	accountsTable = table{"accounts", []string{"id", "email", "password_hash", "oauth_provider", "oauth_subject", "created_at", "updated_at"}, []string{"id"}, "created_at, id"}
	familiesTable = table{"families", []string{"id", "name", "invite_code", "timezone", "created_at", "updated_at"}, []string{"id"}, "created_at, id"}
	membersTable  = table{"members", []string{"id", "account_id", "family_id", "email", "name", "color", "role", "phone", "location_sharing",
		"last_latitude", "last_longitude", "last_location_at", "last_place_name", "notify_push", "notify_email", "digest_frequency",
		"created_at", "updated_at"}, []string{"id"}, "created_at, id"}
	eventsTable = table{"calendar_events", []string{"id", "family_id", "title", "description", "location", "start_time", "end_time",
		"all_day", "recurrence_rule", "recurrence_end", "created_by", "color", "external_source", "external_id", "created_at",
		"updated_at"}, []string{"id"}, "start_time, id"}
	attendeesTable = table{"event_attendees", []string{"event_id", "member_id", "rsvp"}, []string{"event_id", "member_id"}, "event_id, member_id"}
	listsTable     = table{"task_lists", []string{"id", "family_id", "name", "icon", "color", "sort_order", "created_by", "created_at"}, []string{"id"}, "family_id, sort_order, id"}
	tasksTable     = table{"tasks", []string{"id", "list_id", "family_id", "title", "description", "status", "priority", "due_date",
		"assigned_to", "recurrence_rule", "points", "completed_at", "completed_by", "sort_order", "created_by", "created_at",
		"updated_at"}, []string{"id"}, "list_id, sort_order, id"}
	messagesTable = table{"messages", []string{"id", "family_id", "sender_id", "content", "type", "ping_type", "event_id", "task_id",
		"image_url", "created_at"}, []string{"id"}, "created_at, id"}
	placesTable = table{"places", []string{"id", "family_id", "name", "address", "latitude", "longitude", "radius_meters", "icon",
		"created_by", "created_at"}, []string{"id"}, "created_at, id"}
)

func (t table) selectQuery() string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(t.columns, ", "), t.name, t.orderBy)
}

func (t table) insertQuery() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)", t.name, strings.Join(t.columns, ", "), strings.Join(t.columns, ", :"))
}

func (t table) existsQuery() string {
	conds := make([]string, len(t.keys))
	for i, k := range t.keys {
		conds[i] = k + " = :" + k
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", t.name, strings.Join(conds, " AND "))
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db      *sqlx.DB
	dialect database.Dialect
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB) *BackupService {
	return &BackupService{
		db:      sqlx.NewDb(db.DB, db.Dialect.DriverName()),
		dialect: db.Dialect,
	}
}

// Export writes every family's data to w as indented JSON
func (s *BackupService) Export(ctx context.Context, w io.Writer) error {
	log.Println("Starting database export...")

	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.dialect.DriverName(),
	}

	steps := []struct {
		t    table
		dest interface{}
	}{
		{accountsTable, &backup.Accounts},
		{familiesTable, &backup.Families},
		{membersTable, &backup.Members},
		{eventsTable, &backup.Events},
		{attendeesTable, &backup.Attendees},
		{listsTable, &backup.Lists},
		{tasksTable, &backup.Tasks},
		{messagesTable, &backup.Messages},
		{placesTable, &backup.Places},
	}
	for _, step := range steps {
		if err := s.db.SelectContext(ctx, step.dest, step.t.selectQuery()); err != nil {
			return fmt.Errorf("failed to export %s: %w", step.t.name, err)
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	log.Printf("Exported: %d accounts, %d families, %d members, %d events, %d lists, %d tasks, %d messages, %d places",
		len(backup.Accounts), len(backup.Families), len(backup.Members), len(backup.Events),
		len(backup.Lists), len(backup.Tasks), len(backup.Messages), len(backup.Places))
	return nil
}

// Import restores a backup read from r in one transaction. Rows whose key already
// exists are left untouched, so importing the same backup twice is harmless.
func (s *BackupService) Import(ctx context.Context, r io.Reader) (*ImportSummary, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return nil, fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	log.Printf("Backup version: %s, exported at: %s", backup.Version, backup.ExportedAt)

	summary := &ImportSummary{Inserted: map[string]int{}, Skipped: map[string]int{}}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	// Parents before children so foreign keys hold
	steps := []struct {
		t    table
		rows []interface{}
	}{
		{accountsTable, rowsOf(backup.Accounts)},
		{familiesTable, rowsOf(backup.Families)},
		{membersTable, rowsOf(backup.Members)},
		{eventsTable, rowsOf(backup.Events)},
		{attendeesTable, rowsOf(backup.Attendees)},
		{listsTable, rowsOf(backup.Lists)},
		{tasksTable, rowsOf(backup.Tasks)},
		{messagesTable, rowsOf(backup.Messages)},
		{placesTable, rowsOf(backup.Places)},
	}
	for _, step := range steps {
		if err := importTable(ctx, tx, step.t, step.rows, summary); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}

	log.Println("Database import completed successfully")
	return summary, nil
}

// Clear deletes every row, children before parents, in one transaction
func (s *BackupService) Clear(ctx context.Context) error {
	tables := []string{
		placesTable.name,
		messagesTable.name,
		tasksTable.name,
		listsTable.name,
		attendeesTable.name,
		eventsTable.name,
		membersTable.name,
		familiesTable.name,
		"sessions",
		accountsTable.name,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, name := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+name); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", name, err)
		}
		log.Printf("Cleared table: %s", name)
	}

	return tx.Commit()
}

func rowsOf[T any](items []T) []interface{} {
	rows := make([]interface{}, len(items))
	for i := range items {
		rows[i] = items[i]
	}
	return rows
}

func importTable(ctx context.Context, tx *sqlx.Tx, t table, rows []interface{}, summary *ImportSummary) error {
	log.Printf("Importing %d %s...", len(rows), t.name)

	existsQuery, insertQuery := t.existsQuery(), t.insertQuery()
	for _, row := range rows {
		query, args, err := tx.BindNamed(existsQuery, row)
		if err != nil {
			return fmt.Errorf("failed to bind %s key: %w", t.name, err)
		}
		var count int
		if err := tx.GetContext(ctx, &count, query, args...); err != nil {
			return fmt.Errorf("failed to check existing %s: %w", t.name, err)
		}
		if count > 0 {
			summary.Skipped[t.name]++
			continue
		}

		if _, err := tx.NamedExecContext(ctx, insertQuery, row); err != nil {
			return fmt.Errorf("failed to import %s: %w", t.name, err)
		}
		summary.Inserted[t.name]++
	}
	return nil
}
