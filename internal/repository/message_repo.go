package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"familysync/internal/database"
	"familysync/internal/models"
)

// MessageRepository handles database operations for the family chat log
type MessageRepository struct {
	db *database.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func messageSelect() sq.SelectBuilder {
	return builder.Select(
		"msg.id", "msg.family_id", "msg.sender_id", "msg.content", "msg.type", "msg.ping_type",
		"msg.event_id", "msg.task_id", "msg.image_url", "msg.created_at",
		"m.id", "m.name", "m.color",
	).
		From("messages msg").
		Join("members m ON m.id = msg.sender_id")
}

func scanMessage(row scanner) (*models.MessageWithSender, error) {
	var (
		msg                       models.MessageWithSender
		content, pingType, imgURL sql.NullString
		eventID, taskID           sql.NullString
	)

	err := row.Scan(
		&msg.ID,
		&msg.FamilyID,
		&msg.SenderID,
		&content,
		&msg.Type,
		&pingType,
		&eventID,
		&taskID,
		&imgURL,
		&msg.CreatedAt,
		&msg.Sender.ID,
		&msg.Sender.Name,
		&msg.Sender.Color,
	)
	if err != nil {
		return nil, err
	}

	msg.Content = stringPtr(content)
	if pingType.Valid {
		pt := models.PingType(pingType.String)
		msg.PingType = &pt
	}
	msg.EventID = stringPtr(eventID)
	msg.TaskID = stringPtr(taskID)
	msg.ImageURL = stringPtr(imgURL)
	return &msg, nil
}

func (r *MessageRepository) queryMessages(ctx context.Context, q sq.SelectBuilder) ([]models.MessageWithSender, error) {
	rows, err := queryBuilt(ctx, r.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []models.MessageWithSender{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// ListRecent returns the family's latest limit messages, oldest first
func (r *MessageRepository) ListRecent(ctx context.Context, familyID string, limit int) ([]models.MessageWithSender, error) {
	q := messageSelect().
		Where(sq.Eq{"msg.family_id": familyID}).
		OrderBy("msg.created_at DESC", "msg.id DESC").
		Limit(uint64(limit))

	messages, err := r.queryMessages(ctx, q)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListPings returns the family's latest limit ping messages, newest first
func (r *MessageRepository) ListPings(ctx context.Context, familyID string, limit int) ([]models.MessageWithSender, error) {
	q := messageSelect().
		Where(sq.Eq{"msg.family_id": familyID, "msg.type": string(models.MessageTypePing)}).
		OrderBy("msg.created_at DESC", "msg.id DESC").
		Limit(uint64(limit))
	return r.queryMessages(ctx, q)
}

// CreateMessage appends a message. ID and CreatedAt are filled in.
func (r *MessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = newID()
	msg.CreatedAt = now()

	var pingType interface{}
	if msg.PingType != nil {
		pingType = string(*msg.PingType)
	}

	query := `
		INSERT INTO messages (id, family_id, sender_id, content, type, ping_type, event_id, task_id, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.FamilyID,
		msg.SenderID,
		nullableString(msg.Content),
		msg.Type,
		pingType,
		nullableString(msg.EventID),
		nullableString(msg.TaskID),
		nullableString(msg.ImageURL),
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}
