package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"familysync/internal/database"
	"familysync/internal/models"
)

// MemberRepository handles database operations for member profiles
type MemberRepository struct {
	db *database.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *database.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

const memberColumns = `id, account_id, family_id, email, name, color, role, phone, location_sharing,
	last_latitude, last_longitude, last_location_at, last_place_name,
	notify_push, notify_email, digest_frequency, created_at, updated_at`

func scanMember(row scanner) (*models.Member, error) {
	var (
		member              models.Member
		accountID, familyID sql.NullString
		email, phone, place sql.NullString
		latitude, longitude sql.NullFloat64
		locationAt          sql.NullTime
	)

	err := row.Scan(
		&member.ID,
		&accountID,
		&familyID,
		&email,
		&member.Name,
		&member.Color,
		&member.Role,
		&phone,
		&member.LocationSharing,
		&latitude,
		&longitude,
		&locationAt,
		&place,
		&member.Notifications.Push,
		&member.Notifications.Email,
		&member.Notifications.Digest,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	member.AccountID = stringPtr(accountID)
	member.FamilyID = stringPtr(familyID)
	member.Email = stringPtr(email)
	member.Phone = stringPtr(phone)
	if latitude.Valid && longitude.Valid && locationAt.Valid {
		member.LastLocation = &models.Location{
			Latitude:   latitude.Float64,
			Longitude:  longitude.Float64,
			RecordedAt: locationAt.Time,
			PlaceName:  stringPtr(place),
		}
	}

	return &member, nil
}

func insertMember(ctx context.Context, db database.DBTX, m *models.Member) error {
	query := `
		INSERT INTO members (id, account_id, family_id, email, name, color, role, phone, location_sharing,
			notify_push, notify_email, digest_frequency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		m.ID,
		nullableString(m.AccountID),
		nullableString(m.FamilyID),
		nullableString(m.Email),
		m.Name,
		m.Color,
		m.Role,
		nullableString(m.Phone),
		m.LocationSharing,
		m.Notifications.Push,
		m.Notifications.Email,
		m.Notifications.Digest,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// GetMemberByID retrieves a member by ID
func (r *MemberRepository) GetMemberByID(ctx context.Context, id string) (*models.Member, error) {
	query := "SELECT " + memberColumns + " FROM members WHERE id = ?"
	member, err := scanMember(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// GetMemberByAccountID retrieves the member profile linked to an account
func (r *MemberRepository) GetMemberByAccountID(ctx context.Context, accountID string) (*models.Member, error) {
	query := "SELECT " + memberColumns + " FROM members WHERE account_id = ?"
	member, err := scanMember(r.db.QueryRowContext(ctx, query, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// GetFamilyMember retrieves a member only if they belong to familyID
func (r *MemberRepository) GetFamilyMember(ctx context.Context, familyID, memberID string) (*models.Member, error) {
	query := "SELECT " + memberColumns + " FROM members WHERE id = ? AND family_id = ?"
	member, err := scanMember(r.db.QueryRowContext(ctx, query, memberID, familyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family member: %w", err)
	}
	return member, nil
}

// ListFamilyMembers returns every member of a family ordered by name
func (r *MemberRepository) ListFamilyMembers(ctx context.Context, familyID string) ([]models.Member, error) {
	query := "SELECT " + memberColumns + " FROM members WHERE family_id = ? ORDER BY name ASC"
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *member)
	}

	return members, rows.Err()
}

// JoinFamily attaches an onboarding member to a family. The role is left unchanged.
// It reports false when the member already belongs to a family.
func (r *MemberRepository) JoinFamily(ctx context.Context, memberID, familyID string, color *string) (bool, error) {
	query := `
		UPDATE members
		SET family_id = ?, color = COALESCE(?, color), updated_at = ?
		WHERE id = ? AND family_id IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, familyID, nullableString(color), now(), memberID)
	if err != nil {
		return false, fmt.Errorf("failed to join family: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read join result: %w", err)
	}
	return rows > 0, nil
}

// UpdateProfile changes a member's display name and color
func (r *MemberRepository) UpdateProfile(ctx context.Context, memberID, name, color string) error {
	query := "UPDATE members SET name = ?, color = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, name, color, now(), memberID); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// UpdatePreferences stores notification settings, phone and the location-sharing flag.
// Turning sharing off also forgets the last known location.
func (r *MemberRepository) UpdatePreferences(ctx context.Context, memberID string, prefs models.NotificationPreferences, phone *string, locationSharing bool) error {
	query := `
		UPDATE members
		SET notify_push = ?, notify_email = ?, digest_frequency = ?, phone = ?, location_sharing = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		prefs.Push, prefs.Email, prefs.Digest, nullableString(phone), locationSharing, now(), memberID)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}

	if !locationSharing {
		if err := r.clearLocation(ctx, memberID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateLocation records the member's last known position
func (r *MemberRepository) UpdateLocation(ctx context.Context, memberID string, loc models.Location) error {
	query := `
		UPDATE members
		SET last_latitude = ?, last_longitude = ?, last_location_at = ?, last_place_name = ?, updated_at = ?
		WHERE id = ? AND location_sharing = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		loc.Latitude, loc.Longitude, loc.RecordedAt.UTC(), nullableString(loc.PlaceName), now(), memberID, true)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	return nil
}

func (r *MemberRepository) clearLocation(ctx context.Context, memberID string) error {
	query := `
		UPDATE members
		SET last_latitude = NULL, last_longitude = NULL, last_location_at = NULL, last_place_name = NULL
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, memberID); err != nil {
		return fmt.Errorf("failed to clear location: %w", err)
	}
	return nil
}
