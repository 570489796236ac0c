package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"familysync/internal/database"
	"familysync/internal/models"
)

// ErrMemberHasFamily is returned when a member who already belongs to a family tries to found another
var ErrMemberHasFamily = errors.New("member already belongs to a family")

// FamilyRepository handles database operations for families
type FamilyRepository struct {
	db *database.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *database.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// CreateFamily inserts family, makes the founder its admin (optionally recoloring them)
// and seeds the default task lists attributed to the founder, all in one transaction.
// family.ID, CreatedAt and UpdatedAt are filled in.
func (r *FamilyRepository) CreateFamily(ctx context.Context, family *models.Family, founderID string, color *string, lists []models.DefaultTaskList) ([]models.TaskList, error) {
	ts := now()
	family.ID = newID()
	family.CreatedAt = ts
	family.UpdatedAt = ts

	seeded := make([]models.TaskList, 0, len(lists))

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `
			INSERT INTO families (id, name, invite_code, timezone, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query, family.ID, family.Name, family.InviteCode, family.Timezone, ts, ts); err != nil {
			return fmt.Errorf("failed to create family: %w", err)
		}

		query = `
			UPDATE members
			SET family_id = ?, role = ?, color = COALESCE(?, color), updated_at = ?
			WHERE id = ? AND family_id IS NULL
		`
		result, err := tx.ExecContext(ctx, query, family.ID, models.RoleAdmin, nullableString(color), ts, founderID)
		if err != nil {
			return fmt.Errorf("failed to update founder: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to read founder update: %w", err)
		} else if n == 0 {
			return ErrMemberHasFamily
		}

		for i, l := range lists {
			list := models.TaskList{
				ID:        newID(),
				FamilyID:  family.ID,
				Name:      l.Name,
				Icon:      l.Icon,
				SortOrder: i,
				CreatedBy: founderID,
				CreatedAt: ts,
			}
			if err := insertTaskList(ctx, tx, &list); err != nil {
				return err
			}
			seeded = append(seeded, list)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return seeded, nil
}

func scanFamily(row scanner) (*models.Family, error) {
	family := &models.Family{}
	err := row.Scan(
		&family.ID,
		&family.Name,
		&family.InviteCode,
		&family.Timezone,
		&family.CreatedAt,
		&family.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return family, nil
}

// GetFamilyByID retrieves a family by ID
func (r *FamilyRepository) GetFamilyByID(ctx context.Context, familyID string) (*models.Family, error) {
	query := "SELECT id, name, invite_code, timezone, created_at, updated_at FROM families WHERE id = ?"
	family, err := scanFamily(r.db.QueryRowContext(ctx, query, familyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	return family, nil
}

// GetFamilyByInviteCode looks a family up by its normalized invite code
func (r *FamilyRepository) GetFamilyByInviteCode(ctx context.Context, code string) (*models.Family, error) {
	query := "SELECT id, name, invite_code, timezone, created_at, updated_at FROM families WHERE invite_code = ?"
	family, err := scanFamily(r.db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family by invite code: %w", err)
	}
	return family, nil
}

// InviteCodeExists checks whether code is already taken
func (r *FamilyRepository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM families WHERE invite_code = ?", code).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check invite code: %w", err)
	}
	return count > 0, nil
}

// UpdateFamily updates a family's name and time zone
func (r *FamilyRepository) UpdateFamily(ctx context.Context, familyID, name, timezone string) error {
	query := "UPDATE families SET name = ?, timezone = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, name, timezone, now(), familyID); err != nil {
		return fmt.Errorf("failed to update family: %w", err)
	}
	return nil
}
