package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"familysync/internal/database"
	"familysync/internal/models"
)

var (
	// ErrOAuthAlreadyLinked is returned when an account already has a different provider linked
	ErrOAuthAlreadyLinked = errors.New("oauth provider already linked")
	// ErrEmailExists is returned when another account holds the email
	ErrEmailExists = errors.New("email already registered")
)

// AccountRepository handles database operations for accounts and sessions
type AccountRepository struct {
	db *database.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, password_hash, COALESCE(oauth_provider, ''), COALESCE(oauth_subject, ''), created_at, updated_at`

func scanAccount(row scanner) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.OAuthProvider,
		&account.OAuthSubject,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// CreateAccount inserts an account together with its member profile. The member
// starts in onboarding (no family) with the default color.
func (r *AccountRepository) CreateAccount(ctx context.Context, email, passwordHash, name string) (*models.Account, *models.Member, error) {
	ts := now()
	account := &models.Account{
		ID:           newID(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	accountID := account.ID
	memberEmail := email
	member := &models.Member{
		ID:        newID(),
		AccountID: &accountID,
		Email:     &memberEmail,
		Name:      name,
		Color:     models.DefaultColor,
		Role:      models.RoleMember,
		Notifications: models.NotificationPreferences{
			Push:   true,
			Email:  true,
			Digest: models.DigestDaily,
		},
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, email, password_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, account.ID, account.Email, account.PasswordHash, ts, ts)
		if err != nil {
			if tx.GetDialect().IsUniqueViolation(err) {
				return ErrEmailExists
			}
			return fmt.Errorf("failed to create account: %w", err)
		}

		return insertMember(ctx, tx, member)
	})
	if err != nil {
		return nil, nil, err
	}

	return account, member, nil
}

// GetAccountByEmail retrieves an account by email address
func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE email = ?"
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetAccountByID retrieves an account by ID
func (r *AccountRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE id = ?"
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetAccountByOAuth retrieves an account by OAuth provider and subject
func (r *AccountRepository) GetAccountByOAuth(ctx context.Context, provider, subject string) (*models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE oauth_provider = ? AND oauth_subject = ?"
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, provider, subject))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by oauth: %w", err)
	}
	return account, nil
}

// LinkOAuthProvider links an existing account to an OAuth provider
func (r *AccountRepository) LinkOAuthProvider(ctx context.Context, accountID, provider, subject string) error {
	query := `
		UPDATE accounts
		SET oauth_provider = ?, oauth_subject = ?, updated_at = ?
		WHERE id = ?
		AND (oauth_provider IS NULL OR oauth_provider = '')
	`
	result, err := r.db.ExecContext(ctx, query, provider, subject, now(), accountID)
	if err != nil {
		return fmt.Errorf("failed to link oauth provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read link result: %w", err)
	}
	if rows == 0 {
		return ErrOAuthAlreadyLinked
	}

	return nil
}

// CreateSession creates a new session for an account
func (r *AccountRepository) CreateSession(ctx context.Context, sessionID, accountID string, expiresAt time.Time) (*models.Session, error) {
	ts := now()
	query := `
		INSERT INTO sessions (id, account_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, sessionID, accountID, expiresAt.UTC(), ts)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.Session{
		ID:        sessionID,
		AccountID: accountID,
		ExpiresAt: expiresAt,
		CreatedAt: ts,
	}, nil
}

// GetSession retrieves a session by ID
func (r *AccountRepository) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `
		SELECT id, account_id, expires_at, created_at
		FROM sessions
		WHERE id = ?
	`
	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID,
		&session.AccountID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// DeleteSession removes a session from the database
func (r *AccountRepository) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions and reports how many were removed
func (r *AccountRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
