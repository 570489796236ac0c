package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"familysync/internal/models"
	"familysync/internal/repository"
	"familysync/internal/security"
	"familysync/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
)

// AuthService handles accounts, sessions and identity resolution
type AuthService struct {
	accountRepo     *repository.AccountRepository
	memberRepo      *repository.MemberRepository
	familyRepo      *repository.FamilyRepository
	mailer          Mailer
	sessionDuration time.Duration
}

// NewAuthService creates a new auth service. mailer may be nil.
func NewAuthService(accountRepo *repository.AccountRepository, memberRepo *repository.MemberRepository, familyRepo *repository.FamilyRepository, mailer Mailer, sessionDuration time.Duration) *AuthService {
	return &AuthService{
		accountRepo:     accountRepo,
		memberRepo:      memberRepo,
		familyRepo:      familyRepo,
		mailer:          mailer,
		sessionDuration: sessionDuration,
	}
}

// Register creates an account and its member profile. The member starts onboarding:
// they must create or join a family before reaching family data.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*models.Account, *models.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, nil, err
	}

	existing, err := s.accountRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if existing != nil {
		return nil, nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// The lookup above does not stop a concurrent sign-up; the unique index does.
	account, member, err := s.accountRepo.CreateAccount(ctx, email, passwordHash, name)
	if errors.Is(err, repository.ErrEmailExists) {
		return nil, nil, ErrEmailTaken
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.sendWelcome(ctx, email, name)
	return account, member, nil
}

func (s *AuthService) sendWelcome(ctx context.Context, email, name string) {
	if s.mailer == nil || !s.mailer.IsEnabled() {
		return
	}
	// Registration succeeds even when the welcome email cannot be sent
	if err := s.mailer.SendWelcomeEmail(ctx, email, name); err != nil {
		log.Printf("Warning: failed to send welcome email to %s: %v", email, err)
	}
}

// Login authenticates an account and creates a session
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	account, err := s.accountRepo.GetAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}

	if !security.CheckPassword(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.newSession(ctx, account.ID)
}

func (s *AuthService) newSession(ctx context.Context, accountID string) (*models.Session, error) {
	session, err := s.accountRepo.CreateSession(ctx, security.GenerateSessionID(), accountID, time.Now().Add(s.sessionDuration))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ValidateSession checks if a session is valid and returns the associated account
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*models.Account, error) {
	session, err := s.accountRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		_ = s.accountRepo.DeleteSession(ctx, sessionID)
		return nil, ErrSessionExpired
	}

	account, err := s.accountRepo.GetAccountByID(ctx, session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, ErrSessionNotFound
	}

	return account, nil
}

// ResolveIdentity turns a session into the caller's account, member profile and,
// once onboarding is done, family. It is run once per request.
func (s *AuthService) ResolveIdentity(ctx context.Context, sessionID string) (*models.Identity, error) {
	account, err := s.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	member, err := s.memberRepo.GetMemberByAccountID(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if member == nil {
		return nil, ErrSessionNotFound
	}

	identity := &models.Identity{Account: account, Member: member}
	if member.IsOnboarding() {
		return identity, nil
	}

	family, err := s.familyRepo.GetFamilyByID(ctx, *member.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	identity.Family = family
	return identity, nil
}

// Logout invalidates a session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.accountRepo.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) error {
	n, err := s.accountRepo.DeleteExpiredSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	if n > 0 {
		log.Printf("Removed %d expired sessions", n)
	}
	return nil
}

// OAuthLogin signs in with an OAuth identity, linking it to an existing account with
// the same email or creating a new account (and onboarding member) when none exists.
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email, name string) (*models.Session, error) {
	if provider == "" || subject == "" {
		return nil, errors.New("missing oauth provider information")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetAccountByOAuth(ctx, provider, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup oauth account: %w", err)
	}

	if account == nil {
		existing, err := s.accountRepo.GetAccountByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing account: %w", err)
		}

		if existing != nil {
			if existing.OAuthProvider != "" && existing.OAuthProvider != provider {
				return nil, ErrEmailTaken
			}
			if err := s.accountRepo.LinkOAuthProvider(ctx, existing.ID, provider, subject); err != nil {
				return nil, fmt.Errorf("failed to link oauth provider: %w", err)
			}
			account = existing
		} else {
			name = strings.TrimSpace(name)
			if name == "" {
				name = strings.Split(email, "@")[0]
			}
			created, _, err := s.accountRepo.CreateAccount(ctx, email, "", name)
			if errors.Is(err, repository.ErrEmailExists) {
				return nil, ErrEmailTaken
			}
			if err != nil {
				return nil, fmt.Errorf("failed to create oauth account: %w", err)
			}
			if err := s.accountRepo.LinkOAuthProvider(ctx, created.ID, provider, subject); err != nil {
				return nil, fmt.Errorf("failed to link oauth provider: %w", err)
			}
			account = created
			s.sendWelcome(ctx, email, name)
		}
	}

	return s.newSession(ctx, account.ID)
}
