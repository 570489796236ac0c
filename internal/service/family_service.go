package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"familysync/internal/credentials"
	"familysync/internal/database"
	"familysync/internal/models"
	"familysync/internal/realtime"
	"familysync/internal/repository"
	"familysync/internal/validation"
)

// maxInviteCodeAttempts bounds retries when a generated code collides with an existing one
const maxInviteCodeAttempts = 10

// FamilyService handles creating, joining and administering families
type FamilyService struct {
	familyRepo      *repository.FamilyRepository
	memberRepo      *repository.MemberRepository
	dialect         database.Dialect
	hub             *realtime.Hub
	mailer          Mailer
	defaultTimezone string
}

// NewFamilyService creates a new family service. mailer may be nil.
func NewFamilyService(familyRepo *repository.FamilyRepository, memberRepo *repository.MemberRepository, dialect database.Dialect, hub *realtime.Hub, mailer Mailer, defaultTimezone string) *FamilyService {
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	return &FamilyService{
		familyRepo:      familyRepo,
		memberRepo:      memberRepo,
		dialect:         dialect,
		hub:             hub,
		mailer:          mailer,
		defaultTimezone: defaultTimezone,
	}
}

func optionalColor(color string) (*string, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		return nil, nil
	}
	if err := validation.ValidateColor(color); err != nil {
		return nil, err
	}
	return &color, nil
}

// CreateFamily founds a family with the caller as admin. The family, the caller's
// membership and the default task lists are written in one transaction.
func (s *FamilyService) CreateFamily(ctx context.Context, identity *models.Identity, name, color string) (*models.Family, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateRequired("name", name, validation.MaxNameLength); err != nil {
		return nil, err
	}
	newColor, err := optionalColor(color)
	if err != nil {
		return nil, err
	}
	if !identity.Member.IsOnboarding() {
		return nil, ErrAlreadyInFamily
	}

	for attempt := 0; attempt < maxInviteCodeAttempts; attempt++ {
		code, err := credentials.GenerateInviteCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite code: %w", err)
		}

		taken, err := s.familyRepo.InviteCodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		family := &models.Family{Name: name, InviteCode: code, Timezone: s.defaultTimezone}
		_, err = s.familyRepo.CreateFamily(ctx, family, identity.Member.ID, newColor, models.DefaultTaskLists)
		switch {
		case err == nil:
			log.Printf("Family created: %s by member %s", family.ID, identity.Member.ID)
			return family, nil
		case errors.Is(err, repository.ErrMemberHasFamily):
			return nil, ErrAlreadyInFamily
		case s.dialect.IsUniqueViolation(err):
			// Lost a race for the code between the check and the insert
			continue
		default:
			return nil, fmt.Errorf("failed to create family: %w", err)
		}
	}

	return nil, ErrInviteCodeExhausted
}

// JoinFamily attaches the caller to the family owning inviteCode. The code is
// trimmed and lower-cased first. The caller's role is left unchanged.
func (s *FamilyService) JoinFamily(ctx context.Context, identity *models.Identity, inviteCode, color string) (*models.Family, error) {
	code := models.NormalizeInviteCode(inviteCode)
	newColor, err := optionalColor(color)
	if err != nil {
		return nil, err
	}
	if !identity.Member.IsOnboarding() {
		return nil, ErrAlreadyInFamily
	}
	if !credentials.IsAcceptableInviteCode(code) {
		return nil, ErrInvalidInviteCode
	}

	family, err := s.familyRepo.GetFamilyByInviteCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up invite code: %w", err)
	}
	if family == nil {
		return nil, ErrInvalidInviteCode
	}

	joined, err := s.memberRepo.JoinFamily(ctx, identity.Member.ID, family.ID, newColor)
	if err != nil {
		return nil, err
	}
	if !joined {
		return nil, ErrAlreadyInFamily
	}

	member, err := s.memberRepo.GetMemberByID(ctx, identity.Member.ID)
	if err == nil && member != nil {
		s.hub.Publish(family.ID, realtime.NewEvent(realtime.EventMemberUpdated, member.Summary()))
	}

	log.Printf("Member %s joined family %s", identity.Member.ID, family.ID)
	return family, nil
}

// GetFamily returns the caller's family
func (s *FamilyService) GetFamily(identity *models.Identity) (*models.Family, error) {
	if _, err := identity.FamilyID(); err != nil {
		return nil, err
	}
	return identity.Family, nil
}

// ListMembers returns the caller's family members ordered by name
func (s *FamilyService) ListMembers(ctx context.Context, identity *models.Identity) ([]models.Member, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}
	return s.memberRepo.ListFamilyMembers(ctx, familyID)
}

// UpdateFamily renames the family and changes its time zone. Admins only.
func (s *FamilyService) UpdateFamily(ctx context.Context, identity *models.Identity, name, timezone string) (*models.Family, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}
	if identity.Member.Role != models.RoleAdmin {
		return nil, ErrNotAdmin
	}

	name = strings.TrimSpace(name)
	if err := validation.ValidateRequired("name", name, validation.MaxNameLength); err != nil {
		return nil, err
	}
	if err := validation.ValidateTimezone(timezone); err != nil {
		return nil, err
	}

	if err := s.familyRepo.UpdateFamily(ctx, familyID, name, timezone); err != nil {
		return nil, err
	}

	family, err := s.familyRepo.GetFamilyByID(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, ErrFamilyNotFound
	}
	return family, nil
}

// EmailInviteCode sends the family's invite code to toEmail
func (s *FamilyService) EmailInviteCode(ctx context.Context, identity *models.Identity, toEmail string) error {
	if _, err := identity.FamilyID(); err != nil {
		return err
	}
	toEmail = strings.TrimSpace(toEmail)
	if err := validation.ValidateEmail(toEmail); err != nil {
		return err
	}

	if s.mailer == nil || !s.mailer.IsEnabled() {
		log.Printf("Skipping invite email to %s: email is disabled", toEmail)
		return nil
	}

	return s.mailer.SendInviteCodeEmail(ctx, toEmail, identity.Member.Name, identity.Family.Name, identity.Family.InviteCode)
}
