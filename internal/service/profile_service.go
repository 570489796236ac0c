package service

import (
	"context"
	"strings"
	"time"

	"familysync/internal/models"
	"familysync/internal/realtime"
	"familysync/internal/repository"
	"familysync/internal/validation"
)

// PreferencesInput carries the settings a member can change about themselves
type PreferencesInput struct {
	Phone           string                 `json:"phone"`
	LocationSharing bool                   `json:"location_sharing"`
	Push            bool                   `json:"push"`
	Email           bool                   `json:"email"`
	Digest          models.DigestFrequency `json:"digest"`
}

// ProfileService handles a member's own profile and settings
type ProfileService struct {
	memberRepo *repository.MemberRepository
	auth       *AuthService
	hub        *realtime.Hub
	now        func() time.Time
}

// NewProfileService creates a new profile service
func NewProfileService(memberRepo *repository.MemberRepository, auth *AuthService, hub *realtime.Hub) *ProfileService {
	return &ProfileService{
		memberRepo: memberRepo,
		auth:       auth,
		hub:        hub,
		now:        time.Now,
	}
}

// UpdateProfile changes the caller's display name and color
func (s *ProfileService) UpdateProfile(ctx context.Context, identity *models.Identity, name, color string) (*models.Member, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = identity.Member.Color
	}
	if err := validation.ValidateColor(color); err != nil {
		return nil, err
	}

	if err := s.memberRepo.UpdateProfile(ctx, identity.Member.ID, name, color); err != nil {
		return nil, err
	}

	member, err := s.memberRepo.GetMemberByID(ctx, identity.Member.ID)
	if err != nil {
		return nil, err
	}

	if familyID, err := identity.FamilyID(); err == nil {
		s.hub.Publish(familyID, realtime.NewEvent(realtime.EventMemberUpdated, member.Summary()))
	}
	return member, nil
}

// GetInviteCode returns the code others use to join the caller's family
func (s *ProfileService) GetInviteCode(identity *models.Identity) (string, error) {
	if _, err := identity.FamilyID(); err != nil {
		return "", err
	}
	return identity.Family.InviteCode, nil
}

// UpdatePreferences stores notification and sharing settings. Turning location
// sharing off also forgets the last shared location.
func (s *ProfileService) UpdatePreferences(ctx context.Context, identity *models.Identity, input PreferencesInput) (*models.Member, error) {
	digest := input.Digest
	if digest == "" {
		digest = identity.Member.Notifications.Digest
	}
	if !digest.IsValid() {
		return nil, validation.ValidationError{Field: "digest", Message: "digest must be one of the supported frequencies"}
	}

	prefs := models.NotificationPreferences{Push: input.Push, Email: input.Email, Digest: digest}
	if err := s.memberRepo.UpdatePreferences(ctx, identity.Member.ID, prefs, blankToNil(input.Phone), input.LocationSharing); err != nil {
		return nil, err
	}
	return s.memberRepo.GetMemberByID(ctx, identity.Member.ID)
}

// UpdateLocation records the caller's current position when they share their location
func (s *ProfileService) UpdateLocation(ctx context.Context, identity *models.Identity, latitude, longitude float64, placeName string) (*models.Member, error) {
	if _, err := identity.FamilyID(); err != nil {
		return nil, err
	}
	if !identity.Member.LocationSharing {
		return nil, ErrLocationSharingDisabled
	}
	if err := validation.ValidateCoordinates(latitude, longitude); err != nil {
		return nil, err
	}

	loc := models.Location{
		Latitude:   latitude,
		Longitude:  longitude,
		RecordedAt: s.now().UTC(),
		PlaceName:  blankToNil(placeName),
	}
	if err := s.memberRepo.UpdateLocation(ctx, identity.Member.ID, loc); err != nil {
		return nil, err
	}

	member, err := s.memberRepo.GetMemberByID(ctx, identity.Member.ID)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(*member.FamilyID, realtime.NewEvent(realtime.EventMemberUpdated, member.Summary()))
	return member, nil
}

// SignOut ends the caller's session
func (s *ProfileService) SignOut(ctx context.Context, sessionID string) error {
	return s.auth.Logout(ctx, sessionID)
}
