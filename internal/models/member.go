package models

import "time"

// Role is a member's role within a family
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleKid    Role = "kid"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleKid:
		return true
	}
	return false
}

// DigestFrequency controls how often summary emails are sent
type DigestFrequency string

const (
	DigestNone   DigestFrequency = "none"
	DigestDaily  DigestFrequency = "daily"
	DigestWeekly DigestFrequency = "weekly"
)

func (d DigestFrequency) IsValid() bool {
	switch d {
	case DigestNone, DigestDaily, DigestWeekly:
		return true
	}
	return false
}

// ColorPalette is the closed set of member colors
var ColorPalette = []string{
	"#3B82F6", // blue
	"#10B981", // green
	"#8B5CF6", // purple
	"#F59E0B", // amber
	"#EF4444", // red
	"#EC4899", // pink
	"#06B6D4", // cyan
	"#84CC16", // lime
}

// DefaultColor is assigned to new members until they pick one
const DefaultColor = "#3B82F6"

// IsPaletteColor reports whether color is one of ColorPalette
func IsPaletteColor(color string) bool {
	for _, c := range ColorPalette {
		if c == color {
			return true
		}
	}
	return false
}

// Location is a member's last shared position
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
	PlaceName  *string   `json:"place_name,omitempty"`
}

// NotificationPreferences holds a member's notification settings
type NotificationPreferences struct {
	Push   bool            `json:"push"`
	Email  bool            `json:"email"`
	Digest DigestFrequency `json:"digest"`
}

// Member is a person's profile. A member without a FamilyID is still onboarding
// and cannot reach any family-scoped data.
type Member struct {
	ID              string                  `json:"id"`
	AccountID       *string                 `json:"account_id,omitempty"`
	FamilyID        *string                 `json:"family_id,omitempty"`
	Email           *string                 `json:"email,omitempty"`
	Name            string                  `json:"name"`
	Color           string                  `json:"color"`
	Role            Role                    `json:"role"`
	Phone           *string                 `json:"phone,omitempty"`
	LocationSharing bool                    `json:"location_sharing"`
	LastLocation    *Location               `json:"last_location,omitempty"`
	Notifications   NotificationPreferences `json:"notification_preferences"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// IsOnboarding reports whether the member still has to create or join a family
func (m *Member) IsOnboarding() bool {
	return m.FamilyID == nil || *m.FamilyID == ""
}

// BelongsTo reports whether the member is part of familyID
func (m *Member) BelongsTo(familyID string) bool {
	return !m.IsOnboarding() && *m.FamilyID == familyID
}

// Summary projects the fields other members see next to events, tasks and messages
func (m *Member) Summary() MemberSummary {
	return MemberSummary{ID: m.ID, Name: m.Name, Color: m.Color}
}

// MemberSummary is the display identity joined onto events, tasks and messages
type MemberSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}
