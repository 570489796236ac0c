package models

import (
	"strings"
	"time"
)

// Family is the tenancy boundary: every event, list, task, message and place belongs to exactly one.
type Family struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	InviteCode string    `json:"invite_code"`
	Timezone   string    `json:"timezone"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Location returns the family's time zone, falling back to UTC for unknown names.
func (f *Family) Location() *time.Location {
	if f == nil || f.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NormalizeInviteCode trims and lower-cases a user-entered invite code.
func NormalizeInviteCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// DefaultTaskList describes one of the lists seeded into every new family.
type DefaultTaskList struct {
	Name string
	Icon string
}

// DefaultTaskLists are created, in this order, when a family is created.
var DefaultTaskLists = []DefaultTaskList{
	{Name: "Groceries", Icon: "🛒"},
	{Name: "House", Icon: "🏠"},
	{Name: "Errands", Icon: "📦"},
}
