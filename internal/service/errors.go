package service

import "errors"

var (
	ErrAlreadyInFamily         = errors.New("already a member of a family")
	ErrFamilyNotFound          = errors.New("family not found")
	ErrNotAdmin                = errors.New("only family admins can do that")
	ErrListNotFound            = errors.New("list not found")
	ErrTaskNotFound            = errors.New("task not found")
	ErrEventNotFound           = errors.New("event not found")
	ErrAssigneeNotInFamily     = errors.New("assignee is not a member of this family")
	ErrAttendeeNotInFamily     = errors.New("attendee is not a member of this family")
	ErrInvalidTimeRange        = errors.New("end time must not be before start time")
	ErrUnknownPingType         = errors.New("unknown ping type")
	ErrLocationSharingDisabled = errors.New("location sharing is disabled")
	ErrInviteCodeExhausted     = errors.New("could not generate a unique invite code")
)

// ErrInvalidInviteCode is shown to the user verbatim
var ErrInvalidInviteCode = errors.New("Invalid invite code. Please check and try again.")
