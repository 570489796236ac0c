package models

import "errors"

// ErrOnboarding is returned when a family-scoped operation is attempted by a member without a family.
var ErrOnboarding = errors.New("family setup required")

// Identity is the resolved caller of a request: the authenticated account, its member
// profile and, once onboarding is complete, the member's family. It is resolved per
// request and passed explicitly to every family-scoped operation.
type Identity struct {
	Account *Account
	Member  *Member
	Family  *Family
}

// FamilyID returns the caller's family or ErrOnboarding
func (i *Identity) FamilyID() (string, error) {
	if i == nil || i.Member == nil || i.Family == nil || i.Member.IsOnboarding() {
		return "", ErrOnboarding
	}
	return i.Family.ID, nil
}
