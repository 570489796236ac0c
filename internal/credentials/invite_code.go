package credentials

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode"
)

// InviteCodeLength is the number of characters in a family invite code
const InviteCodeLength = 8

const inviteCodeChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateInviteCode returns a random lower-case alphanumeric invite code
func GenerateInviteCode() (string, error) {
	code := make([]byte, InviteCodeLength)

	for i := range code {
		c, err := randomChar(inviteCodeChars)
		if err != nil {
			return "", err
		}
		code[i] = c
	}

	return string(code), nil
}

// MaxInviteCodeLength bounds what a lookup will accept. Imported families may
// carry codes that GenerateInviteCode would never produce.
const MaxInviteCodeLength = 64

// IsAcceptableInviteCode reports whether code is worth looking up: non-empty,
// bounded, and free of whitespace. Callers normalize user input first.
func IsAcceptableInviteCode(code string) bool {
	if code == "" || len(code) > MaxInviteCodeLength {
		return false
	}
	return !strings.ContainsFunc(code, unicode.IsSpace)
}

// randomChar picks a random byte from chars
func randomChar(chars string) (byte, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
	if err != nil {
		return 0, err
	}
	return chars[num.Int64()], nil
}
