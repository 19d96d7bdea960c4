package identity

import (
	"errors"
	"strings"
)

// maxUserIDLength bounds identifiers accepted from callers. IDs come from
// the web app's auth layer and are treated as opaque strings.
const maxUserIDLength = 256

// ErrInvalidUserID is returned when a user id is empty or too long.
var ErrInvalidUserID = errors.New("identity: invalid user id")

// NormalizeUserID trims surrounding whitespace and validates the result.
func NormalizeUserID(raw string) (string, error) {
	userID := strings.TrimSpace(raw)
	if userID == "" || len(userID) > maxUserIDLength {
		return "", ErrInvalidUserID
	}
	return userID, nil
}
