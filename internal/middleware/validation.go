package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaxListLimit caps the limit query parameter.
const MaxListLimit = 1000

// ValidateDocumentID validates a document ID.
func ValidateDocumentID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid document ID format")
	}
	return nil
}

// ValidateUserID validates a user ID of the form user-<uuid>.
func ValidateUserID(id string) error {
	rest, ok := strings.CutPrefix(id, "user-")
	if !ok || rest == "" || len(id) > 64 {
		return errors.New("invalid user ID format")
	}
	return nil
}

// ParseLimit reads an optional positive limit. An empty value returns def.
func ParseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > MaxListLimit {
		n = MaxListLimit
	}
	return n, nil
}
