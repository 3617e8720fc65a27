package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new time-ordered identifier (UUIDv7), so bid and
// auction ids sort by creation time within the same millisecond clock.
func GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
