package platform

import (
	"github.com/google/uuid"
)

// NewID returns a random UUID string used for poll sessions.
func NewID() string {
	return uuid.New().String()
}
