package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/slipdesk/slipdesk/internal/shared"
)

// User represents an authenticated staff account.
type User struct {
	ID           uuid.UUID
	Username     string
	Name         string
	PasswordHash string
	Role         shared.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
