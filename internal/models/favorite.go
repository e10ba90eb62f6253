package models

import (
	"time"

	"github.com/google/uuid"
)

// Favorite marks a file as favorited by a user. Presence means favorited; there is no flag.
type Favorite struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	FileID         uuid.UUID `json:"file_id"`
	CreatedAt      time.Time `json:"created_at"`
}
