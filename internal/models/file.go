package models

import (
	"time"

	"github.com/google/uuid"
)

// FileType is the enumerated category of a file.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeCSV   FileType = "csv"
	FileTypePDF   FileType = "pdf"
)

// Valid reports whether t is one of the known file types.
func (t FileType) Valid() bool {
	switch t {
	case FileTypeImage, FileTypeCSV, FileTypePDF:
		return true
	}
	return false
}

// File is an organization-scoped file record. OrganizationID and OwnerUserID never change
// after creation; ShouldDelete marks the record for the purge sweep.
type File struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	OrganizationID uuid.UUID `json:"organization_id"`
	OwnerUserID    uuid.UUID `json:"owner_user_id"`
	StorageRef     string    `json:"storage_ref"`
	Type           FileType  `json:"type"`
	ShouldDelete   bool      `json:"should_delete"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FileWithURL is a File annotated with its retrieval URL. URL is nil when it could not be resolved.
type FileWithURL struct {
	File
	URL *string `json:"url"`
}
