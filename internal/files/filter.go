package files

import (
	"strings"

	"github.com/google/uuid"

	"github.com/aura-drive/backend/internal/models"
)

// Filter narrows a file listing. All set conditions must hold.
type Filter struct {
	// Query is matched case-insensitively as a substring of the file name.
	Query string
	// FavoritesOnly keeps only files the actor has favorited.
	FavoritesOnly bool
	// DeletedOnly selects flagged files instead of live ones; the two views never overlap.
	DeletedOnly bool
	// Type, when set, must equal the file type exactly.
	Type models.FileType
}

// Match reports whether f passes the filter. favorites is the actor's favorited file ids and is
// only consulted when FavoritesOnly is set.
func (flt Filter) Match(f *models.File, favorites map[uuid.UUID]struct{}) bool {
	if q := strings.TrimSpace(flt.Query); q != "" {
		if !strings.Contains(strings.ToLower(f.Name), strings.ToLower(q)) {
			return false
		}
	}
	if flt.FavoritesOnly {
		if _, ok := favorites[f.ID]; !ok {
			return false
		}
	}
	if f.ShouldDelete != flt.DeletedOnly {
		return false
	}
	if flt.Type != "" && f.Type != flt.Type {
		return false
	}
	return true
}

// Apply returns the files that match, keeping their order.
func (flt Filter) Apply(list []models.File, favorites map[uuid.UUID]struct{}) []models.File {
	out := make([]models.File, 0, len(list))
	for i := range list {
		if flt.Match(&list[i], favorites) {
			out = append(out, list[i])
		}
	}
	return out
}
