// Package model contains simple struct definitions shared across packages.
package model

import (
	"strings"
	"time"
)

// Category is the fixed set of gallery categories. A named string type keeps
// category handling type safe without a lookup table.
type Category string

const (
	CategoryBlouses    Category = "Blouses"
	CategoryDresses    Category = "Dresses"
	CategoryEmbroidery Category = "Embroidery"
	CategoryGowns      Category = "Gowns"
	CategoryWedding    Category = "Wedding"

	// CategoryAll is the filter sentinel, never stored on a record.
	CategoryAll Category = "All"
)

// Categories lists every storable category in display order. The first entry
// is the staging default.
func Categories() []Category {
	return []Category{
		CategoryBlouses,
		CategoryDresses,
		CategoryEmbroidery,
		CategoryGowns,
		CategoryWedding,
	}
}

// ValidCategory reports whether c may be stored on a record.
func ValidCategory(c Category) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// ImageRecord holds metadata about one gallery image as persisted in the
// gallery_images table.
type ImageRecord struct {
	ID          string    `json:"id"`
	ImageURL    string    `json:"imageUrl"`
	Title       string    `json:"title"`
	Category    Category  `json:"category"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	Featured    bool      `json:"featured"`
	UploadedBy  string    `json:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// ImageUpdate carries the mutable fields of a record for an edit keyed by ID.
type ImageUpdate struct {
	Title       string   `json:"title" validate:"required"`
	Category    Category `json:"category" validate:"required"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// ParseTags splits comma-separated input into an ordered tag list, trimming
// whitespace and dropping empty entries. Duplicates are kept as typed.
func ParseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
