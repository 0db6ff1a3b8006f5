package entity

import "github.com/google/uuid"

// Category is referenced weakly by ReceiptItem.CategoryID.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
}

// CategoryNames indexes categories by id for label lookups.
func CategoryNames(categories []Category) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		out[c.ID] = c.Name
	}
	return out
}
