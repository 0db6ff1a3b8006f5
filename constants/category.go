package constants

import (
	"strings"

	"github.com/google/uuid"
)

// Uncategorized is the label shown for items without a category or with a
// category id that no longer resolves.
const Uncategorized = "Uncategorized"

// CategoryLabel resolves a weak category reference against a name index.
func CategoryLabel(id *uuid.UUID, names map[uuid.UUID]string) string {
	if id == nil || *id == uuid.Nil {
		return Uncategorized
	}
	name, ok := names[*id]
	if !ok || strings.TrimSpace(name) == "" {
		return Uncategorized
	}
	return name
}
