package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/receipts-sync/constants"
)

// AllowedExt checks if a file extension is accepted by the scan endpoint.
func AllowedExt(ext string) bool {
	_, ok := constants.ImageMimeType(ext)
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
