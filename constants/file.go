package constants

import "strings"

// AllowedImageExtensions holds the file extensions accepted by the scan endpoint.
var AllowedImageExtensions = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"heic": "image/heic",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ImageMimeType returns the mime type for an allowed extension.
func ImageMimeType(ext string) (string, bool) {
	mt, ok := AllowedImageExtensions[NormalizeExt(ext)]
	return mt, ok
}
