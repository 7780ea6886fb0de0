package hasher

import (
	"path/filepath"
	"strings"
)

// IsImageFile reports whether the file extension belongs to a supported image
// format, including RAW camera formats handled via preview extraction.
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return true
	case ".tif", ".tiff":
		return true
	default:
		return IsRawFormat(path)
	}
}

// IsRawFormat reports whether the file is a RAW camera format.
func IsRawFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".dng", ".raf", ".arw", ".nef", ".cr2", ".cr3", ".nrw", ".srf", ".orf", ".rw2", ".pef", ".raw":
		return true
	default:
		return false
	}
}
