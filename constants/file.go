package constants

import (
	"path/filepath"
	"strings"
)

// FileType is the document format detected from a filename.
type FileType string

const (
	FileTypePDF  FileType = "PDF"
	FileTypeText FileType = "TXT"
)

// AllowedExtensions holds the file extensions accepted for invoice ingestion.
var AllowedExtensions = map[string]FileType{
	"pdf": FileTypePDF,
	"txt": FileTypeText,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// DetectFileType returns the type for filename, or false if unsupported.
func DetectFileType(filename string) (FileType, bool) {
	ft, ok := AllowedExtensions[NormalizeExt(filepath.Ext(filename))]
	return ft, ok
}
