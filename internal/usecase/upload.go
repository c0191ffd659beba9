package usecase

import (
	"fmt"
	"path/filepath"
	"strings"

	"local-chat-assistant/internal/domain"
)

var allowedUploadExts = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".docx": true,
}

// ValidateUploadName checks the file name against the accepted upload types.
func ValidateUploadName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("empty file name: %w", domain.ErrInvalidArgument)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedUploadExts[ext] {
		return fmt.Errorf("%q: %w", ext, domain.ErrUnsupportedFile)
	}
	return nil
}

// DecodeUpload turns raw upload bytes into text, dropping invalid UTF-8 and
// NUL bytes. No format-specific extraction happens, so PDF and DOCX files
// yield whatever readable bytes they carry.
func DecodeUpload(data []byte) string {
	return stripNUL(strings.ToValidUTF8(string(data), ""))
}

// stripNUL removes NUL bytes from text headed for the store; they cannot be
// persisted to a TEXT column.
func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
