package errors

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// ValidateFigureName validates a figure title used as a file basename.
// It rejects names that could escape the output directory.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path separators or traversal sequences
//   - Maximum length of 200 characters
func ValidateFigureName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "figure name cannot be empty")
	}

	if len(name) > 200 {
		return New(ErrCodeInvalidPath, "figure name too long (max 200 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "figure name contains invalid control characters")
		}
	}

	for _, pattern := range []string{"..", "/", "\\", "\x00"} {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidPath, "figure name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidatePath validates a relative output path for safety.
// It prevents path traversal and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateFormats checks that every requested format is in allowed.
func ValidateFormats(formats []string, allowed []string) error {
	if len(formats) == 0 {
		return New(ErrCodeInvalidFormat, "no output format given")
	}
	for _, f := range formats {
		if !slices.Contains(allowed, f) {
			return New(ErrCodeInvalidFormat, "invalid format: %s (must be one of %s)", f, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// ValidateBackend checks a backend name given on the command line or in a config file.
func ValidateBackend(name string) error {
	switch name {
	case "static", "interactive":
		return nil
	}
	return New(ErrCodeInvalidBackend, "invalid backend: %q (must be 'static' or 'interactive')", name)
}

// animalNameRegex matches subject identifiers as they appear in trial tables.
var animalNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateAnimalName validates a subject name used in URLs and file prefixes.
func ValidateAnimalName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "animal name cannot be empty")
	}
	if len(name) > 64 {
		return New(ErrCodeInvalidInput, "animal name too long (max 64 characters)")
	}
	if !animalNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid animal name: %q", name)
	}
	return nil
}
