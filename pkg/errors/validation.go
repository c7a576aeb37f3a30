package errors

import (
	"strings"
	"unicode"
)

// ValidateLayerName validates a layer debug name.
// Layer names end up in debug dumps, DOT output, and capture files, so the
// rules are intentionally conservative:
//   - No control characters or null bytes
//   - Maximum length of 256 characters
//
// An empty name is allowed; layers are identified by id, the name is a
// diagnostic label only.
func ValidateLayerName(name string) error {
	if len(name) > 256 {
		return New(ErrCodeInvalidLayer, "layer name too long (max 256 characters)")
	}

	for _, r := range name {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidLayer, "layer name contains invalid control characters")
		}
	}

	return nil
}

// ValidateSessionID validates a capture session id for safety.
// Session ids become file names in the file-backed capture store and key
// suffixes in the redis store, so they must be simple tokens without path
// components.
func ValidateSessionID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "session id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "session id too long (max 128 characters)")
	}

	if strings.ContainsAny(id, "/\\") {
		return New(ErrCodeInvalidInput, "session id cannot contain path separators")
	}

	if strings.Contains(id, "..") {
		return New(ErrCodeInvalidInput, "session id cannot contain path traversal sequences")
	}

	for _, r := range id {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "session id contains invalid characters")
		}
	}

	return nil
}

// ValidateScenePath validates a scene file path supplied on the command
// line or over the API. It rejects obviously unsafe values; existence and
// readability are checked by the caller.
func ValidateScenePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidScene, "scene path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidScene, "scene path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidScene, "scene path contains invalid characters")
		}
	}

	return nil
}
