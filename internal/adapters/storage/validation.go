package storage

import (
	"fmt"
	"strings"
)

// AllowedContentTypes defines the MIME types accepted for snapshots.
var AllowedContentTypes = map[string]bool{
	"application/json": true,
	"text/plain":       true,
}

// ValidateContentType checks if the content type is allowed.
func ValidateContentType(contentType string) error {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !AllowedContentTypes[ct] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateObjectKey rejects empty keys and path traversal segments.
func ValidateObjectKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is empty")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("object key %q must be relative", key)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." || segment == "" {
			return fmt.Errorf("object key %q has an invalid segment", key)
		}
	}
	return nil
}
