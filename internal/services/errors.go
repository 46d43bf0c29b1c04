package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExternalTool marks a failed subprocess invocation.
	ErrExternalTool = errors.New("external tool error")
	// ErrConfiguration marks malformed job options or rules.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a missing media file.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous marks a lookup that matched more than one file.
	ErrAmbiguous = errors.New("ambiguous media target")
	// ErrAPI marks a media server API failure.
	ErrAPI = errors.New("media server api error")
)

// Wrap builds an error message that includes job context while tagging it
// with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, job, operation, message string, err error) error {
	detail := buildDetail(job, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(job, operation, message string) string {
	parts := make([]string, 0, 3)
	if job = strings.TrimSpace(job); job != "" {
		parts = append(parts, job)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "job failure"
	}
	return strings.Join(parts, ": ")
}
