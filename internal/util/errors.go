package util

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxErrorLineLength is the maximum length for extracted error messages.
const maxErrorLineLength = 200

// WrapError wraps an error with a descriptive operation context.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// LastErrorLine returns the last non-blank line of process output, truncated
// to a length suitable for logs and error messages.
func LastErrorLine(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if len(line) > maxErrorLineLength {
			cut := maxErrorLineLength
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			return line[:cut] + "..."
		}
		return line
	}
	return ""
}
