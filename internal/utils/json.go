package utils

import (
	"strings"
)

// SanitizeJSON extracts the JSON payload from raw model output. Gemini
// wraps structured answers in Markdown code fences (```json ... ```)
// even when told not to; this strips them and surrounding whitespace.
func SanitizeJSON(input string) string {
	cleaned := strings.TrimSpace(input)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}

	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSuffix(cleaned, "```")
	}

	return strings.TrimSpace(cleaned)
}
