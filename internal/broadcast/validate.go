package broadcast

import (
	"strings"
	"unicode/utf8"

	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const MaxMessageLength = 2000

// normalize checks a create request and returns the trimmed message.
func normalize(p CreateParams) (string, error) {
	msg := strings.TrimSpace(p.Message)
	if msg == "" {
		return "", &ValidationError{Field: "message", Message: "is required"}
	}
	if utf8.RuneCountInString(msg) > MaxMessageLength {
		return "", &ValidationError{Field: "message", Message: "must be at most 2000 characters"}
	}

	if len(p.Platforms) == 0 {
		return "", &ValidationError{Field: "platforms", Message: "at least one platform is required"}
	}
	seen := make(map[string]bool, len(p.Platforms))
	for _, pl := range p.Platforms {
		if !models.ValidPlatform(pl) {
			return "", &ValidationError{Field: "platforms", Message: "unknown platform " + pl}
		}
		if seen[pl] {
			return "", &ValidationError{Field: "platforms", Message: "duplicate platform " + pl}
		}
		seen[pl] = true
	}
	return msg, nil
}
