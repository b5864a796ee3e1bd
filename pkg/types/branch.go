package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const generatedBranchPrefix = "feature/ai-updates-"

// GenerateBranchName returns a unique branch name for an update request.
// Two calls never collide, so re-running a request yields independent
// branches.
func GenerateBranchName() string {
	stamp := time.Now().UTC().Format("20060102-150405")
	suffix := uuid.NewString()[:8]
	return generatedBranchPrefix + stamp + "-" + suffix
}

// SanitizeBranchName strips characters that are not valid in a git ref name.
func SanitizeBranchName(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '/' || r == '.' {
			result.WriteRune(r)
		} else if r == ' ' {
			result.WriteRune('-')
		}
	}
	return strings.Trim(result.String(), "-/.")
}
