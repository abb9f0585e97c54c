package gateway

import (
	"regexp"
	"strings"

	"github.com/collectline-payments/internal/domain/shared"
)

// Balance-related decline markers, matched as whole words so text like
// "transfer" never trips the "nsf" pattern.
var insufficientPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\binsufficient\b`),
	regexp.MustCompile(`\bnsf\b`),
	regexp.MustCompile(`\bnot\s+sufficient\s+funds\b`),
}

// Classify buckets a processor's decline text into a retry category.
// Only balance-related declines are worth retrying later; every other
// non-empty reason (lost card, do not honor, invalid account) will not
// improve with time. Empty text gives the runner nothing to reason about,
// so it is treated as terminal.
func Classify(resultText string) shared.DeclineReason {
	text := strings.ToLower(strings.TrimSpace(resultText))
	if text == "" {
		return shared.DeclineReasonUnknown
	}
	for _, pattern := range insufficientPatterns {
		if pattern.MatchString(text) {
			return shared.DeclineReasonInsufficientFunds
		}
	}
	return shared.DeclineReasonDoNotRetry
}
