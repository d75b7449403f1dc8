package turn

import (
	"regexp"
	"strings"
)

var bandScoreRe = regexp.MustCompile(`\bband\s+(score|[1-9](\.\d)?)\b`)

// ScanCues inspects a completed agent transcript for feedback language. The
// match is a UI routing hint only; the conversational protocol carries no
// structured turn metadata.
func ScanCues(transcript string) Cue {
	lower := strings.ToLower(transcript)

	if bandScoreRe.MatchString(lower) {
		return CueBandScore
	}
	if strings.Contains(lower, "sample answer") || strings.Contains(lower, "model answer") {
		return CueSampleAnswer
	}
	return CueNone
}
