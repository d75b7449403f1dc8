package text

import (
	"regexp"
	"strings"
)

const (
	DefaultTargetSize = 1000
	DefaultOverlap    = 200
)

var (
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	newlineRunRe = regexp.MustCompile(`\n{2,}`)
)

// Normalize collapses runs of spaces/tabs to a single space and runs of
// newlines to a single newline, then trims surrounding whitespace.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = newlineRunRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// Chunk splits normalized text into overlapping, boundary-aware segments of at
// most targetSize characters. A window is cut at the later of its last period
// or last newline when that break sits past the window's midpoint; otherwise
// the window is emitted whole and the next window starts targetSize-overlap
// characters later, producing approximate overlap instead of a clean sentence
// boundary. Requires targetSize > overlap >= 0 so the cursor always advances.
func Chunk(text string, targetSize, overlap int) []string {
	if targetSize <= 0 || overlap < 0 || targetSize <= overlap {
		return nil
	}

	norm := Normalize(text)
	if norm == "" {
		return nil
	}

	var chunks []string
	start := 0

	for start < len(norm) {
		end := start + targetSize
		if end >= len(norm) {
			if piece := strings.TrimSpace(norm[start:]); piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}

		window := norm[start:end]
		breakAt := breakPoint(window)

		if breakAt > targetSize/2 {
			if piece := strings.TrimSpace(window[:breakAt+1]); piece != "" {
				chunks = append(chunks, piece)
			}
			start += breakAt + 1
		} else {
			if piece := strings.TrimSpace(window); piece != "" {
				chunks = append(chunks, piece)
			}
			start += targetSize - overlap
		}
	}

	return chunks
}

// breakPoint returns the index of the later of the window's last period or
// last newline, or -1 when neither is present.
func breakPoint(window string) int {
	lastDot := strings.LastIndexByte(window, '.')
	lastNL := strings.LastIndexByte(window, '\n')
	if lastNL > lastDot {
		return lastNL
	}
	return lastDot
}
