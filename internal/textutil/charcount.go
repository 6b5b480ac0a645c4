package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SpeakableChars counts the characters in segment text that contribute to
// spoken duration. Text is normalized to NFC so decomposed accents count as
// one character; whitespace is skipped.
func SpeakableChars(text string) int {
	normalized := norm.NFC.String(strings.TrimSpace(text))
	count := 0
	for _, r := range normalized {
		if unicode.IsSpace(r) {
			continue
		}
		count++
	}
	return count
}
