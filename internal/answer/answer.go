// Package answer post-processes raw model output: it pulls out referenced
// URLs and attaches a rough confidence signal for display. Neither is a
// calibrated estimate from the model itself.
package answer

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s\]\)"'>]+`)

// ExtractSources returns every URL-shaped substring of text in order of
// appearance. Duplicates are kept; text without URLs yields nil.
func ExtractSources(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// hedgePhrases mark answers the model itself flagged as unreliable.
var hedgePhrases = []string{
	"i don't know",
	"i do not know",
	"uncertain",
	"not sure",
	"cannot determine",
}

// EstimateConfidence derives a display confidence in [0, 1] from the
// answer text: a 0.6 base plus len(text)/500, capped at 0.95, overridden
// to 0.3 when the text hedges. Deterministic for a given input.
func EstimateConfidence(text string) float64 {
	lower := strings.ToLower(text)
	for _, phrase := range hedgePhrases {
		if strings.Contains(lower, phrase) {
			return 0.3
		}
	}

	conf := 0.6 + float64(len(text))/500
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}
