package engine

import (
	"fmt"
	"strings"
	"unicode"
)

// keywordDetails is the Details value for every keyword-fallback assessment.
const keywordDetails = "keyword-based fallback analysis"

// FallbackReply is the fixed dialogue line used when the dialogue generator
// is unavailable. It is built only from the business identity.
func FallbackReply(b BusinessIdentity) string {
	return fmt.Sprintf("Hi! I'm calling to ask if you're currently hiring for %s %s.",
		b.EmploymentType, b.Role)
}

// Negation markers checked before affirmation markers, so "no, we're not
// hiring" classifies as NOT_HIRING despite containing "hiring".
var negationMarkers = []string{
	"no", "not", "don't", "dont", "aren't", "arent",
	"isn't", "won't", "nothing", "unfortunately", "nope",
}

var affirmationMarkers = []string{
	"yes", "we are", "hiring", "yeah", "yep", "definitely",
	"absolutely", "we're looking", "currently looking",
}

// KeywordClassify is the deterministic substitute for the status classifier.
// Negation markers yield NOT_HIRING/HIGH, affirmation markers HIRING/HIGH,
// anything else UNCERTAIN/LOW. Empty input yields UNCERTAIN/LOW with a
// "no response captured" detail.
func KeywordClassify(utterance string) HiringAssessment {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return HiringAssessment{
			Status:     StatusUncertain,
			Confidence: ConfidenceLow,
			Details:    "no response captured",
		}
	}

	words := tokenize(text)

	if matchesAny(text, words, negationMarkers) {
		return HiringAssessment{
			Status:     StatusNotHiring,
			Confidence: ConfidenceHigh,
			Details:    keywordDetails,
		}
	}
	if matchesAny(text, words, affirmationMarkers) {
		return HiringAssessment{
			Status:     StatusHiring,
			Confidence: ConfidenceHigh,
			Details:    keywordDetails,
		}
	}
	return HiringAssessment{
		Status:     StatusUncertain,
		Confidence: ConfidenceLow,
		Details:    keywordDetails,
	}
}

// tokenize splits text into lowercase word tokens, keeping apostrophes so
// contractions like "don't" survive as single tokens.
func tokenize(text string) map[string]bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		words[strings.Trim(f, "'")] = true
	}
	return words
}

// matchesAny matches single-word markers against whole tokens and multi-word
// markers as substrings, so "no" never matches inside "know".
func matchesAny(text string, words map[string]bool, markers []string) bool {
	for _, m := range markers {
		if strings.ContainsRune(m, ' ') {
			if strings.Contains(text, m) {
				return true
			}
			continue
		}
		if words[m] {
			return true
		}
	}
	return false
}
