package engine

import (
	"fmt"
	"strings"
	"unicode"
)

// Answer is a learner's reply: either a structured answer option or free text.
type Answer struct {
	OptionID int    `json:"answer_id,omitempty"`
	Text     string `json:"answer_text,omitempty"`
}

// Structured reports whether the answer selects an answer option.
func (a Answer) Structured() bool {
	return a.OptionID != 0
}

// Validate requires exactly one of OptionID and Text.
func (a Answer) Validate() error {
	hasText := strings.TrimSpace(a.Text) != ""
	switch {
	case a.OptionID < 0:
		return fmt.Errorf("%w: negative answer id %d", ErrInvalidAnswer, a.OptionID)
	case a.OptionID != 0 && hasText:
		return fmt.Errorf("%w: both answer id and text given", ErrInvalidAnswer)
	case a.OptionID == 0 && !hasText:
		return fmt.Errorf("%w: empty answer", ErrInvalidAnswer)
	}
	return nil
}

// maxKeywordWords is how many leading words of a theorem are considered.
const maxKeywordWords = 3

// Keywords returns the match keywords of a theorem: its first three words,
// lowercased and stripped of surrounding punctuation, keeping only words
// longer than two characters.
//
// This is a plain substring heuristic. It does not understand the answer.
func Keywords(theoremText string) []string {
	words := strings.Fields(theoremText)
	if len(words) > maxKeywordWords {
		words = words[:maxKeywordWords]
	}
	var out []string
	for _, w := range words {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(w)) > 2 {
			out = append(out, strings.ToLower(w))
		}
	}
	return out
}

// MatchesAny reports whether any keyword occurs in text, ignoring case.
func MatchesAny(keywords []string, text string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
