package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// validateData performs referential and range checks on the given rows.
// Returns a combined error describing all problems found, or nil if valid.
func validateData(data Data) error {
	var errs []string

	categorySet := make(map[int]bool, len(data.Categories))
	for _, c := range data.Categories {
		if categorySet[c.ID] {
			errs = append(errs, fmt.Sprintf("duplicate category ID: %d", c.ID))
		}
		categorySet[c.ID] = true
	}

	theoremSet := make(map[int]bool, len(data.Theorems))
	for _, t := range data.Theorems {
		if theoremSet[t.ID] {
			errs = append(errs, fmt.Sprintf("duplicate theorem ID: %d", t.ID))
		}
		theoremSet[t.ID] = true
		if strings.TrimSpace(t.Text) == "" {
			errs = append(errs, fmt.Sprintf("theorem %d has empty text", t.ID))
		}
		if t.CategoryID != nil && !categorySet[*t.CategoryID] {
			errs = append(errs, fmt.Sprintf("theorem %d references nonexistent category %d", t.ID, *t.CategoryID))
		}
	}

	questionSet := make(map[int]bool, len(data.Questions))
	for _, q := range data.Questions {
		if questionSet[q.ID] {
			errs = append(errs, fmt.Sprintf("duplicate question ID: %d", q.ID))
		}
		questionSet[q.ID] = true
		if q.Difficulty < DifficultyEasy || q.Difficulty > DifficultyHard {
			errs = append(errs, fmt.Sprintf("question %d has difficulty %d, want 1-3", q.ID, q.Difficulty))
		}
	}

	for _, l := range data.CategoryLinks {
		if !theoremSet[l.TheoremID] {
			errs = append(errs, fmt.Sprintf("category link references nonexistent theorem %d", l.TheoremID))
		}
		if !categorySet[l.CategoryID] {
			errs = append(errs, fmt.Sprintf("category link references nonexistent category %d", l.CategoryID))
		}
		if l.Strength < 0 || l.Strength > 1 {
			errs = append(errs, fmt.Sprintf("theorem %d / category %d strength %.2f out of [0,1]", l.TheoremID, l.CategoryID, l.Strength))
		}
	}

	for _, l := range data.QuestionLinks {
		if !theoremSet[l.TheoremID] {
			errs = append(errs, fmt.Sprintf("question link references nonexistent theorem %d", l.TheoremID))
		}
		if !questionSet[l.QuestionID] {
			errs = append(errs, fmt.Sprintf("question link references nonexistent question %d", l.QuestionID))
		}
	}

	for _, m := range data.Multipliers {
		if !questionSet[m.QuestionID] {
			errs = append(errs, fmt.Sprintf("multiplier references nonexistent question %d", m.QuestionID))
		}
		if !categorySet[m.CategoryID] {
			errs = append(errs, fmt.Sprintf("multiplier references nonexistent category %d", m.CategoryID))
		}
		if !m.AnswerType.Valid() {
			errs = append(errs, fmt.Sprintf("multiplier for question %d has unknown answer type %q", m.QuestionID, m.AnswerType))
		}
		if m.Multiplier < 0 {
			errs = append(errs, fmt.Sprintf("multiplier for question %d / category %d is negative", m.QuestionID, m.CategoryID))
		}
	}

	optionSet := make(map[int]bool, len(data.AnswerOptions))
	for _, o := range data.AnswerOptions {
		if optionSet[o.ID] {
			errs = append(errs, fmt.Sprintf("duplicate answer option ID: %d", o.ID))
		}
		optionSet[o.ID] = true
		if !o.Type.Valid() {
			errs = append(errs, fmt.Sprintf("answer option %d has unknown type %q", o.ID, o.Type))
		}
	}

	if len(errs) > 0 {
		return errors.New("invalid catalog:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
