package session

import (
	"math"

	"testpro/backend/models"
)

// DefaultPassScore is the pass threshold applied when a test does not set one.
const DefaultPassScore = 60

// Question is a test question normalized for the engine: the stored
// correct-answer column is already expanded into a set of option indices, so
// scoring never branches on the column shape.
type Question struct {
	ID      uint         `json:"id"`
	Type    string       `json:"type"`
	Text    string       `json:"text"`
	Options []string     `json:"options"`
	Correct map[int]bool `json:"-"`
	Points  int          `json:"points"`
}

// FromModel converts a stored question into its normalized engine form.
func FromModel(m models.Question) Question {
	correct := make(map[int]bool)
	for _, idx := range m.CorrectSet() {
		correct[idx] = true
	}

	return Question{
		ID:      m.ID,
		Type:    m.Type,
		Text:    m.Text,
		Options: m.OptionList(),
		Correct: correct,
		Points:  m.Points,
	}
}

// Answer is one answer-ledger entry: a selected option index for choice
// questions, or free text for text questions. Presence of an entry is what
// makes a question "answered", so an explicitly saved empty text counts.
type Answer struct {
	Choice int    `json:"choice"`
	Text   string `json:"text,omitempty"`
	IsText bool   `json:"is_text,omitempty"`
}

// Outcome is the graded summary of one attempt.
type Outcome struct {
	Score     int  `json:"score"`
	Correct   int  `json:"correct"`
	Total     int  `json:"total"`
	EarnedPts int  `json:"earned_pts"`
	TotalPts  int  `json:"total_pts"`
	Passed    bool `json:"passed"`
}

// Score grades an answer ledger against a question set. Text questions count
// toward the point total but are never auto-graded; unanswered questions are
// simply incorrect. A test worth zero points scores zero instead of dividing
// by zero. The function is pure, so re-scoring the same inputs for a review
// screen yields an identical outcome.
func Score(questions []Question, answers map[uint]Answer, passScore int) Outcome {
	if passScore <= 0 {
		passScore = DefaultPassScore
	}

	out := Outcome{Total: len(questions)}

	for _, q := range questions {
		points := q.Points
		if points <= 0 {
			points = 1
		}
		out.TotalPts += points

		if q.Type == models.QuestionText {
			// Manual grading only.
			continue
		}

		answer, answered := answers[q.ID]
		if !answered || answer.IsText {
			continue
		}

		if q.Correct[answer.Choice] {
			out.Correct++
			out.EarnedPts += points
		}
	}

	if out.TotalPts > 0 {
		out.Score = int(math.Round(float64(out.EarnedPts) / float64(out.TotalPts) * 100))
	}
	out.Passed = out.Score >= passScore

	return out
}
