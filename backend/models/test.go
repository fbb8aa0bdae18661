package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

type Test struct {
	gorm.Model
	Title            string `gorm:"not null"`
	Description      string
	AuthorID         uint
	Visibility       string `gorm:"default:public"` // public, private
	TimeLimit        int    // minutes, 0 = untimed
	PassScore        int    `gorm:"default:60"` // percentage threshold
	ShuffleQuestions bool
	ShowResult       bool `gorm:"default:true"`
	QuestionLimit    int  // 0 = no cap
	QuestionCount    int
	Attempts         int // denormalized attempt counter
	AvgScore         float64
	Questions        []Question
}

const (
	QuestionMultiple  = "multiple"
	QuestionTrueFalse = "truefalse"
	QuestionText      = "text"
)

type Question struct {
	gorm.Model
	TestID        uint
	Type          string `gorm:"default:multiple"`
	Text          string
	Options       string // JSON array of options
	Correct       string // JSON array (or legacy scalar) of correct indices
	Points        int    `gorm:"default:1"`
	SequenceOrder int
}

// OptionList decodes the stored options column. A broken column reads as no
// options rather than failing the whole test load.
func (q *Question) OptionList() []string {
	var options []string
	json.Unmarshal([]byte(q.Options), &options)
	return options
}

// CorrectSet decodes the correct-answer column into a set of option indices.
// Older records store a bare index instead of an array, so both shapes decode.
func (q *Question) CorrectSet() []int {
	var indices []int
	if err := json.Unmarshal([]byte(q.Correct), &indices); err == nil {
		return indices
	}
	var single int
	if err := json.Unmarshal([]byte(q.Correct), &single); err == nil {
		return []int{single}
	}
	return nil
}
