package models

import "gorm.io/gorm"

type Result struct {
	gorm.Model
	TestID    uint
	TestTitle string
	UserID    uint
	Score     int // 0-100
	Correct   int
	Total     int
	EarnedPts int
	TotalPts  int
	Duration  int    // seconds
	Answers   string // JSON snapshot of the answer ledger
	Passed    bool
}
