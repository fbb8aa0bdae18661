package session

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"testpro/backend/models"

	"github.com/google/uuid"
)

// TimerState tracks the countdown lifecycle of a timed attempt.
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
	TimerExpired
)

var (
	ErrFinished        = errors.New("attempt already submitted")
	ErrNotSubmitted    = errors.New("attempt not submitted yet")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrNotChoice       = errors.New("question does not take an option answer")
	ErrNotText         = errors.New("question does not take a text answer")
	ErrInvalidOption   = errors.New("option index out of range")
)

// UnansweredError rejects an unconfirmed submission while questions remain
// unanswered. The caller is expected to confirm with the user and resubmit.
type UnansweredError struct {
	Remaining int
}

func (e *UnansweredError) Error() string {
	return fmt.Sprintf("%d questions unanswered", e.Remaining)
}

// Config carries the test settings an attempt runs under.
type Config struct {
	TestID           uint
	TestTitle        string
	TimeLimit        int // minutes, 0 = untimed
	PassScore        int
	ShuffleQuestions bool
	QuestionLimit    int // 0 = no cap
	ShowResult       bool
}

// Result is the frozen product of one completed attempt.
type Result struct {
	Outcome
	TestID    uint            `json:"test_id"`
	TestTitle string          `json:"test_title"`
	UserID    uint            `json:"user_id"`
	Duration  int             `json:"duration"` // seconds
	Answers   map[uint]Answer `json:"answers"`
}

// ReviewItem is one question of the read-only post-submission review.
type ReviewItem struct {
	Question       Question `json:"question"`
	Answer         *Answer  `json:"answer,omitempty"`
	Graded         bool     `json:"graded"` // false for text questions
	Correct        bool     `json:"correct"`
	CorrectOptions []int    `json:"correct_options,omitempty"`
}

// Session owns one user's run through a test: the question sequence, the
// answer ledger, the current position and the countdown. Every state
// transition funnels through the mutex so a timer expiry racing a manual
// submission still produces exactly one result.
type Session struct {
	mu sync.Mutex

	id     string
	userID uint
	cfg    Config

	questions []Question
	answers   map[uint]Answer
	current   int

	started    time.Time
	lastActive time.Time
	deadline   time.Time
	timer      *time.Timer
	timerState TimerState

	finished   bool
	finishedAt time.Time
	result     *Result

	// onComplete runs exactly once per attempt, after grading. Used to
	// persist the result; a failure there must not affect the session.
	onComplete func(*Result)
}

// New builds a session over the given questions, applying the test's shuffle
// and question-limit settings, and starts the countdown if the test is timed.
func New(cfg Config, questions []Question, userID uint, onComplete func(*Result)) *Session {
	qs := make([]Question, len(questions))
	copy(qs, questions)

	if cfg.ShuffleQuestions {
		shuffle(qs)
	}
	if cfg.QuestionLimit > 0 && cfg.QuestionLimit < len(qs) {
		qs = qs[:cfg.QuestionLimit]
	}

	now := time.Now()
	s := &Session{
		id:         uuid.NewString(),
		userID:     userID,
		cfg:        cfg,
		questions:  qs,
		answers:    make(map[uint]Answer),
		started:    now,
		lastActive: now,
		onComplete: onComplete,
	}

	if cfg.TimeLimit > 0 {
		limit := time.Duration(cfg.TimeLimit) * time.Minute
		s.deadline = s.started.Add(limit)
		s.timerState = TimerRunning
		s.timer = time.AfterFunc(limit, s.expire)
	}

	return s
}

// shuffle runs Fisher-Yates over the question sequence.
func shuffle(qs []Question) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := len(qs) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		qs[i], qs[j] = qs[j], qs[i]
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) UserID() uint {
	return s.userID
}

func (s *Session) Config() Config {
	return s.cfg
}

func (s *Session) Len() int {
	return len(s.questions)
}

// Current returns the question on screen and its position.
func (s *Session) Current() (Question, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.questions) == 0 {
		return Question{}, 0
	}
	return s.questions[s.current], s.current
}

// GoTo moves to the given position, clamped into the valid range.
func (s *Session) GoTo(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || len(s.questions) == 0 {
		index = 0
	} else if index > len(s.questions)-1 {
		index = len(s.questions) - 1
	}
	s.current = index
	s.lastActive = time.Now()
	return s.current
}

// Advance moves by direction (-1 previous, +1 next), clamped.
func (s *Session) Advance(direction int) int {
	s.mu.Lock()
	index := s.current + direction
	s.mu.Unlock()
	return s.GoTo(index)
}

// Progress is the answered share of the question sequence in percent. Any
// ledger entry counts, including an explicitly saved empty text answer.
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.questions) == 0 {
		return 0
	}
	return float64(len(s.answers)) / float64(len(s.questions)) * 100
}

// Status reports, per question position, whether the ledger holds an entry.
func (s *Session) Status() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make([]bool, len(s.questions))
	for i, q := range s.questions {
		_, status[i] = s.answers[q.ID]
	}
	return status
}

// SelectOption records a single-select answer for a choice question,
// overwriting any prior entry. Answering the question currently on screen
// advances to the next one, mirroring the auto-advance of the test UI.
func (s *Session) SelectOption(questionID uint, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return ErrFinished
	}

	q, index := s.findQuestion(questionID)
	if q == nil {
		return ErrUnknownQuestion
	}
	if q.Type == models.QuestionText {
		return ErrNotChoice
	}
	if option < 0 || option >= len(q.Options) {
		return ErrInvalidOption
	}

	s.answers[questionID] = Answer{Choice: option}
	s.lastActive = time.Now()

	if index == s.current && s.current < len(s.questions)-1 {
		s.current++
	}
	return nil
}

// SetTextAnswer records a free-text answer verbatim, empty strings included.
func (s *Session) SetTextAnswer(questionID uint, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return ErrFinished
	}

	q, _ := s.findQuestion(questionID)
	if q == nil {
		return ErrUnknownQuestion
	}
	if q.Type != models.QuestionText {
		return ErrNotText
	}

	s.answers[questionID] = Answer{Text: value, IsText: true}
	s.lastActive = time.Now()
	return nil
}

func (s *Session) findQuestion(questionID uint) (*Question, int) {
	for i := range s.questions {
		if s.questions[i].ID == questionID {
			return &s.questions[i], i
		}
	}
	return nil, -1
}

// Remaining returns the seconds left on the countdown. The second return is
// false for untimed attempts.
func (s *Session) Remaining() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timerState == TimerIdle {
		return 0, false
	}

	secs := int(time.Until(s.deadline).Seconds())
	if secs < 0 || s.finished {
		secs = 0
	}
	return secs, true
}

func (s *Session) TimerState() TimerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timerState
}

// Finished reports whether the attempt has been submitted.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Stale reports whether the registry sweep may drop this attempt: a submitted
// one once finishedAfter has passed since grading, an unfinished one once
// abandonedAfter has passed since the taker last navigated or answered.
func (s *Session) Stale(now time.Time, finishedAfter, abandonedAfter time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return now.Sub(s.finishedAt) > finishedAfter
	}
	return now.Sub(s.lastActive) > abandonedAfter
}

// expire fires when the countdown reaches zero and forces submission,
// bypassing the unanswered-questions confirmation. A session already
// submitted by the user is left untouched.
func (s *Session) expire() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.timerState = TimerExpired
	result := s.finishLocked()
	s.mu.Unlock()

	if s.onComplete != nil {
		s.onComplete(result)
	}
}

// Submit concludes the attempt. Without force, it refuses while questions
// remain unanswered so the caller can confirm with the user first. A second
// call, from any path, returns ErrFinished without a second result.
func (s *Session) Submit(force bool) (*Result, error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return nil, ErrFinished
	}

	if !force {
		if left := len(s.questions) - len(s.answers); left > 0 {
			s.mu.Unlock()
			return nil, &UnansweredError{Remaining: left}
		}
	}

	result := s.finishLocked()
	s.mu.Unlock()

	if s.onComplete != nil {
		s.onComplete(result)
	}
	return result, nil
}

// finishLocked stops the countdown, freezes the ledger and grades it.
// Callers hold the mutex and have checked the finished flag.
func (s *Session) finishLocked() *Result {
	s.finished = true
	s.finishedAt = time.Now()
	if s.timer != nil {
		s.timer.Stop()
	}

	frozen := make(map[uint]Answer, len(s.answers))
	for id, answer := range s.answers {
		frozen[id] = answer
	}

	s.result = &Result{
		Outcome:   Score(s.questions, frozen, s.cfg.PassScore),
		TestID:    s.cfg.TestID,
		TestTitle: s.cfg.TestTitle,
		UserID:    s.userID,
		Duration:  int(math.Round(time.Since(s.started).Seconds())),
		Answers:   frozen,
	}
	return s.result
}

// Result returns the frozen result of a submitted attempt.
func (s *Session) Result() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finished {
		return nil, ErrNotSubmitted
	}
	return s.result, nil
}

// Review re-renders every question with the answer frozen at submission time
// and a correctness judgment for auto-graded types. It reads only the frozen
// snapshot, so it can never move the score or the ledger.
func (s *Session) Review() ([]ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finished {
		return nil, ErrNotSubmitted
	}

	items := make([]ReviewItem, 0, len(s.questions))
	for _, q := range s.questions {
		item := ReviewItem{Question: q}

		if answer, ok := s.result.Answers[q.ID]; ok {
			saved := answer
			item.Answer = &saved
		}

		if q.Type != models.QuestionText {
			item.Graded = true
			item.Correct = item.Answer != nil && !item.Answer.IsText && q.Correct[item.Answer.Choice]

			for idx := range q.Correct {
				item.CorrectOptions = append(item.CorrectOptions, idx)
			}
			sort.Ints(item.CorrectOptions)
		}

		items = append(items, item)
	}
	return items, nil
}
