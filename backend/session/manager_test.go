package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManager(t *testing.T) {
	m := NewManager()

	s := New(Config{TestID: 1}, []Question{choiceQuestion(1, 1, 0)}, 1, nil)
	m.Add(s)

	got, ok := m.Get(s.ID())
	assert.True(t, ok)
	assert.Same(t, s, got)

	_, ok = m.Get("missing")
	assert.False(t, ok)

	m.Remove(s.ID())
	_, ok = m.Get(s.ID())
	assert.False(t, ok)
}

// Finished attempts must not stay registered forever: anyone can start
// attempts on a public test without an account, so the registry has to
// shrink again once attempts conclude or go quiet.
func TestSweepEvictsFinishedSessions(t *testing.T) {
	m := NewManager()

	for i := 0; i < 50; i++ {
		s := New(Config{TestID: 1}, []Question{choiceQuestion(1, 1, 0)}, 0, nil)
		m.Add(s)
		_, err := s.Submit(true)
		assert.NoError(t, err)
	}
	assert.Equal(t, 50, m.Len())

	// Within the retention window the results stay readable.
	assert.Equal(t, 0, m.Sweep(time.Now()))
	assert.Equal(t, 50, m.Len())

	removed := m.Sweep(time.Now().Add(FinishedRetention + time.Minute))
	assert.Equal(t, 50, removed)
	assert.Equal(t, 0, m.Len())
}

func TestSweepEvictsAbandonedSessionsOnly(t *testing.T) {
	m := NewManager()

	abandoned := New(Config{TestID: 1}, []Question{choiceQuestion(1, 1, 0)}, 0, nil)
	m.Add(abandoned)

	// An unfinished attempt survives far past the finished-attempt window.
	assert.Equal(t, 0, m.Sweep(time.Now().Add(FinishedRetention+time.Minute)))

	removed := m.Sweep(time.Now().Add(AbandonedRetention + time.Minute))
	assert.Equal(t, 1, removed)
	_, ok := m.Get(abandoned.ID())
	assert.False(t, ok)
}

func TestAnsweringKeepsSessionFresh(t *testing.T) {
	m := NewManager()

	s := New(Config{TestID: 1}, []Question{choiceQuestion(1, 1, 0)}, 0, nil)
	m.Add(s)

	// Activity resets the abandonment clock.
	assert.NoError(t, s.SelectOption(1, 0))
	assert.False(t, s.Stale(time.Now().Add(time.Minute), FinishedRetention, AbandonedRetention))
	assert.Equal(t, 0, m.Sweep(time.Now().Add(time.Minute)))

	// Submitting switches it to the shorter finished-attempt window.
	_, err := s.Submit(true)
	assert.NoError(t, err)
	assert.Equal(t, 1, m.Sweep(time.Now().Add(FinishedRetention+time.Minute)))
}
