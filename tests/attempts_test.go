package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func startAttempt(t *testing.T, token string, testID uint) (string, map[string]interface{}) {
	t.Helper()

	status, state := doJSON(t, http.MethodPost, fmt.Sprintf("/api/tests/%d/attempts", testID), token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("start attempt: status %d (%v)", status, state)
	}
	return state["session_id"].(string), state
}

func TestAttemptLifecycle(t *testing.T) {
	token, _ := registerUser(t, "Attempt User", "attempt@example.com")
	testID := createTest(t, token, map[string]interface{}{
		"title":      "Lifecycle Test",
		"pass_score": 60,
		"questions":  sampleQuestions(3),
	})

	sid, state := startAttempt(t, token, testID)
	base := fmt.Sprintf("/api/tests/%d/attempts/%s", testID, sid)

	assert.Equal(t, float64(3), state["total"])
	assert.Equal(t, float64(0), state["index"])
	question := state["question"].(map[string]interface{})
	assert.NotEmpty(t, question["text"])
	_, leaked := question["correct"]
	assert.False(t, leaked, "attempt state must not expose the answer key")

	// Answer the first question correctly; the engine advances.
	status, state := doJSON(t, http.MethodPut, base+"/answer", token, map[string]interface{}{
		"question_id": uint(question["id"].(float64)),
		"choice":      0,
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), state["index"])
	assert.InDelta(t, 33.3, state["progress"].(float64), 0.1)

	// Unconfirmed submission is refused while questions remain.
	status, result := doJSON(t, http.MethodPost, base+"/submit", token, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, float64(2), result["details"].(map[string]interface{})["unanswered"])

	// Confirmed submission goes through and grades 1/3.
	status, result = doJSON(t, http.MethodPost, base+"/submit?confirm=true", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	graded := result["result"].(map[string]interface{})
	assert.Equal(t, float64(33), graded["score"])
	assert.Equal(t, float64(1), graded["correct"])
	assert.Equal(t, false, graded["passed"])

	// The one-shot guard makes a second submission a no-op.
	status, _ = doJSON(t, http.MethodPost, base+"/submit?confirm=true", token, nil)
	assert.Equal(t, fiber.StatusConflict, status)

	// Review shows every question with the frozen answers.
	status, result = doJSON(t, http.MethodGet, base+"/review", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	review := result["review"].([]interface{})
	assert.Len(t, review, 3)

	// The result landed in the history, exactly once.
	status, history := doJSONList(t, http.MethodGet, "/api/results", token)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, history, 1)
	assert.Equal(t, float64(33), history[0]["score"])
}

func TestAttemptNavigationAndTextAnswers(t *testing.T) {
	token, _ := registerUser(t, "Nav User", "nav@example.com")
	testID := createTest(t, token, map[string]interface{}{
		"title": "Mixed Test",
		"questions": append(sampleQuestions(1), map[string]interface{}{
			"type":    "text",
			"text":    "Write something",
			"options": []string{},
			"points":  1,
		}),
	})

	sid, _ := startAttempt(t, token, testID)
	base := fmt.Sprintf("/api/tests/%d/attempts/%s", testID, sid)

	// Jump to the text question and save an answer verbatim.
	status, state := doJSON(t, http.MethodPut, base+"/position", token, map[string]interface{}{
		"index": 1,
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), state["index"])

	textQ := state["question"].(map[string]interface{})
	status, state = doJSON(t, http.MethodPut, base+"/answer", token, map[string]interface{}{
		"question_id": uint(textQ["id"].(float64)),
		"text":        "my answer",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.InDelta(t, 50.0, state["progress"].(float64), 0.1)

	// Out-of-range positions clamp instead of erroring.
	status, state = doJSON(t, http.MethodPut, base+"/position", token, map[string]interface{}{
		"index": 99,
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), state["index"])

	status, result := doJSON(t, http.MethodPost, base+"/submit?confirm=true", token, nil)
	assert.Equal(t, fiber.StatusOK, status)

	// The text question counts toward points but is not auto-graded.
	graded := result["result"].(map[string]interface{})
	assert.Equal(t, float64(2), graded["total_pts"])
	assert.Equal(t, float64(0), graded["correct"])
}

func TestPrivateTestRequiresAccount(t *testing.T) {
	token, _ := registerUser(t, "Private Author", "private@example.com")
	testID := createTest(t, token, map[string]interface{}{
		"title":      "Members Only",
		"visibility": "private",
		"questions":  sampleQuestions(1),
	})

	status, _ := doJSON(t, http.MethodPost, fmt.Sprintf("/api/tests/%d/attempts", testID), "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = doJSON(t, http.MethodPost, fmt.Sprintf("/api/tests/%d/attempts", testID), token, nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestAttemptCountersUpdate(t *testing.T) {
	token, _ := registerUser(t, "Counter User", "counter@example.com")
	testID := createTest(t, token, map[string]interface{}{
		"title":     "Counted Test",
		"questions": sampleQuestions(1),
	})

	sid, state := startAttempt(t, token, testID)
	base := fmt.Sprintf("/api/tests/%d/attempts/%s", testID, sid)

	question := state["question"].(map[string]interface{})
	doJSON(t, http.MethodPut, base+"/answer", token, map[string]interface{}{
		"question_id": uint(question["id"].(float64)),
		"choice":      0,
	})

	status, _ := doJSON(t, http.MethodPost, base+"/submit", token, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, result := doJSON(t, http.MethodGet, fmt.Sprintf("/api/results/test/%d", testID), token, nil)
	assert.Equal(t, fiber.StatusOK, status)

	test := result["test"].(map[string]interface{})
	assert.Equal(t, float64(1), test["attempts"])
	assert.Equal(t, float64(100), test["avg_score"])
	assert.Len(t, result["results"].([]interface{}), 1)
}

func TestAttemptBoundToItsTest(t *testing.T) {
	token, _ := registerUser(t, "Bound User", "bound@example.com")
	testID := createTest(t, token, map[string]interface{}{
		"title":     "Bound Test",
		"questions": sampleQuestions(1),
	})
	otherID := createTest(t, token, map[string]interface{}{
		"title":     "Other Test",
		"questions": sampleQuestions(1),
	})

	sid, _ := startAttempt(t, token, testID)

	// The session is not addressable under another test's id.
	status, _ := doJSON(t, http.MethodGet, fmt.Sprintf("/api/tests/%d/attempts/%s", otherID, sid), token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = doJSON(t, http.MethodGet, fmt.Sprintf("/api/tests/%d/attempts/%s", testID, sid), token, nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestStartAttemptOnMissingTest(t *testing.T) {
	token, _ := registerUser(t, "Ghost User", "ghost@example.com")

	status, _ := doJSON(t, http.MethodPost, "/api/tests/999999/attempts", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
