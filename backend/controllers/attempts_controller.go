package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"

	"testpro/backend/config"
	"testpro/backend/models"
	"testpro/backend/session"
	"testpro/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AttemptsController runs the test-taking flow: it loads a test into an
// in-memory session, relays navigation and answers to it, and persists the
// graded result when the session concludes.
type AttemptsController struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Sessions *session.Manager
	Logger   *log.Logger
}

func NewAttemptsController(db *gorm.DB, cfg *config.Config, sessions *session.Manager, logger *log.Logger) *AttemptsController {
	return &AttemptsController{DB: db, Cfg: cfg, Sessions: sessions, Logger: logger}
}

func questionView(q session.Question) fiber.Map {
	return fiber.Map{
		"id":      q.ID,
		"type":    q.Type,
		"text":    q.Text,
		"options": q.Options,
		"points":  q.Points,
	}
}

func (ac *AttemptsController) stateView(s *session.Session) fiber.Map {
	current, index := s.Current()
	remaining, timed := s.Remaining()

	state := fiber.Map{
		"session_id": s.ID(),
		"question":   questionView(current),
		"index":      index,
		"total":      s.Len(),
		"progress":   s.Progress(),
		"answered":   s.Status(),
		"finished":   s.Finished(),
	}
	if timed {
		state["remaining"] = remaining
	}
	return state
}

func (ac *AttemptsController) StartAttempt(c *fiber.Ctx) error {
	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	// Public tests can be taken anonymously, so auth is best-effort here.
	userID, authErr := utils.ExtractUserIDFromToken(c, ac.Cfg)

	var test models.Test
	if err := ac.DB.First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "This test does not exist or was deleted")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if test.Visibility == "private" && authErr != nil {
		return utils.Unauthorized(c, "This test requires an account")
	}
	if authErr != nil {
		userID = 0
	}

	var stored []models.Question
	if err := ac.DB.Where("test_id = ?", test.ID).Order("sequence_order").Find(&stored).Error; err != nil {
		return utils.InternalServerError(c, "Could not load questions")
	}
	if len(stored) == 0 {
		return utils.NotFound(c, "This test has no questions")
	}

	questions := make([]session.Question, 0, len(stored))
	for _, q := range stored {
		questions = append(questions, session.FromModel(q))
	}

	cfg := session.Config{
		TestID:           test.ID,
		TestTitle:        test.Title,
		TimeLimit:        test.TimeLimit,
		PassScore:        test.PassScore,
		ShuffleQuestions: test.ShuffleQuestions,
		QuestionLimit:    test.QuestionLimit,
		ShowResult:       test.ShowResult,
	}

	s := session.New(cfg, questions, userID, ac.persistResult)
	ac.Sessions.Add(s)

	response := ac.stateView(s)
	response["test"] = fiber.Map{
		"id":         test.ID,
		"title":      test.Title,
		"time_limit": test.TimeLimit,
		"pass_score": test.PassScore,
	}
	return c.JSON(response)
}

// persistResult writes the frozen result and bumps the denormalized counters
// on the test and the user. The write is best-effort: the locally computed
// result stands even if the database rejects it.
func (ac *AttemptsController) persistResult(res *session.Result) {
	if res.UserID == 0 {
		return
	}

	answersJSON, err := json.Marshal(res.Answers)
	if err != nil {
		ac.Logger.Printf("result save failed for test %d: %v", res.TestID, err)
		return
	}

	record := models.Result{
		TestID:    res.TestID,
		TestTitle: res.TestTitle,
		UserID:    res.UserID,
		Score:     res.Score,
		Correct:   res.Correct,
		Total:     res.Total,
		EarnedPts: res.EarnedPts,
		TotalPts:  res.TotalPts,
		Duration:  res.Duration,
		Answers:   string(answersJSON),
		Passed:    res.Passed,
	}

	if err := ac.DB.Create(&record).Error; err != nil {
		ac.Logger.Printf("result save failed for test %d: %v", res.TestID, err)
		return
	}

	var test models.Test
	if err := ac.DB.First(&test, res.TestID).Error; err == nil {
		test.AvgScore = (test.AvgScore*float64(test.Attempts) + float64(res.Score)) / float64(test.Attempts+1)
		test.Attempts++
		if err := ac.DB.Save(&test).Error; err != nil {
			ac.Logger.Printf("attempt counter update failed for test %d: %v", res.TestID, err)
		}
	}

	if err := ac.DB.Model(&models.User{}).Where("id = ?", res.UserID).
		Update("total_attempts", gorm.Expr("total_attempts + 1")).Error; err != nil {
		ac.Logger.Printf("attempt counter update failed for user %d: %v", res.UserID, err)
	}
}

// sessionFromRequest resolves the attempt, checks it belongs to the test in
// the path and checks the requester owns it.
func (ac *AttemptsController) sessionFromRequest(c *fiber.Ctx) (*session.Session, error) {
	s, ok := ac.Sessions.Get(c.Params("sid"))
	if !ok {
		return nil, utils.NotFound(c, "Attempt not found or expired")
	}

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil || uint(testID) != s.Config().TestID {
		return nil, utils.NotFound(c, "Attempt not found or expired")
	}

	if s.UserID() != 0 {
		userID, err := utils.ExtractUserIDFromToken(c, ac.Cfg)
		if err != nil || userID != s.UserID() {
			return nil, utils.Unauthorized(c, "Unauthorized")
		}
	}
	return s, nil
}

func (ac *AttemptsController) GetAttempt(c *fiber.Ctx) error {
	s, errResp := ac.sessionFromRequest(c)
	if s == nil {
		return errResp
	}
	return c.JSON(ac.stateView(s))
}

func (ac *AttemptsController) SaveAnswer(c *fiber.Ctx) error {
	s, errResp := ac.sessionFromRequest(c)
	if s == nil {
		return errResp
	}

	var input struct {
		QuestionID uint    `json:"question_id"`
		Choice     *int    `json:"choice"`
		Text       *string `json:"text"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	var err error
	switch {
	case input.Choice != nil:
		err = s.SelectOption(input.QuestionID, *input.Choice)
	case input.Text != nil:
		err = s.SetTextAnswer(input.QuestionID, *input.Text)
	default:
		return utils.BadRequest(c, "Either choice or text is required")
	}

	switch {
	case errors.Is(err, session.ErrFinished):
		return utils.Error(c, fiber.StatusConflict, "Attempt already submitted")
	case errors.Is(err, session.ErrUnknownQuestion):
		return utils.NotFound(c, "Question not found in this attempt")
	case err != nil:
		return utils.BadRequest(c, err.Error())
	}

	return c.JSON(ac.stateView(s))
}

func (ac *AttemptsController) SetPosition(c *fiber.Ctx) error {
	s, errResp := ac.sessionFromRequest(c)
	if s == nil {
		return errResp
	}

	var input struct {
		Index     *int `json:"index"`
		Direction *int `json:"direction"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	switch {
	case input.Index != nil:
		s.GoTo(*input.Index)
	case input.Direction != nil:
		s.Advance(*input.Direction)
	default:
		return utils.BadRequest(c, "Either index or direction is required")
	}

	return c.JSON(ac.stateView(s))
}

func (ac *AttemptsController) SubmitAttempt(c *fiber.Ctx) error {
	s, errResp := ac.sessionFromRequest(c)
	if s == nil {
		return errResp
	}

	confirmed := c.Query("confirm") == "true"

	result, err := s.Submit(confirmed)
	var unanswered *session.UnansweredError
	switch {
	case errors.As(err, &unanswered):
		return utils.Error(c, fiber.StatusConflict,
			"Unanswered questions remain, resubmit with confirm=true to finish",
			fiber.Map{"unanswered": unanswered.Remaining})
	case errors.Is(err, session.ErrFinished):
		return utils.Error(c, fiber.StatusConflict, "Attempt already submitted")
	case err != nil:
		return utils.InternalServerError(c, "Could not submit attempt")
	}

	if !s.Config().ShowResult {
		return c.JSON(fiber.Map{"message": "Result recorded"})
	}

	return c.JSON(fiber.Map{
		"result": result,
	})
}

// GetResult serves the frozen result, e.g. after a timer-forced submission
// that the client only observes on its next poll.
func (ac *AttemptsController) GetResult(c *fiber.Ctx) error {
	s, errResp := ac.sessionFromRequest(c)
	if s == nil {
		return errResp
	}

	result, err := s.Result()
	if errors.Is(err, session.ErrNotSubmitted) {
		return utils.Error(c, fiber.StatusConflict, "Attempt not submitted yet")
	}

	if !s.Config().ShowResult {
		return c.JSON(fiber.Map{"message": "Result recorded"})
	}

	return c.JSON(fiber.Map{
		"result": result,
	})
}

func (ac *AttemptsController) ReviewAttempt(c *fiber.Ctx) error {
	s, errResp := ac.sessionFromRequest(c)
	if s == nil {
		return errResp
	}

	items, err := s.Review()
	if errors.Is(err, session.ErrNotSubmitted) {
		return utils.Error(c, fiber.StatusConflict, "Attempt not submitted yet")
	}
	if err != nil {
		return utils.InternalServerError(c, "Could not build review")
	}

	return c.JSON(fiber.Map{
		"review": items,
	})
}
