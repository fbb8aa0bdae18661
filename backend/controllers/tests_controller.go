package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"testpro/backend/config"
	"testpro/backend/models"
	"testpro/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TestsController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewTestsController(db *gorm.DB, cfg *config.Config) *TestsController {
	return &TestsController{DB: db, Cfg: cfg}
}

type QuestionInput struct {
	Type    string   `json:"type"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Correct []int    `json:"correct"`
	Points  int      `json:"points"`
}

type TestInput struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Visibility       string          `json:"visibility"`
	TimeLimit        int             `json:"time_limit"`
	PassScore        int             `json:"pass_score"`
	ShuffleQuestions bool            `json:"shuffle_questions"`
	ShowResult       *bool           `json:"show_result"`
	QuestionLimit    int             `json:"question_limit"`
	Questions        []QuestionInput `json:"questions"`
}

// TestUpdateInput uses pointers throughout so an omitted field keeps its
// stored value instead of being reset to the zero value.
type TestUpdateInput struct {
	Title            *string         `json:"title"`
	Description      *string         `json:"description"`
	Visibility       *string         `json:"visibility"`
	TimeLimit        *int            `json:"time_limit"`
	PassScore        *int            `json:"pass_score"`
	ShuffleQuestions *bool           `json:"shuffle_questions"`
	ShowResult       *bool           `json:"show_result"`
	QuestionLimit    *int            `json:"question_limit"`
	Questions        []QuestionInput `json:"questions"`
}

// validateQuestions enforces the question shape rules: 2 options for
// true/false, 2-6 for multiple choice, none for free text, and every correct
// index inside the option range.
func validateQuestions(questions []QuestionInput) error {
	if len(questions) == 0 {
		return errors.New("at least one question is required")
	}

	for i, q := range questions {
		n := i + 1
		if q.Text == "" {
			return fmt.Errorf("question %d has no text", n)
		}

		switch q.Type {
		case models.QuestionText:
			if len(q.Options) != 0 {
				return fmt.Errorf("question %d is a text question and takes no options", n)
			}
			continue
		case models.QuestionTrueFalse:
			if len(q.Options) != 2 {
				return fmt.Errorf("question %d must have exactly 2 options", n)
			}
		case models.QuestionMultiple:
			if len(q.Options) < 2 || len(q.Options) > 6 {
				return fmt.Errorf("question %d must have 2 to 6 options", n)
			}
		default:
			return fmt.Errorf("question %d has unknown type %q", n, q.Type)
		}

		for _, opt := range q.Options {
			if opt == "" {
				return fmt.Errorf("question %d has an empty option", n)
			}
		}

		if len(q.Correct) == 0 {
			return fmt.Errorf("question %d has no correct answer", n)
		}
		for _, idx := range q.Correct {
			if idx < 0 || idx >= len(q.Options) {
				return fmt.Errorf("question %d has an out-of-range correct index", n)
			}
		}
	}
	return nil
}

func buildQuestions(testID uint, inputs []QuestionInput) ([]models.Question, error) {
	questions := make([]models.Question, 0, len(inputs))
	for i, q := range inputs {
		optionsJSON, err := json.Marshal(q.Options)
		if err != nil {
			return nil, err
		}
		correctJSON, err := json.Marshal(q.Correct)
		if err != nil {
			return nil, err
		}

		points := q.Points
		if points <= 0 {
			points = 1
		}

		questions = append(questions, models.Question{
			TestID:        testID,
			Type:          q.Type,
			Text:          q.Text,
			Options:       string(optionsJSON),
			Correct:       string(correctJSON),
			Points:        points,
			SequenceOrder: i,
		})
	}
	return questions, nil
}

func (tc *TestsController) canEdit(userID uint, test *models.Test) bool {
	if test.AuthorID == userID {
		return true
	}
	var user models.User
	if err := tc.DB.First(&user, userID).Error; err != nil {
		return false
	}
	return user.Role == "admin"
}

func (tc *TestsController) GetPublicTests(c *fiber.Ctx) error {
	query := tc.DB.Model(&models.Test{}).Where("visibility = ?", "public").Order("created_at desc")

	if search := c.Query("search"); search != "" {
		query = query.Where("title ILIKE ?", "%"+search+"%")
	}

	var tests []models.Test
	if err := query.Find(&tests).Error; err != nil {
		return utils.InternalServerError(c, "Could not query tests")
	}

	result := make([]fiber.Map, 0, len(tests))
	for _, test := range tests {
		result = append(result, fiber.Map{
			"id":             test.ID,
			"title":          test.Title,
			"description":    test.Description,
			"question_count": test.QuestionCount,
			"attempts":       test.Attempts,
			"time_limit":     test.TimeLimit,
			"created_at":     test.CreatedAt,
		})
	}

	return c.JSON(result)
}

func (tc *TestsController) GetMyTests(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var tests []models.Test
	if err := tc.DB.Where("author_id = ?", userID).Order("created_at desc").Find(&tests).Error; err != nil {
		return utils.InternalServerError(c, "Could not query tests")
	}

	result := make([]fiber.Map, 0, len(tests))
	for _, test := range tests {
		result = append(result, fiber.Map{
			"id":             test.ID,
			"title":          test.Title,
			"visibility":     test.Visibility,
			"question_count": test.QuestionCount,
			"attempts":       test.Attempts,
			"avg_score":      test.AvgScore,
			"created_at":     test.CreatedAt,
		})
	}

	return c.JSON(result)
}

func (tc *TestsController) GetTestDetails(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	var test models.Test
	if err := tc.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence_order")
	}).First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Test not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	editor := tc.canEdit(userID, &test)

	questions := make([]fiber.Map, 0, len(test.Questions))
	for _, q := range test.Questions {
		item := fiber.Map{
			"id":      q.ID,
			"type":    q.Type,
			"text":    q.Text,
			"options": q.OptionList(),
			"points":  q.Points,
			"order":   q.SequenceOrder,
		}
		// Correct answers are only visible in the authoring view.
		if editor {
			item["correct"] = q.CorrectSet()
		}
		questions = append(questions, item)
	}

	return c.JSON(fiber.Map{
		"test": fiber.Map{
			"id":                test.ID,
			"title":             test.Title,
			"description":       test.Description,
			"author":            test.AuthorID,
			"visibility":        test.Visibility,
			"time_limit":        test.TimeLimit,
			"pass_score":        test.PassScore,
			"shuffle_questions": test.ShuffleQuestions,
			"show_result":       test.ShowResult,
			"question_limit":    test.QuestionLimit,
			"attempts":          test.Attempts,
			"avg_score":         test.AvgScore,
			"questions":         questions,
		},
	})
}

func (tc *TestsController) CreateTest(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var input TestInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	if input.Title == "" {
		return utils.BadRequest(c, "Test title is required")
	}
	if err := validateQuestions(input.Questions); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	visibility := input.Visibility
	if visibility != "private" {
		visibility = "public"
	}
	passScore := input.PassScore
	if passScore <= 0 {
		passScore = 60
	}
	showResult := true
	if input.ShowResult != nil {
		showResult = *input.ShowResult
	}

	test := models.Test{
		Title:            input.Title,
		Description:      input.Description,
		AuthorID:         userID,
		Visibility:       visibility,
		TimeLimit:        input.TimeLimit,
		PassScore:        passScore,
		ShuffleQuestions: input.ShuffleQuestions,
		ShowResult:       showResult,
		QuestionLimit:    input.QuestionLimit,
		QuestionCount:    len(input.Questions),
	}

	if err := tc.DB.Create(&test).Error; err != nil {
		return utils.InternalServerError(c, "Could not create test")
	}

	questions, err := buildQuestions(test.ID, input.Questions)
	if err != nil {
		return utils.InternalServerError(c, "Could not encode questions")
	}
	if err := tc.DB.Create(&questions).Error; err != nil {
		return utils.InternalServerError(c, "Could not create questions")
	}

	return c.JSON(fiber.Map{
		"message": "Test created",
		"test": fiber.Map{
			"id":             test.ID,
			"title":          test.Title,
			"question_count": test.QuestionCount,
		},
	})
}

func (tc *TestsController) UpdateTest(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	var test models.Test
	if err := tc.DB.First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Test not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if !tc.canEdit(userID, &test) {
		return utils.Forbidden(c, "You don't have permission to edit this test")
	}

	var input TestUpdateInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	if input.Title != nil && *input.Title != "" {
		test.Title = *input.Title
	}
	if input.Description != nil {
		test.Description = *input.Description
	}
	if input.Visibility != nil && (*input.Visibility == "public" || *input.Visibility == "private") {
		test.Visibility = *input.Visibility
	}
	if input.TimeLimit != nil {
		test.TimeLimit = *input.TimeLimit
	}
	if input.PassScore != nil && *input.PassScore > 0 {
		test.PassScore = *input.PassScore
	}
	if input.ShuffleQuestions != nil {
		test.ShuffleQuestions = *input.ShuffleQuestions
	}
	if input.ShowResult != nil {
		test.ShowResult = *input.ShowResult
	}
	if input.QuestionLimit != nil {
		test.QuestionLimit = *input.QuestionLimit
	}

	// A non-empty question list replaces the existing set wholesale, the way
	// the test editor saves.
	if len(input.Questions) > 0 {
		if err := validateQuestions(input.Questions); err != nil {
			return utils.BadRequest(c, err.Error())
		}

		if err := tc.DB.Unscoped().Where("test_id = ?", test.ID).Delete(&models.Question{}).Error; err != nil {
			return utils.InternalServerError(c, "Could not replace questions")
		}
		questions, err := buildQuestions(test.ID, input.Questions)
		if err != nil {
			return utils.InternalServerError(c, "Could not encode questions")
		}
		if err := tc.DB.Create(&questions).Error; err != nil {
			return utils.InternalServerError(c, "Could not replace questions")
		}
		test.QuestionCount = len(input.Questions)
	}

	if err := tc.DB.Save(&test).Error; err != nil {
		return utils.InternalServerError(c, "Could not update test")
	}

	return c.JSON(fiber.Map{
		"message": "Test updated",
		"test": fiber.Map{
			"id":             test.ID,
			"title":          test.Title,
			"question_count": test.QuestionCount,
		},
	})
}

func (tc *TestsController) DeleteTest(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	var test models.Test
	if err := tc.DB.First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Test not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if !tc.canEdit(userID, &test) {
		return utils.Forbidden(c, "You don't have permission to delete this test")
	}

	// Questions go with the test; past results stay for history.
	if err := tc.DB.Unscoped().Where("test_id = ?", test.ID).Delete(&models.Question{}).Error; err != nil {
		return utils.InternalServerError(c, "Could not delete questions")
	}
	if err := tc.DB.Delete(&test).Error; err != nil {
		return utils.InternalServerError(c, "Could not delete test")
	}

	return c.JSON(fiber.Map{
		"message": "Test deleted",
	})
}
