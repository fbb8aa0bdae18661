package controllers

import (
	"errors"
	"strconv"

	"testpro/backend/config"
	"testpro/backend/models"
	"testpro/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ResultsController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewResultsController(db *gorm.DB, cfg *config.Config) *ResultsController {
	return &ResultsController{DB: db, Cfg: cfg}
}

func resultView(r models.Result) fiber.Map {
	return fiber.Map{
		"id":           r.ID,
		"test_id":      r.TestID,
		"test_title":   r.TestTitle,
		"score":        r.Score,
		"correct":      r.Correct,
		"total":        r.Total,
		"earned_pts":   r.EarnedPts,
		"total_pts":    r.TotalPts,
		"duration":     r.Duration,
		"passed":       r.Passed,
		"completed_at": r.CreatedAt,
	}
}

// GetMyResults lists the requester's attempt history, newest first.
func (rc *ResultsController) GetMyResults(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, rc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var results []models.Result
	if err := rc.DB.Where("user_id = ?", userID).
		Order("created_at desc").Limit(limit).Find(&results).Error; err != nil {
		return utils.InternalServerError(c, "Could not query results")
	}

	response := make([]fiber.Map, 0, len(results))
	for _, r := range results {
		response = append(response, resultView(r))
	}
	return c.JSON(response)
}

// GetTestResults lists every result for one test; authors and admins only.
func (rc *ResultsController) GetTestResults(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, rc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	var test models.Test
	if err := rc.DB.First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Test not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if test.AuthorID != userID {
		var user models.User
		if err := rc.DB.First(&user, userID).Error; err != nil || user.Role != "admin" {
			return utils.Forbidden(c, "You don't have permission to view these results")
		}
	}

	var results []models.Result
	if err := rc.DB.Where("test_id = ?", testID).
		Order("created_at desc").Find(&results).Error; err != nil {
		return utils.InternalServerError(c, "Could not query results")
	}

	response := make([]fiber.Map, 0, len(results))
	for _, r := range results {
		view := resultView(r)
		view["user_id"] = r.UserID
		response = append(response, view)
	}

	return c.JSON(fiber.Map{
		"test": fiber.Map{
			"id":        test.ID,
			"title":     test.Title,
			"attempts":  test.Attempts,
			"avg_score": test.AvgScore,
		},
		"results": response,
	})
}
