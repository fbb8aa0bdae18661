package controllers

import (
	"strconv"
	"time"

	"testpro/backend/config"
	"testpro/backend/models"
	"testpro/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AdminController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewAdminController(db *gorm.DB, cfg *config.Config) *AdminController {
	return &AdminController{DB: db, Cfg: cfg}
}

// GetPlatformStats aggregates the admin dashboard numbers: collection counts,
// the platform-wide average score and a last-7-days activity histogram.
func (ac *AdminController) GetPlatformStats(c *fiber.Ctx) error {
	var totalUsers, totalTests, totalResults int64
	ac.DB.Model(&models.User{}).Count(&totalUsers)
	ac.DB.Model(&models.Test{}).Count(&totalTests)
	ac.DB.Model(&models.Result{}).Count(&totalResults)

	var avgScore float64
	ac.DB.Model(&models.Result{}).Select("COALESCE(AVG(score), 0)").Scan(&avgScore)

	// Bucket the last week's results per day, oldest bucket first.
	weekAgo := time.Now().AddDate(0, 0, -6).Truncate(24 * time.Hour)
	var recent []models.Result
	ac.DB.Where("created_at >= ?", weekAgo).Find(&recent)

	activity := make([]fiber.Map, 0, 7)
	for i := 0; i < 7; i++ {
		dayStart := weekAgo.AddDate(0, 0, i)
		dayEnd := dayStart.AddDate(0, 0, 1)

		count := 0
		for _, r := range recent {
			if !r.CreatedAt.Before(dayStart) && r.CreatedAt.Before(dayEnd) {
				count++
			}
		}
		activity = append(activity, fiber.Map{
			"date":  dayStart.Format("2006-01-02"),
			"count": count,
		})
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"total_users":   totalUsers,
		"total_tests":   totalTests,
		"total_results": totalResults,
		"avg_score":     avgScore,
		"activity":      activity,
	})
}

func (ac *AdminController) GetUsers(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var users []models.User
	if err := ac.DB.Order("created_at desc").Limit(limit).Find(&users).Error; err != nil {
		return utils.InternalServerError(c, "Could not query users")
	}

	response := make([]fiber.Map, 0, len(users))
	for _, u := range users {
		response = append(response, fiber.Map{
			"id":             u.ID,
			"name":           u.Name,
			"email":          u.Email,
			"role":           u.Role,
			"total_attempts": u.TotalAttempts,
			"created_at":     u.CreatedAt,
		})
	}
	return c.JSON(response)
}

func (ac *AdminController) UpdateUserRole(c *fiber.Ctx) error {
	userID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid user ID")
	}

	var input struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.Role != "admin" && input.Role != "user" {
		return utils.BadRequest(c, "Role must be admin or user")
	}

	var user models.User
	if err := ac.DB.First(&user, userID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}

	user.Role = input.Role
	if err := ac.DB.Save(&user).Error; err != nil {
		return utils.InternalServerError(c, "Could not update user")
	}

	return c.JSON(fiber.Map{
		"message": "Role updated",
		"user": fiber.Map{
			"id":   user.ID,
			"role": user.Role,
		},
	})
}

func (ac *AdminController) DeleteUser(c *fiber.Ctx) error {
	userID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid user ID")
	}

	var user models.User
	if err := ac.DB.First(&user, userID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}

	if err := ac.DB.Delete(&user).Error; err != nil {
		return utils.InternalServerError(c, "Could not delete user")
	}

	return c.JSON(fiber.Map{
		"message": "User deleted",
	})
}

func (ac *AdminController) GetRecentResults(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var results []models.Result
	if err := ac.DB.Order("created_at desc").Limit(limit).Find(&results).Error; err != nil {
		return utils.InternalServerError(c, "Could not query results")
	}

	response := make([]fiber.Map, 0, len(results))
	for _, r := range results {
		view := resultView(r)
		view["user_id"] = r.UserID
		response = append(response, view)
	}
	return c.JSON(response)
}
