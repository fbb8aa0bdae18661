package routes

import (
	"log"

	"testpro/backend/config"
	"testpro/backend/controllers"
	"testpro/backend/middleware"
	"testpro/backend/session"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, logger *log.Logger) {
	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	adminMiddleware := middleware.AdminMiddleware(db, cfg)

	// User routes
	userController := controllers.NewUserController(db, cfg)
	app.Get("/api/user/profile", authMiddleware, userController.GetProfile)
	app.Put("/api/user/profile", authMiddleware, userController.UpdateProfile)

	// Tests routes
	testsController := controllers.NewTestsController(db, cfg)
	tests := app.Group("/api/tests")
	tests.Get("/", testsController.GetPublicTests)
	tests.Get("/mine", authMiddleware, testsController.GetMyTests)
	tests.Get("/:id", authMiddleware, testsController.GetTestDetails)
	tests.Post("/", authMiddleware, testsController.CreateTest)
	tests.Put("/:id", authMiddleware, testsController.UpdateTest)
	tests.Delete("/:id", authMiddleware, testsController.DeleteTest)

	// Attempt routes; starting and running an attempt works without a token
	// on public tests, so ownership is checked inside the controller. The
	// sweeper evicts finished and abandoned attempts from the registry.
	sessions := session.NewManager()
	go sessions.Sweeper(nil)
	attemptsController := controllers.NewAttemptsController(db, cfg, sessions, logger)
	tests.Post("/:id/attempts", attemptsController.StartAttempt)
	tests.Get("/:id/attempts/:sid", attemptsController.GetAttempt)
	tests.Put("/:id/attempts/:sid/answer", attemptsController.SaveAnswer)
	tests.Put("/:id/attempts/:sid/position", attemptsController.SetPosition)
	tests.Post("/:id/attempts/:sid/submit", attemptsController.SubmitAttempt)
	tests.Get("/:id/attempts/:sid/result", attemptsController.GetResult)
	tests.Get("/:id/attempts/:sid/review", attemptsController.ReviewAttempt)

	// Results routes
	resultsController := controllers.NewResultsController(db, cfg)
	app.Get("/api/results", authMiddleware, resultsController.GetMyResults)
	app.Get("/api/results/test/:id", authMiddleware, resultsController.GetTestResults)

	// Admin routes
	adminController := controllers.NewAdminController(db, cfg)
	admin := app.Group("/api/admin", authMiddleware, adminMiddleware)
	admin.Get("/stats", adminController.GetPlatformStats)
	admin.Get("/users", adminController.GetUsers)
	admin.Put("/users/:id/role", adminController.UpdateUserRole)
	admin.Delete("/users/:id", adminController.DeleteUser)
	admin.Get("/results", adminController.GetRecentResults)
}
