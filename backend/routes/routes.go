package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"learnhub/backend/config"
	"learnhub/backend/controllers"
	"learnhub/backend/middleware"
	"learnhub/backend/services"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, media *services.MediaStore, logger *log.Logger) {
	authMiddleware := middleware.AuthMiddleware(db, cfg)

	// Auth routes
	authController := controllers.NewAuthController(db, cfg, media, logger)
	app.Post("/api/auth/signup", authController.Signup)
	app.Post("/api/auth/login", authController.Login)

	// User routes
	userController := controllers.NewUserController(db, cfg, media, logger)
	app.Get("/api/users/profile", authMiddleware, userController.GetProfile)
	app.Put("/api/users/profile/update", authMiddleware, userController.UpdateProfile)
	app.Get("/api/users/:id/details", authMiddleware, userController.GetUserDetails)

	// General routes (categories)
	categoryController := controllers.NewCategoryController(db, cfg, logger)
	app.Get("/api/general/categories", categoryController.GetCategories)
	app.Post("/api/general/categories", authMiddleware, categoryController.CreateCategory)

	coursesController := controllers.NewCoursesController(db, cfg, media, logger)
	enrollmentController := controllers.NewEnrollmentController(db, cfg, media, logger)
	reviewController := controllers.NewReviewController(db, cfg, media, logger)

	// Public course views go before the authenticated group so they are
	// matched first
	app.Get("/api/courses/:id/explore-detail", coursesController.GetExploreCourseDetail)
	app.Get("/api/courses/:id/reviews", reviewController.GetCourseReviews)

	// Courses routes; fixed paths are registered before parameterized ones
	courses := app.Group("/api/courses", authMiddleware)
	courses.Get("/created", coursesController.GetCreatedCourses)
	courses.Get("/enrolled", enrollmentController.GetEnrolledCourses)
	courses.Get("/explore", coursesController.ExploreCourses)
	courses.Post("/", coursesController.CreateCourse)
	courses.Put("/:id", coursesController.UpdateCourse)
	courses.Get("/:id/manage", coursesController.GetCourseForManage)
	courses.Get("/:id/enrolled-detail", enrollmentController.GetEnrolledCourseDetail)
	courses.Get("/:id/enrollment-details", enrollmentController.GetEnrollmentDetails)
	courses.Post("/:id/enroll", enrollmentController.Enroll)
	courses.Post("/:id/lessons", coursesController.AddLesson)
	courses.Put("/:id/lessons/:lessonId", coursesController.UpdateLesson)
	courses.Delete("/:id/lessons/:lessonId", coursesController.DeleteLesson)
	courses.Post("/:id/lessons/:lessonId/complete", enrollmentController.MarkLessonComplete)
	courses.Post("/:id/review", reviewController.UpsertReview)
	courses.Get("/:id/review", reviewController.GetMyReview)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
}
