package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"learnhub/backend/config"
	"learnhub/backend/middleware"
	"learnhub/backend/models"
	"learnhub/backend/services"
	"learnhub/backend/utils"
)

type ReviewController struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Media *services.MediaStore
	Log   *log.Logger
}

func NewReviewController(db *gorm.DB, cfg *config.Config, media *services.MediaStore, logger *log.Logger) *ReviewController {
	return &ReviewController{DB: db, Cfg: cfg, Media: media, Log: logger}
}

// UpsertReview creates or updates the caller's review for a course. One
// review per (user, course); an update refreshes rating, comment, and
// timestamp.
func (rc *ReviewController) UpsertReview(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}

	type ReviewInput struct {
		Rating  *int   `json:"rating"`
		Comment string `json:"comment"`
	}
	var input ReviewInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Request body must be JSON.")
	}
	if input.Rating == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Rating is required.")
	}
	rating := *input.Rating
	if rating < 1 || rating > 5 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid rating value.")
	}

	var enrollment models.Enrollment
	if err := rc.DB.Where("learner_id = ? AND course_id = ?", currentUser.ID, courseID).
		First(&enrollment).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "You must be enrolled to review.")
	}

	var review models.Review
	err = rc.DB.Where("user_id = ? AND course_id = ?", currentUser.ID, courseID).First(&review).Error
	switch {
	case err == nil:
		review.Rating = rating
		review.Comment = input.Comment
		if err := rc.DB.Save(&review).Error; err != nil {
			rc.Log.Printf("Error saving review: %v", err)
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Error saving review.")
		}
		review.User = *currentUser
		return utils.SuccessResponse(c, fiber.StatusOK, "Review updated.", fiber.Map{
			"review": reviewMap(rc.Media, &review),
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		saved, created, err := createReview(rc.DB, rating, input.Comment, currentUser.ID, uint(courseID))
		if err != nil {
			rc.Log.Printf("Error saving review: %v", err)
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Error saving review.")
		}
		saved.User = *currentUser
		if created {
			return utils.SuccessResponse(c, fiber.StatusCreated, "Review added.", fiber.Map{
				"review": reviewMap(rc.Media, saved),
			})
		}
		return utils.SuccessResponse(c, fiber.StatusOK, "Review updated.", fiber.Map{
			"review": reviewMap(rc.Media, saved),
		})
	default:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}
}

// createReview inserts a first-time review. When a concurrent request won
// the insert race on (user, course), the winning row is updated with the
// caller's rating and comment instead, keeping the endpoint an upsert.
func createReview(db *gorm.DB, rating int, comment string, userID, courseID uint) (*models.Review, bool, error) {
	review := models.Review{
		Rating:   rating,
		Comment:  comment,
		UserID:   userID,
		CourseID: courseID,
	}
	err := db.Create(&review).Error
	if err == nil {
		return &review, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}

	var winner models.Review
	if err := db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&winner).Error; err != nil {
		return nil, false, err
	}
	winner.Rating = rating
	winner.Comment = comment
	if err := db.Save(&winner).Error; err != nil {
		return nil, false, err
	}
	return &winner, false, nil
}

// GetMyReview returns the caller's review for a course, or null.
func (rc *ReviewController) GetMyReview(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}

	var review models.Review
	if err := rc.DB.Preload("User").
		Where("user_id = ? AND course_id = ?", currentUser.ID, courseID).
		First(&review).Error; err != nil {
		return utils.SuccessResponse(c, fiber.StatusOK, "No review found.", fiber.Map{
			"review": nil,
		})
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Review fetched.", fiber.Map{
		"review": reviewMap(rc.Media, &review),
	})
}

// GetCourseReviews lists a course's reviews, newest first. Public.
func (rc *ReviewController) GetCourseReviews(c *fiber.Ctx) error {
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}

	var course models.Course
	if err := rc.DB.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Course not found.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	var reviews []models.Review
	rc.DB.Preload("User").Where("course_id = ?", course.ID).
		Order("updated_at DESC").Find(&reviews)

	list := make([]fiber.Map, 0, len(reviews))
	for i := range reviews {
		list = append(list, reviewMap(rc.Media, &reviews[i]))
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Fetched course reviews.", fiber.Map{
		"reviews": list,
	})
}
