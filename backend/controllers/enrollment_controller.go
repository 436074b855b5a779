package controllers

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"learnhub/backend/config"
	"learnhub/backend/middleware"
	"learnhub/backend/models"
	"learnhub/backend/services"
	"learnhub/backend/utils"
)

type EnrollmentController struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Media *services.MediaStore
	Log   *log.Logger
}

func NewEnrollmentController(db *gorm.DB, cfg *config.Config, media *services.MediaStore, logger *log.Logger) *EnrollmentController {
	return &EnrollmentController{DB: db, Cfg: cfg, Media: media, Log: logger}
}

// Enroll enrolls the logged-in user in a course. For a paid course a mock
// payment record is created first and linked to the enrollment; payment and
// enrollment commit as one transaction, so a lost uniqueness race leaves no
// orphaned payment behind.
func (ec *EnrollmentController) Enroll(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}

	var course models.Course
	if err := ec.DB.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Course not found.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	if course.CreatorID == currentUser.ID {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "You cannot enroll in your own course.")
	}

	var existing models.Enrollment
	if err := ec.DB.Where("learner_id = ? AND course_id = ?", currentUser.ID, course.ID).
		First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "You are already enrolled in this course.")
	}

	var payment *models.Payment
	var enrollment models.Enrollment

	err = ec.DB.Transaction(func(tx *gorm.DB) error {
		if course.Price > 0 {
			transactionID := fmt.Sprintf("MOCKTXN-%d-%d-%s",
				course.ID, currentUser.ID, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
			payment = &models.Payment{
				Amount:        course.Price,
				Method:        "Mock Gateway",
				TransactionID: &transactionID,
				Status:        models.PaymentStatusSuccessful, // real gateway integration is out of scope
				UserID:        currentUser.ID,
			}
			if err := tx.Create(payment).Error; err != nil {
				return err
			}
		}

		enrollment = models.Enrollment{
			LearnerID: currentUser.ID,
			CourseID:  course.ID,
		}
		if payment != nil {
			enrollment.PaymentID = &payment.ID
		}
		return tx.Create(&enrollment).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// the pre-check lost a race; the unique (learner, course) index
			// decides and the transaction rolled the payment back
			ec.Log.Printf("Enrollment race for user %d, course %d", currentUser.ID, course.ID)
			return utils.ErrorResponse(c, fiber.StatusConflict, "Enrollment failed (concurrent request?). Please try again.")
		}
		ec.Log.Printf("Error during enrollment for user %d, course %d: %v", currentUser.ID, course.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An unexpected error occurred during enrollment.")
	}

	ec.Log.Printf("User %d enrolled in course %d", currentUser.ID, course.ID)

	var paymentData interface{}
	if payment != nil {
		paymentData = paymentMap(payment, enrollment.ID)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Successfully enrolled in course.", fiber.Map{
		"enrollment": enrollmentMap(ec.DB, &enrollment),
		"payment":    paymentData,
	})
}

// GetEnrolledCourses lists the user's enrollments, most recent first.
func (ec *EnrollmentController) GetEnrolledCourses(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)

	var enrollments []models.Enrollment
	ec.DB.Preload("Course.Category").Preload("Course.Creator").
		Where("learner_id = ?", currentUser.ID).
		Order("created_at DESC").Find(&enrollments)

	list := make([]fiber.Map, 0, len(enrollments))
	for i := range enrollments {
		courseData := courseMap(ec.DB, ec.Media, &enrollments[i].Course, courseMapOpts{Category: true, Creator: true, Stats: true})
		courseData["enrollment_details"] = enrollmentMap(ec.DB, &enrollments[i])
		list = append(list, courseData)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Fetched enrolled courses successfully.", fiber.Map{
		"courses": list,
	})
}

// GetEnrolledCourseDetail returns the full course view for an enrolled
// learner, lessons with presigned URLs and progress included.
func (ec *EnrollmentController) GetEnrolledCourseDetail(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}

	var enrollment models.Enrollment
	if err := ec.DB.Preload("Course.Category").Preload("Course.Creator").
		Where("learner_id = ? AND course_id = ?", currentUser.ID, courseID).
		First(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "You are not enrolled in this course or it does not exist.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	var lessons []models.Lesson
	ec.DB.Where("course_id = ?", courseID).Order("id").Find(&lessons)

	lessonsData := make([]fiber.Map, 0, len(lessons))
	for i := range lessons {
		lessonsData = append(lessonsData, lessonMap(ec.Media, &lessons[i], true))
	}

	courseData := courseMap(ec.DB, ec.Media, &enrollment.Course, courseMapOpts{Category: true, Creator: true, Stats: true})
	courseData["enrollment_details"] = enrollmentMap(ec.DB, &enrollment)

	return utils.SuccessResponse(c, fiber.StatusOK, "Fetched enrolled course details.", fiber.Map{
		"course":  courseData,
		"lessons": lessonsData,
	})
}

// MarkLessonComplete records a completed lesson for the enrolled learner.
// Completions are a set keyed on (enrollment, lesson): marking the same
// lesson again is a no-op that returns the current state, so progress can
// never be inflated by repeated calls.
func (ec *EnrollmentController) MarkLessonComplete(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}
	lessonID, err := c.ParamsInt("lessonId")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lesson ID.")
	}

	var enrollment models.Enrollment
	if err := ec.DB.Where("learner_id = ? AND course_id = ?", currentUser.ID, courseID).
		First(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "You are not enrolled in this course.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	var lesson models.Lesson
	if err := ec.DB.Where("id = ? AND course_id = ?", lessonID, courseID).
		First(&lesson).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lesson not found in this course.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	var existing models.LessonCompletion
	if err := ec.DB.Where("enrollment_id = ? AND lesson_id = ?", enrollment.ID, lesson.ID).
		First(&existing).Error; err == nil {
		return utils.SuccessResponse(c, fiber.StatusOK, "Lesson already marked as complete.", fiber.Map{
			"enrollment": enrollmentMap(ec.DB, &enrollment),
		})
	}

	err = ec.DB.Transaction(func(tx *gorm.DB) error {
		completion := models.LessonCompletion{EnrollmentID: enrollment.ID, LessonID: lesson.ID}
		if err := tx.Create(&completion).Error; err != nil {
			return err
		}

		// the counter mirrors the set size, recomputed under the same
		// transaction so concurrent marks cannot drift it
		var completed int64
		if err := tx.Model(&models.LessonCompletion{}).
			Where("enrollment_id = ?", enrollment.ID).Count(&completed).Error; err != nil {
			return err
		}
		enrollment.LessonsCompleted = int(completed)
		enrollment.TimeSpentSeconds += lesson.Duration
		return tx.Save(&enrollment).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// concurrent duplicate mark, report current state
			ec.DB.First(&enrollment, enrollment.ID)
			return utils.SuccessResponse(c, fiber.StatusOK, "Lesson already marked as complete.", fiber.Map{
				"enrollment": enrollmentMap(ec.DB, &enrollment),
			})
		}
		ec.Log.Printf("Error marking lesson complete: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update progress.")
	}

	ec.Log.Printf("Lesson %d marked complete for user %d in course %d. Progress: %d/%d",
		lesson.ID, currentUser.ID, courseID, enrollment.LessonsCompleted, totalLessonsCount(ec.DB, enrollment.CourseID))
	return utils.SuccessResponse(c, fiber.StatusOK, "Lesson marked as complete.", fiber.Map{
		"enrollment": enrollmentMap(ec.DB, &enrollment),
	})
}

// GetEnrollmentDetails is the creator-facing report for a course: enrollee
// count, average rating, income from successful payments, and per-learner
// progress rows.
func (ec *EnrollmentController) GetEnrollmentDetails(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}

	var course models.Course
	if err := ec.DB.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Course not found.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	if course.CreatorID != currentUser.ID {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Forbidden: You do not have permission to view these details.")
	}

	var enrollments []models.Enrollment
	ec.DB.Preload("Learner").Preload("Payment").
		Where("course_id = ?", course.ID).Find(&enrollments)

	var reviews []models.Review
	ec.DB.Where("course_id = ?", course.ID).Find(&reviews)
	reviewsByUser := make(map[uint]*models.Review, len(reviews))
	for i := range reviews {
		reviewsByUser[reviews[i].UserID] = &reviews[i]
	}

	totalLessons := totalLessonsCount(ec.DB, course.ID)
	totalIncome := 0.0
	rows := make([]fiber.Map, 0, len(enrollments))
	for i := range enrollments {
		enrollment := &enrollments[i]
		if enrollment.Payment != nil && enrollment.Payment.Status == models.PaymentStatusSuccessful {
			totalIncome += enrollment.Payment.Amount
		}

		var rating, comment interface{}
		if review := reviewsByUser[enrollment.LearnerID]; review != nil {
			rating = review.Rating
			comment = review.Comment
		}
		rows = append(rows, fiber.Map{
			"user_id":             enrollment.Learner.ID,
			"name":                enrollment.Learner.Name,
			"email":               enrollment.Learner.Email,
			"time_spent_seconds":  enrollment.TimeSpentSeconds,
			"rating":              rating,
			"review_comment":      comment,
			"enrollment_date":     isoTime(enrollment.CreatedAt),
			"progress_percentage": enrollment.ProgressPercentage(totalLessons),
		})
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Enrollment details fetched successfully.", fiber.Map{
		"course_id":             course.ID,
		"course_title":          course.Title,
		"total_enrolled_users":  len(enrollments),
		"average_course_rating": averageRating(ec.DB, course.ID),
		"total_income":          math.Round(totalIncome*100) / 100,
		"enrollments":           rows,
	})
}
