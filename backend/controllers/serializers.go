package controllers

import (
	"database/sql"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"learnhub/backend/models"
	"learnhub/backend/services"
)

const profileImagePrefix = "profile_image"
const courseThumbnailPrefix = "course_thumbnail"

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formValue reports whether the field was present in the request form, not
// just whether it was non-empty, so "clear this field" and "leave this
// field alone" stay distinguishable in multipart bodies.
func formValue(c *fiber.Ctx, key string) (string, bool) {
	if form, err := c.MultipartForm(); err == nil && form != nil {
		if vals, ok := form.Value[key]; ok && len(vals) > 0 {
			return vals[0], true
		}
		return "", false
	}
	v := c.FormValue(key)
	return v, v != ""
}

func totalLessonsCount(db *gorm.DB, courseID uint) int {
	var count int64
	db.Model(&models.Lesson{}).Where("course_id = ?", courseID).Count(&count)
	return int(count)
}

// averageRating is the mean review rating rounded to one decimal, 0.0 for a
// course without reviews.
func averageRating(db *gorm.DB, courseID uint) float64 {
	var avg sql.NullFloat64
	db.Model(&models.Review{}).Where("course_id = ?", courseID).
		Select("AVG(rating)").Scan(&avg)
	if !avg.Valid {
		return 0.0
	}
	return math.Round(avg.Float64*10) / 10
}

func userMap(media *services.MediaStore, user *models.User) fiber.Map {
	var imageURL interface{}
	if url := media.PresignedURL(user.ProfileImageName, 0); url != "" {
		imageURL = url
	}
	return fiber.Map{
		"user_id":           user.ID,
		"name":              user.Name,
		"email":             user.Email,
		"profile_image_url": imageURL,
		"date_of_joining":   isoTime(user.CreatedAt),
	}
}

func categoryMap(category *models.Category) fiber.Map {
	return fiber.Map{
		"category_id":          category.ID,
		"category_name":        category.Name,
		"category_description": category.Description,
	}
}

type courseMapOpts struct {
	Category bool
	Creator  bool
	Stats    bool
}

// courseMap shapes a course row. The thumbnail is exposed as a presigned
// URL, never as the stored object name. Category and Creator must be
// preloaded when the matching options are set.
func courseMap(db *gorm.DB, media *services.MediaStore, course *models.Course, opts courseMapOpts) fiber.Map {
	var thumbnailURL interface{}
	if url := media.PresignedURL(course.ThumbnailName, 0); url != "" {
		thumbnailURL = url
	}

	data := fiber.Map{
		"course_id":                  course.ID,
		"course_title":               course.Title,
		"course_description":         course.Description,
		"price":                      course.Price,
		"date_of_creation":           isoTime(course.CreatedAt),
		"updated_date":               isoTime(course.UpdatedAt),
		"thumbnail_url":              thumbnailURL,
		"difficulty_level":           course.DifficultyLevel,
		"language":                   course.Language,
		"estimated_duration_seconds": course.EstimatedDuration,
		"creator_id":                 course.CreatorID,
		"category_id":                course.CategoryID,
		"total_lessons_count":        totalLessonsCount(db, course.ID),
	}
	if opts.Category {
		data["category_name"] = course.Category.Name
	}
	if opts.Creator {
		data["creator_name"] = course.Creator.Name
	}
	if opts.Stats {
		data["average_rating"] = averageRating(db, course.ID)
	}
	return data
}

func lessonMap(media *services.MediaStore, lesson *models.Lesson, generateURLs bool) fiber.Map {
	data := fiber.Map{
		"lesson_id":          lesson.ID,
		"lesson_title":       lesson.Title,
		"lesson_description": lesson.Description,
		"duration":           lesson.Duration,
		"course_id":          lesson.CourseID,
	}
	if generateURLs {
		data["lesson_video_url"] = nilIfEmpty(media.PresignedURL(lesson.VideoName, 0))
		data["lesson_assignment_url"] = nilIfEmpty(media.PresignedURL(lesson.AssignmentName, 0))
	} else {
		data["lesson_video_name"] = lesson.VideoName
		data["lesson_assignment_name"] = lesson.AssignmentName
	}
	return data
}

func enrollmentMap(db *gorm.DB, enrollment *models.Enrollment) fiber.Map {
	totalLessons := totalLessonsCount(db, enrollment.CourseID)
	return fiber.Map{
		"enrollment_id":       enrollment.ID,
		"enrollment_date":     isoTime(enrollment.CreatedAt),
		"learner_id":          enrollment.LearnerID,
		"course_id":           enrollment.CourseID,
		"payment_id":          enrollment.PaymentID,
		"lessons_completed":   enrollment.LessonsCompleted,
		"total_lessons":       totalLessons,
		"progress_percentage": enrollment.ProgressPercentage(totalLessons),
		"time_spent_seconds":  enrollment.TimeSpentSeconds,
	}
}

func paymentMap(payment *models.Payment, enrollmentID uint) fiber.Map {
	return fiber.Map{
		"payment_id":      payment.ID,
		"amount":          payment.Amount,
		"date_of_payment": isoTime(payment.CreatedAt),
		"payment_method":  payment.Method,
		"transaction_id":  payment.TransactionID,
		"status":          payment.Status,
		"user_id":         payment.UserID,
		"enrollment_id":   enrollmentID,
	}
}

// reviewMap expects review.User preloaded.
func reviewMap(media *services.MediaStore, review *models.Review) fiber.Map {
	return fiber.Map{
		"review_id":              review.ID,
		"rating":                 review.Rating,
		"comment":                review.Comment,
		"review_date":            isoTime(review.UpdatedAt),
		"user_id":                review.UserID,
		"course_id":              review.CourseID,
		"user_name":              review.User.Name,
		"user_profile_image_url": nilIfEmpty(media.PresignedURL(review.User.ProfileImageName, 0)),
	}
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
