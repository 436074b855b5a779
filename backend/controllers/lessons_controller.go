package controllers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"learnhub/backend/middleware"
	"learnhub/backend/models"
	"learnhub/backend/utils"
)

func lessonMediaPrefix(courseID uint) string {
	return fmt.Sprintf("course_%d/lessons", courseID)
}

// AddLesson adds a lesson to a course owned by the user. The video duration
// is measured before the upload, the course's cumulative duration grows by
// it, and uploads are deleted again when anything after them fails.
func (cc *CoursesController) AddLesson(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}

	var course models.Course
	if err := cc.DB.Where("id = ? AND creator_id = ?", courseID, currentUser.ID).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Course not found.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	title := c.FormValue("lesson_title")
	if title == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Lesson title is required.")
	}

	videoDuration := 0
	videoName := ""
	if videoHeader, err := c.FormFile("lesson_video"); err == nil && videoHeader != nil {
		videoFile, err := videoHeader.Open()
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read lesson video.")
		}
		defer videoFile.Close()

		videoDuration = cc.Media.VideoDuration(videoFile)

		videoName, err = cc.Media.Upload(
			c.Context(), videoFile, videoHeader.Size, videoHeader.Filename,
			videoHeader.Header.Get("Content-Type"), lessonMediaPrefix(course.ID), nil,
		)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, err.Error())
		}
	}

	assignmentName := ""
	if assignmentHeader, err := c.FormFile("lesson_assignment"); err == nil && assignmentHeader != nil {
		assignmentFile, err := assignmentHeader.Open()
		if err != nil {
			if videoName != "" {
				cc.Media.Delete(videoName)
			}
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read lesson assignment.")
		}
		defer assignmentFile.Close()

		assignmentName, err = cc.Media.Upload(
			c.Context(), assignmentFile, assignmentHeader.Size, assignmentHeader.Filename,
			assignmentHeader.Header.Get("Content-Type"), lessonMediaPrefix(course.ID), nil,
		)
		if err != nil {
			if videoName != "" {
				cc.Media.Delete(videoName)
			}
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, err.Error())
		}
	}

	lesson := models.Lesson{
		CourseID:       course.ID,
		Title:          title,
		Description:    c.FormValue("lesson_description"),
		VideoName:      videoName,
		AssignmentName: assignmentName,
		Duration:       videoDuration,
	}

	err = cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&lesson).Error; err != nil {
			return err
		}
		return tx.Model(&course).Updates(map[string]interface{}{
			"estimated_duration": gorm.Expr("estimated_duration + ?", videoDuration),
		}).Error
	})
	if err != nil {
		cc.Log.Printf("Error adding lesson to course %d: %v", course.ID, err)
		if videoName != "" {
			cc.Media.Delete(videoName)
		}
		if assignmentName != "" {
			cc.Media.Delete(assignmentName)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An unexpected error occurred while adding the lesson.")
	}

	cc.Log.Printf("Lesson added to course %d: ID %d", course.ID, lesson.ID)
	return utils.SuccessResponse(c, fiber.StatusCreated, "Lesson added successfully.", fiber.Map{
		"lesson": lessonMap(cc.Media, &lesson, true),
	})
}

// UpdateLesson updates lesson fields and optionally replaces its files.
// Replacements are uploaded before the commit; the replaced objects are
// deleted only afterwards, so a committed row never points at a missing
// object.
func (cc *CoursesController) UpdateLesson(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}
	lessonID, err := c.ParamsInt("lessonId")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lesson ID.")
	}

	var course models.Course
	if err := cc.DB.Where("id = ? AND creator_id = ?", courseID, currentUser.ID).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Course not found.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	var lesson models.Lesson
	if err := cc.DB.Where("id = ? AND course_id = ?", lessonID, course.ID).First(&lesson).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lesson not found.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	updated := false
	durationChange := 0
	oldVideoName := lesson.VideoName
	oldAssignmentName := lesson.AssignmentName
	newVideoName := ""
	newAssignmentName := ""

	if title, present := formValue(c, "lesson_title"); present && title != lesson.Title {
		lesson.Title = title
		updated = true
	}
	if description, present := formValue(c, "lesson_description"); present && description != lesson.Description {
		lesson.Description = description
		updated = true
	}

	if videoHeader, err := c.FormFile("lesson_video"); err == nil && videoHeader != nil {
		videoFile, err := videoHeader.Open()
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read lesson video.")
		}
		defer videoFile.Close()

		newDuration := cc.Media.VideoDuration(videoFile)
		newVideoName, err = cc.Media.Upload(
			c.Context(), videoFile, videoHeader.Size, videoHeader.Filename,
			videoHeader.Header.Get("Content-Type"), lessonMediaPrefix(course.ID), nil,
		)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, err.Error())
		}

		durationChange = newDuration - lesson.Duration
		lesson.VideoName = newVideoName
		lesson.Duration = newDuration
		updated = true
	}

	if assignmentHeader, err := c.FormFile("lesson_assignment"); err == nil && assignmentHeader != nil {
		assignmentFile, err := assignmentHeader.Open()
		if err != nil {
			if newVideoName != "" {
				cc.Media.Delete(newVideoName)
			}
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read lesson assignment.")
		}
		defer assignmentFile.Close()

		newAssignmentName, err = cc.Media.Upload(
			c.Context(), assignmentFile, assignmentHeader.Size, assignmentHeader.Filename,
			assignmentHeader.Header.Get("Content-Type"), lessonMediaPrefix(course.ID), nil,
		)
		if err != nil {
			if newVideoName != "" {
				cc.Media.Delete(newVideoName)
			}
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, err.Error())
		}

		lesson.AssignmentName = newAssignmentName
		updated = true
	}

	if !updated {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No changes detected.")
	}

	err = cc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&lesson).Error; err != nil {
			return err
		}
		newTotal := course.EstimatedDuration + durationChange
		if newTotal < 0 {
			newTotal = 0
		}
		return tx.Model(&course).Update("estimated_duration", newTotal).Error
	})
	if err != nil {
		cc.Log.Printf("Error updating lesson %d: %v", lesson.ID, err)
		if newVideoName != "" && newVideoName != oldVideoName {
			cc.Media.Delete(newVideoName)
		}
		if newAssignmentName != "" && newAssignmentName != oldAssignmentName {
			cc.Media.Delete(newAssignmentName)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An unexpected error occurred while updating the lesson.")
	}

	// clean up replaced objects only after the commit succeeded
	if newVideoName != "" && oldVideoName != "" && newVideoName != oldVideoName {
		if cc.Media.Delete(oldVideoName) {
			cc.Log.Printf("Deleted old video file: %s", oldVideoName)
		}
	}
	if newAssignmentName != "" && oldAssignmentName != "" && newAssignmentName != oldAssignmentName {
		if cc.Media.Delete(oldAssignmentName) {
			cc.Log.Printf("Deleted old assignment file: %s", oldAssignmentName)
		}
	}

	cc.Log.Printf("Lesson %d updated successfully", lesson.ID)
	return utils.SuccessResponse(c, fiber.StatusOK, "Lesson updated successfully.", fiber.Map{
		"lesson": lessonMap(cc.Media, &lesson, true),
	})
}

// DeleteLesson removes a lesson, shrinks the course's cumulative duration
// (floored at zero) and drops completion records pointing at the lesson so
// no enrollment keeps credit for a lesson that no longer exists. Media
// objects are deleted best-effort after the commit; the database is the
// source of truth.
func (cc *CoursesController) DeleteLesson(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}
	lessonID, err := c.ParamsInt("lessonId")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lesson ID.")
	}

	var course models.Course
	if err := cc.DB.Where("id = ? AND creator_id = ?", courseID, currentUser.ID).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Course not found.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	var lesson models.Lesson
	if err := cc.DB.Where("id = ? AND course_id = ?", lessonID, course.ID).First(&lesson).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lesson not found.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	videoNameToDelete := lesson.VideoName
	assignmentNameToDelete := lesson.AssignmentName

	err = cc.DB.Transaction(func(tx *gorm.DB) error {
		newTotal := course.EstimatedDuration - lesson.Duration
		if newTotal < 0 {
			newTotal = 0
		}
		if err := tx.Model(&course).Update("estimated_duration", newTotal).Error; err != nil {
			return err
		}

		affected := tx.Model(&models.LessonCompletion{}).
			Select("enrollment_id").Where("lesson_id = ?", lesson.ID)
		if err := tx.Model(&models.Enrollment{}).
			Where("id IN (?)", affected).
			UpdateColumn("lessons_completed", gorm.Expr("lessons_completed - 1")).Error; err != nil {
			return err
		}
		if err := tx.Where("lesson_id = ?", lesson.ID).
			Delete(&models.LessonCompletion{}).Error; err != nil {
			return err
		}

		return tx.Delete(&lesson).Error
	})
	if err != nil {
		cc.Log.Printf("Error deleting lesson %d: %v", lesson.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An unexpected error occurred while deleting the lesson.")
	}
	cc.Log.Printf("Lesson %d deleted from course %d", lesson.ID, course.ID)

	if videoNameToDelete != "" {
		if cc.Media.Delete(videoNameToDelete) {
			cc.Log.Printf("Deleted video file: %s", videoNameToDelete)
		}
	}
	if assignmentNameToDelete != "" {
		if cc.Media.Delete(assignmentNameToDelete) {
			cc.Log.Printf("Deleted assignment file: %s", assignmentNameToDelete)
		}
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Lesson deleted successfully.", nil)
}
