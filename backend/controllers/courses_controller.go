package controllers

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"learnhub/backend/config"
	"learnhub/backend/middleware"
	"learnhub/backend/models"
	"learnhub/backend/services"
	"learnhub/backend/utils"
)

type CoursesController struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Media *services.MediaStore
	Log   *log.Logger
}

func NewCoursesController(db *gorm.DB, cfg *config.Config, media *services.MediaStore, logger *log.Logger) *CoursesController {
	return &CoursesController{DB: db, Cfg: cfg, Media: media, Log: logger}
}

// CreateCourse creates a course together with its category (found or
// created) in one transaction. The thumbnail is uploaded first and removed
// again on any later failure, so no orphaned media outlives a failed
// create.
func (cc *CoursesController) CreateCourse(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)

	required := []string{"course_title", "price", "difficulty_level", "language", "category_name"}
	missing := make([]string, 0)
	for _, field := range required {
		if _, present := formValue(c, field); !present {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
	}

	price, err := strconv.ParseFloat(c.FormValue("price"), 64)
	if err != nil || price < 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid price format.")
	}

	thumbnailHeader, err := c.FormFile("thumbnail_image")
	if err != nil || thumbnailHeader == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Course thumbnail image is required.")
	}
	thumbnailFile, err := thumbnailHeader.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to process course thumbnail image.")
	}
	defer thumbnailFile.Close()

	thumbnailName, err := cc.Media.Upload(
		c.Context(), thumbnailFile, thumbnailHeader.Size, thumbnailHeader.Filename,
		thumbnailHeader.Header.Get("Content-Type"), courseThumbnailPrefix, services.ImageExtensions,
	)
	if err != nil {
		cc.Log.Printf("Course thumbnail upload failed: %v", err)
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to process course thumbnail image.")
	}

	course := models.Course{
		Title:           c.FormValue("course_title"),
		Description:     c.FormValue("course_description"),
		Price:           price,
		ThumbnailName:   thumbnailName,
		DifficultyLevel: c.FormValue("difficulty_level"),
		Language:        c.FormValue("language"),
		CreatorID:       currentUser.ID,
	}

	err = cc.DB.Transaction(func(tx *gorm.DB) error {
		category, err := getOrCreateCategory(tx, c.FormValue("category_name"))
		if err != nil {
			return err
		}
		course.CategoryID = category.ID
		return tx.Create(&course).Error
	})
	if err != nil {
		cc.Media.Delete(thumbnailName)
		switch {
		case errors.Is(err, errEmptyCategoryName):
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Category name cannot be empty.")
		case errors.Is(err, gorm.ErrDuplicatedKey):
			cc.Log.Printf("Database conflict creating course: %v", err)
			return utils.ErrorResponse(c, fiber.StatusConflict, "Could not create course due to a database conflict.")
		default:
			cc.Log.Printf("Error creating course: %v", err)
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An unexpected error occurred.")
		}
	}

	cc.DB.Preload("Category").Preload("Creator").First(&course, course.ID)
	cc.Log.Printf("Course created successfully: ID %d, Title: %s", course.ID, course.Title)
	return utils.SuccessResponse(c, fiber.StatusCreated, "Course created successfully.", fiber.Map{
		"course": courseMap(cc.DB, cc.Media, &course, courseMapOpts{Category: true, Creator: true}),
	})
}

// UpdateCourse updates course fields for the creator. A replacement
// thumbnail is uploaded before the commit and the old one deleted only
// after the commit succeeds.
func (cc *CoursesController) UpdateCourse(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}

	var course models.Course
	if err := cc.DB.Preload("Category").Where("id = ? AND creator_id = ?", courseID, currentUser.ID).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Course not found.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	updated := false
	if title, present := formValue(c, "course_title"); present && title != course.Title {
		course.Title = title
		updated = true
	}
	if description, present := formValue(c, "course_description"); present && description != course.Description {
		course.Description = description
		updated = true
	}
	if difficulty, present := formValue(c, "difficulty_level"); present && difficulty != course.DifficultyLevel {
		course.DifficultyLevel = difficulty
		updated = true
	}
	if language, present := formValue(c, "language"); present && language != course.Language {
		course.Language = language
		updated = true
	}
	if priceStr, present := formValue(c, "price"); present {
		newPrice, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid price format.")
		}
		if newPrice < 0 {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Price cannot be negative.")
		}
		if newPrice != course.Price {
			course.Price = newPrice
			updated = true
		}
	}

	newCategoryName, categoryPresent := formValue(c, "category_name")
	newCategoryName = strings.TrimSpace(newCategoryName)
	changeCategory := categoryPresent && newCategoryName != "" && newCategoryName != course.Category.Name

	oldThumbnailName := course.ThumbnailName
	newThumbnailName := ""
	if fileHeader, err := c.FormFile("thumbnail_image"); err == nil && fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to process new course thumbnail image.")
		}
		defer file.Close()

		newThumbnailName, err = cc.Media.Upload(
			c.Context(), file, fileHeader.Size, fileHeader.Filename,
			fileHeader.Header.Get("Content-Type"), courseThumbnailPrefix, services.ImageExtensions,
		)
		if err != nil {
			cc.Log.Printf("Thumbnail upload failed for course %d: %v", courseID, err)
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to process new course thumbnail image.")
		}
		course.ThumbnailName = newThumbnailName
		updated = true
	}

	if !updated && !changeCategory {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No changes detected.")
	}

	err = cc.DB.Transaction(func(tx *gorm.DB) error {
		if changeCategory {
			category, err := getOrCreateCategory(tx, newCategoryName)
			if err != nil {
				return err
			}
			course.CategoryID = category.ID
		}
		return tx.Save(&course).Error
	})
	if err != nil {
		if newThumbnailName != "" {
			cc.Media.Delete(newThumbnailName)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			cc.Log.Printf("Database conflict updating course ID %d: %v", courseID, err)
			return utils.ErrorResponse(c, fiber.StatusConflict, "Could not update course due to a database conflict.")
		}
		cc.Log.Printf("Error updating course ID %d: %v", courseID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An unexpected error occurred while updating the course.")
	}

	if newThumbnailName != "" && oldThumbnailName != "" && oldThumbnailName != newThumbnailName {
		if cc.Media.Delete(oldThumbnailName) {
			cc.Log.Printf("Removed old course thumbnail: %s", oldThumbnailName)
		}
	}

	cc.DB.Preload("Category").Preload("Creator").First(&course, course.ID)
	cc.Log.Printf("Course updated successfully: ID %d", courseID)
	return utils.SuccessResponse(c, fiber.StatusOK, "Course updated successfully.", fiber.Map{
		"course": courseMap(cc.DB, cc.Media, &course, courseMapOpts{Category: true, Creator: true}),
	})
}

// GetCreatedCourses lists the courses created by the logged-in user.
func (cc *CoursesController) GetCreatedCourses(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)

	var courses []models.Course
	cc.DB.Preload("Category").Where("creator_id = ?", currentUser.ID).
		Order("updated_at DESC").Find(&courses)

	list := make([]fiber.Map, 0, len(courses))
	for i := range courses {
		list = append(list, courseMap(cc.DB, cc.Media, &courses[i], courseMapOpts{Category: true}))
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Fetched created courses successfully.", fiber.Map{
		"courses": list,
	})
}

// GetCourseForManage returns the creator's management view of a course,
// lessons with presigned URLs included.
func (cc *CoursesController) GetCourseForManage(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}

	var course models.Course
	if err := cc.DB.Preload("Category").Preload("Creator").
		Where("id = ? AND creator_id = ?", courseID, currentUser.ID).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Course not found.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	var lessons []models.Lesson
	cc.DB.Where("course_id = ?", course.ID).Order("id").Find(&lessons)

	lessonsData := make([]fiber.Map, 0, len(lessons))
	for i := range lessons {
		lessonsData = append(lessonsData, lessonMap(cc.Media, &lessons[i], true))
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Fetched created course details successfully.", fiber.Map{
		"course":  courseMap(cc.DB, cc.Media, &course, courseMapOpts{Category: true, Creator: true, Stats: true}),
		"lessons": lessonsData,
	})
}

// ExploreCourses lists courses available for enrollment, excluding the
// user's own and those already enrolled in.
func (cc *CoursesController) ExploreCourses(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)

	enrolledCourseIDs := cc.DB.Model(&models.Enrollment{}).
		Select("course_id").Where("learner_id = ?", currentUser.ID)

	var courses []models.Course
	cc.DB.Preload("Category").Preload("Creator").
		Where("creator_id != ?", currentUser.ID).
		Where("id NOT IN (?)", enrolledCourseIDs).
		Order("created_at DESC").Find(&courses)

	list := make([]fiber.Map, 0, len(courses))
	for i := range courses {
		list = append(list, courseMap(cc.DB, cc.Media, &courses[i], courseMapOpts{Category: true, Creator: true, Stats: true}))
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Fetched explore courses successfully.", fiber.Map{
		"courses": list,
	})
}

// GetExploreCourseDetail is the public course view: course data, a lesson
// overview without media URLs, and the creator card.
func (cc *CoursesController) GetExploreCourseDetail(c *fiber.Ctx) error {
	courseID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid course ID.")
	}

	var course models.Course
	if err := cc.DB.Preload("Category").Preload("Creator").First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Course not found.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	var lessons []models.Lesson
	cc.DB.Where("course_id = ?", course.ID).Order("id").Find(&lessons)

	lessonsOverview := make([]fiber.Map, 0, len(lessons))
	for i := range lessons {
		lessonsOverview = append(lessonsOverview, fiber.Map{
			"lesson_id":    lessons[i].ID,
			"lesson_title": lessons[i].Title,
			"duration":     lessons[i].Duration,
		})
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Fetched course details for exploration.", fiber.Map{
		"course":           courseMap(cc.DB, cc.Media, &course, courseMapOpts{Category: true, Creator: true, Stats: true}),
		"lessons_overview": lessonsOverview,
		"creator":          userMap(cc.Media, &course.Creator),
	})
}
