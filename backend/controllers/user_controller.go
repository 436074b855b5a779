package controllers

import (
	"errors"
	"log"

	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"learnhub/backend/config"
	"learnhub/backend/middleware"
	"learnhub/backend/models"
	"learnhub/backend/services"
	"learnhub/backend/utils"
)

type UserController struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Media *services.MediaStore
	Log   *log.Logger
}

func NewUserController(db *gorm.DB, cfg *config.Config, media *services.MediaStore, logger *log.Logger) *UserController {
	return &UserController{DB: db, Cfg: cfg, Media: media, Log: logger}
}

func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)
	return utils.SuccessResponse(c, fiber.StatusOK, "Profile fetched successfully.", userMap(uc.Media, currentUser))
}

// UpdateProfile updates name, password and/or profile image. The old image
// is deleted only after the database commit succeeds; a new upload is
// deleted when the commit fails.
func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	currentUser := middleware.CurrentUser(c)

	if _, present := formValue(c, "email"); present {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Email address cannot be changed via this endpoint.")
	}

	updated := false
	oldImageName := currentUser.ProfileImageName
	newImageName := ""

	if name, present := formValue(c, "name"); present {
		name = strings.TrimSpace(name)
		if name == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Name cannot be empty.")
		}
		if name != currentUser.Name {
			currentUser.Name = name
			updated = true
		}
	}

	if password, present := formValue(c, "password"); present && password != "" {
		if len(password) < 6 {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "New password must be at least 6 characters long.")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not hash password.")
		}
		currentUser.PasswordHash = string(hashed)
		updated = true
		uc.Log.Printf("Password hash updated for user ID %d", currentUser.ID)
	}

	if fileHeader, err := c.FormFile("profile_image"); err == nil && fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to process profile image.")
		}
		defer file.Close()

		newImageName, err = uc.Media.Upload(
			c.Context(), file, fileHeader.Size, fileHeader.Filename,
			fileHeader.Header.Get("Content-Type"), profileImagePrefix, services.ImageExtensions,
		)
		if err != nil {
			uc.Log.Printf("Profile image upload failed for user %d: %v", currentUser.ID, err)
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to process profile image.")
		}
		currentUser.ProfileImageName = newImageName
		updated = true
	}

	if !updated {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No changes detected or no valid fields provided for update.")
	}

	if err := uc.DB.Save(currentUser).Error; err != nil {
		uc.Log.Printf("Error during profile update commit for user ID %d: %v", currentUser.ID, err)
		if newImageName != "" {
			uc.Media.Delete(newImageName)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update profile due to a server error.")
	}

	if newImageName != "" && oldImageName != "" && newImageName != oldImageName {
		if uc.Media.Delete(oldImageName) {
			uc.Log.Printf("Deleted old profile image: %s", oldImageName)
		}
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Profile updated successfully.", fiber.Map{
		"user": userMap(uc.Media, currentUser),
	})
}

// GetUserDetails returns the requested user's profile together with their
// enrolled and created courses. Accessible by any logged-in user.
func (uc *UserController) GetUserDetails(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user ID.")
	}

	var user models.User
	if err := uc.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			uc.Log.Printf("User details request for non-existent user ID: %d", userID)
			return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found.")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
	}

	var enrollments []models.Enrollment
	uc.DB.Preload("Course.Category").Preload("Course.Creator").
		Where("learner_id = ?", user.ID).Find(&enrollments)

	enrolledCourses := make([]fiber.Map, 0, len(enrollments))
	for i := range enrollments {
		courseData := courseMap(uc.DB, uc.Media, &enrollments[i].Course, courseMapOpts{Category: true, Creator: true})
		courseData["enrollment_details"] = enrollmentMap(uc.DB, &enrollments[i])
		enrolledCourses = append(enrolledCourses, courseData)
	}

	var createdCourses []models.Course
	uc.DB.Preload("Category").Where("creator_id = ?", user.ID).
		Order("updated_at DESC").Find(&createdCourses)

	createdList := make([]fiber.Map, 0, len(createdCourses))
	for i := range createdCourses {
		createdList = append(createdList, courseMap(uc.DB, uc.Media, &createdCourses[i], courseMapOpts{Category: true, Stats: true}))
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "User details fetched successfully.", fiber.Map{
		"user":             userMap(uc.Media, &user),
		"enrolled_courses": enrolledCourses,
		"created_courses":  createdList,
	})
}
