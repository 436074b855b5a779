package controllers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"learnhub/backend/config"
	"learnhub/backend/models"
	"learnhub/backend/services"
	"learnhub/backend/utils"
)

type AuthController struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Media *services.MediaStore
	Log   *log.Logger
}

func NewAuthController(db *gorm.DB, cfg *config.Config, media *services.MediaStore, logger *log.Logger) *AuthController {
	return &AuthController{DB: db, Cfg: cfg, Media: media, Log: logger}
}

// Signup godoc
// @Summary Register a new user
// @Description Creates a new account, optionally with a profile image
// @Tags auth
// @Accept mpfd
// @Produce json
// @Success 201 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Router /auth/signup [post]
func (ac *AuthController) Signup(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	email := strings.ToLower(strings.TrimSpace(c.FormValue("email")))
	password := c.FormValue("password")

	if name == "" || email == "" || password == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Name, email, and password are required.")
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email format.")
	}
	if len(password) < 6 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Password must be at least 6 characters long.")
	}

	var existing models.User
	if err := ac.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "User with email '"+email+"' already exists.")
	}

	profileImageName := ""
	if fileHeader, err := c.FormFile("profile_image"); err == nil && fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to process profile image.")
		}
		defer file.Close()

		profileImageName, err = ac.Media.Upload(
			c.Context(), file, fileHeader.Size, fileHeader.Filename,
			fileHeader.Header.Get("Content-Type"), profileImagePrefix, services.ImageExtensions,
		)
		if err != nil {
			ac.Log.Printf("Signup failed for %s: profile image upload error: %v", email, err)
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to process profile image.")
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if profileImageName != "" {
			ac.Media.Delete(profileImageName)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not hash password.")
	}

	user := models.User{
		Name:             name,
		Email:            email,
		PasswordHash:     string(hashedPassword),
		ProfileImageName: profileImageName,
	}
	if err := ac.DB.Create(&user).Error; err != nil {
		if profileImageName != "" {
			ac.Media.Delete(profileImageName)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// the pre-check can lose a signup race; the unique index is the
			// final authority
			ac.Log.Printf("Signup conflict for %s", email)
			return utils.ErrorResponse(c, fiber.StatusConflict, "Could not create user due to a database conflict.")
		}
		ac.Log.Printf("Error during signup for %s: %v", email, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "An unexpected error occurred during signup.")
	}

	ac.Log.Printf("User signed up successfully: %s (ID: %d)", email, user.ID)
	return utils.SuccessResponse(c, fiber.StatusCreated, "User signed up successfully.", fiber.Map{
		"user": userMap(ac.Media, &user),
	})
}

// Login godoc
// @Summary User login
// @Description Authenticates a user and returns a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Router /auth/login [post]
func (ac *AuthController) Login(c *fiber.Ctx) error {
	type LoginInput struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	var input LoginInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Request body must be JSON.")
	}
	if input.Email == "" || input.Password == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Email and password are required.")
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	var user models.User
	if err := ac.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not query database.")
		}
		// fall through to the generic credential failure, never reveal
		// which field was wrong
	} else if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) == nil {
		token, err := utils.GenerateJWTToken(user.ID, ac.Cfg)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not generate token.")
		}
		ac.Log.Printf("User login successful: %s (ID: %d)", email, user.ID)
		return utils.SuccessResponse(c, fiber.StatusOK, "Login successful.", fiber.Map{
			"token": token,
			"user":  userMap(ac.Media, &user),
		})
	}

	ac.Log.Printf("Failed login attempt for email: %s", email)
	return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password.")
}
