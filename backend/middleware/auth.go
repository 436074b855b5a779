package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"learnhub/backend/config"
	"learnhub/backend/models"
	"learnhub/backend/utils"
)

const CurrentUserKey = "currentUser"

// AuthMiddleware verifies the bearer token, resolves it to an account and
// stores the account in the request locals.
func AuthMiddleware(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := utils.ExtractUserIDFromToken(c, cfg)
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return utils.ErrorResponse(c, fe.Code, fe.Message)
			}
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Unauthorized")
		}

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorResponse(c, fiber.StatusUnauthorized, "User not found for the provided token.")
			}
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Token verification failed.")
		}

		c.Locals(CurrentUserKey, &user)
		return c.Next()
	}
}

// CurrentUser returns the account resolved by AuthMiddleware.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(CurrentUserKey).(*models.User)
	return user
}
