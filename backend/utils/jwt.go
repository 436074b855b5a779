package utils

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"learnhub/backend/config"
)

func GenerateJWTToken(userID uint, cfg *config.Config) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(cfg.JWTExpiryMinutes) * time.Minute).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ExtractUserIDFromToken reads the Authorization header, expects the
// "Bearer <token>" form, and returns the subject user ID. Expired and
// malformed tokens are reported with distinct messages; both reject the
// request.
func ExtractUserIDFromToken(c *fiber.Ctx, cfg *config.Config) (uint, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Token is missing.")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Invalid Authorization header format. Use 'Bearer <token>'.")
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fiber.NewError(fiber.StatusUnauthorized, "Token has expired. Please log in again.")
		}
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Token is invalid.")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Token is invalid.")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Token payload invalid.")
	}

	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Invalid user identifier in token.")
	}

	return uint(userID), nil
}
