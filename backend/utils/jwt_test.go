package utils

import (
	"errors"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"learnhub/backend/config"
)

func newTokenTestApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Get("/whoami", func(c *fiber.Ctx) error {
		userID, err := ExtractUserIDFromToken(c, cfg)
		if err != nil {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return c.Status(fiberErr.Code).SendString(fiberErr.Message)
			}
			return c.Status(fiber.StatusUnauthorized).SendString(err.Error())
		}
		return c.SendString(strconv.FormatUint(uint64(userID), 10))
	})
	return app
}

func whoami(t *testing.T, app *fiber.App, authHeader string) (int, string) {
	t.Helper()

	req := httptest.NewRequest("GET", "/whoami", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testsecret", JWTExpiryMinutes: 60}
	app := newTokenTestApp(cfg)

	token, err := GenerateJWTToken(42, cfg)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	status, body := whoami(t, app, "Bearer "+token)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "42", body)
}

func TestTokenMissing(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testsecret", JWTExpiryMinutes: 60}
	app := newTokenTestApp(cfg)

	status, body := whoami(t, app, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Token is missing.", body)
}

func TestTokenBadHeaderFormat(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testsecret", JWTExpiryMinutes: 60}
	app := newTokenTestApp(cfg)

	token, err := GenerateJWTToken(42, cfg)
	assert.NoError(t, err)

	// a bare token without the Bearer scheme is rejected
	status, body := whoami(t, app, token)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, body, "Bearer")

	status, _ = whoami(t, app, "Basic "+token)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestTokenExpired(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testsecret", JWTExpiryMinutes: -10}
	app := newTokenTestApp(cfg)

	token, err := GenerateJWTToken(42, cfg)
	assert.NoError(t, err)

	status, body := whoami(t, app, "Bearer "+token)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Token has expired. Please log in again.", body)
}

func TestTokenWrongSecret(t *testing.T) {
	otherCfg := &config.Config{JWTSecret: "othersecret", JWTExpiryMinutes: 60}
	token, err := GenerateJWTToken(42, otherCfg)
	assert.NoError(t, err)

	cfg := &config.Config{JWTSecret: "testsecret", JWTExpiryMinutes: 60}
	app := newTokenTestApp(cfg)

	status, body := whoami(t, app, "Bearer "+token)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Token is invalid.", body)
}

func TestTokenGarbage(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testsecret", JWTExpiryMinutes: 60}
	app := newTokenTestApp(cfg)

	status, body := whoami(t, app, "Bearer not.a.token")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Token is invalid.", body)
}
