package controllers_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"learnhub/backend/models"
)

func TestGetProfileRequiresToken(t *testing.T) {
	app, _, _ := newTestApp(t)

	status, result := doJSON(t, app, "GET", "/api/users/profile", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Token is missing.", result["message"])
}

func TestUpdateProfileName(t *testing.T) {
	app, db, cfg := newTestApp(t)
	user := createTestUser(t, db, "Alice", "alice@example.com")
	token := tokenFor(t, cfg, user.ID)

	status, result := doForm(t, app, "PUT", "/api/users/profile/update", token, map[string]string{
		"name": "Alice Cooper",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Alice Cooper", dataOf(t, result)["user"].(map[string]interface{})["name"])

	var stored models.User
	db.First(&stored, user.ID)
	assert.Equal(t, "Alice Cooper", stored.Name)
}

func TestUpdateProfilePassword(t *testing.T) {
	app, db, cfg := newTestApp(t)
	user := createTestUser(t, db, "Alice", "alice@example.com")
	token := tokenFor(t, cfg, user.ID)

	status, _ := doForm(t, app, "PUT", "/api/users/profile/update", token, map[string]string{
		"password": "newsecret",
	})
	assert.Equal(t, fiber.StatusOK, status)

	var stored models.User
	db.First(&stored, user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newsecret")))

	status, _ = doForm(t, app, "PUT", "/api/users/profile/update", token, map[string]string{
		"password": "tiny",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestUpdateProfileRejectsEmailChange(t *testing.T) {
	app, db, cfg := newTestApp(t)
	user := createTestUser(t, db, "Alice", "alice@example.com")
	token := tokenFor(t, cfg, user.ID)

	status, result := doForm(t, app, "PUT", "/api/users/profile/update", token, map[string]string{
		"email": "new@example.com",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Email address cannot be changed via this endpoint.", result["message"])
}

func TestUpdateProfileNoChanges(t *testing.T) {
	app, db, cfg := newTestApp(t)
	user := createTestUser(t, db, "Alice", "alice@example.com")
	token := tokenFor(t, cfg, user.ID)

	status, result := doForm(t, app, "PUT", "/api/users/profile/update", token, map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, false, result["success"])
}

func TestGetUserDetails(t *testing.T) {
	app, db, cfg := newTestApp(t)
	creator := createTestUser(t, db, "Creator", "creator@example.com")
	learner := createTestUser(t, db, "Learner", "learner@example.com")
	category := createTestCategory(t, db, "Programming")
	course := createTestCourse(t, db, creator.ID, category.ID, "Go Basics", 0)
	token := tokenFor(t, cfg, learner.ID)

	status, result := doJSON(t, app, "POST", courseURL(course.ID)+"/enroll", token, nil)
	assert.Equal(t, fiber.StatusCreated, status)

	status, result = doJSON(t, app, "GET", userDetailsURL(learner.ID), token, nil)
	assert.Equal(t, fiber.StatusOK, status)

	data := dataOf(t, result)
	assert.Equal(t, "Learner", data["user"].(map[string]interface{})["name"])
	enrolled := data["enrolled_courses"].([]interface{})
	assert.Len(t, enrolled, 1)
	first := enrolled[0].(map[string]interface{})
	assert.Equal(t, "Go Basics", first["course_title"])
	assert.NotNil(t, first["enrollment_details"])
	assert.Empty(t, data["created_courses"])

	// the creator's view shows the course on the other side
	status, result = doJSON(t, app, "GET", userDetailsURL(creator.ID), token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, dataOf(t, result)["created_courses"].([]interface{}), 1)
}

func TestGetUserDetailsNotFound(t *testing.T) {
	app, db, cfg := newTestApp(t)
	user := createTestUser(t, db, "Alice", "alice@example.com")
	token := tokenFor(t, cfg, user.ID)

	status, _ := doJSON(t, app, "GET", "/api/users/9999/details", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
