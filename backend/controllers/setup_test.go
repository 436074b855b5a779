package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"learnhub/backend/config"
	"learnhub/backend/models"
	"learnhub/backend/routes"
	"learnhub/backend/services"
	"learnhub/backend/utils"
)

// Each test gets its own named in-memory database; shared cache keeps every
// pooled connection on the same data.
var testDBCounter int64

const testPassword = "password123"

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:        "testsecret",
		JWTExpiryMinutes: 60,
	}

	dsn := fmt.Sprintf("file:handlers_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := utils.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	logger := utils.InitLogger()
	// no MINIO_ENDPOINT: the store runs disabled, uploads fail and presigns
	// come back empty
	media, err := services.NewMediaStore(cfg, logger)
	if err != nil {
		t.Fatalf("failed to create media store: %v", err)
	}

	app := fiber.New()
	routes.SetupRoutes(app, db, cfg, media, logger)
	return app, db, cfg
}

func createTestUser(t *testing.T, db *gorm.DB, name, email string) models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := models.User{Name: name, Email: email, PasswordHash: string(hashed)}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return user
}

func createTestCategory(t *testing.T, db *gorm.DB, name string) models.Category {
	t.Helper()

	category := models.Category{Name: name}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("failed to create category %s: %v", name, err)
	}
	return category
}

func createTestCourse(t *testing.T, db *gorm.DB, creatorID, categoryID uint, title string, price float64) models.Course {
	t.Helper()

	course := models.Course{
		Title:           title,
		Description:     "A test course",
		Price:           price,
		DifficultyLevel: "beginner",
		Language:        "English",
		CreatorID:       creatorID,
		CategoryID:      categoryID,
	}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("failed to create course %s: %v", title, err)
	}
	return course
}

func createTestLesson(t *testing.T, db *gorm.DB, courseID uint, title string, duration int) models.Lesson {
	t.Helper()

	lesson := models.Lesson{CourseID: courseID, Title: title, Duration: duration}
	if err := db.Create(&lesson).Error; err != nil {
		t.Fatalf("failed to create lesson %s: %v", title, err)
	}
	if duration != 0 {
		if err := db.Model(&models.Course{}).Where("id = ?", courseID).
			UpdateColumn("estimated_duration", gorm.Expr("estimated_duration + ?", duration)).Error; err != nil {
			t.Fatalf("failed to bump course duration: %v", err)
		}
	}
	return lesson
}

func courseURL(courseID uint) string {
	return fmt.Sprintf("/api/courses/%d", courseID)
}

func userDetailsURL(userID uint) string {
	return fmt.Sprintf("/api/users/%d/details", userID)
}

func tokenFor(t *testing.T, cfg *config.Config, userID uint) string {
	t.Helper()

	token, err := utils.GenerateJWTToken(userID, cfg)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

// doJSON performs a request with an optional JSON body and bearer token and
// decodes the response envelope.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return doRequest(t, app, req)
}

// doForm performs a multipart form request, the content type the course and
// profile endpoints accept.
func doForm(t *testing.T, app *fiber.App, method, path, token string, fields map[string]string) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write form field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close form writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return doRequest(t, app, req)
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]interface{}) {
	t.Helper()

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && err != io.EOF {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return resp.StatusCode, result
}

func dataOf(t *testing.T, result map[string]interface{}) map[string]interface{} {
	t.Helper()

	data, ok := result["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no data object: %v", result)
	}
	return data
}
