package controllers_test

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"learnhub/backend/config"
	"learnhub/backend/routes"
	"learnhub/backend/services"
	"learnhub/backend/utils"
)

// objectStore is a minimal in-memory S3 backend, just enough protocol for
// the MinIO client: bucket existence, location lookup, object put and
// delete. It lets the handler tests observe which objects survive a
// request.
type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newObjectStore() *objectStore {
	return &objectStore{objects: make(map[string][]byte)}
}

func (s *objectStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	parts := strings.SplitN(path, "/", 2)
	objectKey := ""
	if len(parts) == 2 {
		objectKey = parts[1]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Query().Has("location"):
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></LocationConstraint>`)
	case r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && objectKey != "":
		body, _ := io.ReadAll(r.Body)
		s.objects[objectKey] = body
		w.Header().Set("ETag", `"test"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		// bucket create
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete && objectKey != "":
		delete(s.objects, objectKey)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (s *objectStore) put(key string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = content
}

func (s *objectStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// newMediaTestApp wires the app against a live in-memory object store, so
// the enabled-store upload, presign, and compensation paths all run.
func newMediaTestApp(t *testing.T) (*fiber.App, *gorm.DB, *config.Config, *objectStore) {
	t.Helper()

	store := newObjectStore()
	backend := httptest.NewServer(store)
	t.Cleanup(backend.Close)

	cfg := &config.Config{
		JWTSecret:        "testsecret",
		JWTExpiryMinutes: 60,
		MinioEndpoint:    strings.TrimPrefix(backend.URL, "http://"),
		MinioAccessKey:   "testkey",
		MinioSecretKey:   "testsecretkey",
		MinioBucket:      "test-media",
	}

	dsn := fmt.Sprintf("file:media_handlers_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := utils.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	logger := utils.InitLogger()
	media, err := services.NewMediaStore(cfg, logger)
	if err != nil {
		t.Fatalf("failed to create media store: %v", err)
	}
	if !media.Enabled() {
		t.Fatal("media store should be enabled against the test backend")
	}

	app := fiber.New()
	routes.SetupRoutes(app, db, cfg, media, logger)
	return app, db, cfg, store
}

type formFile struct {
	field    string
	filename string
	content  []byte
}

// doFormUpload performs a multipart request carrying both fields and files.
func doFormUpload(t *testing.T, app *fiber.App, method, path, token string, fields map[string]string, files []formFile) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write form field %s: %v", key, err)
		}
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.field, file.filename)
		if err != nil {
			t.Fatalf("failed to create form file %s: %v", file.field, err)
		}
		if _, err := part.Write(file.content); err != nil {
			t.Fatalf("failed to write form file %s: %v", file.field, err)
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
