package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/geoindex"
	"github.com/resqnet/backend/internal/middleware"
	"github.com/resqnet/backend/internal/models"
	"github.com/resqnet/backend/internal/services"
	"github.com/resqnet/backend/internal/storage"
	"github.com/resqnet/backend/pkg/logger"
	"github.com/resqnet/backend/pkg/utils"
	"gorm.io/gorm"
)

type fakeMediaStore struct {
	mu       sync.Mutex
	stored   []string
	deleted  []string
	storeErr error
}

func (f *fakeMediaStore) Store(_ context.Context, folder, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	if err := storage.ValidateUpload(contentType, size); err != nil {
		return "", err
	}
	if f.storeErr != nil {
		return "", f.storeErr
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	url := "http://media.test/resqnet/" + storage.ObjectName(folder, filename, contentType)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, url)
	return url, nil
}

func (f *fakeMediaStore) Delete(_ context.Context, objectURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, objectURL)
	return nil
}

func (f *fakeMediaStore) deletedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	media *fakeMediaStore
	audit *services.AuditService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.SetOutput(io.Discard, "error")
		utils.ConfigureJWT("test-secret", 24)
		utils.ConfigureRefreshJWT("test-refresh-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.VolunteerProfile{},
		&models.Report{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	auditService := services.NewAuditService(db, 100)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = auditService.Close(ctx)
	})

	index := geoindex.NewSQLIndex(db)
	media := &fakeMediaStore{}

	app := fiber.New(fiber.Config{BodyLimit: 20 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	SetupRoutes(app, Dependencies{
		DB:          db,
		Media:       media,
		Reports:     services.NewReportService(db),
		Assignments: services.NewAssignmentService(db),
		Matching:    services.NewMatchingService(db, index, 10, geoindex.MaxResults),
		Volunteers:  services.NewVolunteerService(db, index),
		Audit:       auditService,
	})

	return &testEnv{app: app, db: db, media: media, audit: auditService}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Name:         "Test User",
		Email:        email,
		Phone:        "9000000000",
		PasswordHash: hash,
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

// createTestVolunteer stores a volunteer with a profile at lng, lat.
func createTestVolunteer(t *testing.T, db *gorm.DB, email string, lng, lat float64, available bool) (*models.User, string) {
	t.Helper()

	user, token := createTestUser(t, db, email, "password123", models.UserRoleVolunteer)
	if err := db.Model(user).Updates(map[string]interface{}{
		"location_longitude": lng,
		"location_latitude":  lat,
	}).Error; err != nil {
		t.Fatalf("failed setting location: %v", err)
	}
	profile := &models.VolunteerProfile{
		UserID:   user.ID,
		Skills:   []string{"first aid"},
		RadiusKm: 5,
		JoinedAt: time.Now().UTC(),
	}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("failed creating volunteer profile: %v", err)
	}
	if err := db.Model(profile).Update("availability", available).Error; err != nil {
		t.Fatalf("failed setting availability: %v", err)
	}
	user.Location = geo.NewPoint(lng, lat)
	user.VolunteerProfile = profile
	return user, token
}

func createTestReport(t *testing.T, db *gorm.DB, reporter *models.User, lng, lat float64) *models.Report {
	t.Helper()

	report := &models.Report{
		ReporterID:       reporter.ID,
		Text:             "Flooded basement",
		Location:         geo.NewPoint(lng, lat),
		Address:          "12 River Road",
		EmergencyType:    "flood",
		PriorityLevel:    "high",
		RequiredSupplies: []string{"pump"},
		Status:           models.ReportStatusPending,
	}
	if err := db.Create(report).Error; err != nil {
		t.Fatalf("failed creating report: %v", err)
	}
	return report
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

type multipartFile struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

func performMultipartRequest(t *testing.T, app *fiber.App, method, path string, fields map[string]string, file *multipartFile, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed writing form field: %v", err)
		}
	}
	if file != nil {
		partHeader := make(textproto.MIMEHeader)
		partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.filename))
		partHeader.Set("Content-Type", file.contentType)
		part, err := writer.CreatePart(partHeader)
		if err != nil {
			t.Fatalf("failed creating form file: %v", err)
		}
		if _, err := part.Write(file.content); err != nil {
			t.Fatalf("failed writing form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	requestHeaders := map[string]string{"Content-Type": writer.FormDataContentType()}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	return performRequest(t, app, method, path, &buf, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T (%+v)", body["data"], body)
	}
	return data
}

func dataList(t *testing.T, body map[string]any) []any {
	t.Helper()
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected data array, got %T (%+v)", body["data"], body)
	}
	return data
}

func refreshCookie(resp *http.Response) *http.Cookie {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == refreshCookieName {
			return cookie
		}
	}
	return nil
}

// waitForAuditRows polls until count rows with action exist.
func waitForAuditRows(t *testing.T, db *gorm.DB, action string, resourceID uuid.UUID, count int64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		var got int64
		if err := db.Model(&models.AuditLog{}).
			Where("action = ? AND resource_id = ?", action, resourceID).
			Count(&got).Error; err != nil {
			t.Fatalf("failed counting audit rows: %v", err)
		}
		if got >= count {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d %s audit rows, got %d", count, action, got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func jsonPoint(lng, lat float64) map[string]any {
	return map[string]any{"type": "Point", "coordinates": []float64{lng, lat}}
}
