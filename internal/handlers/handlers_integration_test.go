package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"skgvault/internal/handlers"
	"skgvault/internal/middleware"
	"skgvault/internal/models"
	"skgvault/internal/repositories"
	"skgvault/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testAPIKey = "test_api_key"

// setupApp builds a full Fiber app over an in-memory SQLite database with the
// same middleware chain as production: API-key gate in front of everything,
// token gates per route.
func setupApp() (*fiber.App, error) {
	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	// A unique shared-cache name keeps each test's database isolated while
	// still surviving across pooled connections.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to in-memory database: %w", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.SecretKey{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	userRepo := repositories.NewGORMUserRepository(db)
	skRepo := repositories.NewGORMSecretKeyRepository(db)

	authService := services.NewAuthService(userRepo, nil, jwtSecret)
	userService := services.NewUserService(userRepo, skRepo)
	skService := services.NewSecretKeyService(skRepo, nil)

	userHandler := handlers.NewUserHandler(authService, userService)
	skHandler := handlers.NewSecretKeyHandler(skService)

	app := fiber.New()
	app.Use(middleware.APIKeyRequired(testAPIKey))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Welcome to the API!"})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := app.Group("/api")
	auth := middleware.AuthRequired(authService)
	admin := middleware.AdminRequired(authService)

	skHandler.RegisterRoutes(api, auth)
	userHandler.RegisterRoutes(api, auth, admin)

	return app, nil
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

// doRequest drives the app with an optional JSON body, API key and token.
func doRequest(t *testing.T, app *fiber.App, method, path string, body interface{}, apiKey, token string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	return payload
}

// registerUser registers a user and returns their token.
func registerUser(t *testing.T, app *fiber.App, username string, isAdmin bool) string {
	t.Helper()
	resp := doRequest(t, app, http.MethodPost, "/api/users/register", map[string]interface{}{
		"name":     "Test",
		"username": username,
		"password": "password123",
		"isAdmin":  isAdmin,
	}, testAPIKey, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	payload := decodeBody(t, resp)
	token, _ := payload["token"].(string)
	assert.NotEmpty(t, token)
	return token
}

func TestAPIKeyGate(t *testing.T) {
	app, err := setupApp()
	assert.NoError(t, err)

	// Missing key: 401 everywhere, including the welcome route.
	resp := doRequest(t, app, http.MethodGet, "/", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	payload := decodeBody(t, resp)
	assert.Equal(t, "Unauthorized", payload["error"])

	// Wrong key: same result.
	resp = doRequest(t, app, http.MethodPost, "/api/users/register", map[string]string{
		"name": "A", "username": "a1", "password": "p",
	}, "wrong_key", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// The gated register never reached the store: the same username still
	// registers cleanly afterwards.
	resp = doRequest(t, app, http.MethodPost, "/api/users/register", map[string]string{
		"name": "A", "username": "a1", "password": "p",
	}, testAPIKey, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Valid key: welcome message.
	resp = doRequest(t, app, http.MethodGet, "/", nil, testAPIKey, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	payload = decodeBody(t, resp)
	assert.Equal(t, "Welcome to the API!", payload["message"])

	// The health check sits behind the same gate.
	resp = doRequest(t, app, http.MethodGet, "/health", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodGet, "/health", nil, testAPIKey, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	payload = decodeBody(t, resp)
	assert.Equal(t, "healthy", payload["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	app, err := setupApp()
	assert.NoError(t, err)

	// Register issues a token for the new identity.
	resp := doRequest(t, app, http.MethodPost, "/api/users/register", map[string]string{
		"name": "A", "username": "a1", "password": "p",
	}, testAPIKey, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	payload := decodeBody(t, resp)
	assert.NotEmpty(t, payload["token"])

	// Duplicate username is rejected and no second record is created.
	resp = doRequest(t, app, http.MethodPost, "/api/users/register", map[string]string{
		"name": "B", "username": "a1", "password": "other",
	}, testAPIKey, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	payload = decodeBody(t, resp)
	assert.Equal(t, "User already exists", payload["message"])

	// Login with the registered credentials succeeds.
	resp = doRequest(t, app, http.MethodPost, "/api/users/login", map[string]string{
		"username": "a1", "password": "p",
	}, testAPIKey, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	payload = decodeBody(t, resp)
	token, _ := payload["token"].(string)
	assert.NotEmpty(t, token)

	// The token resolves to the registered record.
	resp = doRequest(t, app, http.MethodGet, "/api/users/myself", nil, testAPIKey, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	payload = decodeBody(t, resp)
	assert.Equal(t, "a1", payload["username"])
	assert.NotEmpty(t, payload["id"])
	// The password hash is never serialized.
	_, hasPassword := payload["password"]
	assert.False(t, hasPassword)

	// Wrong password is an opaque 400.
	resp = doRequest(t, app, http.MethodPost, "/api/users/login", map[string]string{
		"username": "a1", "password": "wrong",
	}, testAPIKey, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	payload = decodeBody(t, resp)
	assert.Equal(t, "Invalid credentials", payload["message"])

	// Unknown username reads identically.
	resp = doRequest(t, app, http.MethodPost, "/api/users/login", map[string]string{
		"username": "nobody", "password": "p",
	}, testAPIKey, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	payload = decodeBody(t, resp)
	assert.Equal(t, "Invalid credentials", payload["message"])
}

func TestSecretKeyOwnership(t *testing.T) {
	app, err := setupApp()
	assert.NoError(t, err)

	tokenA := registerUser(t, app, "alice", false)
	tokenB := registerUser(t, app, "bob", false)

	// Alice creates a key.
	resp := doRequest(t, app, http.MethodPost, "/api/skg", map[string]string{
		"title": "alice's key",
	}, testAPIKey, tokenA)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)
	keyID, _ := created["id"].(string)
	assert.NotEmpty(t, keyID)
	secret, _ := created["secretKey"].(string)
	assert.Len(t, secret, 64)

	// Alice sees it in her list; Bob's list is empty.
	resp = doRequest(t, app, http.MethodGet, "/api/skg", nil, testAPIKey, tokenA)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var listA []map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listA))
	resp.Body.Close()
	assert.Len(t, listA, 1)

	resp = doRequest(t, app, http.MethodGet, "/api/skg", nil, testAPIKey, tokenB)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var listB []map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listB))
	resp.Body.Close()
	assert.Empty(t, listB)

	// Bob cannot read, update or delete Alice's key: 403, not 404.
	resp = doRequest(t, app, http.MethodGet, "/api/skg/"+keyID, nil, testAPIKey, tokenB)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodPut, "/api/skg/"+keyID, map[string]string{
		"title": "stolen",
	}, testAPIKey, tokenB)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodDelete, "/api/skg/"+keyID, nil, testAPIKey, tokenB)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// A nonexistent id is 404 for everyone.
	resp = doRequest(t, app, http.MethodDelete, "/api/skg/"+uuid.New().String(), nil, testAPIKey, tokenA)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Alice updates the title; the secret stays the same.
	resp = doRequest(t, app, http.MethodPut, "/api/skg/"+keyID, map[string]string{
		"title": "renamed",
	}, testAPIKey, tokenA)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody(t, resp)
	assert.Equal(t, "renamed", updated["title"])
	assert.Equal(t, secret, updated["secretKey"])

	// Alice deletes it, after which it is gone.
	resp = doRequest(t, app, http.MethodDelete, "/api/skg/"+keyID, nil, testAPIKey, tokenA)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodGet, "/api/skg/"+keyID, nil, testAPIKey, tokenA)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGenerateDoesNotPersist(t *testing.T) {
	app, err := setupApp()
	assert.NoError(t, err)

	token := registerUser(t, app, "gen", false)

	// Generate is open to any API-key holder, no user token required.
	resp := doRequest(t, app, http.MethodPost, "/api/skg/generate", nil, testAPIKey, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	first := decodeBody(t, resp)
	firstSecret, _ := first["secretKey"].(string)
	assert.Len(t, firstSecret, 64)

	resp = doRequest(t, app, http.MethodPost, "/api/skg/generate", nil, testAPIKey, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	second := decodeBody(t, resp)
	assert.NotEqual(t, firstSecret, second["secretKey"])

	// Nothing was persisted.
	resp = doRequest(t, app, http.MethodGet, "/api/skg", nil, testAPIKey, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Empty(t, list)
}

func TestTokenGate(t *testing.T) {
	app, err := setupApp()
	assert.NoError(t, err)

	// No token.
	resp := doRequest(t, app, http.MethodGet, "/api/skg", nil, testAPIKey, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	payload := decodeBody(t, resp)
	assert.Equal(t, "No token provided", payload["error"])

	// Invalid token.
	resp = doRequest(t, app, http.MethodGet, "/api/skg", nil, testAPIKey, "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	payload = decodeBody(t, resp)
	assert.Equal(t, "Invalid token", payload["error"])
}

func TestAdminGate(t *testing.T) {
	app, err := setupApp()
	assert.NoError(t, err)

	userToken := registerUser(t, app, "plain", false)
	adminToken := registerUser(t, app, "root", true)

	// A regular user cannot list users.
	resp := doRequest(t, app, http.MethodGet, "/api/users", nil, testAPIKey, userToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// An admin can.
	resp = doRequest(t, app, http.MethodGet, "/api/users", nil, testAPIKey, adminToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var users []map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	resp.Body.Close()
	assert.Len(t, users, 2)

	// Unknown id is 404 for an admin.
	resp = doRequest(t, app, http.MethodGet, "/api/users/"+uuid.New().String(), nil, testAPIKey, adminToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Admin updates and deletes a user by id.
	var plainID string
	for _, u := range users {
		if u["username"] == "plain" {
			plainID, _ = u["id"].(string)
		}
	}
	assert.NotEmpty(t, plainID)

	resp = doRequest(t, app, http.MethodPut, "/api/users/"+plainID, map[string]interface{}{
		"surname": "Renamed",
	}, testAPIKey, adminToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodDelete, "/api/users/"+plainID, nil, testAPIKey, adminToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodGet, "/api/users/"+plainID, nil, testAPIKey, adminToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestMyselfEndpoints(t *testing.T) {
	app, err := setupApp()
	assert.NoError(t, err)

	token := registerUser(t, app, "selfie", false)

	// Update own profile.
	resp := doRequest(t, app, http.MethodPut, "/api/users/myself", map[string]interface{}{
		"name": "Updated", "isAdmin": true,
	}, testAPIKey, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodGet, "/api/users/myself", nil, testAPIKey, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decodeBody(t, resp)
	assert.Equal(t, "Updated", payload["name"])
	// The self endpoint must not allow privilege escalation.
	assert.Equal(t, false, payload["isAdmin"])

	// Delete own record; the token now resolves to nothing.
	resp = doRequest(t, app, http.MethodDelete, "/api/users/myself", nil, testAPIKey, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodGet, "/api/users/myself", nil, testAPIKey, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestFavorites(t *testing.T) {
	app, err := setupApp()
	assert.NoError(t, err)

	tokenA := registerUser(t, app, "owner", false)
	tokenB := registerUser(t, app, "fan", false)

	// The owner creates a key.
	resp := doRequest(t, app, http.MethodPost, "/api/skg", map[string]string{
		"title": "popular key",
	}, testAPIKey, tokenA)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)
	keyID, _ := created["id"].(string)

	// Any authenticated user may favorite an existing key.
	resp = doRequest(t, app, http.MethodPost, "/api/users/addsktofav/"+keyID, nil, testAPIKey, tokenB)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decodeBody(t, resp)
	assert.Equal(t, "Secret key added to favourites", payload["message"])

	// The second add conflicts and the list stays deduplicated.
	resp = doRequest(t, app, http.MethodPost, "/api/users/addsktofav/"+keyID, nil, testAPIKey, tokenB)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	payload = decodeBody(t, resp)
	assert.Equal(t, "Secret key already in favourites", payload["message"])

	resp = doRequest(t, app, http.MethodGet, "/api/users/myself", nil, testAPIKey, tokenB)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	payload = decodeBody(t, resp)
	favs, _ := payload["favSK"].([]interface{})
	assert.Len(t, favs, 1)
	fav, _ := favs[0].(map[string]interface{})
	assert.Equal(t, keyID, fav["skId"])
	assert.NotEmpty(t, fav["addedAt"])

	// A nonexistent key cannot be favorited.
	resp = doRequest(t, app, http.MethodPost, "/api/users/addsktofav/"+uuid.New().String(), nil, testAPIKey, tokenB)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestFavoriteWithDeletedAccount(t *testing.T) {
	app, err := setupApp()
	assert.NoError(t, err)

	tokenA := registerUser(t, app, "owner", false)
	tokenB := registerUser(t, app, "ghost", false)

	resp := doRequest(t, app, http.MethodPost, "/api/skg", map[string]string{
		"title": "still here",
	}, testAPIKey, tokenA)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)
	keyID, _ := created["id"].(string)

	// The caller deletes their account but keeps the token.
	resp = doRequest(t, app, http.MethodDelete, "/api/users/myself", nil, testAPIKey, tokenB)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The 404 names the missing user, not the key, which still exists.
	resp = doRequest(t, app, http.MethodPost, "/api/users/addsktofav/"+keyID, nil, testAPIKey, tokenB)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	payload := decodeBody(t, resp)
	assert.Equal(t, "User not found", payload["message"])
}
