package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"testpro/backend/config"
	"testpro/backend/models"
	"testpro/backend/routes"
	"testpro/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var (
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
)

func TestMain(m *testing.M) {
	if err := setup(); err != nil {
		// The API tests need a reachable test database; without one there is
		// nothing to run.
		fmt.Println("skipping API tests:", err)
		os.Exit(0)
	}

	code := m.Run()
	teardown()
	os.Exit(code)
}

func setup() error {
	cfg = &config.Config{
		DBHost:     getenv("TEST_DB_HOST", "localhost"),
		DBPort:     getenv("TEST_DB_PORT", "5432"),
		DBUser:     getenv("TEST_DB_USER", "postgres"),
		DBPassword: getenv("TEST_DB_PASSWORD", "postgres"),
		DBName:     getenv("TEST_DB_NAME", "testpro_test"),
		JWTSecret:  "testsecret",
		ServerPort: "8080",
	}

	var err error
	db, err = utils.InitDB(cfg)
	if err != nil {
		return err
	}

	app = fiber.New()
	routes.SetupRoutes(app, db, cfg, utils.InitLogger())
	return nil
}

func teardown() {
	db.Migrator().DropTable(
		&models.User{},
		&models.Test{},
		&models.Question{},
		&models.Result{},
	)
}

func getenv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// doJSON runs one request against the app and decodes the JSON reply.
func doJSON(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return resp.StatusCode, result
}

// doJSONList is doJSON for endpoints replying with a JSON array.
func doJSONList(t *testing.T, method, path, token string) (int, []map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var result []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return resp.StatusCode, result
}

// registerUser creates a fresh account and returns its token and id.
func registerUser(t *testing.T, name, email string) (string, uint) {
	t.Helper()

	status, result := doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "password123",
	})
	if status != fiber.StatusOK {
		t.Fatalf("register %s: status %d (%v)", email, status, result)
	}

	token := result["token"].(string)
	id := uint(result["user"].(map[string]interface{})["id"].(float64))
	return token, id
}
