package tests

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestRegisterAndLogin(t *testing.T) {
	status, result := doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Auth User",
		"email":    "auth@example.com",
		"password": "password123",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, result["token"])
	assert.NotEmpty(t, result["user"])

	status, result = doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "auth@example.com",
		"password": "password123",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, result["token"])

	status, result = doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "auth@example.com",
		"password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", result["error"])
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	status, _ := doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "incomplete@example.com",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestProfile(t *testing.T) {
	token, _ := registerUser(t, "Profile User", "profile@example.com")

	status, result := doJSON(t, http.MethodGet, "/api/user/profile", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Profile User", result["name"])
	assert.Equal(t, "user", result["role"])

	status, result = doJSON(t, http.MethodPut, "/api/user/profile", token, map[string]string{
		"name": "Renamed User",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Renamed User", result["user"].(map[string]interface{})["name"])

	status, _ = doJSON(t, http.MethodGet, "/api/user/profile", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
