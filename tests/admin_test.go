package tests

import (
	"fmt"
	"net/http"
	"testing"

	"testpro/backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

// promote flips an account to the admin role directly in the database, the
// way the very first admin is seeded in a deployment.
func promote(t *testing.T, userID uint) {
	t.Helper()
	if err := db.Model(&models.User{}).Where("id = ?", userID).Update("role", "admin").Error; err != nil {
		t.Fatalf("promote user %d: %v", userID, err)
	}
}

func TestAdminAccessControl(t *testing.T) {
	userToken, _ := registerUser(t, "Plain User", "plain@example.com")

	status, _ := doJSON(t, http.MethodGet, "/api/admin/stats", userToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = doJSON(t, http.MethodGet, "/api/admin/stats", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestAdminStatsAndUsers(t *testing.T) {
	adminToken, adminID := registerUser(t, "The Admin", "admin@example.com")
	promote(t, adminID)

	status, result := doJSON(t, http.MethodGet, "/api/admin/stats", adminToken, nil)
	assert.Equal(t, fiber.StatusOK, status)

	data := result["data"].(map[string]interface{})
	assert.GreaterOrEqual(t, data["total_users"].(float64), float64(1))
	assert.Len(t, data["activity"].([]interface{}), 7)

	status, users := doJSONList(t, http.MethodGet, "/api/admin/users", adminToken)
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, users)
}

func TestAdminManagesUsers(t *testing.T) {
	adminToken, adminID := registerUser(t, "Role Admin", "roleadmin@example.com")
	promote(t, adminID)

	_, targetID := registerUser(t, "Target", "target@example.com")

	status, result := doJSON(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", targetID), adminToken, map[string]string{
		"role": "admin",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "admin", result["user"].(map[string]interface{})["role"])

	status, _ = doJSON(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", targetID), adminToken, map[string]string{
		"role": "superuser",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", targetID), adminToken, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", targetID), adminToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
