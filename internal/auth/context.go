package auth

import "github.com/gin-gonic/gin"

const (
	userIDKey    = "userID"
	userEmailKey = "userEmail"
	userRoleKey  = "userRole"
)

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	return getString(c, userIDKey)
}

// GetUserEmail returns the authenticated user's email or empty string.
func GetUserEmail(c *gin.Context) string {
	return getString(c, userEmailKey)
}

// GetRole returns the authenticated user's role or empty string.
func GetRole(c *gin.Context) string {
	return getString(c, userRoleKey)
}

// IsStaff reports whether the authenticated user may moderate and administer reservations.
func IsStaff(c *gin.Context) bool {
	role := GetRole(c)
	return role == RoleStaff || role == RoleAdmin
}

func getString(c *gin.Context, key string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
