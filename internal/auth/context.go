package auth

import "github.com/gin-gonic/gin"

const (
	subjectKey = "authSubject"
	roleKey    = "authRole"
)

// GetSubject returns the authenticated subject or empty string.
func GetSubject(c *gin.Context) string {
	return c.GetString(subjectKey)
}

// GetRole returns the authenticated role or empty string.
func GetRole(c *gin.Context) string {
	return c.GetString(roleKey)
}
