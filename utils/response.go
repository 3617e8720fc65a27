package utils

import (
	"github.com/gin-gonic/gin"
)

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends a structured error response carrying a stable reason code
func JSONError(c *gin.Context, status int, reason string, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"reason":  reason,
	})
}
