package controllers

import (
	"errors"
	"log"
	"net/http"

	"franchise-dispatch-api/services"

	"github.com/gin-gonic/gin"
)

var app *services.App

// Use installs the workflows the handlers call into.
func Use(a *services.App) {
	app = a
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotEligible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the structured failure result. Internal errors are
// logged with full detail and reported generically.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"kind":    services.ErrorKind(err),
			"message": services.PublicMessage(err),
		},
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   gin.H{"kind": "ValidationError", "message": message},
	})
}

func currentMerchantID(c *gin.Context) string {
	return c.GetString("merchantID")
}

func currentActor(c *gin.Context) string {
	if actor := c.GetString("actor"); actor != "" {
		return actor
	}
	if merchantID := c.GetString("merchantID"); merchantID != "" {
		return merchantID
	}
	return c.GetString("role")
}
