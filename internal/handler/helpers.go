package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/service"
)

// ErrorResponse is the JSON error envelope returned by every endpoint
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// stringPtr creates a pointer to a string
func stringPtr(s string) *string {
	return &s
}

// respondError writes the standard error envelope
func respondError(c *gin.Context, status int, code, message string, details *string) {
	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// respondServiceError maps service failures to HTTP responses. Protocol
// denials keep their code and user-facing message; anything else is a 500.
func respondServiceError(c *gin.Context, err error) {
	var deniedErr *service.DeniedError
	if errors.As(err, &deniedErr) {
		status := http.StatusConflict
		switch deniedErr.Code {
		case service.DenialInvalidInput:
			status = http.StatusBadRequest
		case service.DenialUnsupportedCondition:
			status = http.StatusUnprocessableEntity
		}
		respondError(c, status, deniedErr.Code, deniedErr.Message, nil)
		return
	}
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", stringPtr(err.Error()))
}
