package response

import (
	"errors"
	"net/http"

	"luka-points/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// Envelope is the standard success envelope consumed by the Luka Points
// clients: { "success": true, "data": ... }.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// ErrorEnvelope is the standard error envelope. Non-2xx responses carry a
// human-readable message; the error code is machine-readable.
type ErrorEnvelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Error sends an error response. It checks if err is an *apperror.AppError
// and maps it accordingly, otherwise returns 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorEnvelope{
			Success:   false,
			Message:   appErr.Message,
			ErrorCode: appErr.Code,
		})
		return
	}

	// Unknown error -> 500
	c.JSON(http.StatusInternalServerError, ErrorEnvelope{
		Success:   false,
		Message:   "Internal server error",
		ErrorCode: "SYS_000",
	})
}
