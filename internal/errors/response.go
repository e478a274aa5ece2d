package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DetailResponse is the cart API's documented error envelope. Mutation
// failures never leak which variant or constraint caused them.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// Cart API contract messages.
const (
	DetailUnableToUpdateCart = "Unable to update cart."
	DetailUnableToMergeCart  = "Unable to merge cart."
	DetailMissingSessionID   = "Missing X-Session-Id."
	DetailNotFound           = "Not found."
)

// RespondWithError writes a standard error envelope.
func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// RespondWithDetail writes a cart-contract error envelope.
func RespondWithDetail(c *gin.Context, statusCode int, detail string) {
	c.JSON(statusCode, DetailResponse{Detail: detail})
}

// Frequently used shortcuts.

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	RespondWithError(c, http.StatusUnauthorized, AuthUnauthorized, message)
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func NotFound(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusNotFound, errorCode, message)
}

func Conflict(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusConflict, errorCode, message)
}

func TooManyRequests(c *gin.Context, message string) {
	if message == "" {
		message = "Request was throttled"
	}
	RespondWithError(c, http.StatusTooManyRequests, ThrottleExceeded, message)
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "An internal error occurred. Please try again later"
	}
	RespondWithError(c, http.StatusInternalServerError, InternalServerError, message)
}
