package http

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookkeeper/internal/session"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"` // machine-readable outcome, e.g. "duplicate_email"
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// --- Error Response Helpers ---

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: session.InvalidInput.String()})
}

func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found", Code: session.NotFound.String()})
}

// respondInternalError logs the error and sends a 500 without exposing it.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: session.StorageError.String()})
}

// --- Session results ---

var outcomeStatus = map[session.Outcome]int{
	session.Success:            http.StatusOK,
	session.InvalidInput:       http.StatusBadRequest,
	session.InvalidCredentials: http.StatusUnauthorized,
	session.NotLoggedIn:        http.StatusUnauthorized,
	session.NotFound:           http.StatusNotFound,
	session.DuplicateEmail:     http.StatusConflict,
	session.Duplicate:          http.StatusConflict,
	session.StorageError:       http.StatusInternalServerError,
	session.NetworkError:       http.StatusBadGateway,
}

// statusFor maps a command outcome to an HTTP status code.
func statusFor(outcome session.Outcome) int {
	if status, ok := outcomeStatus[outcome]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondFailure writes a failed Result. Storage errors never leak details.
func respondFailure(c *gin.Context, res session.Result) {
	message := res.Message
	if message == "" {
		message = http.StatusText(statusFor(res.Outcome))
	}
	c.JSON(statusFor(res.Outcome), ErrorResponse{Error: message, Code: res.Outcome.String()})
}

// respondResult writes data with successStatus when res succeeded, or the
// mapped error otherwise.
func respondResult(c *gin.Context, res session.Result, successStatus int, data any) {
	if !res.OK() {
		respondFailure(c, res)
		return
	}
	if data == nil {
		c.JSON(successStatus, SuccessResponse{Message: res.Message})
		return
	}
	c.JSON(successStatus, data)
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	idStr := c.Param(paramName)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}
