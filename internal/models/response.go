// Package models defines the API response envelope for StreakBot endpoints.
package models

// APIResponse is the standard envelope returned by the HTTP surface.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Response status constants
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Success creates a successful API response with an optional result.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: StatusOK, Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: StatusOK, Message: message, Result: result}
}

// Error creates an error API response.
func Error(message string) APIResponse {
	return APIResponse{Status: StatusError, Message: message}
}
