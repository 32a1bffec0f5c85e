package httpx

import (
	"encoding/json"
	"net/http"
)

// StatusError is an error in TMDB's wire format:
//
//	{"success":false,"status_code":7,"status_message":"Invalid API key: ..."}
type StatusError struct {
	HTTPStatus int    `json:"-"`
	Success    bool   `json:"success"`
	Code       int    `json:"status_code"`
	Message    string `json:"status_message"`
}

func (e *StatusError) Error() string {
	return e.Message
}

// Send writes the error. A nil writer is ignored.
func (e *StatusError) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(e.HTTPStatus)
	w.Write(b)
}

func statusError(httpStatus, code int, msg string) *StatusError {
	return &StatusError{HTTPStatus: httpStatus, Code: code, Message: msg}
}

// ErrInternal is TMDB status 11.
func ErrInternal() *StatusError {
	return statusError(http.StatusInternalServerError, 11, "Internal error: Something went wrong, contact TMDb.")
}

// ErrInvalidAPIKey is TMDB status 7.
func ErrInvalidAPIKey() *StatusError {
	return statusError(http.StatusUnauthorized, 7, "Invalid API key: You must be granted a valid key.")
}

// ErrInvalidLogin is TMDB status 30.
func ErrInvalidLogin() *StatusError {
	return statusError(http.StatusUnauthorized, 30, "Invalid username and/or password: You did not provide a valid login.")
}

// ErrInvalidRequestToken is TMDB status 33.
func ErrInvalidRequestToken() *StatusError {
	return statusError(http.StatusUnauthorized, 33, "Invalid request token: The request token is either expired or invalid.")
}

// ErrSessionDenied is TMDB status 17.
func ErrSessionDenied() *StatusError {
	return statusError(http.StatusUnauthorized, 17, "Session denied.")
}

// ErrAuthenticationFailed is TMDB status 3.
func ErrAuthenticationFailed() *StatusError {
	return statusError(http.StatusUnauthorized, 3, "Authentication failed: You do not have permissions to access the service.")
}

// ErrInvalidParameters is TMDB status 22 style validation failure.
func ErrInvalidParameters() *StatusError {
	return statusError(http.StatusUnprocessableEntity, 22, "Invalid parameters: Your request parameters are incorrect.")
}

// ErrResourceNotFound is TMDB status 34.
func ErrResourceNotFound() *StatusError {
	return statusError(http.StatusNotFound, 34, "The resource you requested could not be found.")
}
