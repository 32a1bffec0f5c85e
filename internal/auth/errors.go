package auth

import (
	"fmt"

	"github.com/tansive/tmdbauth/internal/common/apperrors"
)

var (
	// ErrLoginFailed is the base error for every login failure.
	ErrLoginFailed apperrors.Error = apperrors.New("login failed")

	// ErrInvalidInput is returned when the username or password is empty.
	ErrInvalidInput apperrors.Error = ErrLoginFailed.New("username or password empty")

	// ErrTransport is returned when a request could not be sent or its response read.
	ErrTransport apperrors.Error = ErrLoginFailed.New("transport error")

	// ErrHTTPStatus is returned for a response status outside [200,299].
	// The status code is available through StatusCode.
	ErrHTTPStatus apperrors.Error = ErrLoginFailed.New("non-2xx status")

	// ErrMalformedResponse is returned when the response body is not valid JSON.
	ErrMalformedResponse apperrors.Error = ErrLoginFailed.New("malformed response")

	// ErrMissingField is returned when the JSON body lacks the expected field, or the
	// field has the wrong type.
	ErrMissingField apperrors.Error = ErrLoginFailed.New("missing field")

	// ErrCredentialsRejected is returned when the API does not confirm the credentials.
	ErrCredentialsRejected apperrors.Error = ErrLoginFailed.New("authentication rejected")

	// ErrAbandoned is returned when the attempt was abandoned or its context ended.
	ErrAbandoned apperrors.Error = ErrLoginFailed.New("login abandoned")

	// ErrBusy is returned by Start while another attempt is running.
	ErrBusy apperrors.Error = apperrors.New("login already in progress")
)

// Failure is the error returned for a failed attempt.
type Failure struct {
	Stage   Stage  // stage that failed
	Reason  string // short diagnostic, e.g. "non-2xx status"
	Message string // user-facing text for the stage
	Err     apperrors.Error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Stage, f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// StatusCode returns the HTTP status of an ErrHTTPStatus failure, 0 otherwise.
func (f *Failure) StatusCode() int {
	if f.Err == nil {
		return 0
	}
	return f.Err.StatusCode()
}

func newFailure(stage Stage, reason string, err apperrors.Error) *Failure {
	return &Failure{
		Stage:   stage,
		Reason:  reason,
		Message: FailureMessage(stage),
		Err:     err,
	}
}
