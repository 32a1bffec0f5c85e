// Package apperrors provides the error type used for the login taxonomy. Errors form a
// tree: a child created with New keeps its parent reachable through errors.Is, and may
// carry the remote HTTP status code that produced it.
package apperrors

// Error extends the standard error interface with chaining helpers. All methods that
// return Error leave the receiver unchanged.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // child error with a new message
	MsgErr(msg string, err ...error) Error // new message, wraps the receiver and err
	Err(err ...error) Error                // keeps the message, attaches err
	SetStatusCode(int) Error               // records the HTTP status code
	StatusCode() int                       // recorded HTTP status code, 0 if none
	ErrorAll() string                      // message followed by attached errors
}
