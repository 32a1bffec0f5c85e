package auth

// Credentials are supplied per attempt and never stored.
type Credentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Session is the server-side authenticated context.
type Session struct {
	ID string `json:"session_id"`
}

// User is the account resolved from a session.
type User struct {
	ID int64 `json:"user_id"`
}

// Result is the outcome of a successful attempt.
type Result struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}

// Outcome carries either a Result or the error (a *Failure) of an attempt.
type Outcome struct {
	Result Result
	Err    error
}
