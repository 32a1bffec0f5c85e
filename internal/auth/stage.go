package auth

// Stage names a step of the login handshake. It tags progress notifications and failures.
type Stage string

const (
	// StageInput is the local credential check that runs before any network call.
	StageInput               Stage = "InvalidInput"
	StageRequestToken        Stage = "RequestToken"
	StageValidateCredentials Stage = "ValidateCredentials"
	StageCreateSession       Stage = "CreateSession"
	StageResolveUser         Stage = "ResolveUser"
)

// Stages lists the network stages in execution order.
var Stages = []Stage{
	StageRequestToken,
	StageValidateCredentials,
	StageCreateSession,
	StageResolveUser,
}

// failureMessages are the user-facing texts shown when a stage fails.
var failureMessages = map[Stage]string{
	StageInput:               "Username or Password Empty.",
	StageRequestToken:        "Login Failed (Request Token).",
	StageValidateCredentials: "Login Failed (Authenticate Token).",
	StageCreateSession:       "Login Failed (Session ID).",
	StageResolveUser:         "Login Failed (Authenticate Token).",
}

// FailureMessage returns the user-facing message for a failed stage.
func FailureMessage(s Stage) string {
	if msg, ok := failureMessages[s]; ok {
		return msg
	}
	return "Login Failed."
}

// State is the pipeline's position in the handshake.
type State int

const (
	StateIdle State = iota
	StateRequestingToken
	StateValidatingCredentials
	StateCreatingSession
	StateResolvingUser
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRequestingToken:
		return "RequestingToken"
	case StateValidatingCredentials:
		return "ValidatingCredentials"
	case StateCreatingSession:
		return "CreatingSession"
	case StateResolvingUser:
		return "ResolvingUser"
	case StateAuthenticated:
		return "Authenticated"
	case StateFailed:
		return "Failed"
	}
	return "Unknown"
}

// Terminal reports whether no further transition can happen in the current attempt.
func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateFailed
}

func stateFor(stage Stage) State {
	switch stage {
	case StageRequestToken:
		return StateRequestingToken
	case StageValidateCredentials:
		return StateValidatingCredentials
	case StageCreateSession:
		return StateCreatingSession
	case StageResolveUser:
		return StateResolvingUser
	}
	return StateIdle
}
