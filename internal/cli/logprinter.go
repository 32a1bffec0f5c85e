package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/tansive/tmdbauth/internal/auth"
	"github.com/tansive/tmdbauth/internal/eventbus"
)

var stageLabel = color.New(color.FgHiMagenta, color.Bold)
var progressColor = color.New(color.FgHiWhite, color.Faint)
var successLabel = color.New(color.FgGreen).Add(color.Bold)
var failureLabel = color.New(color.FgRed).Add(color.Bold)

var progressText = map[auth.Stage]string{
	auth.StageRequestToken:        "Requesting token",
	auth.StageValidateCredentials: "Validating credentials",
	auth.StageCreateSession:       "Creating session",
	auth.StageResolveUser:         "Resolving user",
}

// printLoginEvent renders one event published by auth.BusPresenter. Unknown events
// are ignored.
func printLoginEvent(w io.Writer, e eventbus.Event) {
	switch ev := e.Data.(type) {
	case auth.ProgressEvent:
		text, ok := progressText[ev.Stage]
		if !ok {
			text = string(ev.Stage)
		}
		stageLabel.Fprintf(w, "[%s] ", ev.Stage)
		progressColor.Fprintf(w, "%s...\n", text)
	case auth.FailureEvent:
		failureLabel.Fprint(w, "✗ ")
		failureLabel.Fprintln(w, ev.Message)
	case auth.SuccessEvent:
		successLabel.Fprint(w, "✓ ")
		successLabel.Fprintln(w, "Login successful")
		fmt.Fprintf(w, "User ID:    %d\n", ev.UserID)
		fmt.Fprintf(w, "Session ID: %s\n", ev.SessionID)
	}
}

// printLoginEvents renders events until the channel is closed, then closes done.
func printLoginEvents(w io.Writer, events <-chan eventbus.Event, done chan<- struct{}) {
	defer close(done)
	for e := range events {
		printLoginEvent(w, e)
	}
}
