package auth

import (
	"time"

	"github.com/tansive/tmdbauth/internal/eventbus"
)

// Topics published by BusPresenter.
const (
	TopicProgress = "login.progress"
	TopicFailure  = "login.failure"
	TopicSuccess  = "login.success"
)

// ProgressEvent is published on TopicProgress.
type ProgressEvent struct {
	Stage Stage
}

// FailureEvent is published on TopicFailure.
type FailureEvent struct {
	Stage   Stage
	Message string
}

// SuccessEvent is published on TopicSuccess.
type SuccessEvent struct {
	UserID    int64
	SessionID string
}

// BusPresenter forwards notifications to an event bus so several renderers can follow
// one attempt.
type BusPresenter struct {
	bus     *eventbus.EventBus
	timeout time.Duration
}

// NewBusPresenter publishes on bus, dropping events for subscribers that stay blocked
// longer than timeout.
func NewBusPresenter(bus *eventbus.EventBus, timeout time.Duration) *BusPresenter {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &BusPresenter{bus: bus, timeout: timeout}
}

func (p *BusPresenter) OnProgress(stage Stage) {
	p.bus.Publish(TopicProgress, ProgressEvent{Stage: stage}, p.timeout)
}

func (p *BusPresenter) OnFailure(stage Stage, message string) {
	p.bus.Publish(TopicFailure, FailureEvent{Stage: stage, Message: message}, p.timeout)
}

func (p *BusPresenter) OnSuccess(userID int64, sessionID string) {
	p.bus.Publish(TopicSuccess, SuccessEvent{UserID: userID, SessionID: sessionID}, p.timeout)
}
