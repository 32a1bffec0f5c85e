package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tansive/tmdbauth/internal/common/httpclient"
)

// reply is one scripted response.
type reply struct {
	body   string
	status int   // non-2xx status, returned as *httpclient.HTTPError
	err    error // transport error
	// started is signalled when the call is made; wait blocks it until closed or
	// the context ends.
	started chan struct{}
	wait    chan struct{}
}

type recordedCall struct {
	Method string
	Path   string
	Params map[string]string
}

// scriptedClient answers each path with its scripted replies, in order.
type scriptedClient struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   []recordedCall
}

func newScriptedClient(replies map[string][]reply) *scriptedClient {
	return &scriptedClient{replies: replies}
}

func (c *scriptedClient) DoRequest(ctx context.Context, opts httpclient.RequestOptions) ([]byte, error) {
	c.mu.Lock()
	params := make(map[string]string, len(opts.QueryParams))
	for k, v := range opts.QueryParams {
		params[k] = v
	}
	c.calls = append(c.calls, recordedCall{Method: opts.Method, Path: opts.Path, Params: params})
	queue := c.replies[opts.Path]
	if len(queue) == 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("unexpected call to %s", opts.Path)
	}
	r := queue[0]
	c.replies[opts.Path] = queue[1:]
	c.mu.Unlock()

	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.wait != nil {
		select {
		case <-r.wait:
		case <-ctx.Done():
			return nil, httpclient.ErrRequestFailed.Err(ctx.Err())
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.status != 0 {
		return nil, &httpclient.HTTPError{StatusCode: r.status, Message: r.body}
	}
	return []byte(r.body), nil
}

func (c *scriptedClient) Calls() []recordedCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recordedCall(nil), c.calls...)
}

func (c *scriptedClient) Paths() []string {
	var paths []string
	for _, call := range c.Calls() {
		paths = append(paths, call.Path)
	}
	return paths
}

// successReplies is the happy path: token T1, session S1, user 42.
func successReplies() map[string][]reply {
	return map[string][]reply{
		PathRequestToken: {{body: `{"success":true,"expires_at":"2025-01-01 12:00:00 UTC","request_token":"T1"}`}},
		PathValidate:     {{body: `{"success":true,"request_token":"T1"}`}},
		PathNewSession:   {{body: `{"success":true,"session_id":"S1"}`}},
		PathAccount:      {{body: `{"id":42,"username":"alice"}`}},
	}
}

type presenterEvent struct {
	Kind      string
	Stage     Stage
	Message   string
	UserID    int64
	SessionID string
}

// recordingPresenter records every callback. onFailure, if set, runs after recording.
type recordingPresenter struct {
	mu        sync.Mutex
	events    []presenterEvent
	onFailure func(Stage, string)
}

func (p *recordingPresenter) OnProgress(stage Stage) {
	p.record(presenterEvent{Kind: "progress", Stage: stage})
}

func (p *recordingPresenter) OnFailure(stage Stage, message string) {
	p.record(presenterEvent{Kind: "failure", Stage: stage, Message: message})
	if p.onFailure != nil {
		p.onFailure(stage, message)
	}
}

func (p *recordingPresenter) OnSuccess(userID int64, sessionID string) {
	p.record(presenterEvent{Kind: "success", UserID: userID, SessionID: sessionID})
}

func (p *recordingPresenter) record(e presenterEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPresenter) Events() []presenterEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]presenterEvent(nil), p.events...)
}

func (p *recordingPresenter) Progress() []Stage {
	var stages []Stage
	for _, e := range p.Events() {
		if e.Kind == "progress" {
			stages = append(stages, e.Stage)
		}
	}
	return stages
}

func (p *recordingPresenter) Failures() []presenterEvent {
	var failures []presenterEvent
	for _, e := range p.Events() {
		if e.Kind == "failure" {
			failures = append(failures, e)
		}
	}
	return failures
}

// recordingStore is a CredentialStore that keeps the order of writes.
type recordingStore struct {
	mu     sync.Mutex
	writes []string
	token  string
	sessID string
	userID int64
}

func (s *recordingStore) SetRequestToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, "request_token")
	s.token = token
}

func (s *recordingStore) SetSessionID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, "session_id")
	s.sessID = id
}

func (s *recordingStore) SetUserID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, "user_id")
	s.userID = id
}

func (s *recordingStore) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func asFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return nil
}
