package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/tmdbauth/internal/common/httpclient"
	"github.com/tansive/tmdbauth/internal/credstore"
)

var testCreds = Credentials{Username: "alice", Password: "secret"}

func waitOutcome(t *testing.T, out <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o, ok := <-out:
		require.True(t, ok, "outcome channel closed without a value")
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for outcome")
	}
	return Outcome{}
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for request")
	}
}

func TestEmptyCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"empty username", Credentials{Password: "secret"}},
		{"empty password", Credentials{Username: "alice"}},
		{"both empty", Credentials{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newScriptedClient(successReplies())
			presenter := &recordingPresenter{}
			store := &recordingStore{}
			p := New(client, store, WithPresenter(presenter))

			_, err := p.Authenticate(context.Background(), tt.creds)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.ErrorIs(t, err, ErrLoginFailed)

			f := asFailure(err)
			require.NotNil(t, f)
			assert.Equal(t, StageInput, f.Stage)
			assert.Equal(t, "Username or Password Empty.", f.Message)

			assert.Empty(t, client.Calls(), "no request may be sent")
			assert.Empty(t, store.Writes())
			assert.Empty(t, presenter.Progress())
			assert.Equal(t, []presenterEvent{{Kind: "failure", Stage: StageInput, Message: "Username or Password Empty."}}, presenter.Events())
			assert.Equal(t, StateFailed, p.State())
		})
	}
}

func TestSuccessfulLogin(t *testing.T) {
	client := newScriptedClient(successReplies())
	presenter := &recordingPresenter{}
	store := credstore.NewMemory()
	p := New(client, store, WithPresenter(presenter))

	res, err := p.Authenticate(context.Background(), testCreds)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.User.ID)
	assert.Equal(t, "S1", res.Session.ID)

	assert.Equal(t, Stages, presenter.Progress())
	events := presenter.Events()
	require.Len(t, events, 5)
	assert.Equal(t, presenterEvent{Kind: "success", UserID: 42, SessionID: "S1"}, events[4])
	assert.Empty(t, presenter.Failures())

	assert.Equal(t, []string{PathRequestToken, PathValidate, PathNewSession, PathAccount}, client.Paths())
	calls := client.Calls()
	assert.Equal(t, http.MethodGet, calls[1].Method)
	assert.Equal(t, map[string]string{"request_token": "T1", "username": "alice", "password": "secret"}, calls[1].Params)
	assert.Equal(t, map[string]string{"request_token": "T1"}, calls[2].Params)
	assert.Equal(t, map[string]string{"session_id": "S1"}, calls[3].Params)

	snap := store.Snapshot()
	assert.Equal(t, "T1", snap.RequestToken)
	assert.Equal(t, "S1", snap.SessionID)
	assert.Equal(t, int64(42), snap.UserID)
	assert.True(t, snap.Authenticated())

	assert.Equal(t, StateAuthenticated, p.State())
	assert.False(t, p.Busy())
}

func TestStoreWriteOrder(t *testing.T) {
	store := &recordingStore{}
	p := New(newScriptedClient(successReplies()), store)

	_, err := p.Authenticate(context.Background(), testCreds)
	require.NoError(t, err)
	assert.Equal(t, []string{"request_token", "session_id", "user_id"}, store.Writes())
}

func TestValidateWithPost(t *testing.T) {
	client := newScriptedClient(successReplies())
	p := New(client, credstore.NewMemory(), WithValidateMethod(http.MethodPost))

	_, err := p.Authenticate(context.Background(), testCreds)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, client.Calls()[1].Method)

	// anything else leaves the default in place
	client = newScriptedClient(successReplies())
	p = New(client, credstore.NewMemory(), WithValidateMethod(http.MethodPut))
	_, err = p.Authenticate(context.Background(), testCreds)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, client.Calls()[1].Method)
}

func TestCredentialsRejected(t *testing.T) {
	bodies := map[string]string{
		"success false":    `{"success":false}`,
		"success absent":   `{"request_token":"T1"}`,
		"success string":   `{"success":"true"}`,
		"status 30 in 2xx": `{"success":false,"status_code":30,"status_message":"Invalid username and/or password"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			replies := successReplies()
			replies[PathValidate] = []reply{{body: body}}
			client := newScriptedClient(replies)
			presenter := &recordingPresenter{}
			store := credstore.NewMemory()
			p := New(client, store, WithPresenter(presenter))

			_, err := p.Authenticate(context.Background(), testCreds)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCredentialsRejected)

			f := asFailure(err)
			require.NotNil(t, f)
			assert.Equal(t, StageValidateCredentials, f.Stage)
			assert.Equal(t, "authentication rejected", f.Reason)
			assert.Equal(t, "Login Failed (Authenticate Token).", f.Message)

			assert.Len(t, client.Calls(), 2, "no step after a rejection")
			assert.Equal(t, []Stage{StageRequestToken, StageValidateCredentials}, presenter.Progress())
			assert.Equal(t, []presenterEvent{{Kind: "failure", Stage: StageValidateCredentials, Message: "Login Failed (Authenticate Token)."}}, presenter.Failures())

			snap := store.Snapshot()
			assert.Equal(t, "T1", snap.RequestToken)
			assert.Empty(t, snap.SessionID)
			assert.False(t, snap.Authenticated())
		})
	}
}

func TestFailureAtEachStage(t *testing.T) {
	tests := []struct {
		stage   Stage
		path    string
		message string
	}{
		{StageRequestToken, PathRequestToken, "Login Failed (Request Token)."},
		{StageValidateCredentials, PathValidate, "Login Failed (Authenticate Token)."},
		{StageCreateSession, PathNewSession, "Login Failed (Session ID)."},
		{StageResolveUser, PathAccount, "Login Failed (Authenticate Token)."},
	}

	for i, tt := range tests {
		t.Run(string(tt.stage)+"/status", func(t *testing.T) {
			replies := successReplies()
			replies[tt.path] = []reply{{status: http.StatusInternalServerError, body: "boom"}}
			client := newScriptedClient(replies)
			presenter := &recordingPresenter{}
			p := New(client, credstore.NewMemory(), WithPresenter(presenter))

			_, err := p.Authenticate(context.Background(), testCreds)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrHTTPStatus)

			f := asFailure(err)
			require.NotNil(t, f)
			assert.Equal(t, tt.stage, f.Stage)
			assert.Equal(t, "non-2xx status", f.Reason)
			assert.Equal(t, tt.message, f.Message)
			assert.Equal(t, http.StatusInternalServerError, f.StatusCode())

			var httpErr *httpclient.HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)

			assert.Len(t, client.Calls(), i+1)
			assert.Equal(t, Stages[:i+1], presenter.Progress())
			assert.Len(t, presenter.Failures(), 1)
		})

		t.Run(string(tt.stage)+"/transport", func(t *testing.T) {
			replies := successReplies()
			cause := errors.New("connection refused")
			replies[tt.path] = []reply{{err: httpclient.ErrRequestFailed.Err(cause)}}
			client := newScriptedClient(replies)
			p := New(client, credstore.NewMemory())

			_, err := p.Authenticate(context.Background(), testCreds)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTransport)
			assert.ErrorIs(t, err, cause)

			f := asFailure(err)
			require.NotNil(t, f)
			assert.Equal(t, tt.stage, f.Stage)
			assert.Equal(t, "request failed: connection refused", f.Reason)
			assert.Equal(t, 0, f.StatusCode())
			assert.Len(t, client.Calls(), i+1)
		})

		t.Run(string(tt.stage)+"/malformed", func(t *testing.T) {
			replies := successReplies()
			replies[tt.path] = []reply{{body: `{"request_token":`}}
			client := newScriptedClient(replies)
			p := New(client, credstore.NewMemory())

			_, err := p.Authenticate(context.Background(), testCreds)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResponse)
			f := asFailure(err)
			require.NotNil(t, f)
			assert.Equal(t, tt.stage, f.Stage)
			assert.Equal(t, "malformed response", f.Reason)
			assert.Len(t, client.Calls(), i+1)
		})
	}
}

func TestMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		stage  Stage
		reason string
		calls  int
	}{
		{"no request token", PathRequestToken, `{"success":true}`, StageRequestToken, "token missing from response", 1},
		{"empty request token", PathRequestToken, `{"request_token":""}`, StageRequestToken, "token missing from response", 1},
		{"numeric request token", PathRequestToken, `{"request_token":12}`, StageRequestToken, "token missing from response", 1},
		{"empty body", PathRequestToken, ``, StageRequestToken, "token missing from response", 1},
		{"array body", PathRequestToken, `["T1"]`, StageRequestToken, "token missing from response", 1},
		{"empty validation body", PathValidate, ``, StageValidateCredentials, "validation result missing from response", 2},
		{"no session id", PathNewSession, `{"success":true}`, StageCreateSession, "session id missing from response", 3},
		{"null session id", PathNewSession, `{"session_id":null}`, StageCreateSession, "session id missing from response", 3},
		{"no user id", PathAccount, `{"username":"alice"}`, StageResolveUser, "user id missing from response", 4},
		{"string user id", PathAccount, `{"id":"42"}`, StageResolveUser, "user id missing from response", 4},
		{"fractional user id", PathAccount, `{"id":42.5}`, StageResolveUser, "user id missing from response", 4},
		{"huge user id", PathAccount, `{"id":1e300}`, StageResolveUser, "user id missing from response", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replies := successReplies()
			replies[tt.path] = []reply{{body: tt.body}}
			client := newScriptedClient(replies)
			p := New(client, credstore.NewMemory())

			_, err := p.Authenticate(context.Background(), testCreds)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingField)

			f := asFailure(err)
			require.NotNil(t, f)
			assert.Equal(t, tt.stage, f.Stage)
			assert.Equal(t, tt.reason, f.Reason)
			assert.Equal(t, FailureMessage(tt.stage), f.Message)
			assert.Len(t, client.Calls(), tt.calls)
		})
	}
}

func TestUserIDForms(t *testing.T) {
	for body, want := range map[string]int64{
		`{"id":42}`:                  42,
		`{"id":42.0}`:                42,
		`{"id":0}`:                   0,
		`{"id":9007199254740992}`:    9007199254740992,
		`{"id":7,"extra":{"a":[1]}}`: 7,
	} {
		replies := successReplies()
		replies[PathAccount] = []reply{{body: body}}
		res, err := New(newScriptedClient(replies), credstore.NewMemory()).Authenticate(context.Background(), testCreds)
		require.NoError(t, err, body)
		assert.Equal(t, want, res.User.ID, body)
	}
}

func TestDeterministic(t *testing.T) {
	var results []Result
	var paths [][]string
	for range 3 {
		client := newScriptedClient(successReplies())
		res, err := New(client, credstore.NewMemory()).Authenticate(context.Background(), testCreds)
		require.NoError(t, err)
		results = append(results, res)
		paths = append(paths, client.Paths())
	}
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, results[0], results[2])
	assert.Equal(t, paths[0], paths[2])
}

func TestBusyRejectsSecondAttempt(t *testing.T) {
	started := make(chan struct{}, 1)
	wait := make(chan struct{})
	replies := successReplies()
	replies[PathRequestToken][0].started = started
	replies[PathRequestToken][0].wait = wait

	client := newScriptedClient(replies)
	presenter := &recordingPresenter{}
	p := New(client, credstore.NewMemory(), WithPresenter(presenter))

	out, err := p.Start(context.Background(), testCreds)
	require.NoError(t, err)
	waitSignal(t, started)

	assert.True(t, p.Busy())
	assert.Equal(t, StateRequestingToken, p.State())

	out2, err := p.Start(context.Background(), Credentials{Username: "bob", Password: "pw"})
	assert.Nil(t, out2)
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, errors.Is(err, ErrLoginFailed))

	_, err = p.Authenticate(context.Background(), Credentials{})
	assert.ErrorIs(t, err, ErrBusy, "busy check comes before input validation")

	close(wait)
	o := waitOutcome(t, out)
	require.NoError(t, o.Err)
	assert.Equal(t, int64(42), o.Result.User.ID)

	assert.Len(t, client.Calls(), 4, "the rejected attempts sent nothing")
	assert.Equal(t, Stages, presenter.Progress())
	assert.Empty(t, presenter.Failures())
	assert.False(t, p.Busy())

	// a fresh attempt is accepted once the first one ended
	_, err = p.Start(context.Background(), testCreds)
	assert.NoError(t, err)
}

func TestAbandon(t *testing.T) {
	tests := []struct {
		name   string
		stage  Stage
		path   string
		calls  int
		writes []string
	}{
		{"during request token", StageRequestToken, PathRequestToken, 1, nil},
		{"during validation", StageValidateCredentials, PathValidate, 2, []string{"request_token"}},
		{"during session", StageCreateSession, PathNewSession, 3, []string{"request_token"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			started := make(chan struct{}, 1)
			replies := successReplies()
			replies[tt.path][0].started = started
			replies[tt.path][0].wait = make(chan struct{})

			client := newScriptedClient(replies)
			presenter := &recordingPresenter{}
			store := &recordingStore{}
			p := New(client, store, WithPresenter(presenter))

			out, err := p.Start(context.Background(), testCreds)
			require.NoError(t, err)
			waitSignal(t, started)
			progressBefore := presenter.Progress()
			writesBefore := store.Writes()

			p.Abandon()
			o := waitOutcome(t, out)
			require.Error(t, o.Err)
			assert.ErrorIs(t, o.Err, ErrAbandoned)
			assert.ErrorIs(t, o.Err, context.Canceled)

			f := asFailure(o.Err)
			require.NotNil(t, f)
			assert.Equal(t, tt.stage, f.Stage)
			assert.Equal(t, "login abandoned", f.Reason)

			assert.Equal(t, progressBefore, presenter.Progress(), "no progress after abandon")
			assert.Empty(t, presenter.Failures(), "abandoned attempts are not reported")
			assert.Equal(t, writesBefore, store.Writes(), "no store writes after abandon")
			assert.Equal(t, tt.writes, store.Writes(), "no session id is stored")
			assert.Len(t, client.Calls(), tt.calls)
			assert.False(t, p.Busy())
		})
	}
}

func TestAbandonWithoutAttempt(t *testing.T) {
	p := New(newScriptedClient(nil), credstore.NewMemory())
	assert.NotPanics(t, p.Abandon)
	assert.False(t, p.Busy())
	assert.Equal(t, StateIdle, p.State())
}

func TestCallerContextCancelled(t *testing.T) {
	started := make(chan struct{}, 1)
	replies := successReplies()
	replies[PathValidate][0].started = started
	replies[PathValidate][0].wait = make(chan struct{})

	client := newScriptedClient(replies)
	presenter := &recordingPresenter{}
	store := &recordingStore{}
	p := New(client, store, WithPresenter(presenter))

	ctx, cancel := context.WithCancel(context.Background())
	out, err := p.Start(ctx, testCreds)
	require.NoError(t, err)
	waitSignal(t, started)
	cancel()

	o := waitOutcome(t, out)
	assert.ErrorIs(t, o.Err, ErrAbandoned)
	assert.Empty(t, presenter.Failures())
	assert.Len(t, client.Calls(), 2)
	assert.Equal(t, []string{"request_token"}, store.Writes())
}

func TestCallerDeadlineReported(t *testing.T) {
	started := make(chan struct{}, 1)
	replies := successReplies()
	replies[PathValidate][0].started = started
	replies[PathValidate][0].wait = make(chan struct{})

	client := newScriptedClient(replies)
	presenter := &recordingPresenter{}
	store := &recordingStore{}
	p := New(client, store, WithPresenter(presenter))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Authenticate(ctx, testCreds)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, ErrAbandoned))

	f := asFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, StageValidateCredentials, f.Stage)
	assert.Equal(t, "request failed: context deadline exceeded", f.Reason)
	assert.Equal(t, "Login Failed (Authenticate Token).", f.Message)

	assert.Equal(t, []presenterEvent{{Kind: "failure", Stage: StageValidateCredentials, Message: "Login Failed (Authenticate Token)."}}, presenter.Failures())
	assert.Equal(t, []string{"request_token"}, store.Writes())
	assert.Equal(t, StateFailed, p.State())
	assert.False(t, p.Busy())
}

func TestStartFromFailureCallback(t *testing.T) {
	replies := successReplies()
	replies[PathRequestToken] = append(replies[PathRequestToken], replies[PathRequestToken][0])
	replies[PathValidate] = append([]reply{{body: `{"success":false}`}}, replies[PathValidate]...)
	client := newScriptedClient(replies)

	var p *Pipeline
	retried := make(chan (<-chan Outcome), 1)
	presenter := &recordingPresenter{}
	presenter.onFailure = func(Stage, string) {
		out, err := p.Start(context.Background(), testCreds)
		if err == nil {
			retried <- out
		}
		close(retried)
	}
	p = New(client, credstore.NewMemory(), WithPresenter(presenter))

	_, err := p.Authenticate(context.Background(), testCreds)
	assert.ErrorIs(t, err, ErrCredentialsRejected)

	var out <-chan Outcome
	select {
	case out = <-retried:
	case <-time.After(2 * time.Second):
		t.Fatal("failure callback did not run")
	}
	require.NotNil(t, out, "pipeline was still busy inside the failure callback")
	o := waitOutcome(t, out)
	require.NoError(t, o.Err)
	assert.Equal(t, int64(42), o.Result.User.ID)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ValidatingCredentials", StateValidatingCredentials.String())
	assert.Equal(t, "Unknown", State(99).String())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateAuthenticated.Terminal())
	assert.False(t, StateResolvingUser.Terminal())
	assert.Equal(t, "Login Failed.", FailureMessage(Stage("Other")))
}

func TestFailureError(t *testing.T) {
	f := newFailure(StageCreateSession, "non-2xx status", ErrHTTPStatus.SetStatusCode(http.StatusUnauthorized))
	assert.Equal(t, "CreateSession: non-2xx status", f.Error())
	assert.Equal(t, http.StatusUnauthorized, f.StatusCode())
	assert.ErrorIs(t, f, ErrHTTPStatus)
	assert.ErrorIs(t, f, ErrLoginFailed)
	assert.Equal(t, 0, (&Failure{}).StatusCode())
}
