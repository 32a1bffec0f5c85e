// Package auth establishes an authenticated TMDB session with the four-step request
// token handshake: request a token, validate it with the user's credentials, exchange
// it for a session, then resolve the account id. Steps run strictly in sequence and the
// first failure ends the attempt; nothing is retried.
package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tansive/tmdbauth/internal/common/httpclient"
	"github.com/tansive/tmdbauth/internal/common/logtrace"
	"github.com/tansive/tmdbauth/internal/common/uuid"
)

// Requester performs one API call and returns the body of a 2xx response. Non-2xx
// responses must be reported as *httpclient.HTTPError.
type Requester interface {
	DoRequest(ctx context.Context, opts httpclient.RequestOptions) ([]byte, error)
}

// CredentialStore receives the identifiers produced by each successful step.
type CredentialStore interface {
	SetRequestToken(token string)
	SetSessionID(id string)
	SetUserID(id int64)
}

// Pipeline runs login attempts. It allows one attempt at a time.
type Pipeline struct {
	client         Requester
	store          CredentialStore
	presenter      Presenter
	executor       Executor
	logger         zerolog.Logger
	validateMethod string
	validate       *validator.Validate

	mu      sync.Mutex
	current *attempt
	state   State
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPresenter sets the receiver of progress notifications.
func WithPresenter(p Presenter) Option {
	return func(pl *Pipeline) {
		if p != nil {
			pl.presenter = p
		}
	}
}

// WithExecutor sets where presenter callbacks run. Defaults to InlineExecutor.
func WithExecutor(e Executor) Option {
	return func(pl *Pipeline) {
		if e != nil {
			pl.executor = e
		}
	}
}

// WithLogger replaces the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(pl *Pipeline) {
		pl.logger = l
	}
}

// WithValidateMethod selects GET (default) or POST for the credential validation call.
func WithValidateMethod(method string) Option {
	return func(pl *Pipeline) {
		if method == http.MethodGet || method == http.MethodPost {
			pl.validateMethod = method
		}
	}
}

// New creates a Pipeline that calls the API through client and records identifiers in store.
func New(client Requester, store CredentialStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:         client,
		store:          store,
		presenter:      NopPresenter{},
		executor:       InlineExecutor{},
		logger:         log.Logger,
		validateMethod: http.MethodGet,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// attempt is one run through the stages.
type attempt struct {
	id     string
	cancel context.CancelFunc
	logger zerolog.Logger

	mu        sync.Mutex // orders store writes against Abandon
	abandoned atomic.Bool
}

func (a *attempt) abandon() {
	a.mu.Lock()
	a.abandoned.Store(true)
	a.mu.Unlock()
	a.cancel()
}

// write runs fn unless the attempt has been abandoned.
func (a *attempt) write(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.abandoned.Load() {
		return
	}
	fn()
}

// Start begins an attempt and returns immediately. The returned channel yields exactly
// one Outcome and is then closed. Start returns ErrBusy, and does nothing else, while
// a previous attempt is still running.
func (p *Pipeline) Start(ctx context.Context, creds Credentials) (<-chan Outcome, error) {
	p.mu.Lock()
	if p.current != nil {
		p.mu.Unlock()
		p.logger.Debug().Msg("login attempt rejected, another attempt is running")
		return nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	a := &attempt{
		id:     uuid.New().String(),
		cancel: cancel,
	}
	a.logger = p.logger.With().Str("attempt_id", a.id).Logger()
	p.current = a
	p.state = StateIdle
	p.mu.Unlock()

	ctx = logtrace.WithAttemptID(ctx, a.id)

	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		defer cancel()

		res, err := p.run(ctx, a, creds)
		p.finish(a, err)
		p.report(a, res, err)
		out <- Outcome{Result: res, Err: err}
	}()
	return out, nil
}

// Authenticate runs an attempt and waits for it. The error is a *Failure, or ErrBusy.
func (p *Pipeline) Authenticate(ctx context.Context, creds Credentials) (Result, error) {
	out, err := p.Start(ctx, creds)
	if err != nil {
		return Result{}, err
	}
	o := <-out
	return o.Result, o.Err
}

// Abandon discards the running attempt, if any. Its in-flight request is cancelled and
// no further presenter callbacks or store writes happen for it. The attempt's Outcome
// still arrives, carrying ErrAbandoned.
func (p *Pipeline) Abandon() {
	p.mu.Lock()
	a := p.current
	p.mu.Unlock()
	if a != nil {
		a.logger.Info().Msg("login attempt abandoned")
		a.abandon()
	}
}

// Busy reports whether an attempt is running.
func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// State reports where the current or most recent attempt is.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(a *attempt, s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == a {
		p.state = s
	}
}

// finish releases the busy flag before the terminal callback so a presenter can start
// a new attempt from inside OnFailure.
func (p *Pipeline) finish(a *attempt, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != a {
		return
	}
	if err != nil {
		p.state = StateFailed
	} else {
		p.state = StateAuthenticated
	}
	p.current = nil
}

func (p *Pipeline) report(a *attempt, res Result, err error) {
	if err == nil {
		a.logger.Info().Int64("user_id", res.User.ID).Msg("login succeeded")
		p.notify(a, func(pr Presenter) { pr.OnSuccess(res.User.ID, res.Session.ID) })
		return
	}
	var f *Failure
	if !errors.As(err, &f) {
		return
	}
	if errors.Is(f, ErrAbandoned) || a.abandoned.Load() {
		return
	}
	a.logger.Warn().Str("stage", string(f.Stage)).Str("reason", f.Reason).Msg("login failed")
	p.notify(a, func(pr Presenter) { pr.OnFailure(f.Stage, f.Message) })
}

func (p *Pipeline) notify(a *attempt, fn func(Presenter)) {
	if a.abandoned.Load() {
		return
	}
	p.executor.Execute(func() {
		if a.abandoned.Load() {
			return
		}
		fn(p.presenter)
	})
}

// enter moves the attempt into stage and emits its progress notification.
func (p *Pipeline) enter(a *attempt, stage Stage) {
	p.setState(a, stateFor(stage))
	a.logger.Debug().Str("stage", string(stage)).Msg("entering stage")
	p.notify(a, func(pr Presenter) { pr.OnProgress(stage) })
}

func (p *Pipeline) run(ctx context.Context, a *attempt, creds Credentials) (Result, error) {
	if err := p.validate.Struct(creds); err != nil {
		return Result{}, newFailure(StageInput, "username or password empty", ErrInvalidInput.Err(err))
	}
	a.logger.Info().Msg("login attempt started")

	token, err := p.requestToken(ctx, a)
	if err != nil {
		return Result{}, err
	}
	if err := p.validateCredentials(ctx, a, token, creds); err != nil {
		return Result{}, err
	}
	sessionID, err := p.createSession(ctx, a, token)
	if err != nil {
		return Result{}, err
	}
	userID, err := p.resolveUser(ctx, a, sessionID)
	if err != nil {
		return Result{}, err
	}
	return Result{
		User:    User{ID: userID},
		Session: Session{ID: sessionID},
	}, nil
}
