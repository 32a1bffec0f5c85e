// Package tmdbfake is an in-memory stand-in for the TMDB v3 authentication endpoints.
// It issues request tokens, validates them against configured accounts, mints sessions
// and answers account lookups, following the real API's status codes and error bodies.
// Tests use it through httptest or httpclient.TestHTTPClient; the CLI serves it for
// local development.
package tmdbfake

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tansive/tmdbauth/internal/common/httpx"
	"github.com/tansive/tmdbauth/internal/common/middleware"
)

// DefaultTokenTTL matches TMDB's request token lifetime.
const DefaultTokenTTL = 60 * time.Minute

// Account is a user the fake server accepts.
type Account struct {
	ID       int64
	Username string
	Password string
}

// Options configures a Server.
type Options struct {
	APIKey   string
	Accounts []Account
	TokenTTL time.Duration
	// SoftReject answers invalid logins with 200 {"success":false} instead of TMDB's 401.
	SoftReject bool
	// Now overrides the clock, for expiry tests.
	Now func() time.Time
}

// Fault replaces the next response of an endpoint.
type Fault struct {
	Status int    // HTTP status, 200 if zero
	Body   string // raw body, may be invalid JSON or empty
}

type requestToken struct {
	expiresAt time.Time
	username  string // set once validated
	used      bool
}

// Server is the fake API. It is safe for concurrent use.
type Server struct {
	Router *chi.Mux

	apiKey     string
	tokenTTL   time.Duration
	softReject bool
	now        func() time.Time

	mu       sync.Mutex
	accounts map[string]Account
	tokens   map[string]*requestToken
	sessions map[string]int64
	calls    map[string]int
	faults   map[string][]Fault
}

// New creates a Server and mounts its handlers at both "/" and "/3".
func New(opts Options) *Server {
	s := &Server{
		Router:     chi.NewRouter(),
		apiKey:     opts.APIKey,
		tokenTTL:   opts.TokenTTL,
		softReject: opts.SoftReject,
		now:        opts.Now,
		accounts:   make(map[string]Account),
		tokens:     make(map[string]*requestToken),
		sessions:   make(map[string]int64),
		calls:      make(map[string]int),
		faults:     make(map[string][]Fault),
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = DefaultTokenTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	for _, a := range opts.Accounts {
		s.accounts[a.Username] = a
	}

	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	s.Router.Mount("/3", s.apiRouter())
	s.Router.Mount("/", s.apiRouter())
	return s
}

func (s *Server) apiRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(s.countCalls)
	r.Use(s.injectFaults)
	r.Use(s.requireAPIKey)
	r.Get(PathRequestToken, s.newRequestToken)
	r.Get(PathValidate, s.validateWithLogin)
	r.Post(PathValidate, s.validateWithLogin)
	r.Get(PathNewSession, s.newSession)
	r.Get(PathAccount, s.account)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.ErrResourceNotFound().Send(w)
	})
	return r
}

// Calls returns how many requests reached path, faults and rejected keys included.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests across all endpoints.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// FailNext queues faults for path; each one replaces a single response.
func (s *Server) FailNext(path string, faults ...Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[path] = append(s.faults[path], faults...)
}

// AddAccount registers or replaces an account.
func (s *Server) AddAccount(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.Username] = a
}

// ActiveSessions returns the number of sessions minted so far.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
