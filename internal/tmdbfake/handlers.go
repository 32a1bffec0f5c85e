package tmdbfake

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tansive/tmdbauth/internal/common/httpclient"
	"github.com/tansive/tmdbauth/internal/common/httpx"
	"github.com/tansive/tmdbauth/internal/common/uuid"
)

// Endpoint paths.
const (
	PathRequestToken = "/authentication/token/new"
	PathValidate     = "/authentication/token/validate_with_login"
	PathNewSession   = "/authentication/session/new"
	PathAccount      = "/account"
)

// expiresAtLayout is the timestamp format TMDB uses for expires_at.
const expiresAtLayout = "2006-01-02 15:04:05 MST"

type tokenRsp struct {
	Success      bool   `json:"success"`
	ExpiresAt    string `json:"expires_at"`
	RequestToken string `json:"request_token"`
}

type sessionRsp struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
}

type accountRsp struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	IncludeAdult bool   `json:"include_adult"`
	ISO639_1     string `json:"iso_639_1"`
	ISO3166_1    string `json:"iso_3166_1"`
}

// routePath strips the optional /3 prefix.
func routePath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/3")
}

func (s *Server) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[routePath(r)]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePath(r)
		s.mu.Lock()
		queue := s.faults[path]
		var f *Fault
		if len(queue) > 0 {
			f = &queue[0]
			s.faults[path] = queue[1:]
		}
		s.mu.Unlock()

		if f == nil {
			next.ServeHTTP(w, r)
			return
		}
		status := f.Status
		if status == 0 {
			status = http.StatusOK
		}
		log.Ctx(r.Context()).Debug().Int("status", status).Msg("injecting fault")
		w.WriteHeader(status)
		io.WriteString(w, f.Body)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.URL.Query().Get(httpclient.APIKeyParam) != s.apiKey {
			httpx.ErrInvalidAPIKey().Send(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) newRequestToken(w http.ResponseWriter, r *http.Request) {
	token := uuid.Hex() + uuid.Hex()[:8]
	expiresAt := s.now().Add(s.tokenTTL)

	s.mu.Lock()
	s.tokens[token] = &requestToken{expiresAt: expiresAt}
	s.mu.Unlock()

	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, &tokenRsp{
		Success:      true,
		ExpiresAt:    expiresAt.UTC().Format(expiresAtLayout),
		RequestToken: token,
	})
}

// loginParams reads the login fields from the query string, or from a JSON body on POST.
func loginParams(r *http.Request) (username, password, token string, err error) {
	q := r.URL.Query()
	username, password, token = q.Get("username"), q.Get("password"), q.Get("request_token")
	if r.Method != http.MethodPost || r.ContentLength == 0 {
		return
	}
	var body struct {
		Username     string `json:"username"`
		Password     string `json:"password"`
		RequestToken string `json:"request_token"`
	}
	if err = json.NewDecoder(r.Body).Decode(&body); err != nil {
		return
	}
	if body.Username != "" {
		username = body.Username
	}
	if body.Password != "" {
		password = body.Password
	}
	if body.RequestToken != "" {
		token = body.RequestToken
	}
	return
}

func (s *Server) validateWithLogin(w http.ResponseWriter, r *http.Request) {
	username, password, token, err := loginParams(r)
	if err != nil || username == "" || password == "" || token == "" {
		httpx.ErrInvalidParameters().Send(w)
		return
	}

	s.mu.Lock()
	t, ok := s.liveToken(token)
	if !ok {
		s.mu.Unlock()
		httpx.ErrInvalidRequestToken().Send(w)
		return
	}
	acct, known := s.accounts[username]
	if !known || acct.Password != password {
		s.mu.Unlock()
		log.Ctx(r.Context()).Info().Str("username", username).Msg("invalid login")
		if s.softReject {
			httpx.SendJsonRsp(r.Context(), w, http.StatusOK, `{"success":false}`)
			return
		}
		httpx.ErrInvalidLogin().Send(w)
		return
	}
	t.username = username
	expiresAt := t.expiresAt
	s.mu.Unlock()

	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, &tokenRsp{
		Success:      true,
		ExpiresAt:    expiresAt.UTC().Format(expiresAtLayout),
		RequestToken: token,
	})
}

func (s *Server) newSession(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("request_token")

	s.mu.Lock()
	t, ok := s.liveToken(token)
	if !ok || t.username == "" {
		s.mu.Unlock()
		httpx.ErrSessionDenied().Send(w)
		return
	}
	t.used = true
	sessionID := uuid.Hex() + uuid.Hex()[:8]
	s.sessions[sessionID] = s.accounts[t.username].ID
	s.mu.Unlock()

	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, &sessionRsp{
		Success:   true,
		SessionID: sessionID,
	})
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	s.mu.Lock()
	userID, ok := s.sessions[sessionID]
	var acct Account
	for _, a := range s.accounts {
		if a.ID == userID {
			acct = a
			break
		}
	}
	s.mu.Unlock()

	if !ok {
		httpx.ErrAuthenticationFailed().Send(w)
		return
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, &accountRsp{
		ID:        userID,
		Username:  acct.Username,
		Name:      acct.Username,
		ISO639_1:  "en",
		ISO3166_1: "US",
	})
}

// liveToken returns an unexpired, unused token. Callers hold s.mu.
func (s *Server) liveToken(token string) (*requestToken, bool) {
	t, ok := s.tokens[token]
	if !ok || t.used {
		return nil, false
	}
	if !s.now().Before(t.expiresAt) {
		delete(s.tokens, token)
		return nil, false
	}
	return t, true
}
