package auth

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/tansive/tmdbauth/internal/common/apperrors"
	"github.com/tansive/tmdbauth/internal/common/httpclient"
	"github.com/tidwall/gjson"
)

// API paths, relative to the configured server URL.
const (
	PathRequestToken = "/authentication/token/new"
	PathValidate     = "/authentication/token/validate_with_login"
	PathNewSession   = "/authentication/session/new"
	PathAccount      = "/account"
)

const (
	reasonHTTPStatus      = "non-2xx status"
	reasonMalformed       = "malformed response"
	reasonRejected        = "authentication rejected"
	reasonAbandoned       = "login abandoned"
	reasonTokenMissing    = "token missing from response"
	reasonValidateMissing = "validation result missing from response"
	reasonSessionMissing  = "session id missing from response"
	reasonUserMissing     = "user id missing from response"
)

// call performs the request for stage and returns the decoded JSON object.
// missing is the reason used when the body is empty or not an object.
func (p *Pipeline) call(ctx context.Context, a *attempt, stage Stage, opts httpclient.RequestOptions, missing string) (gjson.Result, error) {
	body, err := p.client.DoRequest(ctx, opts)
	// Abandon and caller cancellation end the attempt silently. A caller deadline is
	// reported like any other transport failure.
	if a.abandoned.Load() || errors.Is(ctx.Err(), context.Canceled) {
		return gjson.Result{}, newFailure(stage, reasonAbandoned, ErrAbandoned.Err(context.Canceled))
	}
	if err == nil && ctx.Err() != nil {
		err = httpclient.ErrRequestFailed.Err(ctx.Err())
	}
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) {
			a.logger.Debug().Str("stage", string(stage)).Int("status", httpErr.StatusCode).
				Str("message", httpErr.Message).Msg("status outside 2xx")
			return gjson.Result{}, newFailure(stage, reasonHTTPStatus,
				ErrHTTPStatus.SetStatusCode(httpErr.StatusCode).Err(err))
		}
		a.logger.Debug().Str("stage", string(stage)).Err(err).Msg("request failed")
		return gjson.Result{}, newFailure(stage, errorText(err), ErrTransport.Err(err))
	}

	if len(body) == 0 {
		return gjson.Result{}, newFailure(stage, missing, ErrMissingField)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, newFailure(stage, reasonMalformed, ErrMalformedResponse)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return gjson.Result{}, newFailure(stage, missing, ErrMissingField)
	}
	return root, nil
}

// errorText includes the causes attached to an apperrors.Error.
func errorText(err error) string {
	if appErr, ok := err.(apperrors.Error); ok {
		return appErr.ErrorAll()
	}
	return err.Error()
}

// stringField returns a non-empty string field of obj.
func stringField(obj gjson.Result, name string) (string, bool) {
	v := obj.Get(name)
	if v.Type != gjson.String || v.Str == "" {
		return "", false
	}
	return v.Str, true
}

// intField returns an integral number field of obj.
func intField(obj gjson.Result, name string) (int64, bool) {
	v := obj.Get(name)
	if v.Type != gjson.Number {
		return 0, false
	}
	if v.Num != math.Trunc(v.Num) || math.Abs(v.Num) > 1<<53 {
		return 0, false
	}
	return v.Int(), true
}

func (p *Pipeline) requestToken(ctx context.Context, a *attempt) (string, error) {
	p.enter(a, StageRequestToken)

	obj, err := p.call(ctx, a, StageRequestToken, httpclient.RequestOptions{
		Method: http.MethodGet,
		Path:   PathRequestToken,
	}, reasonTokenMissing)
	if err != nil {
		return "", err
	}
	token, ok := stringField(obj, "request_token")
	if !ok {
		return "", newFailure(StageRequestToken, reasonTokenMissing, ErrMissingField)
	}
	a.write(func() { p.store.SetRequestToken(token) })
	return token, nil
}

func (p *Pipeline) validateCredentials(ctx context.Context, a *attempt, token string, creds Credentials) error {
	p.enter(a, StageValidateCredentials)

	obj, err := p.call(ctx, a, StageValidateCredentials, httpclient.RequestOptions{
		Method: p.validateMethod,
		Path:   PathValidate,
		QueryParams: map[string]string{
			"request_token": token,
			"username":      creds.Username,
			"password":      creds.Password,
		},
	}, reasonValidateMissing)
	if err != nil {
		return err
	}
	// An absent or false success flag is a rejection. It is not retried.
	if v := obj.Get("success"); v.Type != gjson.True {
		return newFailure(StageValidateCredentials, reasonRejected, ErrCredentialsRejected)
	}
	return nil
}

// createSession exchanges the validated request token for a session id.
func (p *Pipeline) createSession(ctx context.Context, a *attempt, token string) (string, error) {
	p.enter(a, StageCreateSession)

	obj, err := p.call(ctx, a, StageCreateSession, httpclient.RequestOptions{
		Method:      http.MethodGet,
		Path:        PathNewSession,
		QueryParams: map[string]string{"request_token": token},
	}, reasonSessionMissing)
	if err != nil {
		return "", err
	}
	sessionID, ok := stringField(obj, "session_id")
	if !ok {
		return "", newFailure(StageCreateSession, reasonSessionMissing, ErrMissingField)
	}
	a.write(func() { p.store.SetSessionID(sessionID) })
	return sessionID, nil
}

func (p *Pipeline) resolveUser(ctx context.Context, a *attempt, sessionID string) (int64, error) {
	p.enter(a, StageResolveUser)

	obj, err := p.call(ctx, a, StageResolveUser, httpclient.RequestOptions{
		Method:      http.MethodGet,
		Path:        PathAccount,
		QueryParams: map[string]string{"session_id": sessionID},
	}, reasonUserMissing)
	if err != nil {
		return 0, err
	}
	userID, ok := intField(obj, "id")
	if !ok {
		return 0, newFailure(StageResolveUser, reasonUserMissing, ErrMissingField)
	}
	a.write(func() { p.store.SetUserID(userID) })
	return userID, nil
}
