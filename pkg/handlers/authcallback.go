package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/yllibed/httpserver/pkg/server"
)

// OAuth 2.0 error codes (RFC 6749 §4.1.2.1).
const (
	OAuthAccessDenied           = "access_denied"
	OAuthInvalidRequest         = "invalid_request"
	OAuthUnauthorizedClient     = "unauthorized_client"
	OAuthInvalidClient          = "invalid_client"
	OAuthInvalidGrant           = "invalid_grant"
	OAuthUnsupportedGrantType   = "unsupported_grant_type"
	OAuthInvalidScope           = "invalid_scope"
	OAuthTemporarilyUnavailable = "temporarily_unavailable"
)

// ErrInvalidCallbackURI is returned by NewAuthCallback for URIs that are not
// absolute http or https URLs.
var ErrInvalidCallbackURI = errors.New("handlers: callback URI must be an absolute http or https URL")

// AuthStatus classifies an authentication callback.
type AuthStatus int

const (
	AuthSuccess AuthStatus = iota
	AuthUserCancel
	AuthErrorHTTP
)

// String returns the status name.
func (s AuthStatus) String() string {
	switch s {
	case AuthSuccess:
		return "success"
	case AuthUserCancel:
		return "user_cancel"
	default:
		return "error_http"
	}
}

// AuthResult is the outcome of an authentication callback.
type AuthResult struct {
	// URL is the full callback URL, query included.
	URL string

	// StatusCode is derived from the "error" query parameter.
	StatusCode int

	Status AuthStatus
}

// AuthCallback receives the browser redirect that ends an OAuth flow on a
// loopback server. The first callback completes Wait; every callback gets a
// plain-text page telling the user what happened.
type AuthCallback struct {
	callback *url.URL
	once     sync.Once
	done     chan struct{}
	result   AuthResult
}

// NewAuthCallback returns a handler for callbackURI, which must be an absolute
// http or https URL. Requests match on its path.
func NewAuthCallback(callbackURI string) (*AuthCallback, error) {
	u, err := url.Parse(callbackURI)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCallbackURI, callbackURI)
	}
	return &AuthCallback{callback: u, done: make(chan struct{})}, nil
}

// CallbackURI returns the configured callback URI.
func (a *AuthCallback) CallbackURI() *url.URL {
	u := *a.callback
	return &u
}

// HandleRequest implements server.Handler.
func (a *AuthCallback) HandleRequest(ctx context.Context, req *server.Request, relativePath string) error {
	u := req.URL()
	if !strings.HasPrefix(strings.ToLower(u.Path), strings.ToLower(a.callback.Path)) {
		return nil
	}

	status := authStatusCode(u.Query())
	result := AuthResult{URL: u.String(), StatusCode: status, Status: authStatus(status)}

	a.once.Do(func() {
		a.result = result
		close(a.done)
	})
	req.SetResponse("text/plain", authMessage(result.Status))
	return nil
}

// Wait blocks until the first callback arrives or ctx is done.
func (a *AuthCallback) Wait(ctx context.Context) (AuthResult, error) {
	select {
	case <-a.done:
		return a.result, nil
	case <-ctx.Done():
		return AuthResult{}, ctx.Err()
	}
}

// String identifies the handler in logs.
func (a *AuthCallback) String() string { return "auth-callback " + a.callback.Path }

func authStatusCode(query url.Values) int {
	if !query.Has("error") {
		return 200
	}
	switch query.Get("error") {
	case OAuthAccessDenied:
		return 403
	case OAuthInvalidClient, OAuthUnauthorizedClient, OAuthInvalidScope:
		return 401
	case OAuthTemporarilyUnavailable:
		return 503
	case OAuthUnsupportedGrantType:
		return 500
	default:
		return 400
	}
}

func authStatus(code int) AuthStatus {
	switch code {
	case 200:
		return AuthSuccess
	case 403:
		return AuthUserCancel
	default:
		return AuthErrorHTTP
	}
}

func authMessage(status AuthStatus) string {
	switch status {
	case AuthSuccess:
		return "Authentication completed successfully - you can close this browser now."
	case AuthUserCancel:
		return "Authentication was cancelled by the user."
	default:
		return "Authentication failed due to an error."
	}
}
