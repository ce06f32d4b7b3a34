package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/warden"
)

// Authenticator is satisfied by *warden.Engine.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (warden.Identity, error)
}

// Authorizer is satisfied by *warden.Engine.
type Authorizer interface {
	Authorize(id warden.Identity, action warden.Action) error
}

var errMissingToken = errors.New("missing bearer token")

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Authenticate.
func IdentityFromContext(ctx context.Context) (warden.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(warden.Identity)
	return id, ok
}

// Authenticate rejects requests without a valid bearer token. A revocation
// backend outage is reported as 503, every other rejection as 401.
func Authenticate(engine Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, warden.ErrUnavailable)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeStatus(w, http.StatusUnauthorized, errMissingToken.Error())
				return
			}

			id, err := engine.Authenticate(r.Context(), token)
			if err != nil {
				WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAction must run after Authenticate. It answers 403 when the
// caller's role does not permit action.
func RequireAction(engine Authorizer, action warden.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeStatus(w, http.StatusUnauthorized, errMissingToken.Error())
				return
			}
			if err := engine.Authorize(id, action); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP attaches the request's peer address to the context with
// warden.WithClientIP. Forwarded headers are not trusted.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(warden.WithClientIP(r.Context(), host)))
	})
}

// WriteError answers with warden.StatusCode(err) and a JSON body. Server
// side failures are not described to the client.
func WriteError(w http.ResponseWriter, err error) {
	status := warden.StatusCode(err)
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError && err != nil {
		msg = err.Error()
	}
	writeStatus(w, status, msg)
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="warden"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
