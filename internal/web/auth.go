package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/willemschots/forum/internal/auth"
)

// loggedIn registers a handler that is only served to requests with a
// valid session token in the Authorization header.
func (s *Server) loggedIn(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			s.handleError(w, r, auth.ErrInvalidToken)
			return
		}

		account, err := s.deps.AuthService.Authenticate(r.Context(), raw)
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		ctx := ContextWithAccount(r.Context(), account)
		handler.ServeHTTP(w, r.WithContext(ctx))
	}))
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

type ctxKey string

const accountKey ctxKey = "forumAccount"

func ContextWithAccount(ctx context.Context, account auth.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

func AccountFromContext(ctx context.Context) (auth.Account, bool) {
	account, ok := ctx.Value(accountKey).(auth.Account)
	return account, ok
}
