// Package web serves the forum account API over HTTP.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/willemschots/forum/internal/auth"
)

// maxBodyBytes is the max size of a request body.
const maxBodyBytes = 1 << 20

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger      *slog.Logger
	AuthService *auth.Service
}

// Server is a http.Handler that serves the JSON API.
type Server struct {
	deps    *ServerDeps
	mux     *http.ServeMux
	handler http.Handler
}

func NewServer(deps *ServerDeps) *Server {
	s := &Server{
		deps: deps,
		mux:  http.NewServeMux(),
	}

	// Most endpoints below are created using the map functions.
	// These return handlers that automatically map between JSON requests, target functions and JSON responses.

	s.public("GET /healthz", mapResponse(s, healthz))

	// Signup endpoint, sends an email with a token.
	s.public("POST /api/accounts/create", mapRequest(s, func(ctx context.Context, req createAccountRequest) error {
		return deps.AuthService.BeginSignup(ctx, auth.SignupRequest{
			Email:    req.Email,
			Username: req.Username,
		})
	}))

	// Login endpoint, exchanges a token for a session token.
	s.public("POST /api/accounts/login", mapBoth(s, func(ctx context.Context, req loginRequest) (loginResponse, error) {
		res, err := deps.AuthService.Redeem(ctx, auth.RedeemRequest{
			Token: req.Token,
		})
		if err != nil {
			return loginResponse{}, err
		}

		return loginResponse{Token: res.Token.String()}, nil
	}))

	s.loggedIn("GET /api/accounts/me", mapResponse(s, func(ctx context.Context) (accountResponse, error) {
		account, ok := AccountFromContext(ctx)
		if !ok {
			return accountResponse{}, auth.ErrInvalidToken
		}

		return newAccountResponse(account), nil
	}))

	// Wrap the mux with global middlewares.
	middlewares := []func(http.Handler) http.Handler{
		limitBody,
	}
	s.handler = s.mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		s.handler = middlewares[i](s.handler)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) public(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
