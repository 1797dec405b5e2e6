package web

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/forum/internal/auth"
	"github.com/willemschots/forum/internal/buildinfo"
)

type createAccountRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

type loginRequest struct {
	Token string `json:"token"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type accountResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DateCreated time.Time `json:"dateCreated"`
}

func newAccountResponse(a auth.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Username:    string(a.Username),
		Email:       a.Email.String(),
		DateCreated: a.CreatedAt.UTC(),
	}
}

type healthResponse struct {
	Revision string `json:"revision"`
}

func healthz(context.Context) (healthResponse, error) {
	return healthResponse{Revision: buildinfo.Revision}, nil
}
