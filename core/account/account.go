// Package account logs users in and out of the API.
package account

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
	"github.com/trezcool/masomo-portal/core/resource"
)

var ErrAuthenticationFailed = errors.New("Email ou mot de passe incorrect")

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token       string    `json:"token"`
	AccessToken string    `json:"access_token"`
	User        auth.User `json:"user"`
}

type Service struct {
	tr     *resource.Transport
	logger core.Logger
}

func NewService(tr *resource.Transport, logger core.Logger) *Service {
	if logger == nil {
		logger = core.NopLogger
	}
	return &Service{tr: tr, logger: logger}
}

// Login authenticates against POST /api/login and stores the credentials in the session.
func (svc *Service) Login(ctx context.Context, creds Credentials) (auth.User, error) {
	creds.Email = core.CleanString(creds.Email, true /* lower */)

	req, err := resource.JSONRequest(rest.Post, "/api/login", creds)
	if err != nil {
		return auth.User{}, err
	}
	req.Public = true

	res, err := svc.tr.Send(ctx, req)
	if err != nil {
		if core.IsHTTPStatus(err, http.StatusUnauthorized) || core.IsHTTPStatus(err, http.StatusUnprocessableEntity) {
			return auth.User{}, ErrAuthenticationFailed
		}
		return auth.User{}, err
	}

	var lr loginResponse
	if err := resource.DecodeRecord([]byte(res.Body), &lr); err != nil {
		return auth.User{}, err
	}
	token := lr.Token
	if token == "" {
		token = lr.AccessToken
	}
	if err := auth.ValidateToken(token); err != nil {
		return auth.User{}, errors.Wrap(err, "login response")
	}

	if err := svc.tr.Session().SetCredentials(ctx, token, lr.User); err != nil {
		return auth.User{}, err
	}
	svc.logger.Info(fmt.Sprintf("logged in as %s", lr.User.Email), lr.User)
	return lr.User, nil
}

// Logout tells the API (best effort) then clears the session.
func (svc *Service) Logout(ctx context.Context) error {
	session := svc.tr.Session()
	if session.Authenticated(ctx) {
		if err := svc.tr.Do(ctx, rest.Post, "/api/logout", nil, nil); err != nil && !core.IsAuthError(err) {
			svc.logger.Warn(fmt.Sprintf("api logout: %v", err), err)
		}
	}
	return session.Logout(ctx, auth.LogoutUser)
}

// Me fetches the current user from GET /api/user and refreshes the stored one.
func (svc *Service) Me(ctx context.Context) (auth.User, error) {
	var usr auth.User
	if err := svc.tr.Do(ctx, rest.Get, "/api/user", nil, &usr); err != nil {
		return usr, err
	}
	session := svc.tr.Session()
	token, err := session.Token(ctx)
	if err != nil {
		return usr, err
	}
	return usr, session.SetCredentials(ctx, token, usr)
}
