package gateway

import (
	"context"
	"fmt"

	"github.com/storyapp/storysync/internal/common"
)

const minPasswordLength = 8

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	apiEnvelope
	LoginResult *loginResult `json:"loginResult"`
}

type loginResult struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

// Session describes an authenticated user after a successful login.
type Session struct {
	UserID string
	Name   string
	Token  string
}

// Register creates an account. Passwords shorter than eight characters are
// rejected before any network traffic.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	return c.postJSON(ctx, "/register", registerRequest{Name: name, Email: email, Password: password}, false, nil)
}

// Login authenticates and stores the session token in the token source. A
// 2xx response that carries no token is an auth failure, not a success.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	var resp loginResponse
	if err := c.postJSON(ctx, "/login", loginRequest{Email: email, Password: password}, false, &resp); err != nil {
		return nil, err
	}
	if resp.LoginResult == nil || resp.LoginResult.Token == "" {
		return nil, fmt.Errorf("%w: login response carried no token", common.ErrUnauthorized)
	}

	if err := c.tokens.SetToken(ctx, resp.LoginResult.Token); err != nil {
		return nil, err
	}
	return &Session{
		UserID: resp.LoginResult.UserID,
		Name:   resp.LoginResult.Name,
		Token:  resp.LoginResult.Token,
	}, nil
}

// Logout discards the local session. Purely local: the API has no session
// invalidation endpoint.
func (c *Client) Logout(ctx context.Context) error {
	return c.tokens.ClearToken(ctx)
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLength)
	}
	return nil
}
