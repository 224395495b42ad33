package remote

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/Mhmod1992/workshop-engine/internal/model"
)

// AuthClient implements AuthAPI against the remote service's auth endpoints.
type AuthClient struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewAuthClient builds the auth client. Auth calls carry their own bearer
// tokens explicitly, so no TokenSource is installed here.
func NewAuthClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *AuthClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("apikey", apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &AuthClient{http: c, log: log}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignIn exchanges credentials for a session.
func (c *AuthClient) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	op := "sign in"
	var tr tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&tr).
		Post("/auth/v1/token")
	if err != nil {
		return nil, NewNetworkError(op, err)
	}
	if resp.StatusCode() != 200 {
		return nil, NewHTTPError(op, resp.StatusCode(), resp.String())
	}
	return sessionFromToken(tr), nil
}

// SignOut revokes the session server-side.
func (c *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	op := "sign out"
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		Post("/auth/v1/logout")
	if err != nil {
		return NewNetworkError(op, err)
	}
	if resp.StatusCode() != 204 && resp.StatusCode() != 200 {
		return NewHTTPError(op, resp.StatusCode(), resp.String())
	}
	return nil
}

// GetSession asks the server who the token belongs to. Used during startup
// and on tab revival to detect identity drift.
func (c *AuthClient) GetSession(ctx context.Context, accessToken string) (*model.Session, error) {
	op := "get session"
	var ur userResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&ur).
		Get("/auth/v1/user")
	if err != nil {
		return nil, NewNetworkError(op, err)
	}
	if resp.StatusCode() != 200 {
		return nil, NewHTTPError(op, resp.StatusCode(), resp.String())
	}
	return &model.Session{
		UserID:      ur.ID,
		Email:       ur.Email,
		AccessToken: accessToken,
		ExpiresAt:   tokenExpiry(accessToken),
	}, nil
}

// RefreshSession performs a silent token refresh.
func (c *AuthClient) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	op := "refresh session"
	var tr tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&tr).
		Post("/auth/v1/token")
	if err != nil {
		return nil, NewNetworkError(op, err)
	}
	if resp.StatusCode() != 200 {
		return nil, NewHTTPError(op, resp.StatusCode(), resp.String())
	}
	return sessionFromToken(tr), nil
}

// UpdatePassword changes the authenticated user's password.
func (c *AuthClient) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	op := "update password"
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetBody(map[string]string{"password": newPassword}).
		Put("/auth/v1/user")
	if err != nil {
		return NewNetworkError(op, err)
	}
	if resp.StatusCode() != 200 {
		return NewHTTPError(op, resp.StatusCode(), resp.String())
	}
	return nil
}

func sessionFromToken(tr tokenResponse) *model.Session {
	return &model.Session{
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    tokenExpiry(tr.AccessToken),
	}
}

// tokenExpiry mirrors token validity locally by decoding the exp claim.
// The token is not verified here; validity is the server's concern.
func tokenExpiry(accessToken string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
