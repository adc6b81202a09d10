package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rohits-web03/dispatch/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUser is the subset of the userinfo response we use.
type GoogleUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleAuth wraps the OAuth2 flow used for "Sign in with Google".
type GoogleAuth struct {
	Config      *oauth2.Config
	UserInfoURL string
}

// NewGoogleAuth returns nil when no client id is configured.
func NewGoogleAuth(cfg config.GoogleConfig) *GoogleAuth {
	if cfg.ClientID == "" {
		return nil
	}
	return &GoogleAuth{
		Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		UserInfoURL: googleUserInfoURL,
	}
}

func (g *GoogleAuth) AuthCodeURL(state string) string {
	return g.Config.AuthCodeURL(state)
}

// Exchange trades the callback code for a token and fetches the profile.
func (g *GoogleAuth) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	token, err := g.Config.Exchange(ctx, code)
	if err != nil {
		return nil, dependencyFailure("google code exchange", err)
	}

	resp, err := g.Config.Client(ctx, token).Get(g.UserInfoURL)
	if err != nil {
		return nil, dependencyFailure("google user info", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, dependencyFailure("google user info", fmt.Errorf("status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dependencyFailure("google user info", err)
	}

	var u GoogleUser
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, dependencyFailure("google user info", err)
	}
	if u.Email == "" {
		return nil, validationError("google account has no email")
	}
	return &u, nil
}
