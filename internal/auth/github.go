package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubUser is the portion of the GitHub /user API response we care about.
// GitHub returns a much larger object — we only unmarshal what we need to
// create or match an account.
type GitHubUser struct {
	ID    int64  `json:"id"`    // GitHub's numeric user ID — stable, never changes
	Login string `json:"login"` // GitHub username
	Email string `json:"email"` // Primary email (empty if hidden in GitHub settings)
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization
// Code flow, the optional alternative to email/password sign-in.
//
// The code-for-token exchange happens server-to-server using the client
// secret; the access token never reaches the browser. The session issued
// afterwards is the same JWT cookie a password login gets.
type GitHubProvider struct {
	config *oauth2.Config
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
// callbackURL must exactly match the "Authorization callback URL" of the
// registered OAuth app, e.g. "https://qrgenius.example.com/auth/github/callback".
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

// AuthURL returns the GitHub authorization URL for the given CSRF state.
// The caller stores the state in a short-lived cookie and verifies it on
// callback.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: it trades the authorization code for
// an access token and fetches the GitHub user profile with it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging GitHub code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user", nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: fetching GitHub user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub user endpoint returned %d", resp.StatusCode)
	}

	var user GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub user: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub user response missing id")
	}
	if user.Email == "" {
		// Email hidden in GitHub settings. Fall back to GitHub's noreply
		// convention so the account still gets a unique address — the
		// users table enforces email uniqueness.
		user.Email = fmt.Sprintf("%d+%s@users.noreply.github.com", user.ID, user.Login)
	}

	return &user, nil
}
