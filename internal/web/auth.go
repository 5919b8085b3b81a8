package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"research-agent/internal/config"
)

// Profile is the identity returned by the provider after login.
type Profile struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
}

// Authenticator drives the Auth0 authorization-code flow. The token
// protocol itself lives in golang.org/x/oauth2; this only holds the
// endpoints and pending CSRF states.
type Authenticator struct {
	oauth  oauth2.Config
	domain string
	client *http.Client

	mu     sync.Mutex
	states map[string]time.Time
}

// NewAuthenticator builds an Authenticator from a complete Auth0
// configuration.
func NewAuthenticator(cfg config.Auth0Config) *Authenticator {
	return &Authenticator{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"openid", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://" + cfg.Domain + "/authorize",
				TokenURL: "https://" + cfg.Domain + "/oauth/token",
			},
		},
		domain: cfg.Domain,
		client: &http.Client{Timeout: 10 * time.Second},
		states: make(map[string]time.Time),
	}
}

// LoginURL issues a fresh CSRF state and returns the provider URL to
// redirect the browser to.
func (a *Authenticator) LoginURL() string {
	state := uuid.NewString()
	a.mu.Lock()
	a.states[state] = time.Now()
	for s, t := range a.states {
		if time.Since(t) > 10*time.Minute {
			delete(a.states, s)
		}
	}
	a.mu.Unlock()
	return a.oauth.AuthCodeURL(state)
}

// consumeState validates and invalidates a returned state value.
func (a *Authenticator) consumeState(state string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.states[state]; !ok {
		return false
	}
	delete(a.states, state)
	return true
}

// HandleCallback exchanges the authorization code and fetches the user
// profile.
func (a *Authenticator) HandleCallback(ctx context.Context, state, code string) (Profile, error) {
	if !a.consumeState(state) {
		return Profile{}, fmt.Errorf("invalid login state")
	}

	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+a.domain+"/userinfo", nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("userinfo http %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if profile.Sub == "" {
		return Profile{}, fmt.Errorf("userinfo response missing subject")
	}
	return profile, nil
}

// LogoutURL returns the provider endpoint that clears the Auth0 session
// and sends the browser back to returnTo.
func (a *Authenticator) LogoutURL(returnTo string) string {
	q := url.Values{}
	q.Set("client_id", a.oauth.ClientID)
	q.Set("returnTo", returnTo)
	return "https://" + a.domain + "/v2/logout?" + q.Encode()
}
