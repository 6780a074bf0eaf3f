package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// oauthTokens persists an [oauth2.Token] in the state store and refreshes it on demand.
//
// Concurrent refreshes of the same token collapse into one request.
type oauthTokens struct {
	service  models.ServiceType
	store    models.StateStore
	key      string
	stateKey string
	config   *oauth2.Config
	http     *http.Client
	group    singleflight.Group
}

func newOAuthTokens(service models.ServiceType, store models.StateStore, key string, config *oauth2.Config, client *http.Client) *oauthTokens {
	return &oauthTokens{
		service:  service,
		store:    store,
		key:      key,
		stateKey: string(service) + "_oauth_state",
		config:   config,
		http:     client,
	}
}

func (t *oauthTokens) load(ctx context.Context) (*oauth2.Token, error) {
	var tok oauth2.Token
	ok, err := t.store.Get(ctx, t.key, &tok)
	if err != nil {
		return nil, err
	}
	if !ok || tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s has no stored token", shared.ErrNotAuthenticated, t.service)
	}
	return &tok, nil
}

// ready reports whether an access token is stored.
func (t *oauthTokens) ready(ctx context.Context) bool {
	_, err := t.load(ctx)
	return err == nil
}

func (t *oauthTokens) clientContext(ctx context.Context) context.Context {
	if t.http == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, t.http)
}

// accessToken returns a valid access token, refreshing and persisting it when expired.
func (t *oauthTokens) accessToken(ctx context.Context) (string, error) {
	tok, err := t.load(ctx)
	if err != nil {
		return "", err
	}
	if tok.Valid() {
		return tok.AccessToken, nil
	}
	if tok.RefreshToken == "" {
		return "", fmt.Errorf("%w: %s token expired without refresh token", shared.ErrNotAuthenticated, t.service)
	}

	v, err, _ := t.group.Do(t.key, func() (any, error) {
		fresh, err := t.config.TokenSource(t.clientContext(ctx), tok).Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %s token refresh: %v", shared.ErrNotAuthenticated, t.service, err)
		}
		if err := t.store.Set(ctx, t.key, fresh); err != nil {
			return nil, err
		}
		return fresh.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// authURL generates a CSRF state, stores it, and returns the consent URL.
func (t *oauthTokens) authURL(ctx context.Context, opts ...oauth2.AuthCodeOption) (string, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return "", err
	}
	if err := t.store.Set(ctx, t.stateKey, state); err != nil {
		return "", err
	}
	opts = append([]oauth2.AuthCodeOption{oauth2.AccessTypeOffline}, opts...)
	return t.config.AuthCodeURL(state, opts...), nil
}

// complete validates the callback query, exchanges the code and persists the token.
func (t *oauthTokens) complete(ctx context.Context, query url.Values) error {
	if e := query.Get("error"); e != "" {
		return fmt.Errorf("%w: %s authorization denied: %s", shared.ErrNotAuthenticated, t.service, e)
	}

	code := query.Get("code")
	if code == "" {
		return fmt.Errorf("%w: %s callback missing code parameter", shared.ErrInvalidInput, t.service)
	}

	var expected string
	if _, err := t.store.Get(ctx, t.stateKey, &expected); err != nil {
		return err
	}
	if expected == "" || query.Get("state") != expected {
		return fmt.Errorf("%w: %s", shared.ErrInvalidState, t.service)
	}
	if err := t.store.Delete(ctx, t.stateKey); err != nil {
		return err
	}

	tok, err := t.config.Exchange(t.clientContext(ctx), code)
	if err != nil {
		return fmt.Errorf("%w: %s code exchange: %v", shared.ErrNotAuthenticated, t.service, err)
	}
	return t.store.Set(ctx, t.key, tok)
}
