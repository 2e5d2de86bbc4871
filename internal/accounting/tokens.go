package accounting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

var ErrRefreshUnsupported = errors.New("token store cannot refresh")

// TokenStore hands out bearer tokens. Refresh forces a new access token.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticTokenStore serves a fixed access token.
type StaticTokenStore struct {
	AccessToken string
}

func (s StaticTokenStore) Token(context.Context) (string, error) {
	if s.AccessToken == "" {
		return "", ErrUnauthorized
	}
	return s.AccessToken, nil
}

func (s StaticTokenStore) Refresh(context.Context) (string, error) {
	return "", ErrRefreshUnsupported
}

// OAuthTokenStore keeps an access token obtained from a refresh token and
// renews it on expiry or on demand. Tokens live in memory only.
type OAuthTokenStore struct {
	mu         sync.Mutex
	cfg        oauth2.Config
	current    *oauth2.Token
	httpClient *http.Client
}

func NewOAuthTokenStore(clientID, clientSecret, tokenURL, refreshToken, accessToken string, httpClient *http.Client) *OAuthTokenStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	tok := &oauth2.Token{RefreshToken: refreshToken}
	if accessToken != "" {
		tok.AccessToken = accessToken
		tok.Expiry = time.Now().Add(5 * time.Minute)
	}
	return &OAuthTokenStore{
		cfg: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInHeader},
		},
		current:    tok,
		httpClient: httpClient,
	}
}

func (s *OAuthTokenStore) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Valid() {
		return s.current.AccessToken, nil
	}
	return s.refreshLocked(ctx)
}

func (s *OAuthTokenStore) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *OAuthTokenStore) refreshLocked(ctx context.Context) (string, error) {
	if s.current.RefreshToken == "" {
		return "", ErrRefreshUnsupported
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	// An empty access token forces the source to hit the token endpoint.
	src := s.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: s.current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	s.current = tok
	return tok.AccessToken, nil
}
