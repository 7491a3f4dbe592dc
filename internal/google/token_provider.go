package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// TokenProvider supplies the OAuth token used for Gmail calls.
type TokenProvider interface {
	// Token returns a valid token, refreshing it if needed.
	Token(ctx context.Context) (*oauth2.Token, error)

	// HasToken reports whether a stored token exists.
	HasToken() bool

	// HTTPClient returns a client authorizing requests with the token.
	HTTPClient(ctx context.Context) (*http.Client, error)
}

// FileTokenProvider reads credentials.json and token.json from disk and
// writes refreshed tokens back to token.json.
type FileTokenProvider struct {
	credentialsFile string
	tokenFile       string
	scopes          []string
}

// NewFileTokenProvider creates a new file-based token provider
func NewFileTokenProvider(credentialsFile, tokenFile string, scopes ...string) *FileTokenProvider {
	return &FileTokenProvider{
		credentialsFile: credentialsFile,
		tokenFile:       tokenFile,
		scopes:          scopes,
	}
}

// TokenFile returns the token path.
func (p *FileTokenProvider) TokenFile() string {
	return p.tokenFile
}

// HasToken checks if the token file exists
func (p *FileTokenProvider) HasToken() bool {
	return HasToken(p.tokenFile)
}

// Config loads the OAuth client configuration.
func (p *FileTokenProvider) Config() (*oauth2.Config, error) {
	return LoadConfig(p.credentialsFile, p.scopes...)
}

// TokenSource returns a persisting token source for the stored token.
func (p *FileTokenProvider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	conf, err := p.Config()
	if err != nil {
		return nil, err
	}

	tok, err := LoadToken(p.tokenFile)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil, fmt.Errorf("%w at %s; run 'resender auth' first", ErrNoToken, p.tokenFile)
		}
		return nil, err
	}

	return &persistingTokenSource{
		base: conf.TokenSource(ctx, tok),
		path: p.tokenFile,
		last: tok.AccessToken,
	}, nil
}

// Token retrieves a valid token, refreshing and saving it when expired.
func (p *FileTokenProvider) Token(ctx context.Context) (*oauth2.Token, error) {
	ts, err := p.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	tok, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("stored token is invalid, run 'resender auth' again: %w", err)
	}
	return tok, nil
}

// HTTPClient returns an authorized HTTP client for the Gmail API.
func (p *FileTokenProvider) HTTPClient(ctx context.Context) (*http.Client, error) {
	ts, err := p.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("stored token is invalid, run 'resender auth' again: %w", err)
	}
	return NewHTTPClient(ctx, ts), nil
}

// persistingTokenSource saves every newly issued access token.
type persistingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			return nil, err
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
