// Package session turns a credential set into a verified Reddit session.
package session

import (
	"context"
	"log/slog"
	"net/http"

	graw "github.com/jamesprial/redditlatest"
	"github.com/jamesprial/redditlatest/internal"
	"github.com/jamesprial/redditlatest/internal/config"
	pkgerrs "github.com/jamesprial/redditlatest/pkg/errors"
	"github.com/jamesprial/redditlatest/pkg/types"
	"github.com/jamesprial/redditlatest/pkg/validation"
)

// Dialer builds an unconnected API client for a credential set.
type Dialer func(creds config.Credentials) (*graw.Client, error)

// Session is an authenticated handle bound to one Reddit identity.
type Session struct {
	client   *graw.Client
	identity string
}

// Identity returns the username the session is authenticated as.
func (s *Session) Identity() string {
	return s.identity
}

// Client returns the underlying API client.
func (s *Session) Client() *graw.Client {
	return s.client
}

// GetNew returns a page of a subreddit's newest posts.
func (s *Session) GetNew(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	return s.client.GetNew(ctx, request)
}

// Authenticator creates sessions.
type Authenticator struct {
	dial   Dialer
	logger *slog.Logger
}

// Option configures an Authenticator.
type Option func(*authOptions)

type authOptions struct {
	settings   config.Settings
	httpClient *http.Client
	logger     *slog.Logger
	dial       Dialer
}

// WithSettings sets endpoints, timeout and rate limits for dialed clients.
func WithSettings(s config.Settings) Option {
	return func(o *authOptions) { o.settings = s }
}

// WithHTTPClient overrides the HTTP client used by dialed clients.
func WithHTTPClient(c *http.Client) Option {
	return func(o *authOptions) { o.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *authOptions) { o.logger = l }
}

// WithDialer replaces the client constructor entirely.
func WithDialer(d Dialer) Option {
	return func(o *authOptions) { o.dial = d }
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(opts ...Option) *Authenticator {
	o := &authOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.dial == nil {
		o.dial = defaultDialer(o.settings, o.httpClient, o.logger)
	}
	return &Authenticator{dial: o.dial, logger: o.logger}
}

func defaultDialer(s config.Settings, httpClient *http.Client, logger *slog.Logger) Dialer {
	return func(creds config.Credentials) (*graw.Client, error) {
		hc := httpClient
		if hc == nil && s.Timeout > 0 {
			hc = &http.Client{Timeout: s.Timeout}
		}
		cfg := &graw.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Username:     creds.Username,
			Password:     creds.Password,
			UserAgent:    creds.UserAgent,
			BaseURL:      s.BaseURL,
			AuthURL:      s.AuthURL,
			HTTPClient:   hc,
			Logger:       logger,
		}
		if s.RequestsPerMinute > 0 || s.Burst > 0 {
			cfg.RateLimit = &internal.RateLimitConfig{RequestsPerMinute: s.RequestsPerMinute, Burst: s.Burst}
		}
		return graw.NewClient(cfg)
	}
}

// Authenticate logs in with creds and confirms the session by asking Reddit
// who it belongs to. Missing credentials fail with *errors.ConfigError before
// any request; every other failure is an *errors.AuthError. There is no retry.
func (a *Authenticator) Authenticate(ctx context.Context, creds config.Credentials) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	client, err := a.dial(creds)
	if err != nil {
		return nil, a.fail(err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, a.fail(err)
	}

	me, err := client.Me(ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	if me == nil || !validation.IsValidUsername(me.Name) {
		return nil, a.fail(&pkgerrs.AuthError{Message: "reddit did not report a usable identity for the session"})
	}

	a.logger.Info("authenticated", "user", me.Name)
	return &Session{client: client, identity: me.Name}, nil
}

func (a *Authenticator) fail(cause error) error {
	a.logger.Error("authentication failed", "error", cause)
	return &pkgerrs.AuthError{Message: "authentication failed", Err: cause}
}
