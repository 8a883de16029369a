package graw

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jamesprial/redditlatest/internal"
	pkgerrs "github.com/jamesprial/redditlatest/pkg/errors"
	"github.com/jamesprial/redditlatest/pkg/types"
)

const (
	// DefaultBaseURL is the default Reddit API base URL
	DefaultBaseURL = "https://oauth.reddit.com/"
	// DefaultAuthURL is the default Reddit OAuth base URL
	DefaultAuthURL = "https://www.reddit.com/"
	// DefaultUserAgent is the default user agent string
	DefaultUserAgent = "redditlatest/0.1"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
)

// Config holds the configuration for the Reddit client.
//
// For application-only authentication provide ClientID and ClientSecret.
// For user authentication additionally provide Username and Password.
type Config struct {
	// Username and Password select the password grant when both are set.
	Username string
	Password string

	// ClientID and ClientSecret identify the Reddit app. Always required.
	ClientID     string
	ClientSecret string

	// UserAgent identifies the application to Reddit, for example
	// "script:latestposts:1.0 by /u/gopher".
	UserAgent string

	// BaseURL for API calls. Defaults to DefaultBaseURL.
	BaseURL string

	// AuthURL hosts the token endpoint. Defaults to DefaultAuthURL.
	AuthURL string

	// HTTPClient to use for requests. Defaults to a client with DefaultTimeout.
	HTTPClient *http.Client

	// RateLimit tunes the client-side throttle. Nil uses 60 requests per minute
	// with a burst of 10.
	RateLimit *internal.RateLimitConfig

	// Logger for structured diagnostics. Nil discards.
	Logger *slog.Logger
}

// TokenProvider defines the interface for retrieving an access token.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// PostLister is implemented by anything that can return a page of a
// subreddit's newest posts.
type PostLister interface {
	GetNew(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error)
}

// Client is the main Reddit API client. Calls connect lazily on first use.
type Client struct {
	auth      TokenProvider
	config    *Config
	parser    *internal.Parser
	validator *internal.Validator
	conn      *internal.ConnectionManager
}

// NewClient creates a new Reddit client with the provided configuration.
// It validates the configuration and picks the grant type but does not
// contact Reddit; call Connect for that.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientID", Message: "ClientID and ClientSecret are required"}
	}

	cfg := *config
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	validator := internal.NewValidator()
	if err := validator.ValidateUserAgent(cfg.UserAgent); err != nil {
		return nil, err
	}

	grantType := internal.GrantClientCredentials
	if cfg.Username != "" && cfg.Password != "" {
		grantType = internal.GrantPassword
	}

	auth, err := internal.NewAuthenticator(
		cfg.HTTPClient,
		cfg.Username,
		cfg.Password,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.UserAgent,
		cfg.AuthURL,
		grantType,
		cfg.Logger,
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		auth:      auth,
		config:    &cfg,
		parser:    internal.NewParser(),
		validator: validator,
		conn:      internal.NewConnectionManager(),
	}, nil
}

// Connect obtains an access token and prepares the API transport. Once it has
// succeeded further calls are no-ops; a failed attempt may be retried.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.connection(ctx)
	return err
}

func (c *Client) connection(ctx context.Context) (*internal.Client, error) {
	return c.conn.Initialize(ctx, func(ctx context.Context) (*internal.Client, error) {
		token, err := c.auth.GetToken(ctx)
		if err != nil {
			return nil, err
		}
		return internal.NewClient(
			c.config.HTTPClient,
			token,
			c.config.BaseURL,
			c.config.UserAgent,
			c.config.RateLimit,
			c.config.Logger,
		)
	})
}

// IsConnected returns true if the client is authenticated and ready to make requests.
func (c *Client) IsConnected() bool {
	return c.conn.IsInitialized()
}

// Me returns the account the access token belongs to.
func (c *Client) Me(ctx context.Context) (*types.AccountData, error) {
	api, err := c.connection(ctx)
	if err != nil {
		return nil, err
	}

	req, err := api.NewRequest(ctx, http.MethodGet, "api/v1/me", nil)
	if err != nil {
		return nil, err
	}

	// api/v1/me answers with a bare account object rather than a t2 envelope.
	var account types.AccountData
	if _, err := api.Do(req, &account); err != nil {
		return nil, err
	}

	return &account, nil
}

// GetNew retrieves new posts from a subreddit, most recent first.
// A nil request or empty Subreddit reads the front page.
func (c *Client) GetNew(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	var (
		subreddit  string
		pagination types.Pagination
	)
	if request != nil {
		subreddit = request.Subreddit
		pagination = request.Pagination
	}

	if subreddit != "" {
		if err := c.validator.ValidateFeed(subreddit); err != nil {
			return nil, err
		}
	}
	if err := c.validator.ValidatePagination(&pagination); err != nil {
		return nil, err
	}

	api, err := c.connection(ctx)
	if err != nil {
		return nil, err
	}

	path := "new"
	if subreddit != "" {
		path = "r/" + subreddit + "/new"
	}

	httpReq, err := api.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	q := httpReq.URL.Query()
	q.Set("raw_json", "1")
	if pagination.Limit > 0 {
		q.Set("limit", strconv.Itoa(pagination.Limit))
	}
	if pagination.After != "" {
		q.Set("after", pagination.After)
	}
	if pagination.Before != "" {
		q.Set("before", pagination.Before)
	}
	httpReq.URL.RawQuery = q.Encode()

	var result types.Thing
	if _, err := api.Do(httpReq, &result); err != nil {
		return nil, err
	}

	page, err := c.parser.ExtractPostsPage(&result)
	if err != nil {
		return nil, &pkgerrs.ParseError{Operation: "GetNew", Err: err}
	}
	return page, nil
}
