package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	pkgerrs "github.com/jamesprial/redditlatest/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultTokenEndpointPath = "api/v1/access_token"

// Grant types understood by Reddit's token endpoint.
const (
	GrantPassword          = "password"
	GrantClientCredentials = "client_credentials"
)

// Authenticator exchanges Reddit app credentials for a bearer token.
// The OAuth2 exchange itself is delegated to golang.org/x/oauth2.
type Authenticator struct {
	client        *http.Client
	username      string
	password      string
	grantType     string
	BaseURL       *url.URL
	tokenURL      *url.URL
	passwordGrant *oauth2.Config
	appGrant      *clientcredentials.Config
	logger        *slog.Logger
}

// NewAuthenticator creates a new authenticator. grantType is GrantPassword or
// GrantClientCredentials; the User-Agent is attached to every token request since
// Reddit rejects anonymous agents.
func NewAuthenticator(httpClient *http.Client, username, password, clientID, clientSecret, userAgent, baseURL, grantType string, logger *slog.Logger) (*Authenticator, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to parse base URL: %w", err)}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	tokenURL, err := parsedURL.Parse(defaultTokenEndpointPath)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to resolve token endpoint: %w", err)}
	}

	switch grantType {
	case GrantPassword:
		if username == "" || password == "" {
			return nil, &pkgerrs.AuthError{Message: "password grant requires username and password"}
		}
	case GrantClientCredentials:
	default:
		return nil, &pkgerrs.AuthError{Message: fmt.Sprintf("unsupported grant type %q", grantType)}
	}

	endpoint := oauth2.Endpoint{
		TokenURL:  tokenURL.String(),
		AuthStyle: oauth2.AuthStyleInHeader,
	}

	return &Authenticator{
		client:    withUserAgent(httpClient, userAgent),
		username:  username,
		password:  password,
		grantType: grantType,
		BaseURL:   parsedURL,
		tokenURL:  tokenURL,
		passwordGrant: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
		},
		appGrant: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     endpoint.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		logger: logger,
	}, nil
}

// GetToken performs the configured grant and returns the access token.
func (a *Authenticator) GetToken(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)

	var (
		tok *oauth2.Token
		err error
	)
	if a.grantType == GrantPassword {
		tok, err = a.passwordGrant.PasswordCredentialsToken(ctx, a.username, a.password)
	} else {
		tok, err = a.appGrant.Token(ctx)
	}
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			authErr := &pkgerrs.AuthError{Body: string(retrieveErr.Body), Err: err}
			if retrieveErr.Response != nil {
				authErr.StatusCode = retrieveErr.Response.StatusCode
			}
			return "", authErr
		}
		return "", &pkgerrs.AuthError{Err: fmt.Errorf("failed to execute token request: %w", err)}
	}

	if tok.AccessToken == "" {
		return "", &pkgerrs.AuthError{Message: "access token was empty in response"}
	}

	a.logger.Debug("obtained access token", "grant_type", a.grantType, "expires", tok.Expiry)
	return tok.AccessToken, nil
}

// userAgentTransport stamps a fixed User-Agent on outgoing requests.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

func withUserAgent(c *http.Client, userAgent string) *http.Client {
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	clone := *c
	clone.Transport = &userAgentTransport{base: base, userAgent: userAgent}
	return &clone
}
