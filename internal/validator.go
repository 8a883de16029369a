package internal

import (
	"fmt"
	"strings"

	pkgerrs "github.com/jamesprial/redditlatest/pkg/errors"
	"github.com/jamesprial/redditlatest/pkg/types"
	"github.com/jamesprial/redditlatest/pkg/validation"
)

const (
	// Subreddit name constraints
	minSubredditLength = 2
	maxSubredditLength = 21

	// Pagination constraints
	MaxPageLimit = 100

	// User agent constraints
	maxUserAgentLength = 256

	// feedSeparator joins subreddits into a combined feed, as in r/golang+rust.
	feedSeparator = "+"
)

// Validator provides validation operations for Reddit API parameters.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateFeed checks a feed name, which is a subreddit or several subreddits
// joined with "+".
func (v *Validator) ValidateFeed(feed string) error {
	if feed == "" {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot be empty"}
	}
	for _, name := range strings.Split(feed, feedSeparator) {
		if err := v.ValidateSubredditName(name); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSubredditName checks if a subreddit name is valid according to Reddit's naming rules.
func (v *Validator) ValidateSubredditName(name string) error {
	if name == "" {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot be empty"}
	}
	if len(name) < minSubredditLength {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name must be at least %d characters", minSubredditLength)}
	}
	if len(name) > maxSubredditLength {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name cannot exceed %d characters", maxSubredditLength)}
	}
	if name[0] == '_' || name[len(name)-1] == '_' {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot start or end with underscore"}
	}
	if strings.Contains(name, "__") {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot contain consecutive underscores"}
	}
	if !validation.IsValidSubreddit(name) {
		for i, ch := range name {
			if !isSubredditRune(ch) {
				return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name contains invalid character '%c' at position %d", ch, i)}
			}
		}
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name is malformed"}
	}
	return nil
}

func isSubredditRune(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_'
}

// ValidatePagination checks if pagination parameters are valid.
func (v *Validator) ValidatePagination(pagination *types.Pagination) error {
	if pagination == nil {
		return nil
	}
	// Reddit API doesn't allow both After and Before to be set
	if pagination.After != "" && pagination.Before != "" {
		return &pkgerrs.ConfigError{Field: "pagination", Message: "cannot set both After and Before pagination parameters"}
	}
	if pagination.Limit < 0 {
		return &pkgerrs.ConfigError{Field: "pagination.Limit", Message: "limit cannot be negative"}
	}
	if pagination.Limit > MaxPageLimit {
		return &pkgerrs.ConfigError{Field: "pagination.Limit", Message: fmt.Sprintf("limit cannot exceed %d", MaxPageLimit)}
	}
	if err := validation.ValidateCursor(pagination.After); err != nil {
		return &pkgerrs.ConfigError{Field: "pagination.After", Message: err.Error()}
	}
	if err := validation.ValidateCursor(pagination.Before); err != nil {
		return &pkgerrs.ConfigError{Field: "pagination.Before", Message: err.Error()}
	}
	return nil
}

// ValidateUserAgent rejects User-Agent strings that are empty, oversized or
// could smuggle extra headers.
func (v *Validator) ValidateUserAgent(ua string) error {
	if len(ua) == 0 {
		return &pkgerrs.ConfigError{Field: "user_agent", Message: "user agent cannot be empty"}
	}
	if strings.ContainsAny(ua, "\r\n") {
		return &pkgerrs.ConfigError{Field: "user_agent", Message: "user agent cannot contain newline characters"}
	}
	if len(ua) > maxUserAgentLength {
		return &pkgerrs.ConfigError{Field: "user_agent", Message: fmt.Sprintf("user agent too long (max %d characters)", maxUserAgentLength)}
	}
	return nil
}
