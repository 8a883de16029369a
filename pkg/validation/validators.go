// Package validation checks the format of Reddit identifiers.
package validation

import (
	"fmt"
	"regexp"
)

var (
	// Two-letter subreddits exist (r/de, r/nl), so the floor is 2.
	subredditRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{2,21}$`)

	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

	// t[1-6]_ followed by a base36 id.
	fullnameRegex = regexp.MustCompile(`^t[1-6]_[0-9a-z]+$`)
)

// IsValidSubreddit reports whether s uses only subreddit characters and has
// a length Reddit accepts. Underscore placement is checked by the caller.
func IsValidSubreddit(s string) bool {
	return subredditRegex.MatchString(s)
}

// IsValidUsername checks if a string is a valid Reddit username
func IsValidUsername(s string) bool {
	return usernameRegex.MatchString(s)
}

// IsValidFullname checks if a string is a valid Reddit fullname ID
func IsValidFullname(s string) bool {
	return fullnameRegex.MatchString(s)
}

// ValidateCursor checks a listing cursor (the after/before parameter). An
// empty cursor means the first page and is valid.
func ValidateCursor(cursor string) error {
	if cursor == "" || IsValidFullname(cursor) {
		return nil
	}
	return fmt.Errorf("cursor %q is not a fullname", cursor)
}
