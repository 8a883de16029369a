// Command redditlatest signs in to Reddit and lists the newest posts of a
// subreddit.
//
// Credentials are read from the environment (or a .env file):
//
//	REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, REDDIT_USERNAME,
//	REDDIT_PASSWORD, REDDIT_USER_AGENT
//
// Usage:
//
//	redditlatest -s golang -n 10
//	redditlatest -s golang --watch 30s --metrics-addr :9090
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
