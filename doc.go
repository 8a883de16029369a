// Package graw is a small client for the parts of Reddit's OAuth API needed to
// read a subreddit's newest posts: the token endpoint, api/v1/me and the
// r/{subreddit}/new listing.
//
// # Quick Start
//
//	client, err := graw.NewClient(&graw.Config{
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		Username:     "your-username",
//		Password:     "your-password",
//		UserAgent:    "script:myapp:1.0 (by /u/yourusername)",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := client.Connect(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	page, err := client.GetNew(ctx, &types.PostsRequest{
//		Subreddit:  "golang",
//		Pagination: types.Pagination{Limit: 25},
//	})
//
// # Authentication
//
// With Username and Password set the client uses the password grant and acts as
// that account, which is what api/v1/me needs. Without them it falls back to the
// client_credentials grant, which is enough for public listings. Connect runs
// the grant once; later calls reuse the token. Tokens are not refreshed.
//
// # Pagination
//
// Reddit caps a listing request at 100 items. PostIterator follows the after
// cursor across pages:
//
//	posts, err := client.NewNewIterator(ctx, "golang").Collect(250)
//
// Collect returns what it gathered before an error together with the error.
//
// # Rate Limiting
//
// Requests pass through a token bucket (60 per minute, burst 10, configurable
// via Config.RateLimit). When Reddit reports the window is nearly used up the
// client holds further requests until the reset. A 429 response is returned as
// *errors.RateLimitError carrying the wait Reddit asked for; retrying is left to
// the caller (see internal/fetcher).
//
// # Errors
//
// All errors are typed, see package pkg/errors:
//
//	var rl *errors.RateLimitError
//	if errors.As(err, &rl) {
//		time.Sleep(rl.Wait)
//	}
package graw
