// Package fetcher retrieves the newest posts of a feed, waiting out Reddit's
// rate limits for as long as it takes.
package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	graw "github.com/jamesprial/redditlatest"
	"github.com/jamesprial/redditlatest/internal"
	"github.com/jamesprial/redditlatest/internal/metrics"
	pkgerrs "github.com/jamesprial/redditlatest/pkg/errors"
	"github.com/jamesprial/redditlatest/pkg/types"
)

// Source lists a feed's newest posts one page at a time. *session.Session and
// *graw.Client both satisfy it.
type Source = graw.PostLister

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeRateLimited
	outcomeFailed
)

// outcome is the result of one listing attempt.
type outcome struct {
	kind    outcomeKind
	records []types.PostRecord
	wait    time.Duration
	err     error
}

func ok(records []types.PostRecord) outcome { return outcome{kind: outcomeOK, records: records} }
func rateLimited(wait time.Duration) outcome { return outcome{kind: outcomeRateLimited, wait: wait} }
func failed(err error) outcome               { return outcome{kind: outcomeFailed, err: err} }

// Fetcher fetches posts. The zero value is not usable; call New.
type Fetcher struct {
	logger    *slog.Logger
	sleep     Sleeper
	metrics   *metrics.Registry
	validator *internal.Validator
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithSleeper replaces the rate-limit wait.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) { f.sleep = s }
}

// WithMetrics records attempts and waits in r.
func WithMetrics(r *metrics.Registry) Option {
	return func(f *Fetcher) { f.metrics = r }
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		sleep:     sleepContext,
		validator: internal.NewValidator(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}
	return f
}

// FetchLatest returns up to req.Limit of the newest posts in req.Feed, newest
// first. Failures other than rate limiting are logged and yield an empty slice.
func (f *Fetcher) FetchLatest(ctx context.Context, src Source, req types.FetchRequest) []types.PostRecord {
	records, err := f.Fetch(ctx, src, req)
	if err != nil {
		return []types.PostRecord{}
	}
	return records
}

// Fetch is FetchLatest for callers that need to tell an empty feed from a
// broken one: failures come back as *errors.FetchError.
//
// A rate-limited attempt sleeps for the advised wait and starts over from the
// first page. There is no attempt cap.
func (f *Fetcher) Fetch(ctx context.Context, src Source, req types.FetchRequest) ([]types.PostRecord, error) {
	if req.Limit <= 0 {
		return []types.PostRecord{}, nil
	}

	log := f.logger.With("run_id", uuid.NewString(), "subreddit", req.Feed)

	if err := f.validator.ValidateFeed(req.Feed); err != nil {
		return nil, f.fail(ctx, log, req.Feed, err)
	}

	for attempt := 1; ; attempt++ {
		out := f.attempt(ctx, src, req)

		switch out.kind {
		case outcomeOK:
			f.metrics.ObserveAttempt(metrics.OutcomeOK)
			f.metrics.AddPosts(len(out.records))
			log.Debug("fetched posts", "count", len(out.records), "attempts", attempt)
			return out.records, nil

		case outcomeRateLimited:
			f.metrics.ObserveAttempt(metrics.OutcomeRateLimited)
			log.Warn("rate limit exceeded, sleeping", "wait", out.wait, "attempt", attempt)
			if err := f.sleep(ctx, out.wait); err != nil {
				return nil, f.fail(ctx, log, req.Feed, err)
			}
			f.metrics.ObserveRateLimitWait(out.wait)

		default:
			f.metrics.ObserveAttempt(metrics.OutcomeFailed)
			return nil, f.fail(ctx, log, req.Feed, out.err)
		}
	}
}

// attempt runs one full listing pass, paging past Reddit's per-request cap.
func (f *Fetcher) attempt(ctx context.Context, src Source, req types.FetchRequest) outcome {
	it := graw.NewNewIterator(ctx, src, req.Feed).WithLimit(req.Limit)

	posts, err := it.Collect(req.Limit)
	if err != nil {
		var rlErr *pkgerrs.RateLimitError
		if errors.As(err, &rlErr) {
			return rateLimited(rlErr.Wait)
		}
		return failed(err)
	}

	records := make([]types.PostRecord, 0, len(posts))
	for _, p := range posts {
		records = append(records, types.NewPostRecord(p))
	}
	return ok(records)
}

func (f *Fetcher) fail(ctx context.Context, log *slog.Logger, feed string, err error) error {
	category := Classify(err)
	if ctx.Err() != nil {
		category = pkgerrs.CategoryCanceled
	}
	if category == pkgerrs.CategoryCanceled {
		log.Warn("fetch canceled", "error", err)
	} else {
		log.Error("fetch failed", "category", category, "error", err)
	}
	return &pkgerrs.FetchError{Category: category, Feed: feed, Err: err}
}

// Classify names the failure category of a fetch error. A request that timed
// out on its own counts as a network failure; only cancellation is canceled.
func Classify(err error) string {
	var (
		cfgErr    *pkgerrs.ConfigError
		clientErr *pkgerrs.ClientError
		reqErr    *pkgerrs.RequestError
		apiErr    *pkgerrs.APIError
		authErr   *pkgerrs.AuthError
		stateErr  *pkgerrs.StateError
		parseErr  *pkgerrs.ParseError
	)

	switch {
	case errors.Is(err, context.Canceled):
		return pkgerrs.CategoryCanceled
	case errors.As(err, &cfgErr), errors.As(err, &clientErr):
		return pkgerrs.CategoryClient
	case errors.As(err, &reqErr):
		return pkgerrs.CategoryNetwork
	case errors.As(err, &apiErr), errors.As(err, &authErr), errors.As(err, &stateErr):
		return pkgerrs.CategoryResponse
	case errors.As(err, &parseErr):
		return pkgerrs.CategoryParse
	default:
		return pkgerrs.CategoryUnexpected
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
