package graw

import (
	"context"
	"errors"

	"github.com/jamesprial/redditlatest/internal"
	"github.com/jamesprial/redditlatest/pkg/types"
)

// ErrNoMorePosts is returned by Next once the listing is exhausted.
var ErrNoMorePosts = errors.New("no more posts available")

// PostIterator provides an iterator for paginating through posts.
type PostIterator struct {
	ctx       context.Context
	lister    PostLister
	subreddit string
	pageSize  int
	remaining int // 0 means unbounded
	buffer    []*types.Post
	bufferIdx int
	after     string
	hasMore   bool
	pages     int
	err       error
}

// NewNewIterator creates an iterator over a subreddit's newest posts, using
// lister to fetch each page.
func NewNewIterator(ctx context.Context, lister PostLister, subreddit string) *PostIterator {
	return &PostIterator{
		ctx:       ctx,
		lister:    lister,
		subreddit: subreddit,
		pageSize:  internal.MaxPageLimit,
		hasMore:   true,
	}
}

// NewNewIterator creates an iterator over the subreddit's newest posts.
func (c *Client) NewNewIterator(ctx context.Context, subreddit string) *PostIterator {
	return NewNewIterator(ctx, c, subreddit)
}

// WithLimit sets the number of posts to fetch per request.
func (it *PostIterator) WithLimit(limit int) *PostIterator {
	if limit > internal.MaxPageLimit {
		limit = internal.MaxPageLimit
	}
	if limit < 1 {
		limit = 1
	}
	it.pageSize = limit
	return it
}

// HasNext returns true if there may be more posts to iterate through.
func (it *PostIterator) HasNext() bool {
	if it.err != nil {
		return false
	}
	return it.bufferIdx < len(it.buffer) || it.hasMore
}

// Next returns the next post in the iteration, or ErrNoMorePosts at the end.
func (it *PostIterator) Next() (*types.Post, error) {
	for {
		if it.err != nil {
			return nil, it.err
		}

		if it.bufferIdx >= len(it.buffer) {
			if !it.hasMore {
				return nil, ErrNoMorePosts
			}
			if err := it.fetch(); err != nil {
				it.err = err
				return nil, err
			}
			continue
		}

		post := it.buffer[it.bufferIdx]
		it.bufferIdx++
		if post == nil {
			continue
		}
		if it.remaining > 0 {
			it.remaining--
		}
		return post, nil
	}
}

func (it *PostIterator) fetch() error {
	limit := it.pageSize
	if it.remaining > 0 && it.remaining < limit {
		limit = it.remaining
	}

	resp, err := it.lister.GetNew(it.ctx, &types.PostsRequest{
		Subreddit:  it.subreddit,
		Pagination: types.Pagination{Limit: limit, After: it.after},
	})
	if err != nil {
		return err
	}
	if resp == nil {
		return errors.New("received nil response")
	}

	it.pages++
	it.buffer = resp.Posts
	it.bufferIdx = 0
	it.after = resp.AfterFullname

	// An empty page or missing cursor ends the listing.
	if len(it.buffer) == 0 || it.after == "" {
		it.hasMore = false
	}
	return nil
}

// Error returns any error encountered during iteration.
func (it *PostIterator) Error() error {
	return it.err
}

// Pages returns how many listing requests the iterator has made.
func (it *PostIterator) Pages() int {
	return it.pages
}

// Reset resets the iterator to start from the beginning.
func (it *PostIterator) Reset() {
	it.buffer = nil
	it.bufferIdx = 0
	it.after = ""
	it.hasMore = true
	it.pages = 0
	it.remaining = 0
	it.err = nil
}

// Collect fetches posts until maxPosts have been gathered or the listing ends.
// A maxPosts of zero or less collects everything. Posts gathered before an
// error are returned alongside it.
func (it *PostIterator) Collect(maxPosts int) ([]*types.Post, error) {
	var posts []*types.Post
	if maxPosts > 0 {
		it.remaining = maxPosts
		posts = make([]*types.Post, 0, min(maxPosts, internal.MaxPageLimit))
	}

	for maxPosts <= 0 || len(posts) < maxPosts {
		post, err := it.Next()
		if errors.Is(err, ErrNoMorePosts) {
			break
		}
		if err != nil {
			return posts, err
		}
		posts = append(posts, post)
	}

	it.remaining = 0
	return posts, nil
}
