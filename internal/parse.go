package internal

import (
	"encoding/json"
	"fmt"

	"github.com/jamesprial/redditlatest/pkg/types"
)

// Reddit kind tags handled by the parser.
const (
	KindListing = "Listing"
	KindLink    = "t3"
)

// Parser handles parsing of Reddit API responses
type Parser struct{}

// NewParser creates a new parser instance
func NewParser() *Parser {
	return &Parser{}
}

// ParseListing extracts a ListingData from a Thing of kind "Listing".
func (p *Parser) ParseListing(thing *types.Thing) (*types.ListingData, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != KindListing {
		return nil, fmt.Errorf("expected Listing, got %s", thing.Kind)
	}

	var listing types.ListingData
	if err := json.Unmarshal(thing.Data, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse Listing data: %w", err)
	}
	return &listing, nil
}

// ParseLink extracts a Post from a Thing of kind "t3".
func (p *Parser) ParseLink(thing *types.Thing) (*types.Post, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != KindLink {
		return nil, fmt.Errorf("expected t3 (Link), got %s", thing.Kind)
	}

	var post types.Post
	if err := json.Unmarshal(thing.Data, &post); err != nil {
		return nil, fmt.Errorf("failed to parse Link data: %w", err)
	}
	return &post, nil
}

// ExtractPosts extracts all Post objects from a listing Thing. Children of other
// kinds, and links whose data does not decode, are skipped.
func (p *Parser) ExtractPosts(listing *types.Thing) ([]*types.Post, error) {
	listingData, err := p.ParseListing(listing)
	if err != nil {
		return nil, err
	}

	posts := make([]*types.Post, 0, len(listingData.Children))
	for _, child := range listingData.Children {
		if child == nil || child.Kind != KindLink {
			continue
		}
		post, err := p.ParseLink(child)
		if err != nil {
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// ExtractPostsPage is ExtractPosts plus the listing's pagination cursors.
func (p *Parser) ExtractPostsPage(listing *types.Thing) (*types.PostsResponse, error) {
	listingData, err := p.ParseListing(listing)
	if err != nil {
		return nil, err
	}

	posts, err := p.ExtractPosts(listing)
	if err != nil {
		return nil, err
	}

	return &types.PostsResponse{
		Posts:          posts,
		AfterFullname:  listingData.AfterFullname,
		BeforeFullname: listingData.BeforeFullname,
	}, nil
}
