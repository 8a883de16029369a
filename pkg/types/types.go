package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnknownAuthor is substituted for posts whose author account is gone.
const UnknownAuthor = "Unknown"

// deletedAuthor is what Reddit reports in the author field of orphaned posts.
const deletedAuthor = "[deleted]"

// ThingData holds the common fields for Reddit objects.
type ThingData struct {
	ID   string `json:"id"`   // ID (without prefix)
	Name string `json:"name"` // Full name (e.g., "t3_abc123")
}

// GetID returns the object's ID.
func (td ThingData) GetID() string {
	return td.ID
}

// GetName returns the object's full name.
func (td ThingData) GetName() string {
	return td.Name
}

// Thing is the envelope Reddit wraps every object in: a kind tag plus raw data.
type Thing struct {
	ThingData
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Created is an embeddable struct for things that have a creation time.
type Created struct {
	Created    float64 `json:"created"`
	CreatedUTC float64 `json:"created_utc"`
}

// Edited represents a field that can be a boolean or a timestamp.
// If IsEdited is true and Timestamp is 0, it was an old edit marked as `true`.
type Edited struct {
	IsEdited  bool
	Timestamp float64
}

// UnmarshalJSON implements json.Unmarshaler to handle mixed types for the "edited" field.
func (e *Edited) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(string(data)) {
	case "false", "null":
		e.IsEdited = false
		e.Timestamp = 0
		return nil
	case "true":
		e.IsEdited = true
		e.Timestamp = 0
		return nil
	}

	var timestamp float64
	if err := json.Unmarshal(data, &timestamp); err == nil {
		e.IsEdited = true
		e.Timestamp = timestamp
		return nil
	}

	return fmt.Errorf("unrecognized type for 'edited' field: %s", data)
}

// ListingData contains the data for a Listing, which is used for pagination.
type ListingData struct {
	BeforeFullname string   `json:"before"` // fullname of the first item, for the previous page
	AfterFullname  string   `json:"after"`  // fullname of the last item, for the next page
	Children       []*Thing `json:"children"`
}

// Pagination captures the cursor parameters shared by Reddit listing endpoints.
type Pagination struct {
	// Limit specifies the number of items to retrieve.
	// Reddit enforces a maximum of 100 items per request.
	Limit int

	// After and Before are fullnames such as "t3_abc123". Only one may be set.
	After  string
	Before string
}

// PostsRequest describes a request to retrieve posts from a subreddit (or the front page).
type PostsRequest struct {
	Subreddit string
	Pagination
}

// AccountData contains the data for a user Account, as returned by api/v1/me.
type AccountData struct {
	ThingData
	Created
	CommentKarma     int   `json:"comment_karma"`
	HasVerifiedEmail *bool `json:"has_verified_email"`
	IsGold           bool  `json:"is_gold"`
	IsMod            bool  `json:"is_mod"`
	LinkKarma        int   `json:"link_karma"`
	Over18           bool  `json:"over_18"`
}

// Post represents a Reddit link (kind t3).
type Post struct {
	ThingData
	Created
	Author        string  `json:"author"`
	Domain        string  `json:"domain"`
	IsSelf        bool    `json:"is_self"`
	Locked        bool    `json:"locked"`
	NumComments   int     `json:"num_comments"`
	Over18        bool    `json:"over_18"`
	Permalink     string  `json:"permalink"`
	Score         int     `json:"score"`
	SelfText      string  `json:"selftext"`
	Subreddit     string  `json:"subreddit"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Edited        Edited  `json:"edited"`
	Distinguished *string `json:"distinguished"`
	Stickied      bool    `json:"stickied"`
}

// PostsResponse represents a page of posts with its pagination cursors.
type PostsResponse struct {
	Posts          []*Post
	AfterFullname  string
	BeforeFullname string
}

// FetchRequest asks for the newest Limit posts of the subreddit Feed.
type FetchRequest struct {
	Feed  string
	Limit int
}

// PostRecord is the flattened view of a post handed to callers.
type PostRecord struct {
	ID     string
	Title  string
	Author string
	Score  int
}

// NewPostRecord flattens a post, substituting UnknownAuthor for deleted or
// missing authors.
func NewPostRecord(p *Post) PostRecord {
	author := p.Author
	if author == "" || author == deletedAuthor {
		author = UnknownAuthor
	}
	return PostRecord{
		ID:     p.ID,
		Title:  p.Title,
		Author: author,
		Score:  p.Score,
	}
}
