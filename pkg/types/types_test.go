package types

import (
	"encoding/json"
	"testing"
)

func TestEdited_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantEdit  bool
		wantTime  float64
		wantError bool
	}{
		{name: "false boolean", input: `false`},
		{name: "true boolean", input: `true`, wantEdit: true},
		{name: "null value", input: `null`},
		{name: "timestamp", input: `1234567890.5`, wantEdit: true, wantTime: 1234567890.5},
		{name: "invalid value", input: `"invalid"`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Edited
			err := json.Unmarshal([]byte(tt.input), &e)

			if (err != nil) != tt.wantError {
				t.Errorf("Edited.UnmarshalJSON() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if err != nil {
				return
			}

			if e.IsEdited != tt.wantEdit {
				t.Errorf("Edited.IsEdited = %v, want %v", e.IsEdited, tt.wantEdit)
			}
			if e.Timestamp != tt.wantTime {
				t.Errorf("Edited.Timestamp = %v, want %v", e.Timestamp, tt.wantTime)
			}
		})
	}
}

func TestThingData(t *testing.T) {
	td := ThingData{
		ID:   "abc123",
		Name: "t3_abc123",
	}

	if got := td.GetID(); got != "abc123" {
		t.Errorf("ThingData.GetID() = %v, want %v", got, "abc123")
	}
	if got := td.GetName(); got != "t3_abc123" {
		t.Errorf("ThingData.GetName() = %v, want %v", got, "t3_abc123")
	}
}

func TestPost_UnmarshalListingChild(t *testing.T) {
	raw := `{"id":"abc","name":"t3_abc","title":"Hello","author":"gopher","score":42,"edited":1700000000,"created_utc":1699999999}`

	var p Post
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal post: %v", err)
	}
	if p.Title != "Hello" || p.Author != "gopher" || p.Score != 42 {
		t.Errorf("unexpected post: %+v", p)
	}
	if !p.Edited.IsEdited {
		t.Error("expected edited timestamp to mark post as edited")
	}
	if p.CreatedUTC != 1699999999 {
		t.Errorf("CreatedUTC = %v", p.CreatedUTC)
	}
}

func TestNewPostRecord(t *testing.T) {
	tests := []struct {
		name       string
		post       Post
		wantAuthor string
	}{
		{name: "regular author", post: Post{Author: "gopher"}, wantAuthor: "gopher"},
		{name: "empty author", post: Post{Author: ""}, wantAuthor: UnknownAuthor},
		{name: "deleted author", post: Post{Author: "[deleted]"}, wantAuthor: UnknownAuthor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.post.ID = "id1"
			tt.post.Title = "title"
			tt.post.Score = -3

			rec := NewPostRecord(&tt.post)
			want := PostRecord{ID: "id1", Title: "title", Author: tt.wantAuthor, Score: -3}
			if rec != want {
				t.Errorf("NewPostRecord() = %+v, want %+v", rec, want)
			}
		})
	}
}
