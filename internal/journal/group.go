package journal

import (
	"strings"

	"github.com/google/uuid"

	"photomemo/internal/apperr"
)

// FallbackGroupTitle names a group when nothing better is known.
const FallbackGroupTitle = "Untitled"

// ItemInput is one image + note of an upload batch.
type ItemInput struct {
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl" validate:"required"`
	// ThumbnailURL is a separately uploaded thumbnail image. When empty and
	// IsThumbnail is set, the item's own image is used.
	ThumbnailURL string `json:"thumbnailUrl"`
	IsThumbnail  bool   `json:"isThumbnail"`
	IsAnonymous  bool   `json:"isAnonymous"`
}

// GroupInput is what the grouping engine needs from a batch.
type GroupInput struct {
	GroupID    string
	GroupTitle string
	Details    Details
	Items      []ItemInput
	// Existing is set when the batch appends to a stored group.
	Existing *GroupSnapshot
}

// GroupSnapshot is the shared state of a stored group.
type GroupSnapshot struct {
	Title        *string
	ThumbnailURL *string
}

type Resolution struct {
	GroupID      string
	GroupTitle   string
	ThumbnailURL *string
	// ThumbnailIndex is the batch item holding the thumbnail, or -1.
	ThumbnailIndex int
}

// ResolveGroup decides group identity, title and thumbnail for a batch.
func ResolveGroup(in GroupInput) (Resolution, error) {
	if in.Details == nil {
		return Resolution{}, apperr.Validation("missing or invalid fields", "category")
	}

	res := Resolution{GroupID: strings.TrimSpace(in.GroupID), ThumbnailIndex: -1}
	if res.GroupID == "" {
		res.GroupID = uuid.NewString()
	}

	var existingTitle *string
	if in.Existing != nil {
		existingTitle = in.Existing.Title
	}
	res.GroupTitle = ResolveGroupTitle(in.GroupTitle, existingTitle, in.Details)

	if in.Details.Category() != CategoryTrip {
		return res, nil
	}

	var marked []int
	for i, it := range in.Items {
		if it.IsThumbnail {
			marked = append(marked, i)
		}
	}
	switch len(marked) {
	case 0:
		if in.Existing != nil {
			res.ThumbnailURL = in.Existing.ThumbnailURL
		}
	case 1:
		it := in.Items[marked[0]]
		url := strings.TrimSpace(it.ThumbnailURL)
		if url == "" {
			url = strings.TrimSpace(it.ImageURL)
		}
		res.ThumbnailURL = &url
		res.ThumbnailIndex = marked[0]
	default:
		return Resolution{}, apperr.Validation("only one item may be the thumbnail", "items.isThumbnail")
	}
	return res, nil
}

// ResolveGroupTitle applies explicit > existing > trip name > date > fallback.
// Renames pass a nil existing title.
func ResolveGroupTitle(explicit string, existing *string, d Details) string {
	if t := strings.TrimSpace(explicit); t != "" {
		return t
	}
	if existing != nil && strings.TrimSpace(*existing) != "" {
		return *existing
	}
	switch d := d.(type) {
	case TripDetails:
		if t := strings.TrimSpace(d.Name); t != "" {
			return t
		}
	case DailyDetails:
		if d.Date != nil {
			return d.Date.Format("2006-01-02")
		}
	}
	return FallbackGroupTitle
}

// GroupThumbnail is the representative image of a group. memos must be in
// creation order. Trip groups read the value shared by their posts.
func GroupThumbnail(memos []Memo, posts []Post) *string {
	if len(memos) == 0 {
		return nil
	}
	if memos[0].Category == CategoryTrip {
		for _, p := range posts {
			if t := p.ResolvedThumbnail(); t != nil {
				u := *t
				return &u
			}
		}
		return nil
	}
	u := memos[0].ImageURL
	return &u
}
