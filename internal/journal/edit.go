package journal

import (
	"context"
	"fmt"
	"strings"

	"photomemo/internal/apperr"
)

type ThumbnailDirective string

const (
	ThumbnailKeep   ThumbnailDirective = ""
	ThumbnailSet    ThumbnailDirective = "set"
	ThumbnailRemove ThumbnailDirective = "remove"
)

// ItemEdit addresses one memo of the group by id. Nil fields are kept.
type ItemEdit struct {
	ID          uint64
	Title       *string
	Content     *string
	ImageURL    *string
	IsAnonymous *bool
	Delete      bool
	Thumbnail   ThumbnailDirective
	// ThumbnailURL is a newly uploaded thumbnail for ThumbnailSet. Empty
	// re-selects the memo's own image.
	ThumbnailURL string
}

type GroupEdit struct {
	GroupTitle *string
	Items      []ItemEdit
}

// EditGroup renames a group, edits or deletes its items and reassigns its
// thumbnail in one transaction, then returns the group in creation order.
func (s *Service) EditGroup(ctx context.Context, ownerID uint64, groupID string, in GroupEdit) ([]Memo, error) {
	memos, err := s.loadGroup(ctx, ownerID, groupID)
	if err != nil {
		return nil, err
	}
	category := memos[0].Category

	known := make(map[uint64]bool, len(memos))
	for _, m := range memos {
		known[m.ID] = true
	}

	var fields []string
	var thumb *ItemEdit
	seen := make(map[uint64]bool, len(in.Items))
	for i := range in.Items {
		e := &in.Items[i]
		prefix := fmt.Sprintf("items[%d].", i)
		if !known[e.ID] {
			return nil, apperr.NotFound(fmt.Sprintf("memo %d in group", e.ID))
		}
		if seen[e.ID] {
			fields = append(fields, prefix+"id")
			continue
		}
		seen[e.ID] = true
		if e.Title != nil && strings.TrimSpace(*e.Title) == "" {
			fields = append(fields, prefix+"title")
		}
		if e.ImageURL != nil && strings.TrimSpace(*e.ImageURL) == "" {
			fields = append(fields, prefix+"imageUrl")
		}
		switch e.Thumbnail {
		case ThumbnailKeep:
			continue
		case ThumbnailSet, ThumbnailRemove:
		default:
			fields = append(fields, prefix+"thumbnail")
			continue
		}
		if category != CategoryTrip {
			fields = append(fields, prefix+"thumbnail")
			continue
		}
		if e.Thumbnail == ThumbnailSet && e.Delete {
			fields = append(fields, prefix+"thumbnail")
			continue
		}
		thumb = e
	}
	if err := missing(fields); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.Store.Transaction(ctx, func(tx Store) error {
		memos, err := tx.GroupMemos(ctx, ownerID, groupID)
		if err != nil {
			return err
		}
		if len(memos) == 0 {
			return apperr.NotFound("group")
		}
		byID := make(map[uint64]*Memo, len(memos))
		for i := range memos {
			byID[memos[i].ID] = &memos[i]
		}
		// the group may have changed since it was validated
		for _, e := range in.Items {
			if byID[e.ID] == nil {
				return apperr.NotFound(fmt.Sprintf("memo %d in group", e.ID))
			}
		}

		if in.GroupTitle != nil {
			title := ResolveGroupTitle(*in.GroupTitle, nil, memos[0].Details())
			if err := renameGroup(ctx, tx, ownerID, groupID, memos, title); err != nil {
				return err
			}
		}

		if thumb != nil {
			if err := clearMemoThumbnails(ctx, tx, memos); err != nil {
				return err
			}
			var url *string
			if thumb.Thumbnail == ThumbnailSet {
				m := byID[thumb.ID]
				u := strings.TrimSpace(thumb.ThumbnailURL)
				if u == "" && thumb.ImageURL != nil {
					u = strings.TrimSpace(*thumb.ImageURL)
				}
				if u == "" {
					u = m.ImageURL
				}
				url = &u
				m.ThumbnailURL = clone(url)
				if err := tx.SaveMemo(ctx, m); err != nil {
					return fmt.Errorf("set thumbnail of memo %d: %w", m.ID, err)
				}
			}
			posts, err := tx.GroupPosts(ctx, ownerID, groupID)
			if err != nil {
				return err
			}
			if err := setPostThumbnails(ctx, tx, posts, url); err != nil {
				return err
			}
		}

		for _, e := range in.Items {
			m := byID[e.ID]
			if e.Delete {
				if err := deleteWithPost(ctx, tx, m); err != nil {
					return err
				}
				continue
			}
			if e.Title == nil && e.Content == nil && e.ImageURL == nil && e.IsAnonymous == nil {
				continue
			}
			post, err := correlatedPost(ctx, tx, m)
			if err != nil {
				return err
			}
			if err := applyItemEdit(ctx, tx, m, post, e.Title, e.Content, e.ImageURL, e.IsAnonymous, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("edit group %s: %w", groupID, err)
	}

	out, err := s.Store.GroupMemos(ctx, ownerID, groupID)
	if err != nil {
		return nil, fmt.Errorf("reload group: %w", err)
	}
	return out, nil
}

// renameGroup sets the title on every memo and post of the group. Post
// titles follow the group title.
func renameGroup(ctx context.Context, tx Store, ownerID uint64, groupID string, memos []Memo, title string) error {
	for i := range memos {
		memos[i].GroupTitle = &title
		if err := tx.SaveMemo(ctx, &memos[i]); err != nil {
			return fmt.Errorf("rename memo %d: %w", memos[i].ID, err)
		}
	}
	posts, err := tx.GroupPosts(ctx, ownerID, groupID)
	if err != nil {
		return err
	}
	for i := range posts {
		t := title
		posts[i].GroupTitle = &t
		posts[i].Title = title
		if err := tx.SavePost(ctx, &posts[i]); err != nil {
			return fmt.Errorf("rename post %d: %w", posts[i].ID, err)
		}
	}
	return nil
}
