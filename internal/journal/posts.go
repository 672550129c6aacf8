package journal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"photomemo/internal/apperr"
)

const (
	AnonymousAuthor = "anonymous"
	DeletedAuthor   = "deleted user"
)

// PublicPost is a post as the feed shows it. File and thumbnail URLs are
// already normalised to public URLs.
type PublicPost struct {
	Post
	Author            string
	ResolvedThumbnail *string
	GroupThumbnail    *string
	ViewCount         int
}

// PostEdit changes a post and its correlated memo. Nil fields are kept.
type PostEdit struct {
	Title       *string
	Content     *string
	IsAnonymous *bool
}

func (s *Service) ListPosts(ctx context.Context, f PostFilter) ([]PublicPost, error) {
	posts, err := s.Store.ListPosts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	authors, err := s.authors(ctx, posts)
	if err != nil {
		return nil, err
	}

	// earliest post per group, for daily representatives
	first := map[string]*Post{}
	for i := range posts {
		p := &posts[i]
		if cur, ok := first[p.GroupID]; !ok || before(p, cur) {
			first[p.GroupID] = p
		}
	}

	out := make([]PublicPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, s.publicPost(p, authors, first[p.GroupID]))
	}
	return out, nil
}

// GetPost records a view and returns the post.
func (s *Service) GetPost(ctx context.Context, id uint64, view ViewLog) (*PublicPost, error) {
	view.PostID = id
	if view.CreatedAt.IsZero() {
		view.CreatedAt = s.now()
	}
	if _, err := s.Store.GetPost(ctx, id); err != nil {
		return nil, err
	}
	if err := s.Store.AddView(ctx, &view); err != nil {
		s.log().WithError(err).WithField("post_id", id).Warn("view not recorded")
	}

	p, err := s.Store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	group, err := s.Store.GroupPosts(ctx, p.UserID, p.GroupID)
	if err != nil {
		return nil, fmt.Errorf("load group posts: %w", err)
	}
	var earliest *Post
	for i := range group {
		if earliest == nil || before(&group[i], earliest) {
			earliest = &group[i]
		}
	}
	authors, err := s.authors(ctx, []Post{*p})
	if err != nil {
		return nil, err
	}
	pp := s.publicPost(*p, authors, earliest)
	return &pp, nil
}

// UpdatePost edits the owner's post and the memos behind its images.
func (s *Service) UpdatePost(ctx context.Context, ownerID, postID uint64, in PostEdit) (*Post, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, apperr.Validation("missing or invalid fields", "title")
	}
	var out *Post
	err := s.Store.Transaction(ctx, func(tx Store) error {
		p, err := ownedPost(ctx, tx, ownerID, postID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, img := range p.FileURL {
			m, err := tx.MemoByImage(ctx, ownerID, img)
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("load memo for post %d: %w", p.ID, err)
			}
			if err := applyItemEdit(ctx, tx, m, nil, in.Title, in.Content, nil, in.IsAnonymous, now); err != nil {
				return err
			}
		}
		if in.Title != nil {
			p.Title = strings.TrimSpace(*in.Title)
		}
		if in.Content != nil {
			p.Content = *in.Content
		}
		if in.IsAnonymous != nil {
			p.IsAnonymous = *in.IsAnonymous
		}
		p.UpdatedAt = now
		if err := tx.SavePost(ctx, p); err != nil {
			return fmt.Errorf("save post %d: %w", p.ID, err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeletePost removes the owner's post and the memos behind its images.
func (s *Service) DeletePost(ctx context.Context, ownerID, postID uint64) error {
	return s.Store.Transaction(ctx, func(tx Store) error {
		p, err := ownedPost(ctx, tx, ownerID, postID)
		if err != nil {
			return err
		}
		for _, img := range p.FileURL {
			m, err := tx.MemoByImage(ctx, ownerID, img)
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("load memo for post %d: %w", p.ID, err)
			}
			if err := tx.DeleteMemo(ctx, m.ID); err != nil {
				return fmt.Errorf("delete memo %d: %w", m.ID, err)
			}
		}
		return tx.DeletePost(ctx, p.ID)
	})
}

func ownedPost(ctx context.Context, tx Store, ownerID, postID uint64) (*Post, error) {
	p, err := tx.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.UserID != ownerID {
		return nil, apperr.Forbidden("post belongs to another user")
	}
	return p, nil
}

func (s *Service) authors(ctx context.Context, posts []Post) (map[uint64]string, error) {
	if s.Users == nil {
		return map[uint64]string{}, nil
	}
	seen := map[uint64]bool{}
	ids := make([]uint64, 0, len(posts))
	for _, p := range posts {
		if !p.IsAnonymous && !seen[p.UserID] {
			seen[p.UserID] = true
			ids = append(ids, p.UserID)
		}
	}
	if len(ids) == 0 {
		return map[uint64]string{}, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	names, err := s.Users.DisplayNames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}
	return names, nil
}

func (s *Service) publicPost(p Post, authors map[uint64]string, earliest *Post) PublicPost {
	files := make([]string, len(p.FileURL))
	for i, f := range p.FileURL {
		files[i] = s.publicURL(f)
	}
	p.FileURL = files
	if p.ThumbnailURL != nil {
		u := s.publicURL(*p.ThumbnailURL)
		p.ThumbnailURL = &u
	}

	author := AnonymousAuthor
	if !p.IsAnonymous {
		author = DeletedAuthor
		if name, ok := authors[p.UserID]; ok {
			author = name
		}
	}

	pp := PublicPost{
		Post:              p,
		Author:            author,
		ResolvedThumbnail: p.ResolvedThumbnail(),
		ViewCount:         len(p.ViewLogs),
	}
	if p.Category == CategoryTrip || earliest == nil {
		pp.GroupThumbnail = pp.ResolvedThumbnail
	} else {
		pp.GroupThumbnail = ResolveThumbnail(CategoryDaily, nil, earliest.FileURL)
		if pp.GroupThumbnail != nil {
			u := s.publicURL(*pp.GroupThumbnail)
			pp.GroupThumbnail = &u
		}
	}
	return pp
}

func (s *Service) publicURL(v string) string {
	if s.PublicURL == nil || v == "" || strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return v
	}
	return s.PublicURL(v)
}

func before(a, b *Post) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
