package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"photomemo/internal/apperr"
	"photomemo/internal/sequence"
)

type Service struct {
	Store Store
	Seq   sequence.Generator
	Users Directory
	Log   logrus.FieldLogger

	// PublicURL turns a bare storage key into a fetchable URL.
	PublicURL func(key string) string
	Now       func() time.Time
}

// BatchInput is one upload call: shared group/category fields plus items.
type BatchInput struct {
	Category      Category
	GroupID       string
	GroupTitle    string
	Date          *time.Time
	TripName      string
	TripStartDate *time.Time
	TripEndDate   *time.Time
	Day           string
	IsAnonymous   bool
	Items         []ItemInput
}

// Details returns the category payload, or nil for an unknown category.
func (in BatchInput) Details() Details {
	switch in.Category {
	case CategoryDaily:
		return DailyDetails{Date: in.Date}
	case CategoryTrip:
		return TripDetails{
			Name:      strings.TrimSpace(in.TripName),
			StartDate: in.TripStartDate,
			EndDate:   in.TripEndDate,
			Day:       strings.TrimSpace(in.Day),
		}
	}
	return nil
}

type Group struct {
	GroupID      string
	GroupTitle   string
	Category     Category
	ThumbnailURL *string
	Items        []Memo
}

// MemoEdit changes one memo. Nil fields are left alone.
type MemoEdit struct {
	Title       *string
	Content     *string
	ImageURL    *string
	IsAnonymous *bool
	Details     Details
}

// CreateBatch resolves the group for a batch and creates a memo/post pair
// per item. Items are independent: on failure the memos created so far are
// returned with the error.
func (s *Service) CreateBatch(ctx context.Context, ownerID uint64, in BatchInput) ([]Memo, error) {
	d := in.Details()

	var fields []string
	if d == nil {
		fields = append(fields, "category")
	}
	if len(in.Items) == 0 {
		fields = append(fields, "items")
	}
	for i, it := range in.Items {
		it.Title = strings.TrimSpace(it.Title)
		it.ImageURL = strings.TrimSpace(it.ImageURL)
		fe, err := fieldErrors(it, fmt.Sprintf("items[%d].", i))
		if err != nil {
			return nil, err
		}
		fields = append(fields, fe...)
	}
	if err := missing(fields); err != nil {
		return nil, err
	}

	var existing *GroupSnapshot
	var existingPosts []Post
	if gid := strings.TrimSpace(in.GroupID); gid != "" {
		var err error
		existing, existingPosts, err = s.groupSnapshot(ctx, ownerID, gid, in.Category)
		if err != nil {
			return nil, err
		}
	}

	res, err := ResolveGroup(GroupInput{
		GroupID:    in.GroupID,
		GroupTitle: in.GroupTitle,
		Details:    d,
		Items:      in.Items,
		Existing:   existing,
	})
	if err != nil {
		return nil, err
	}

	retitle := existing != nil && deref(existing.Title) != res.GroupTitle

	// Group-wide changes wait for the memo that justifies them, so a failed
	// first write leaves the stored group untouched.
	out := make([]Memo, 0, len(in.Items))
	for i, it := range in.Items {
		it.IsThumbnail = i == res.ThumbnailIndex
		it.IsAnonymous = it.IsAnonymous || in.IsAnonymous
		m, err := s.CreateItem(ctx, ownerID, res, d, it)
		if err != nil {
			return out, fmt.Errorf("create item %d: %w", i, err)
		}
		out = append(out, *m)

		if i == 0 && retitle {
			if err := s.retitleGroup(ctx, ownerID, res.GroupID, res.GroupTitle); err != nil {
				return out, fmt.Errorf("retitle group %s: %w", res.GroupID, err)
			}
		}
		if i == res.ThumbnailIndex && len(existingPosts) > 0 {
			if err := s.supersedeThumbnail(ctx, ownerID, res, m.ID); err != nil {
				return out, fmt.Errorf("supersede thumbnail of group %s: %w", res.GroupID, err)
			}
		}
	}
	return out, nil
}

// CreateItem writes one memo and its post. A failure after the memo is
// stored is logged as an inconsistency and the memo is still returned.
func (s *Service) CreateItem(ctx context.Context, ownerID uint64, res Resolution, d Details, item ItemInput) (*Memo, error) {
	var c Category
	if d != nil {
		c = d.Category()
	}
	fields, err := validateItem(c, item, "")
	if err != nil {
		return nil, err
	}
	if err := missing(fields); err != nil {
		return nil, err
	}

	now := s.now()
	groupTitle := res.GroupTitle
	m := &Memo{
		UserID:      ownerID,
		Title:       strings.TrimSpace(item.Title),
		Content:     item.Content,
		ImageURL:    strings.TrimSpace(item.ImageURL),
		GroupID:     res.GroupID,
		GroupTitle:  &groupTitle,
		IsAnonymous: item.IsAnonymous,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.SetDetails(d)
	if c == CategoryTrip && item.IsThumbnail && res.ThumbnailURL != nil {
		m.ThumbnailURL = clone(res.ThumbnailURL)
	}

	if err := s.Store.CreateMemo(ctx, m); err != nil {
		return nil, fmt.Errorf("create memo: %w", err)
	}

	if err := s.createPost(ctx, m, res); err != nil {
		s.log().WithError(err).WithFields(logrus.Fields{
			"inconsistency": "memo_without_post",
			"user_id":       ownerID,
			"memo_id":       m.ID,
			"group_id":      m.GroupID,
			"image_url":     m.ImageURL,
		}).Error("post not written for memo")
	}
	return m, nil
}

func (s *Service) createPost(ctx context.Context, m *Memo, res Resolution) error {
	number, err := s.Seq.NextValue(ctx, sequence.PostNumber)
	if err != nil {
		return fmt.Errorf("allocate post number: %w", err)
	}
	p := &Post{
		UserID:      m.UserID,
		Number:      number,
		Category:    m.Category,
		Title:       m.Title,
		Content:     m.Content,
		FileURL:     pq.StringArray{m.ImageURL},
		IsAnonymous: m.IsAnonymous,
		GroupID:     m.GroupID,
		GroupTitle:  clone(m.GroupTitle),
		Day:         clone(m.Day),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Category == CategoryTrip {
		p.ThumbnailURL = clone(res.ThumbnailURL)
	}
	if err := s.Store.CreatePost(ctx, p); err != nil {
		return fmt.Errorf("create post %d: %w", number, err)
	}
	return nil
}

// groupSnapshot checks an append target and returns its shared state. A
// groupID nobody uses yet yields a nil snapshot.
func (s *Service) groupSnapshot(ctx context.Context, ownerID uint64, groupID string, c Category) (*GroupSnapshot, []Post, error) {
	memos, err := s.loadGroup(ctx, ownerID, groupID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if memos[0].Category != c {
		return nil, nil, apperr.Validation("category does not match the group", "category")
	}
	posts, err := s.Store.GroupPosts(ctx, ownerID, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("load group posts: %w", err)
	}
	return &GroupSnapshot{
		Title:        memos[0].GroupTitle,
		ThumbnailURL: GroupThumbnail(memos, posts),
	}, posts, nil
}

// retitleGroup moves an appended-to group onto a new title. Only the
// group title changes; post titles stay those of their items.
func (s *Service) retitleGroup(ctx context.Context, ownerID uint64, groupID, title string) error {
	return s.Store.Transaction(ctx, func(tx Store) error {
		memos, err := tx.GroupMemos(ctx, ownerID, groupID)
		if err != nil {
			return err
		}
		for i := range memos {
			if deref(memos[i].GroupTitle) == title {
				continue
			}
			memos[i].GroupTitle = &title
			if err := tx.SaveMemo(ctx, &memos[i]); err != nil {
				return fmt.Errorf("retitle memo %d: %w", memos[i].ID, err)
			}
		}
		posts, err := tx.GroupPosts(ctx, ownerID, groupID)
		if err != nil {
			return err
		}
		for i := range posts {
			if deref(posts[i].GroupTitle) == title {
				continue
			}
			t := title
			posts[i].GroupTitle = &t
			if err := tx.SavePost(ctx, &posts[i]); err != nil {
				return fmt.Errorf("retitle post %d: %w", posts[i].ID, err)
			}
		}
		return nil
	})
}

// supersedeThumbnail moves an existing group onto the thumbnail chosen by
// a new batch. holder is the new memo carrying it.
func (s *Service) supersedeThumbnail(ctx context.Context, ownerID uint64, res Resolution, holder uint64) error {
	return s.Store.Transaction(ctx, func(tx Store) error {
		memos, err := tx.GroupMemos(ctx, ownerID, res.GroupID)
		if err != nil {
			return err
		}
		others := memos[:0]
		for _, m := range memos {
			if m.ID != holder {
				others = append(others, m)
			}
		}
		if err := clearMemoThumbnails(ctx, tx, others); err != nil {
			return err
		}
		posts, err := tx.GroupPosts(ctx, ownerID, res.GroupID)
		if err != nil {
			return err
		}
		return setPostThumbnails(ctx, tx, posts, res.ThumbnailURL)
	})
}

func (s *Service) ListMine(ctx context.Context, ownerID uint64) ([]Memo, error) {
	memos, err := s.Store.ListMemos(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list memos: %w", err)
	}
	return memos, nil
}

func (s *Service) GetGroup(ctx context.Context, ownerID uint64, groupID string) (*Group, error) {
	memos, err := s.loadGroup(ctx, ownerID, groupID)
	if err != nil {
		return nil, err
	}
	posts, err := s.Store.GroupPosts(ctx, ownerID, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group posts: %w", err)
	}
	return &Group{
		GroupID:      groupID,
		GroupTitle:   deref(memos[0].GroupTitle),
		Category:     memos[0].Category,
		ThumbnailURL: GroupThumbnail(memos, posts),
		Items:        memos,
	}, nil
}

// loadGroup returns the owner's memos of a group in creation order. A group
// held by someone else is an authorization error, not a missing one.
func (s *Service) loadGroup(ctx context.Context, ownerID uint64, groupID string) ([]Memo, error) {
	memos, err := s.Store.GroupMemos(ctx, ownerID, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	if len(memos) > 0 {
		return memos, nil
	}
	owners, err := s.Store.GroupOwners(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group owners: %w", err)
	}
	if len(owners) > 0 {
		return nil, apperr.Forbidden("group belongs to another user")
	}
	return nil, apperr.NotFound("group")
}

// DeleteMemo removes a memo and the post correlated by owner + image url.
func (s *Service) DeleteMemo(ctx context.Context, ownerID, memoID uint64) error {
	return s.Store.Transaction(ctx, func(tx Store) error {
		m, err := ownedMemo(ctx, tx, ownerID, memoID)
		if err != nil {
			return err
		}
		return deleteWithPost(ctx, tx, m)
	})
}

// DeleteGroup removes every memo and post of a group.
func (s *Service) DeleteGroup(ctx context.Context, ownerID uint64, groupID string) error {
	if _, err := s.loadGroup(ctx, ownerID, groupID); err != nil {
		return err
	}
	return s.Store.Transaction(ctx, func(tx Store) error {
		memos, err := tx.GroupMemos(ctx, ownerID, groupID)
		if err != nil {
			return err
		}
		for _, m := range memos {
			if err := tx.DeleteMemo(ctx, m.ID); err != nil {
				return fmt.Errorf("delete memo %d: %w", m.ID, err)
			}
		}
		posts, err := tx.GroupPosts(ctx, ownerID, groupID)
		if err != nil {
			return err
		}
		for _, p := range posts {
			if err := tx.DeletePost(ctx, p.ID); err != nil {
				return fmt.Errorf("delete post %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

// UpdateMemo edits one memo and its correlated post together.
func (s *Service) UpdateMemo(ctx context.Context, ownerID, memoID uint64, in MemoEdit) (*Memo, error) {
	var fields []string
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		fields = append(fields, "title")
	}
	if in.ImageURL != nil && strings.TrimSpace(*in.ImageURL) == "" {
		fields = append(fields, "imageUrl")
	}
	if err := missing(fields); err != nil {
		return nil, err
	}

	var out *Memo
	err := s.Store.Transaction(ctx, func(tx Store) error {
		m, err := ownedMemo(ctx, tx, ownerID, memoID)
		if err != nil {
			return err
		}
		if in.Details != nil && in.Details.Category() != m.Category {
			return apperr.Validation("category cannot change", "category")
		}
		post, err := correlatedPost(ctx, tx, m)
		if err != nil {
			return err
		}

		if in.Details != nil {
			thumb := m.ThumbnailURL
			m.SetDetails(in.Details)
			m.ThumbnailURL = thumb
			if post != nil {
				post.Day = clone(m.Day)
			}
		}
		if err := applyItemEdit(ctx, tx, m, post, in.Title, in.Content, in.ImageURL, in.IsAnonymous, s.now()); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ownedMemo(ctx context.Context, tx Store, ownerID, memoID uint64) (*Memo, error) {
	m, err := tx.GetMemo(ctx, memoID)
	if err != nil {
		return nil, err
	}
	if m.UserID != ownerID {
		return nil, apperr.Forbidden("memo belongs to another user")
	}
	return m, nil
}

// correlatedPost finds the memo's post, or nil when it was never written.
func correlatedPost(ctx context.Context, tx Store, m *Memo) (*Post, error) {
	p, err := tx.PostByImage(ctx, m.UserID, m.ImageURL)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load post for memo %d: %w", m.ID, err)
	}
	return p, nil
}

func deleteWithPost(ctx context.Context, tx Store, m *Memo) error {
	post, err := correlatedPost(ctx, tx, m)
	if err != nil {
		return err
	}
	if err := tx.DeleteMemo(ctx, m.ID); err != nil {
		return fmt.Errorf("delete memo %d: %w", m.ID, err)
	}
	if post != nil {
		if err := tx.DeletePost(ctx, post.ID); err != nil {
			return fmt.Errorf("delete post %d: %w", post.ID, err)
		}
	}
	return nil
}

// applyItemEdit writes field changes to a memo and, when present, its post.
func applyItemEdit(ctx context.Context, tx Store, m *Memo, p *Post, title, content, image *string, anon *bool, now time.Time) error {
	oldImage := m.ImageURL
	if title != nil {
		m.Title = strings.TrimSpace(*title)
	}
	if content != nil {
		m.Content = *content
	}
	if image != nil {
		m.ImageURL = strings.TrimSpace(*image)
	}
	if anon != nil {
		m.IsAnonymous = *anon
	}
	m.UpdatedAt = now
	if err := tx.SaveMemo(ctx, m); err != nil {
		return fmt.Errorf("save memo %d: %w", m.ID, err)
	}
	if p == nil {
		return nil
	}

	if title != nil {
		p.Title = m.Title
	}
	if content != nil {
		p.Content = m.Content
	}
	if image != nil {
		files := make(pq.StringArray, len(p.FileURL))
		for i, f := range p.FileURL {
			if f == oldImage {
				f = m.ImageURL
			}
			files[i] = f
		}
		p.FileURL = files
	}
	if anon != nil {
		p.IsAnonymous = m.IsAnonymous
	}
	p.UpdatedAt = now
	if err := tx.SavePost(ctx, p); err != nil {
		return fmt.Errorf("save post %d: %w", p.ID, err)
	}
	return nil
}

func clearMemoThumbnails(ctx context.Context, tx Store, memos []Memo) error {
	for i := range memos {
		if memos[i].ThumbnailURL == nil {
			continue
		}
		memos[i].ThumbnailURL = nil
		if err := tx.SaveMemo(ctx, &memos[i]); err != nil {
			return fmt.Errorf("clear thumbnail of memo %d: %w", memos[i].ID, err)
		}
	}
	return nil
}

func setPostThumbnails(ctx context.Context, tx Store, posts []Post, url *string) error {
	for i := range posts {
		posts[i].ThumbnailURL = clone(url)
		if err := tx.SavePost(ctx, &posts[i]); err != nil {
			return fmt.Errorf("set thumbnail of post %d: %w", posts[i].ID, err)
		}
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

func clone(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
