// Package memstore is an in-memory journal.Store. Transactions run against
// a private copy of the data that replaces the shared copy on success.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/lib/pq"

	"photomemo/internal/apperr"
	"photomemo/internal/journal"
)

type Store struct {
	mu   *sync.Mutex
	data *data
	// inTx is set on the store handed to a transaction callback; it already
	// holds mu.
	inTx bool
}

type data struct {
	memos    map[uint64]journal.Memo
	posts    map[uint64]journal.Post
	views    []journal.ViewLog
	nextMemo uint64
	nextPost uint64
	nextView uint64
}

func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		data: &data{
			memos: map[uint64]journal.Memo{},
			posts: map[uint64]journal.Post{},
		},
	}
}

func (d *data) clone() *data {
	c := &data{
		memos:    make(map[uint64]journal.Memo, len(d.memos)),
		posts:    make(map[uint64]journal.Post, len(d.posts)),
		views:    append([]journal.ViewLog(nil), d.views...),
		nextMemo: d.nextMemo,
		nextPost: d.nextPost,
		nextView: d.nextView,
	}
	for k, v := range d.memos {
		c.memos[k] = v
	}
	for k, v := range d.posts {
		c.posts[k] = copyPost(v)
	}
	return c
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Transaction(ctx context.Context, fn func(tx journal.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, data: s.data.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *Store) CreateMemo(ctx context.Context, m *journal.Memo) error {
	defer s.lock()()
	s.data.nextMemo++
	m.ID = s.data.nextMemo
	s.data.memos[m.ID] = *m
	return nil
}

func (s *Store) SaveMemo(ctx context.Context, m *journal.Memo) error {
	defer s.lock()()
	if _, ok := s.data.memos[m.ID]; !ok {
		return apperr.NotFound("memo")
	}
	s.data.memos[m.ID] = *m
	return nil
}

func (s *Store) DeleteMemo(ctx context.Context, id uint64) error {
	defer s.lock()()
	delete(s.data.memos, id)
	return nil
}

func (s *Store) GetMemo(ctx context.Context, id uint64) (*journal.Memo, error) {
	defer s.lock()()
	m, ok := s.data.memos[id]
	if !ok {
		return nil, apperr.NotFound("memo")
	}
	return &m, nil
}

func (s *Store) MemoByImage(ctx context.Context, userID uint64, imageURL string) (*journal.Memo, error) {
	defer s.lock()()
	memos := s.filterMemos(func(m journal.Memo) bool {
		return m.UserID == userID && m.ImageURL == imageURL
	}, true)
	if len(memos) == 0 {
		return nil, apperr.NotFound("memo")
	}
	return &memos[0], nil
}

func (s *Store) ListMemos(ctx context.Context, userID uint64) ([]journal.Memo, error) {
	defer s.lock()()
	return s.filterMemos(func(m journal.Memo) bool { return m.UserID == userID }, false), nil
}

func (s *Store) GroupMemos(ctx context.Context, userID uint64, groupID string) ([]journal.Memo, error) {
	defer s.lock()()
	return s.filterMemos(func(m journal.Memo) bool {
		return m.UserID == userID && m.GroupID == groupID
	}, true), nil
}

func (s *Store) GroupOwners(ctx context.Context, groupID string) ([]uint64, error) {
	defer s.lock()()
	seen := map[uint64]bool{}
	var out []uint64
	for _, m := range s.data.memos {
		if m.GroupID == groupID && !seen[m.UserID] {
			seen[m.UserID] = true
			out = append(out, m.UserID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) CreatePost(ctx context.Context, p *journal.Post) error {
	defer s.lock()()
	for _, existing := range s.data.posts {
		if existing.Number == p.Number {
			return apperr.Conflict("duplicate post number", nil)
		}
	}
	s.data.nextPost++
	p.ID = s.data.nextPost
	s.data.posts[p.ID] = copyPost(*p)
	return nil
}

func (s *Store) SavePost(ctx context.Context, p *journal.Post) error {
	defer s.lock()()
	if _, ok := s.data.posts[p.ID]; !ok {
		return apperr.NotFound("post")
	}
	cp := copyPost(*p)
	cp.ViewLogs = nil
	s.data.posts[p.ID] = cp
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id uint64) error {
	defer s.lock()()
	delete(s.data.posts, id)
	views := s.data.views[:0:0]
	for _, v := range s.data.views {
		if v.PostID != id {
			views = append(views, v)
		}
	}
	s.data.views = views
	return nil
}

func (s *Store) GetPost(ctx context.Context, id uint64) (*journal.Post, error) {
	defer s.lock()()
	p, ok := s.data.posts[id]
	if !ok {
		return nil, apperr.NotFound("post")
	}
	p = copyPost(p)
	for _, v := range s.data.views {
		if v.PostID == id {
			p.ViewLogs = append(p.ViewLogs, v)
		}
	}
	return &p, nil
}

func (s *Store) PostByImage(ctx context.Context, userID uint64, imageURL string) (*journal.Post, error) {
	defer s.lock()()
	var found *journal.Post
	for _, p := range s.data.posts {
		if p.UserID != userID || !contains(p.FileURL, imageURL) {
			continue
		}
		if found == nil || p.ID < found.ID {
			cp := copyPost(p)
			found = &cp
		}
	}
	if found == nil {
		return nil, apperr.NotFound("post")
	}
	return found, nil
}

func (s *Store) GroupPosts(ctx context.Context, userID uint64, groupID string) ([]journal.Post, error) {
	defer s.lock()()
	posts := s.filterPosts(func(p journal.Post) bool {
		return p.UserID == userID && p.GroupID == groupID
	})
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts, nil
}

func (s *Store) ListPosts(ctx context.Context, f journal.PostFilter) ([]journal.Post, error) {
	defer s.lock()()
	posts := s.filterPosts(func(p journal.Post) bool {
		if f.UserID != 0 && p.UserID != f.UserID {
			return false
		}
		return f.GroupID == "" || p.GroupID == f.GroupID
	})
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

func (s *Store) AddView(ctx context.Context, v *journal.ViewLog) error {
	defer s.lock()()
	if _, ok := s.data.posts[v.PostID]; !ok {
		return apperr.NotFound("post")
	}
	s.data.nextView++
	v.ID = s.data.nextView
	s.data.views = append(s.data.views, *v)
	return nil
}

// filterMemos returns matching memos oldest first, or newest first when asc
// is false.
func (s *Store) filterMemos(keep func(journal.Memo) bool, asc bool) []journal.Memo {
	out := []journal.Memo{}
	for _, m := range s.data.memos {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt) == asc
		}
		return (a.ID < b.ID) == asc
	})
	return out
}

func (s *Store) filterPosts(keep func(journal.Post) bool) []journal.Post {
	out := []journal.Post{}
	for _, p := range s.data.posts {
		if keep(p) {
			out = append(out, copyPost(p))
		}
	}
	return out
}

func copyPost(p journal.Post) journal.Post {
	p.FileURL = append(pq.StringArray(nil), p.FileURL...)
	p.ViewLogs = nil
	return p
}

func contains(files []string, v string) bool {
	for _, f := range files {
		if f == v {
			return true
		}
	}
	return false
}
