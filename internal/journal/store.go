package journal

import "context"

// Store is the persistence boundary for memos and posts. Lookups of a
// missing row return an apperr NotFound error.
type Store interface {
	CreateMemo(ctx context.Context, m *Memo) error
	SaveMemo(ctx context.Context, m *Memo) error
	DeleteMemo(ctx context.Context, id uint64) error
	GetMemo(ctx context.Context, id uint64) (*Memo, error)
	MemoByImage(ctx context.Context, userID uint64, imageURL string) (*Memo, error)
	// ListMemos returns the user's memos newest first.
	ListMemos(ctx context.Context, userID uint64) ([]Memo, error)
	// GroupMemos returns the group's memos in creation order.
	GroupMemos(ctx context.Context, userID uint64, groupID string) ([]Memo, error)
	// GroupOwners returns the distinct owners of memos carrying groupID.
	GroupOwners(ctx context.Context, groupID string) ([]uint64, error)

	CreatePost(ctx context.Context, p *Post) error
	SavePost(ctx context.Context, p *Post) error
	DeletePost(ctx context.Context, id uint64) error
	// GetPost loads the post with its view log.
	GetPost(ctx context.Context, id uint64) (*Post, error)
	// PostByImage returns the user's oldest post whose file list holds imageURL.
	PostByImage(ctx context.Context, userID uint64, imageURL string) (*Post, error)
	GroupPosts(ctx context.Context, userID uint64, groupID string) ([]Post, error)
	// ListPosts returns posts newest first.
	ListPosts(ctx context.Context, f PostFilter) ([]Post, error)
	AddView(ctx context.Context, v *ViewLog) error

	// Transaction runs fn against a store whose writes commit together or
	// not at all.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type PostFilter struct {
	UserID  uint64
	GroupID string
}

// Directory resolves user display names for post authors.
type Directory interface {
	DisplayNames(ctx context.Context, userIDs []uint64) (map[uint64]string, error)
}
