package journal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"photomemo/internal/journal"
	"photomemo/internal/journal/memstore"
	"photomemo/internal/logging"
	"photomemo/internal/sequence"
)

const (
	alice uint64 = 1
	bob   uint64 = 2
)

// clock ticks one minute per reading so creation order is observable.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type directory map[uint64]string

func (d directory) DisplayNames(_ context.Context, ids []uint64) (map[uint64]string, error) {
	out := map[uint64]string{}
	for _, id := range ids {
		if n, ok := d[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

type fixture struct {
	svc   *journal.Service
	store *memstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	return &fixture{
		store: st,
		svc: &journal.Service{
			Store: st,
			Seq:   sequence.NewMemory(),
			Users: directory{alice: "Alice", bob: "Bob"},
			Log:   logging.Discard(),
			Now:   (&clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}).Now,
		},
	}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func item(title, image string) journal.ItemInput {
	return journal.ItemInput{Title: title, Content: title + " note", ImageURL: image}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) daily(t *testing.T, owner uint64, items ...journal.ItemInput) []journal.Memo {
	t.Helper()
	memos, err := f.svc.CreateBatch(context.Background(), owner, journal.BatchInput{
		Category: journal.CategoryDaily,
		Date:     date(2026, 3, 1),
		Items:    items,
	})
	require.NoError(t, err)
	return memos
}

func (f *fixture) trip(t *testing.T, owner uint64, items ...journal.ItemInput) []journal.Memo {
	t.Helper()
	memos, err := f.svc.CreateBatch(context.Background(), owner, journal.BatchInput{
		Category:      journal.CategoryTrip,
		TripName:      "Jeju",
		TripStartDate: date(2026, 4, 1),
		TripEndDate:   date(2026, 4, 3),
		Day:           "day1",
		Items:         items,
	})
	require.NoError(t, err)
	return memos
}

func (f *fixture) posts(t *testing.T, owner uint64, groupID string) []journal.Post {
	t.Helper()
	posts, err := f.store.GroupPosts(context.Background(), owner, groupID)
	require.NoError(t, err)
	return posts
}

func (f *fixture) memos(t *testing.T, owner uint64, groupID string) []journal.Memo {
	t.Helper()
	memos, err := f.store.GroupMemos(context.Background(), owner, groupID)
	require.NoError(t, err)
	return memos
}

var errInjected = errors.New("injected failure")

// faultyStore fails the chosen writes, inside transactions too.
type faultyStore struct {
	journal.Store
	failSavePost   bool
	failCreateMemo bool
}

func (s *faultyStore) SavePost(ctx context.Context, p *journal.Post) error {
	if s.failSavePost {
		return errInjected
	}
	return s.Store.SavePost(ctx, p)
}

func (s *faultyStore) CreateMemo(ctx context.Context, m *journal.Memo) error {
	if s.failCreateMemo {
		return errInjected
	}
	return s.Store.CreateMemo(ctx, m)
}

func (s *faultyStore) Transaction(ctx context.Context, fn func(tx journal.Store) error) error {
	return s.Store.Transaction(ctx, func(tx journal.Store) error {
		cp := *s
		cp.Store = tx
		return fn(&cp)
	})
}

// racingStore runs interleave once, just before the first transaction
// starts, standing in for a concurrent request.
type racingStore struct {
	journal.Store
	interleave func()
}

func (s *racingStore) Transaction(ctx context.Context, fn func(tx journal.Store) error) error {
	if s.interleave != nil {
		s.interleave()
		s.interleave = nil
	}
	return s.Store.Transaction(ctx, fn)
}

// failingSeq never hands out a number.
type failingSeq struct{}

func (failingSeq) NextValue(context.Context, string) (int64, error) {
	return 0, errInjected
}
