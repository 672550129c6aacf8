//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"photomemo/internal/apperr"
	"photomemo/internal/auth"
	"photomemo/internal/db"
	"photomemo/internal/journal"
	"photomemo/internal/logging"
	"photomemo/internal/sequence"
	"photomemo/internal/store"
)

// setupPostgres starts a Postgres container and returns a migrated handle.
func setupPostgres(t *testing.T) *gorm.DB {
	ctx := context.Background()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "photomemo",
				"POSTGRES_PASSWORD": "photomemo",
				"POSTGRES_DB":       "photomemo",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Postgres container: %v", err)
		}
	})

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://photomemo:photomemo@%s:%s/photomemo?sslmode=disable", host, port.Port())
	gdb, err := db.Connect(dsn, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrateAndIndexes(gdb))
	return gdb
}

func TestPostgres(t *testing.T) {
	gdb := setupPostgres(t)
	ctx := context.Background()
	users := &store.Users{DB: gdb}
	js := &store.Journal{DB: gdb}

	t.Run("sequence is unique under concurrency", func(t *testing.T) {
		seq := &sequence.Postgres{DB: gdb}
		const n = 50
		var (
			mu   sync.Mutex
			seen = map[int64]bool{}
			wg   sync.WaitGroup
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := seq.NextValue(ctx, "integration")
				assert.NoError(t, err)
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Len(t, seen, n)
		assert.True(t, seen[1] && seen[n])
	})

	t.Run("users", func(t *testing.T) {
		u := &auth.User{Email: "mina@example.com", PasswordHash: "x", DisplayName: "Mina", Role: auth.RoleUser, IsActive: true}
		require.NoError(t, users.Create(ctx, u))

		err := users.Create(ctx, &auth.User{Email: "mina@example.com", PasswordHash: "x", DisplayName: "Again", Role: auth.RoleUser})
		assert.True(t, errors.Is(err, apperr.ErrConflict))

		got, err := users.ByEmail(ctx, "mina@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		_, err = users.ByID(ctx, 424242)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))

		names, err := users.DisplayNames(ctx, []uint64{u.ID, 424242})
		require.NoError(t, err)
		assert.Equal(t, map[uint64]string{u.ID: "Mina"}, names)
	})

	t.Run("journal", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		m := &journal.Memo{UserID: 1, Title: "a", ImageURL: "a.png", GroupID: "g1", CreatedAt: now, UpdatedAt: now}
		m.SetDetails(journal.TripDetails{Name: "Jeju", Day: "day1"})
		require.NoError(t, js.CreateMemo(ctx, m))

		p := &journal.Post{
			UserID: 1, Number: 1000, Category: journal.CategoryTrip, Title: "a",
			FileURL: pq.StringArray{"a.png", "b.png"}, GroupID: "g1", CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, js.CreatePost(ctx, p))

		err := js.CreatePost(ctx, &journal.Post{UserID: 1, Number: 1000, Category: journal.CategoryTrip, GroupID: "g1", CreatedAt: now, UpdatedAt: now})
		assert.True(t, errors.Is(err, apperr.ErrConflict))

		found, err := js.PostByImage(ctx, 1, "b.png")
		require.NoError(t, err)
		assert.Equal(t, p.ID, found.ID)
		_, err = js.PostByImage(ctx, 2, "b.png")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))

		require.NoError(t, js.AddView(ctx, &journal.ViewLog{PostID: p.ID, IP: "1.2.3.4", CreatedAt: now}))
		withViews, err := js.GetPost(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, withViews.ViewLogs, 1)

		owners, err := js.GroupOwners(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, []uint64{1}, owners)

		boom := errors.New("boom")
		err = js.Transaction(ctx, func(tx journal.Store) error {
			m.Title = "changed"
			if err := tx.SaveMemo(ctx, m); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		stored, err := js.GetMemo(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "a", stored.Title)

		require.NoError(t, js.DeletePost(ctx, p.ID))
		_, err = js.GetPost(ctx, p.ID)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))

		// saves of deleted rows do not insert them again
		require.NoError(t, js.DeleteMemo(ctx, m.ID))
		assert.True(t, errors.Is(js.SaveMemo(ctx, m), apperr.ErrNotFound))
		_, err = js.GetMemo(ctx, m.ID)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		assert.True(t, errors.Is(js.SavePost(ctx, p), apperr.ErrNotFound))
		_, err = js.GetPost(ctx, p.ID)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))

		var views int64
		require.NoError(t, gdb.Table("post_views").Where("post_id = ?", p.ID).Count(&views).Error)
		assert.Zero(t, views)
	})
}
