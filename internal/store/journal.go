package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"photomemo/internal/apperr"
	"photomemo/internal/journal"
)

// Journal implements journal.Store on Postgres.
type Journal struct {
	DB *gorm.DB
}

func (s *Journal) db(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx)
}

func (s *Journal) Transaction(ctx context.Context, fn func(tx journal.Store) error) error {
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Journal{DB: tx})
	})
	if concurrent(err) {
		return apperr.Conflict("concurrent update, retry", err)
	}
	return err
}

func (s *Journal) CreateMemo(ctx context.Context, m *journal.Memo) error {
	return translate(s.db(ctx).Create(m).Error, "memo")
}

// SaveMemo writes every column of an existing memo. It never inserts, so a
// memo deleted earlier in the transaction stays deleted.
func (s *Journal) SaveMemo(ctx context.Context, m *journal.Memo) error {
	return updated(s.db(ctx).Model(m).Select("*").Updates(m), "memo")
}

func (s *Journal) DeleteMemo(ctx context.Context, id uint64) error {
	return translate(s.db(ctx).Delete(&journal.Memo{}, id).Error, "memo")
}

func (s *Journal) GetMemo(ctx context.Context, id uint64) (*journal.Memo, error) {
	var m journal.Memo
	if err := s.db(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err, "memo")
	}
	return &m, nil
}

func (s *Journal) MemoByImage(ctx context.Context, userID uint64, imageURL string) (*journal.Memo, error) {
	var m journal.Memo
	err := s.db(ctx).
		Where("user_id = ? AND image_url = ?", userID, imageURL).
		Order("created_at asc, id asc").
		First(&m).Error
	if err != nil {
		return nil, translate(err, "memo")
	}
	return &m, nil
}

func (s *Journal) ListMemos(ctx context.Context, userID uint64) ([]journal.Memo, error) {
	var out []journal.Memo
	err := s.db(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&out).Error
	return out, translate(err, "memo")
}

func (s *Journal) GroupMemos(ctx context.Context, userID uint64, groupID string) ([]journal.Memo, error) {
	var out []journal.Memo
	err := s.db(ctx).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, translate(err, "memo")
}

func (s *Journal) GroupOwners(ctx context.Context, groupID string) ([]uint64, error) {
	var out []uint64
	err := s.db(ctx).Model(&journal.Memo{}).
		Where("group_id = ?", groupID).
		Distinct().
		Order("user_id").
		Pluck("user_id", &out).Error
	return out, translate(err, "memo")
}

func (s *Journal) CreatePost(ctx context.Context, p *journal.Post) error {
	return translate(s.db(ctx).Omit(clause.Associations).Create(p).Error, "post")
}

func (s *Journal) SavePost(ctx context.Context, p *journal.Post) error {
	return updated(s.db(ctx).Model(p).Select("*").Omit(clause.Associations).Updates(p), "post")
}

func (s *Journal) DeletePost(ctx context.Context, id uint64) error {
	return s.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&journal.ViewLog{}).Error; err != nil {
			return translate(err, "view log")
		}
		return translate(tx.Delete(&journal.Post{}, id).Error, "post")
	})
}

func (s *Journal) GetPost(ctx context.Context, id uint64) (*journal.Post, error) {
	var p journal.Post
	err := s.db(ctx).
		Preload("ViewLogs", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		First(&p, id).Error
	if err != nil {
		return nil, translate(err, "post")
	}
	return &p, nil
}

func (s *Journal) PostByImage(ctx context.Context, userID uint64, imageURL string) (*journal.Post, error) {
	var p journal.Post
	err := s.db(ctx).
		Where("user_id = ? AND ? = any(file_url)", userID, imageURL).
		Order("id asc").
		First(&p).Error
	if err != nil {
		return nil, translate(err, "post")
	}
	return &p, nil
}

func (s *Journal) GroupPosts(ctx context.Context, userID uint64, groupID string) ([]journal.Post, error) {
	var out []journal.Post
	err := s.db(ctx).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, translate(err, "post")
}

func (s *Journal) ListPosts(ctx context.Context, f journal.PostFilter) ([]journal.Post, error) {
	q := s.db(ctx).Model(&journal.Post{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.GroupID != "" {
		q = q.Where("group_id = ?", f.GroupID)
	}
	var out []journal.Post
	err := q.Order("created_at desc, id desc").Find(&out).Error
	return out, translate(err, "post")
}

func (s *Journal) AddView(ctx context.Context, v *journal.ViewLog) error {
	return translate(s.db(ctx).Create(v).Error, "view log")
}

// updated checks an update-only write hit its row.
func updated(res *gorm.DB, what string) error {
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(what)
	}
	return nil
}

// SQLSTATE codes of transactions that lost a race.
const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// concurrent reports serialization failures and deadlocks, which a client
// can retry unchanged.
func concurrent(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == serializationFailure || pgErr.Code == deadlockDetected
}

// translate maps driver errors onto the apperr taxonomy.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case concurrent(err):
		return apperr.Conflict(what+" changed concurrently", err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict(what+" already exists", err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return apperr.NotFound(what + " reference")
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, context.DeadlineExceeded):
		return apperr.Dependency("database", err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
