package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"photomemo/internal/auth"
	"photomemo/internal/journal"
	"photomemo/internal/sequence"
)

// Connect opens Postgres. Driver errors are translated to gorm sentinels so
// the store layer can classify them. SQL is logged through log at warn.
func Connect(dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger: logger.New(&printer{log: log}, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

type printer struct {
	log logrus.FieldLogger
}

func (p *printer) Printf(format string, args ...any) {
	p.log.WithField("component", "gorm").Warnf(format, args...)
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&auth.User{},
		&journal.Memo{},
		&journal.Post{},
		&journal.ViewLog{},
		&sequence.Counter{},
	); err != nil {
		return err
	}

	stmts := []string{
		// group reads are always scoped to the owner
		`create index if not exists idx_memos_user_group_created on memos(user_id, group_id, created_at, id);`,
		`create index if not exists idx_memos_user_image on memos(user_id, image_url);`,
		`create index if not exists idx_memos_user_created on memos(user_id, created_at desc);`,
		`create index if not exists idx_posts_user_group on posts(user_id, group_id, created_at);`,
		// memo/post correlation by image url
		`create index if not exists idx_posts_file_url on posts using gin (file_url);`,
		`create index if not exists idx_posts_created on posts(created_at desc, id desc);`,
		`create index if not exists idx_post_views_post on post_views(post_id, created_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
