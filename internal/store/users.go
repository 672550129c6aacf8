package store

import (
	"context"

	"gorm.io/gorm"

	"photomemo/internal/auth"
)

// Users implements auth.UserStore and journal.Directory on Postgres.
type Users struct {
	DB *gorm.DB
}

func (s *Users) db(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx)
}

func (s *Users) Create(ctx context.Context, u *auth.User) error {
	return translate(s.db(ctx).Create(u).Error, "user")
}

func (s *Users) ByID(ctx context.Context, id uint64) (*auth.User, error) {
	var u auth.User
	if err := s.db(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (s *Users) ByEmail(ctx context.Context, email string) (*auth.User, error) {
	var u auth.User
	if err := s.db(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (s *Users) Save(ctx context.Context, u *auth.User) error {
	return updated(s.db(ctx).Model(u).Select("*").Updates(u), "user")
}

func (s *Users) List(ctx context.Context) ([]auth.User, error) {
	var out []auth.User
	err := s.db(ctx).Order("id asc").Find(&out).Error
	return out, translate(err, "user")
}

// DisplayNames returns the names of the users that still exist. Deleted
// users are simply absent from the map.
func (s *Users) DisplayNames(ctx context.Context, ids []uint64) (map[uint64]string, error) {
	out := make(map[uint64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		ID          uint64
		DisplayName string
	}
	err := s.db(ctx).Model(&auth.User{}).
		Select("id", "display_name").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "user")
	}
	for _, r := range rows {
		out[r.ID] = r.DisplayName
	}
	return out, nil
}
