package sequence

import (
	"context"

	"gorm.io/gorm"

	"photomemo/internal/apperr"
)

type Postgres struct {
	DB *gorm.DB
}

// NextValue upserts the counter row and returns the post-increment value in
// one statement. Concurrent callers serialize on the row lock.
func (p *Postgres) NextValue(ctx context.Context, counterName string) (int64, error) {
	var seq int64
	err := p.DB.WithContext(ctx).Raw(`
insert into counters (name, seq) values (?, 1)
on conflict (name) do update set seq = counters.seq + 1
returning seq
`, counterName).Scan(&seq).Error
	if err != nil {
		return 0, apperr.Dependency("sequence", err)
	}
	return seq, nil
}
