// Package sequence hands out unique, increasing integers per counter name.
//
// Every backend performs a single atomic increment-and-read. None of them
// reads the current value and writes it back.
package sequence

import (
	"context"
	"sync"
)

// PostNumber is the counter behind Post.Number.
const PostNumber = "postNumber"

type Generator interface {
	NextValue(ctx context.Context, counterName string) (int64, error)
}

// Counter is one named sequence row.
type Counter struct {
	Name string `gorm:"primaryKey;type:text"`
	Seq  int64  `gorm:"not null;default:0"`
}

// Memory keeps counters in process memory behind a mutex. Values do not
// survive a restart; use it for tests and throwaway instances.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemory() *Memory {
	return &Memory{counters: map[string]int64{}}
}

func (m *Memory) NextValue(ctx context.Context, counterName string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[counterName]++
	return m.counters[counterName], nil
}
