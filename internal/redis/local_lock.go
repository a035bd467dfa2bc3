package redisclient

import (
	"context"
	"hash/fnv"
	"sync"
)

const localStripes = 64

type localSlotLocker struct {
	stripes [localStripes]sync.Mutex
}

// NewLocalSlotLocker serialises slot keys inside one process. It stands in for
// Redis when the service runs as a single instance without it.
func NewLocalSlotLocker() Locker {
	return &localSlotLocker{}
}

func (l *localSlotLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &l.stripes[h.Sum32()%localStripes]

	mu.Lock()
	defer mu.Unlock()
	return fn(ctx)
}
