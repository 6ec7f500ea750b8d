package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultPoolSize — число одновременно выполняемых handler'ов.
const DefaultPoolSize = 2

// Pool ограничивает число одновременно выполняемых handler'ов.
// Один Pool разделяется всеми тиками планировщика.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool создаёт пул на size слотов. size <= 0 — DefaultPoolSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size возвращает число слотов.
func (p *Pool) Size() int { return p.size }

// Run ждёт свободный слот и выполняет fn.
// Ошибка возвращается, только если ctx отменён до получения слота.
func (p *Pool) Run(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire worker slot: %w", err)
	}
	defer p.sem.Release(1)

	fn()
	return nil
}
