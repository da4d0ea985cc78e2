package workers

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool ограничивает число одновременных блокирующих обращений к базе.
// Ждать место в пуле может только вызывающая горутина, доставка событий
// других сессий при этом не блокируется.
type Pool struct {
	sem *semaphore.Weighted
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do выполняет fn, когда в пуле есть место. Если ctx отменён раньше,
// fn не вызывается.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// Run вариант Do без результата
func (p *Pool) Run(ctx context.Context, fn func(context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
