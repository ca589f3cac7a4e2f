package storage

import "context"

// Storage is a small keyed store used for bounded retention of recent
// policy versions and for the trainer's job record. List returns entries
// in insertion order.
type Storage interface {
	Create(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string) (any, error)
	Update(ctx context.Context, key string, value any) error
	List(ctx context.Context, offset, limit uint64) ([]any, uint64, error)
	Delete(ctx context.Context, key string) error
}
