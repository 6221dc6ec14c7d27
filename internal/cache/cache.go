package cache

import (
	"context"
	"errors"
)

// Cache stores JSON-encodable values of type T under string keys.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (*T, error)
	Set(ctx context.Context, key string, value *T) error
	Delete(ctx context.Context, key string) error
}

var ErrCacheMiss = errors.New("cache miss")

// Nop never holds anything. It is used when Redis is not configured.
type Nop[T any] struct{}

func (Nop[T]) Get(context.Context, string) (*T, error) { return nil, ErrCacheMiss }

func (Nop[T]) Set(context.Context, string, *T) error { return nil }

func (Nop[T]) Delete(context.Context, string) error { return nil }
