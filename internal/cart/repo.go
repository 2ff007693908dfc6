package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/livrinho/backend/pkg/errors"
)

// Store is the slice of the redis client the cart layer needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionToken string) string
}

// Repository persists session carts. Every mutation is written through
// immediately so a reload never loses the cart.
type Repository interface {
	Get(ctx context.Context, sessionToken string) (*Cart, error)
	Save(ctx context.Context, sessionToken string, cart *Cart) error
	Clear(ctx context.Context, sessionToken string) error
}

type repository struct {
	store Store
	ttl   time.Duration
}

// NewRepository builds a redis-backed cart repository.
func NewRepository(store Store, ttl time.Duration) Repository {
	return &repository{store: store, ttl: ttl}
}

func (r *repository) Get(ctx context.Context, sessionToken string) (*Cart, error) {
	raw, err := r.store.Get(ctx, r.store.CartKey(sessionToken))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &Cart{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	var cart Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode cart")
	}
	return &cart, nil
}

func (r *repository) Save(ctx context.Context, sessionToken string, cart *Cart) error {
	if cart == nil {
		cart = &Cart{}
	}
	payload, err := json.Marshal(cart)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := r.store.Set(ctx, r.store.CartKey(sessionToken), string(payload), r.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	return nil
}

func (r *repository) Clear(ctx context.Context, sessionToken string) error {
	if err := r.store.Del(ctx, r.store.CartKey(sessionToken)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}
