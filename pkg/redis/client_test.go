package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	if err := client.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := client.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "v" {
		t.Fatalf("expected stored value, got %q", got)
	}

	if err := client.Del(ctx, "k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, "k"); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestSetNXOnlyOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.SetNX(ctx, "k", "first", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX should succeed, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, "k", "second", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("second SetNX must not overwrite")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "lvr:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.CartKey("sess-1"); got != "lvr:cart:sess-1" {
		t.Fatalf("unexpected cart key %s", got)
	}
	if got := client.PaymentStatusKey("pay-1"); got != "lvr:payment_status:pay-1" {
		t.Fatalf("unexpected payment status key %s", got)
	}
}

type mockCmdable struct {
	data        map[string]string
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
