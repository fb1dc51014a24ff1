package keystore

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port()), DialTimeout: 5 * time.Second})
	defer func() { _ = client.Close() }()

	store := NewRedis(client)

	key, err := store.Issue(ctx, "carol")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	info, err := store.Validate(ctx, key)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if info.User != "carol" {
		t.Fatalf("user = %q", info.User)
	}

	// The raw key is never persisted; only its hash is.
	id, _, err := splitKey(key)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	stored, err := client.Get(ctx, keyPrefix+id).Result()
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if strings.Contains(stored, key) {
		t.Fatal("raw key must not be stored")
	}

	// Forged key with a valid id but wrong secret must fail the hash check.
	forged := fmt.Sprintf("sk-%s-%s", id, "carol")
	if forged != key {
		if _, err := store.Validate(ctx, forged); err != ErrInvalidKey {
			t.Fatalf("forged key: %v", err)
		}
	}

	infos, err := store.List(ctx)
	if err != nil || len(infos) != 1 {
		t.Fatalf("list = %v, err = %v", infos, err)
	}

	if err := store.Revoke(ctx, key); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := store.Validate(ctx, key); err != ErrInvalidKey {
		t.Fatalf("revoked key validated: %v", err)
	}
}
