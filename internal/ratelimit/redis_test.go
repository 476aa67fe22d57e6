package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// redisTestStore connects to RECORDGATE_REDIS_URL or skips the test.
func redisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	url := os.Getenv("RECORDGATE_REDIS_URL")
	if url == "" {
		t.Skip("set RECORDGATE_REDIS_URL to run redis counter tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := NewRedisClient(ctx, url, 2)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "recordgate:test:"+uuid.NewString()+":")
}

func TestRedisStoreFixedWindow(t *testing.T) {
	store := redisTestStore(t)
	l := NewLimiter(store, 2, 500*time.Millisecond, discardLogger())
	ctx := context.Background()

	if !l.Allow(ctx, "caller").Allowed || !l.Allow(ctx, "caller").Allowed {
		t.Fatal("first two requests should be allowed")
	}
	if l.Allow(ctx, "caller").Allowed {
		t.Fatal("third request should be denied")
	}

	time.Sleep(600 * time.Millisecond)
	if !l.Allow(ctx, "caller").Allowed {
		t.Fatal("request after expiry should be allowed")
	}
}

func TestNewRedisClientBadURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "not a url", 1); err == nil {
		t.Fatal("expected error for malformed URL")
	}
}
