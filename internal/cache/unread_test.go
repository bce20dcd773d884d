package cache

import (
	"context"
	"testing"
	"time"

	"interaction-backend/internal/config"
	"interaction-backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Host() error = %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("MappedPort() error = %v", err)
	}

	rdb, err := NewRedisClient(ctx, config.RedisConfig{Addr: host + ":" + port.Port()})
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestUnreadStorage(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	store := NewUnreadStorage(rdb)
	user := models.NewUserID()
	alice, bob, carol := models.NewUserID(), models.NewUserID(), models.NewUserID()

	t.Run("miss before fill", func(t *testing.T) {
		if _, hit, err := store.Get(ctx, user); err != nil || hit {
			t.Fatalf("Get() hit = %v err = %v, want miss", hit, err)
		}
	})

	t.Run("stray increment stays a miss", func(t *testing.T) {
		if err := store.Incr(ctx, user, alice); err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if _, hit, _ := store.Get(ctx, user); hit {
			t.Error("hash without the fill marker should be a miss")
		}
	})

	t.Run("put replaces and skips empty peers", func(t *testing.T) {
		err := store.Put(ctx, user, map[models.UserID]int64{bob: 3, carol: 0})
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		counts, hit, err := store.Get(ctx, user)
		if err != nil || !hit {
			t.Fatalf("Get() hit = %v err = %v, want hit", hit, err)
		}
		if len(counts) != 1 || counts[bob] != 3 {
			t.Errorf("counts = %v, want only bob:3", counts)
		}
		if ttl := rdb.TTL(ctx, key(user)).Val(); ttl <= 0 || ttl > unreadExpireAt {
			t.Errorf("TTL = %v, want within %v", ttl, unreadExpireAt)
		}
	})

	t.Run("empty fill is a hit", func(t *testing.T) {
		other := models.NewUserID()
		if err := store.Put(ctx, other, nil); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		counts, hit, err := store.Get(ctx, other)
		if err != nil || !hit || len(counts) != 0 {
			t.Errorf("Get() = %v hit = %v err = %v, want empty hit", counts, hit, err)
		}
	})

	t.Run("incr and reset", func(t *testing.T) {
		if err := store.Incr(ctx, user, alice); err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if err := store.Incr(ctx, user, bob); err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		counts, _, _ := store.Get(ctx, user)
		if counts[alice] != 1 || counts[bob] != 4 {
			t.Errorf("counts = %v, want alice:1 bob:4", counts)
		}

		if err := store.Reset(ctx, user, bob); err != nil {
			t.Fatalf("Reset() error = %v", err)
		}
		counts, hit, _ := store.Get(ctx, user)
		if !hit || len(counts) != 1 || counts[alice] != 1 {
			t.Errorf("counts = %v hit = %v, want alice:1", counts, hit)
		}
	})

	t.Run("invalidate", func(t *testing.T) {
		if err := store.Invalidate(ctx, user); err != nil {
			t.Fatalf("Invalidate() error = %v", err)
		}
		if _, hit, _ := store.Get(ctx, user); hit {
			t.Error("Get() after Invalidate should miss")
		}
	})
}
