//go:build integration

package test

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/password"
	"github.com/sentinelgrid/authcore/store/memory"
)

const testPassword = "integration-pass-1"

// redisMode describes which Redis backend a suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes always includes miniredis. Real Redis is added when REDIS_ADDR is
// set (e.g. "127.0.0.1:6379"); its DB is flushed before and after use.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{{
		name: "miniredis",
		setup: func(t *testing.T) redis.UniversalClient {
			t.Helper()
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("miniredis: %v", err)
			}
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() {
				_ = rdb.Close()
				mr.Close()
			})
			return rdb
		},
	}}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				t.Cleanup(func() {
					rdb.FlushDB(context.Background())
					_ = rdb.Close()
				})
				return rdb
			},
		})
	}
	return modes
}

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("integration-secret-0123456789abc")
	cfg.Password.Algorithm = password.AlgorithmArgon2id
	cfg.Password.Argon2 = password.Argon2Params{Memory: 19 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	return cfg
}

func newEngine(t *testing.T, rdb redis.UniversalClient, store authcore.CredentialStore) *authcore.Engine {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	engine, err := authcore.New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithResetNotifier(authcore.NotifierFunc(func(context.Context, string, string) error { return nil })).
		WithResetDelay(0, 0).
		WithLogger(log.New(io.Discard, "", 0)).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func registerAndLogin(t *testing.T, engine *authcore.Engine, email string) *authcore.LoginResult {
	t.Helper()
	ctx := context.Background()
	if _, err := engine.Register(ctx, email, testPassword); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	res, err := engine.Login(ctx, email, testPassword)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res
}

// cmdCounter is a go-redis hook that counts Redis round trips.
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}
