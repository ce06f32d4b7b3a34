package warden

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MrEthical07/warden/accounts"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "Str0ng!Pass"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

// newTestClock starts at the current second so Redis EXPIREAT stays in the
// future for tokens issued on it.
func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testConfig uses the cheapest work factor Validate accepts.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte(testSecret)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Revocation.SweepInterval = 0
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 512
	cfg.Audit.DropIfFull = false
	cfg.Store.RetryDelay = time.Millisecond
	return cfg
}

type testEnv struct {
	engine *Engine
	db     *gorm.DB
	store  *accounts.GormStore
	clock  *testClock
	sink   *ChannelSink
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := accounts.Open(context.Background(), accounts.OpenConfig{
		DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

// newTestEngine builds an engine over an in-memory SQLite database. setup
// may adjust the config or the builder before Build.
func newTestEngine(t *testing.T, setup ...func(*Config, *Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		db:    newTestDB(t),
		clock: newTestClock(),
		sink:  NewChannelSink(1024),
	}
	env.store = accounts.NewGormStore(env.db, accounts.StoreConfig{RetryDelay: time.Millisecond})

	cfg := testConfig()
	b := New().
		WithDB(env.db).
		WithClock(env.clock.Now).
		WithAuditSink(env.sink)
	for _, fn := range setup {
		fn(&cfg, b)
	}

	engine, err := b.WithConfig(cfg).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) register(t *testing.T, name string) AccountView {
	t.Helper()
	view, err := env.engine.Register(context.Background(), RegisterRequest{
		Name:     name,
		Email:    name + "@x.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	return view
}

func (env *testEnv) login(t *testing.T, name string) (TokenView, Identity) {
	t.Helper()
	ctx := context.Background()
	tok, err := env.engine.Login(ctx, name, testPassword)
	require.NoError(t, err)
	id, err := env.engine.Authenticate(ctx, tok.Token)
	require.NoError(t, err)
	return tok, id
}

// admin registers name and promotes it directly through the store.
func (env *testEnv) admin(t *testing.T, name string) Identity {
	t.Helper()
	view := env.register(t, name)
	_, err := env.store.UpdateRole(context.Background(), "bootstrap", view.ID, RoleAdmin)
	require.NoError(t, err)
	_, id := env.login(t, name)
	require.Equal(t, RoleAdmin, id.Role)
	return id
}

// events closes the engine and returns every audit event it emitted.
func (env *testEnv) events() []AuditEvent {
	env.engine.Close()
	var out []AuditEvent
	for {
		select {
		case e := <-env.sink.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

// nopStore satisfies accounts.Store for builder tests that never reach it.
type nopStore struct {
	accounts.Store
}
