package authcore

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sentinelgrid/authcore/password"
	"github.com/sentinelgrid/authcore/permission"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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

type mockCredentialStore struct {
	mu      sync.Mutex
	users   map[string]UserRecord
	byEmail map[string]string
	fail    error
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{
		users:   map[string]UserRecord{},
		byEmail: map[string]string{},
	}
}

func (s *mockCredentialStore) setFail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *mockCredentialStore) CreateUser(_ context.Context, in CreateUserInput) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return UserRecord{}, s.fail
	}
	if _, ok := s.byEmail[in.Email]; ok {
		return UserRecord{}, ErrDuplicateEmail
	}
	u := UserRecord{
		ID:           in.ID,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Active:       true,
		CreatedAt:    in.CreatedAt,
	}
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

func (s *mockCredentialStore) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return UserRecord{}, s.fail
	}
	id, ok := s.byEmail[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *mockCredentialStore) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return UserRecord{}, s.fail
	}
	u, ok := s.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (s *mockCredentialStore) update(userID string, fn func(*UserRecord)) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return UserRecord{}, s.fail
	}
	u, ok := s.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	fn(&u)
	s.users[userID] = u
	return u, nil
}

func (s *mockCredentialStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	_, err := s.update(userID, func(u *UserRecord) { u.PasswordHash = hash })
	return err
}

func (s *mockCredentialStore) UpdateRole(_ context.Context, userID string, role permission.Role) (UserRecord, error) {
	return s.update(userID, func(u *UserRecord) { u.Role = role })
}

func (s *mockCredentialStore) SetActive(_ context.Context, userID string, active bool) (UserRecord, error) {
	return s.update(userID, func(u *UserRecord) { u.Active = active })
}

func (s *mockCredentialStore) RecordLogin(_ context.Context, userID string, at time.Time) error {
	_, err := s.update(userID, func(u *UserRecord) { u.LastLoginAt = &at })
	return err
}

func (s *mockCredentialStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail
}

func (s *mockCredentialStore) user(t *testing.T, email string) UserRecord {
	t.Helper()
	u, err := s.GetUserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("lookup %s: %v", email, err)
	}
	return u
}

type captureNotifier struct {
	mu     sync.Mutex
	tokens map[string][]string
	err    error
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{tokens: map[string][]string{}}
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.tokens[email] = append(n.tokens[email], token)
	return nil
}

func (n *captureNotifier) last(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	tokens := n.tokens[email]
	if len(tokens) == 0 {
		t.Fatalf("no reset token delivered to %s", email)
	}
	return tokens[len(tokens)-1]
}

func (n *captureNotifier) count(email string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.tokens[email])
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = append([]byte(nil), testSecret...)
	cfg.Password.Algorithm = password.AlgorithmArgon2id
	cfg.Password.Argon2 = password.Argon2Params{
		Memory:      19 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	cfg.Password.MaxLength = 128
	return cfg
}

type testEnv struct {
	engine   *Engine
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	store    *mockCredentialStore
	notifier *captureNotifier
	clock    *testClock
}

type testOption func(*Builder)

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	return mr, rdb
}

func newTestEnv(t testing.TB, cfg Config, opts ...testOption) *testEnv {
	t.Helper()
	mr, rdb := newTestRedis(t)
	env := &testEnv{
		mr:       mr,
		rdb:      rdb,
		store:    newMockCredentialStore(),
		notifier: newCaptureNotifier(),
		clock:    newTestClock(),
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(env.store).
		WithResetNotifier(env.notifier).
		WithClock(env.clock.Now).
		WithResetDelay(0, 0).
		WithLogger(log.New(io.Discard, "", 0))
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	env.engine = engine
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return env
}

func (env *testEnv) register(t testing.TB, email, pw string) User {
	t.Helper()
	u, err := env.engine.Register(context.Background(), email, pw)
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func (env *testEnv) login(t testing.TB, email, pw string) *LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), email, pw)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res
}

func mustErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
