package rapidauth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shrimay18/rapidcare-auth/password"
)

func hashAtCost(t *testing.T, pass string, cost int) (string, error) {
	t.Helper()
	h, err := password.NewHasher(password.Config{Cost: cost})
	if err != nil {
		return "", err
	}
	return h.Hash(pass)
}

// memoryProvider is an in-memory AccountProvider for tests.
type memoryProvider struct {
	mu       sync.Mutex
	accounts map[string]AccountRecord
	byEmail  map[string]string
	next     int

	// failures makes the next N calls fail with a synthetic error.
	failures int
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{
		accounts: make(map[string]AccountRecord),
		byEmail:  make(map[string]string),
	}
}

func (p *memoryProvider) failNext(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = n
}

func (p *memoryProvider) maybeFail() error {
	if p.failures > 0 {
		p.failures--
		return fmt.Errorf("provider down")
	}
	return nil
}

func (p *memoryProvider) GetAccountByEmail(_ context.Context, email string) (AccountRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.maybeFail(); err != nil {
		return AccountRecord{}, err
	}
	id, ok := p.byEmail[email]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return p.accounts[id], nil
}

func (p *memoryProvider) GetAccountByID(_ context.Context, accountID string) (AccountRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.maybeFail(); err != nil {
		return AccountRecord{}, err
	}
	account, ok := p.accounts[accountID]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return account, nil
}

func (p *memoryProvider) CreateAccount(_ context.Context, input CreateAccountInput) (AccountRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.maybeFail(); err != nil {
		return AccountRecord{}, err
	}
	if _, ok := p.byEmail[input.Email]; ok {
		return AccountRecord{}, ErrAccountExists
	}
	p.next++
	account := AccountRecord{
		AccountID:    fmt.Sprintf("acc-%d", p.next),
		Email:        input.Email,
		Role:         input.Role,
		Status:       input.Status,
		PasswordHash: input.PasswordHash,
	}
	p.accounts[account.AccountID] = account
	p.byEmail[account.Email] = account.AccountID
	return account, nil
}

func (p *memoryProvider) UpdatePasswordHash(_ context.Context, accountID, newHash string, changedAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.PasswordHash = newHash
	account.PasswordChangedAt = changedAt
	p.accounts[accountID] = account
	return nil
}

func (p *memoryProvider) UpdateAccountStatus(_ context.Context, accountID string, status AccountStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.Status = status
	p.accounts[accountID] = account
	return nil
}

func (p *memoryProvider) UpdateLoginState(_ context.Context, accountID string, failedCount int, lockedUntil time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.FailedLoginCount = failedCount
	account.LockedUntil = lockedUntil
	p.accounts[accountID] = account
	return nil
}

func (p *memoryProvider) get(t *testing.T, accountID string) AccountRecord {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.accounts[accountID]
	if !ok {
		t.Fatalf("account %s not found", accountID)
	}
	return account
}

func (p *memoryProvider) patch(t *testing.T, accountID string, mutate func(*AccountRecord)) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.accounts[accountID]
	if !ok {
		t.Fatalf("account %s not found", accountID)
	}
	mutate(&account)
	p.accounts[accountID] = account
}

type sentCode struct {
	Email   string
	Purpose OTPPurpose
	Code    string
}

// fakeNotifier records delivered codes.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (n *fakeNotifier) SendOTP(_ context.Context, email string, purpose OTPPurpose, code string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentCode{Email: email, Purpose: purpose, Code: code})
	return nil
}

func (n *fakeNotifier) last(t *testing.T) sentCode {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("no codes delivered")
	}
	return n.sent[len(n.sent)-1]
}

func testConfig(t *testing.T) Config {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	// Keep bcrypt at the floor so the suite stays fast.
	cfg.Password.Cost = 10
	cfg.Lockout.Threshold = 3
	cfg.Session.ReaperInterval = 0
	return cfg
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) (*Engine, *memoryProvider, *fakeNotifier) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig(t)
	for _, m := range mutate {
		m(&cfg)
	}

	provider := newMemoryProvider()
	notifier := &fakeNotifier{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountProvider(provider).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, provider, notifier
}

// seedAccount registers an active account directly through the provider.
func seedAccount(t *testing.T, engine *Engine, provider *memoryProvider, email, pass string) AccountRecord {
	t.Helper()

	hash, err := engine.hasher.Hash(pass)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	account, err := provider.CreateAccount(context.Background(), CreateAccountInput{
		Email:        email,
		PasswordHash: hash,
		Role:         RolePatient,
		Status:       AccountActive,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account
}

func TestValidateRoundTrip(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	pair, err := engine.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	res, err := engine.Validate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if res.AccountID != account.AccountID {
		t.Fatalf("expected account %s, got %s", account.AccountID, res.AccountID)
	}
	if res.Role != RolePatient {
		t.Fatalf("expected role %s, got %s", RolePatient, res.Role)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	if _, err := engine.Validate(context.Background(), "not-a-token"); err != ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidateRejectsSuspendedAccount(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	pair, err := engine.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	provider.patch(t, account.AccountID, func(a *AccountRecord) {
		a.Status = AccountSuspended
	})

	if _, err := engine.Validate(ctx, pair.AccessToken); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for suspended account, got %v", err)
	}
}

func TestValidateRejectsTokenIssuedBeforePasswordChange(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	pair, err := engine.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	provider.patch(t, account.AccountID, func(a *AccountRecord) {
		a.PasswordChangedAt = time.Now().Add(time.Minute)
	})

	if _, err := engine.Validate(ctx, pair.AccessToken); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized after password change, got %v", err)
	}
}

func TestValidateRetriesProviderReadOnce(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	pair, err := engine.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	provider.failNext(1)
	if _, err := engine.Validate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("one transient read failure should be retried, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	pair, err := engine.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.Logout(ctx, pair.SessionID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, pair.RefreshToken, DeviceInfo{}); err != ErrRefreshInvalid {
		t.Fatalf("refresh after logout should be invalid, got %v", err)
	}

	sessions, err := engine.ListSessions(ctx, account.AccountID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no live sessions, got %d", len(sessions))
	}
}

func TestLogoutAllAndListSessions(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	for i := 0; i < 3; i++ {
		device := DeviceInfo{DeviceID: fmt.Sprintf("device-%d", i)}
		if _, err := engine.LoginWithDevice(ctx, "alice@example.com", "correct horse", device); err != nil {
			t.Fatalf("Login %d failed: %v", i, err)
		}
	}

	sessions, err := engine.ListSessions(ctx, account.AccountID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 live sessions, got %d", len(sessions))
	}

	n, err := engine.LogoutAll(ctx, account.AccountID)
	if err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revoked, got %d", n)
	}
}

func TestLogoutDevice(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	if _, err := engine.LoginWithDevice(ctx, "alice@example.com", "correct horse", DeviceInfo{DeviceID: "phone"}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.LoginWithDevice(ctx, "alice@example.com", "correct horse", DeviceInfo{DeviceID: "laptop"}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	n, err := engine.LogoutDevice(ctx, account.AccountID, "phone")
	if err != nil {
		t.Fatalf("LogoutDevice failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 revoked, got %d", n)
	}

	sessions, err := engine.ListSessions(ctx, account.AccountID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Device.DeviceID != "laptop" {
		t.Fatalf("expected only the laptop session to survive, got %+v", sessions)
	}
}

func TestMetricsSnapshotCountsLogins(t *testing.T) {
	engine, provider, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Metrics.Enabled = true
	})
	ctx := context.Background()
	seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	if _, err := engine.Login(ctx, "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "wrong"); err == nil {
		t.Fatal("expected failed login")
	}

	snapshot := engine.MetricsSnapshot()
	if snapshot.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected 1 login success, got %d", snapshot.Counters[MetricLoginSuccess])
	}
	if snapshot.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("expected 1 login failure, got %d", snapshot.Counters[MetricLoginFailure])
	}
	if snapshot.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("expected 1 session created, got %d", snapshot.Counters[MetricSessionCreated])
	}
}
