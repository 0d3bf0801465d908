package userledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/triad-cloud/newsdex/internal/db"
	"github.com/triad-cloud/newsdex/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	counts     map[string]int64
	getErr     error
	incrErr    error
	expireErr  error
	getCalls   int
	expireTTLs []time.Duration
	expireNX   []bool
}

func newMockStore() *mockStore {
	return &mockStore{counts: make(map[string]int64)}
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	n, ok := m.counts[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(strconv.FormatInt(n, 10)), nil
}

func (m *mockStore) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.counts[key] += val
	return m.counts[key], nil
}

func (m *mockStore) Expire(_ context.Context, _ string, ttl time.Duration, nx bool) error {
	m.expireTTLs = append(m.expireTTLs, ttl)
	m.expireNX = append(m.expireNX, nx)
	return m.expireErr
}

func newLedger(s store, maxRequests int, window time.Duration) *Ledger {
	return New(s, Config{
		MaxRequests: maxRequests,
		Window:      window,
		CacheSize:   128,
		CacheTTL:    30 * time.Second,
	}, zap.NewNop())
}

// --- Tests ---

func TestLedger_AdmitsUpToCeiling(t *testing.T) {
	store := newMockStore()
	ledger := newLedger(store, 5, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := ledger.Admit(ctx, "alice"); err != nil {
			t.Fatalf("request %d denied: %v", i+1, err)
		}
		if err := ledger.Record(ctx, "alice"); err != nil {
			t.Fatalf("record %d failed: %v", i+1, err)
		}
	}

	err := ledger.Admit(ctx, "alice")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("6th request: expected ErrRateLimited, got %v", err)
	}
}

func TestLedger_UsersAreIndependent(t *testing.T) {
	store := newMockStore()
	ledger := newLedger(store, 2, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := ledger.Admit(ctx, "alice"); err != nil {
			t.Fatalf("alice request %d denied: %v", i+1, err)
		}
		_ = ledger.Record(ctx, "alice")
	}
	if err := ledger.Admit(ctx, "alice"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected alice denied, got %v", err)
	}

	if err := ledger.Admit(ctx, "bob"); err != nil {
		t.Errorf("bob must not inherit alice's count: %v", err)
	}
}

func TestLedger_FirstSightCreatesRecord(t *testing.T) {
	store := newMockStore()
	ledger := newLedger(store, 5, 0)

	if err := ledger.Admit(context.Background(), "carol"); err != nil {
		t.Fatalf("unseen user must be admitted: %v", err)
	}
	if err := ledger.Record(context.Background(), "carol"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if store.counts[keyPrefix+"carol"] != 1 {
		t.Errorf("expected count 1, got %d", store.counts[keyPrefix+"carol"])
	}
}

func TestLedger_RecordRefreshesCache(t *testing.T) {
	store := newMockStore()
	ledger := newLedger(store, 5, 0)
	ctx := context.Background()

	// Prime: one round trip to the store, then the cache serves reads
	_ = ledger.Admit(ctx, "dave")
	_ = ledger.Record(ctx, "dave")
	before := store.getCalls

	for i := 0; i < 3; i++ {
		_ = ledger.Admit(ctx, "dave")
		_ = ledger.Record(ctx, "dave")
	}
	if store.getCalls != before {
		t.Errorf("cached count should serve reads, got %d extra store reads", store.getCalls-before)
	}
	if store.counts[keyPrefix+"dave"] != 4 {
		t.Errorf("expected authoritative count 4, got %d", store.counts[keyPrefix+"dave"])
	}
}

func TestLedger_WindowSetsExpiryNX(t *testing.T) {
	store := newMockStore()
	ledger := newLedger(store, 5, time.Minute)
	ctx := context.Background()

	_ = ledger.Record(ctx, "erin")
	_ = ledger.Record(ctx, "erin")

	if len(store.expireTTLs) != 2 {
		t.Fatalf("expected EXPIRE on every record, got %d", len(store.expireTTLs))
	}
	for i, ttl := range store.expireTTLs {
		if ttl != time.Minute {
			t.Errorf("expire %d: expected 1m, got %v", i, ttl)
		}
		if !store.expireNX[i] {
			t.Errorf("expire %d: must be NX so the window is not extended", i)
		}
	}
}

func TestLedger_LifetimeWindowSkipsExpiry(t *testing.T) {
	store := newMockStore()
	ledger := newLedger(store, 5, 0)

	_ = ledger.Record(context.Background(), "frank")
	if len(store.expireTTLs) != 0 {
		t.Errorf("window 0 must not set expiry, got %d EXPIRE calls", len(store.expireTTLs))
	}
}

func TestLedger_StaleCacheMayAdmitPastCeiling(t *testing.T) {
	store := newMockStore()
	ledger := newLedger(store, 5, 0)
	ctx := context.Background()

	// Prime the cache below the ceiling, then advance the authoritative
	// count behind its back (another instance serving the same user)
	_ = ledger.Record(ctx, "ivan")
	store.counts[keyPrefix+"ivan"] = 10

	// The cached count is stale, so admission still succeeds. This is the
	// documented staleness bound, not a failure.
	if err := ledger.Admit(ctx, "ivan"); err != nil {
		t.Fatalf("stale cache should admit: %v", err)
	}

	// Once the entry is refreshed with the authoritative value, denial kicks in
	_ = ledger.Record(ctx, "ivan")
	if err := ledger.Admit(ctx, "ivan"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("refreshed count must deny, got %v", err)
	}
}

func TestLedger_StoreFailureIsUpstreamError(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("connection refused")
	ledger := newLedger(store, 5, 0)

	err := ledger.Admit(context.Background(), "grace")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if errors.Is(err, domain.ErrRateLimited) {
		t.Error("store failure must be distinguishable from denial")
	}

	store2 := newMockStore()
	store2.incrErr = errors.New("connection refused")
	ledger2 := newLedger(store2, 5, 0)
	if err := ledger2.Record(context.Background(), "grace"); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable from Record, got %v", err)
	}
}

func TestLedger_ExpireFailureDoesNotFailRecord(t *testing.T) {
	store := newMockStore()
	store.expireErr = errors.New("loading dataset")
	ledger := newLedger(store, 5, time.Minute)

	if err := ledger.Record(context.Background(), "heidi"); err != nil {
		t.Fatalf("expire failure must not fail the record: %v", err)
	}
}

func TestLedger_ManyUsersBoundedCache(t *testing.T) {
	store := newMockStore()
	ledger := New(store, Config{
		MaxRequests: 5,
		CacheSize:   4,
		CacheTTL:    30 * time.Second,
	}, zap.NewNop())
	ctx := context.Background()

	// Far more users than cache slots; correctness comes from the store
	for i := 0; i < 20; i++ {
		user := fmt.Sprintf("user-%d", i)
		if err := ledger.Admit(ctx, user); err != nil {
			t.Fatalf("user %s denied: %v", user, err)
		}
		_ = ledger.Record(ctx, user)
	}

	// Evicted users still resolve their true count from the store
	if err := ledger.Admit(ctx, "user-0"); err != nil {
		t.Errorf("evicted user below ceiling must be admitted: %v", err)
	}
}
