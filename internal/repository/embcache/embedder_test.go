package embcache

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/triad-cloud/newsdex/internal/db"
	"github.com/triad-cloud/newsdex/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string][]byte)}
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 7}, nil
}

// --- Tests ---

func TestCachedEmbedder_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{0.25, -1.5, 3}}
	cached := New(inner, newMockStore(), nil, zap.NewNop())
	ctx := context.Background()

	first, err := cached.Embed(ctx, "go 1.24 released")
	if err != nil {
		t.Fatalf("first Embed failed: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected one provider call, got %d", inner.calls)
	}

	second, err := cached.Embed(ctx, "go 1.24 released")
	if err != nil {
		t.Fatalf("second Embed failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("cache hit must not call the provider, got %d calls", inner.calls)
	}
	if len(second.Embedding) != len(first.Embedding) {
		t.Fatalf("vector length mismatch: %d vs %d", len(second.Embedding), len(first.Embedding))
	}
	for i := range first.Embedding {
		if first.Embedding[i] != second.Embedding[i] {
			t.Errorf("component %d mismatch: %v vs %v", i, first.Embedding[i], second.Embedding[i])
		}
	}
	// Cached result consumed no tokens
	if second.TotalTokens != 0 {
		t.Errorf("cache hit must report zero tokens, got %d", second.TotalTokens)
	}
}

func TestCachedEmbedder_DifferentTextsDifferentKeys(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{1}}
	cached := New(inner, newMockStore(), nil, zap.NewNop())
	ctx := context.Background()

	_, _ = cached.Embed(ctx, "text a")
	_, _ = cached.Embed(ctx, "text b")
	if inner.calls != 2 {
		t.Errorf("distinct texts must each reach the provider, got %d calls", inner.calls)
	}
}

func TestCachedEmbedder_StoreFailuresFallThrough(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	inner := &mockEmbedder{vec: []float32{1}}
	cached := New(inner, store, nil, zap.NewNop())

	res, err := cached.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("store outage must not fail embedding: %v", err)
	}
	if len(res.Embedding) != 1 {
		t.Errorf("unexpected embedding: %v", res.Embedding)
	}
}

func TestCachedEmbedder_CorruptEntryIsMiss(t *testing.T) {
	store := newMockStore()
	inner := &mockEmbedder{vec: []float32{1, 2}}
	cached := New(inner, store, nil, zap.NewNop())
	ctx := context.Background()

	_, _ = cached.Embed(ctx, "headline")
	// Truncate the stored blob to an invalid length
	for k, v := range store.data {
		store.data[k] = v[:len(v)-1]
	}

	if _, err := cached.Embed(ctx, "headline"); err != nil {
		t.Fatalf("corrupt entry must fall through to the provider: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected provider fallback, got %d calls", inner.calls)
	}
}

func TestCachedEmbedder_ProviderErrorPropagates(t *testing.T) {
	provErr := errors.New("rate limited upstream")
	cached := New(&mockEmbedder{err: provErr}, newMockStore(), nil, zap.NewNop())

	if _, err := cached.Embed(context.Background(), "x"); !errors.Is(err, provErr) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
