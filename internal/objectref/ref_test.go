package objectref

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// --- Mock Adapter ---

// mockAdapter implements Adapter with per-call counters so tests can verify
// memoization behavior.
type mockAdapter struct {
	loadFn    func(ctx context.Context, key any) (any, error)
	nameFn    func(ctx context.Context, key any) (string, error)
	tagFn     func(ctx context.Context, key any, fallback string) string
	loadCalls int
}

func (m *mockAdapter) Exists(ctx context.Context, key any) (bool, error) {
	_, err := m.Load(ctx, key)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *mockAdapter) Load(ctx context.Context, key any) (any, error) {
	m.loadCalls++
	if m.loadFn != nil {
		return m.loadFn(ctx, key)
	}
	return nil, ErrNotFound
}

func (m *mockAdapter) Name(ctx context.Context, key any) (string, error) {
	if m.nameFn != nil {
		return m.nameFn(ctx, key)
	}
	return "", ErrNotFound
}

func (m *mockAdapter) CoreProperties(ctx context.Context, key any) ([]CoreProperty, error) {
	return nil, nil
}

func (m *mockAdapter) Tag(ctx context.Context, key any, fallback string) string {
	if m.tagFn != nil {
		return m.tagFn(ctx, key, fallback)
	}
	return fmt.Sprintf("<%s:%v>", fallback, key)
}

func registryWith(t *testing.T, objectType string, a Adapter) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.Register(objectType, a)
	return reg
}

// --- Resolution ---

func TestObject_MemoizesFound(t *testing.T) {
	adapter := &mockAdapter{
		loadFn: func(ctx context.Context, key any) (any, error) {
			return "the-entity", nil
		},
	}
	reg := registryWith(t, "user", adapter)
	ref := NewNamed("user", int64(1), "Alice")

	for i := 0; i < 3; i++ {
		obj, err := ref.Object(context.Background(), reg)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if obj != "the-entity" {
			t.Fatalf("call %d: unexpected object %#v", i, obj)
		}
	}
	if adapter.loadCalls != 1 {
		t.Errorf("expected 1 load, got %d", adapter.loadCalls)
	}
}

func TestObject_MemoizesNotFound(t *testing.T) {
	// A deleted entity must not be re-queried on every call either.
	adapter := &mockAdapter{}
	reg := registryWith(t, "user", adapter)
	ref := NewNamed("user", int64(1), "Alice")

	for i := 0; i < 3; i++ {
		if _, err := ref.Object(context.Background(), reg); !errors.Is(err, ErrNotFound) {
			t.Fatalf("call %d: expected ErrNotFound, got %v", i, err)
		}
	}
	if adapter.loadCalls != 1 {
		t.Errorf("expected 1 load, got %d", adapter.loadCalls)
	}
}

func TestObject_TransientErrorRetries(t *testing.T) {
	// Storage errors are not a verdict on existence; the next call retries.
	boom := errors.New("connection reset")
	calls := 0
	adapter := &mockAdapter{
		loadFn: func(ctx context.Context, key any) (any, error) {
			calls++
			if calls == 1 {
				return nil, boom
			}
			return "recovered", nil
		},
	}
	reg := registryWith(t, "user", adapter)
	ref := NewNamed("user", int64(1), "Alice")

	if _, err := ref.Object(context.Background(), reg); !errors.Is(err, boom) {
		t.Fatalf("expected transient error, got %v", err)
	}
	obj, err := ref.Object(context.Background(), reg)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if obj != "recovered" {
		t.Errorf("unexpected object %#v", obj)
	}
}

func TestObject_UnknownType(t *testing.T) {
	reg := NewRegistry()
	ref := NewNamed("ghost", int64(1), "x")

	if _, err := ref.Object(context.Background(), reg); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	// Unknown type is a wiring bug, never memoized as not-found: after the
	// adapter is registered the same ref resolves.
	reg.Register("ghost", &mockAdapter{
		loadFn: func(ctx context.Context, key any) (any, error) { return "late", nil },
	})
	obj, err := ref.Object(context.Background(), reg)
	if err != nil || obj != "late" {
		t.Errorf("expected late resolution, got %#v (err %v)", obj, err)
	}
}

func TestNew_EagerNameTolerateMissing(t *testing.T) {
	adapter := &mockAdapter{
		nameFn: func(ctx context.Context, key any) (string, error) {
			return "", ErrNotFound
		},
	}
	reg := registryWith(t, "user", adapter)

	ref, err := New(context.Background(), reg, "user", int64(9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Name != "" {
		t.Errorf("expected empty name for missing entity, got %q", ref.Name)
	}
}

func TestFromEntity(t *testing.T) {
	ref := FromEntity(stubEntity{})
	if ref.Type != "thing" || ref.Key != int64(3) || ref.Name != "A Thing" {
		t.Errorf("unexpected ref: %+v", ref)
	}
}

type stubEntity struct{}

func (stubEntity) ObjectType() string { return "thing" }
func (stubEntity) ObjectKey() any     { return int64(3) }
func (stubEntity) ObjectName() string { return "A Thing" }

// --- Tags ---

func TestTag_LiveEntity(t *testing.T) {
	adapter := &mockAdapter{
		loadFn: func(ctx context.Context, key any) (any, error) { return "x", nil },
	}
	reg := registryWith(t, "user", adapter)
	ref := NewNamed("user", int64(7), "Alice")

	if got := ref.Tag(context.Background(), reg); got != "<Alice:7>" {
		t.Errorf("unexpected tag %q", got)
	}
}

func TestTag_DeletedEntity(t *testing.T) {
	reg := registryWith(t, "user", &mockAdapter{})
	ref := NewNamed("user", int64(7), "Alice")

	if got := ref.Tag(context.Background(), reg); got != "Alice (deleted)" {
		t.Errorf("unexpected tag %q", got)
	}
}

func TestTag_DeletedEntityWithoutSnapshot(t *testing.T) {
	reg := registryWith(t, "user", &mockAdapter{})
	ref := NewNamed("user", int64(7), "")

	if got := ref.Tag(context.Background(), reg); got != "user 7 (deleted)" {
		t.Errorf("unexpected tag %q", got)
	}
}

func TestTag_UnknownTypeNeverFails(t *testing.T) {
	reg := NewRegistry()
	ref := NewNamed("ghost", int64(1), "Spooky")

	if got := ref.Tag(context.Background(), reg); got != "Spooky (deleted)" {
		t.Errorf("unexpected tag %q", got)
	}
}

// --- Registry ---

func TestRegistry_Types(t *testing.T) {
	reg := NewRegistry()
	reg.Register("user", &mockAdapter{})
	reg.Register("content", &mockAdapter{})

	types := reg.Types()
	if len(types) != 2 {
		t.Fatalf("expected 2 types, got %v", types)
	}
	seen := map[string]bool{}
	for _, typ := range types {
		seen[typ] = true
	}
	if !seen["user"] || !seen["content"] {
		t.Errorf("unexpected types %v", types)
	}
}

func TestRegistry_ReplaceBinding(t *testing.T) {
	reg := NewRegistry()
	first := &mockAdapter{}
	second := &mockAdapter{}
	reg.Register("user", first)
	reg.Register("user", second)

	a, err := reg.Adapter("user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != second {
		t.Error("expected the later registration to win")
	}
}
