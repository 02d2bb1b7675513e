package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scribeworks/scribe/internal/apperror"
)

// mockSettingsRepo implements SettingsRepository for testing.
type mockSettingsRepo struct {
	values map[string]string
	getErr error
	setFn  func(key, value string) error
}

func (m *mockSettingsRepo) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", apperror.NewNotFound("setting not found")
	}
	return v, nil
}

func (m *mockSettingsRepo) Set(ctx context.Context, key, value string) error {
	if m.setFn != nil {
		return m.setFn(key, value)
	}
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsRepo) GetAll(ctx context.Context) (map[string]string, error) { return nil, nil }

func (m *mockSettingsRepo) Delete(ctx context.Context, key string) error { return nil }

var testDefaults = Defaults{
	TrackedRoles:    []string{"administrator", "editor"},
	RetentionMaxAge: 90 * 24 * time.Hour,
}

func TestTrackedRoles_DefaultWhenUnset(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{}, testDefaults)

	roles, err := svc.TrackedRoles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles) != 2 || roles[0] != "administrator" {
		t.Errorf("expected defaults, got %v", roles)
	}
}

func TestTrackedRoles_ParsesStoredList(t *testing.T) {
	repo := &mockSettingsRepo{values: map[string]string{
		KeyTrackedRoles: " administrator , author ,,editor ",
	}}
	svc := NewSettingsService(repo, testDefaults)

	roles, err := svc.TrackedRoles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"administrator", "author", "editor"}
	if len(roles) != len(want) {
		t.Fatalf("expected %v, got %v", want, roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("expected %v, got %v", want, roles)
			break
		}
	}
}

func TestTrackedRoles_RepoErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	svc := NewSettingsService(&mockSettingsRepo{getErr: boom}, testDefaults)

	if _, err := svc.TrackedRoles(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected repo error, got %v", err)
	}
}

func TestSetTrackedRoles(t *testing.T) {
	repo := &mockSettingsRepo{}
	svc := NewSettingsService(repo, testDefaults)

	if err := svc.SetTrackedRoles(context.Background(), []string{" editor ", "", "author"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.values[KeyTrackedRoles] != "editor,author" {
		t.Errorf("unexpected stored value %q", repo.values[KeyTrackedRoles])
	}

	err := svc.SetTrackedRoles(context.Background(), []string{" ", ""})
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != 422 {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRetentionMaxAge_Stored(t *testing.T) {
	repo := &mockSettingsRepo{values: map[string]string{
		KeyRetentionMaxAge: "720h",
	}}
	svc := NewSettingsService(repo, testDefaults)

	d, err := svc.RetentionMaxAge(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 720*time.Hour {
		t.Errorf("expected 720h, got %v", d)
	}
}

func TestRetentionMaxAge_BrokenValueFallsBack(t *testing.T) {
	for _, raw := range []string{"garbage", "-5h", "0s"} {
		repo := &mockSettingsRepo{values: map[string]string{KeyRetentionMaxAge: raw}}
		svc := NewSettingsService(repo, testDefaults)

		d, err := svc.RetentionMaxAge(context.Background())
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", raw, err)
		}
		if d != testDefaults.RetentionMaxAge {
			t.Errorf("%q: expected default window, got %v", raw, d)
		}
	}
}

func TestSetRetentionMaxAge(t *testing.T) {
	repo := &mockSettingsRepo{}
	svc := NewSettingsService(repo, testDefaults)

	if err := svc.SetRetentionMaxAge(context.Background(), 30*24*time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.values[KeyRetentionMaxAge] != "720h0m0s" {
		t.Errorf("unexpected stored value %q", repo.values[KeyRetentionMaxAge])
	}

	err := svc.SetRetentionMaxAge(context.Background(), 0)
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != 422 {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestOverview(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{}, testDefaults)

	ov, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ov.TrackedRoles) != 2 {
		t.Errorf("unexpected roles %v", ov.TrackedRoles)
	}
	if ov.RetentionMaxAge != (90 * 24 * time.Hour).String() {
		t.Errorf("unexpected window %q", ov.RetentionMaxAge)
	}
}
