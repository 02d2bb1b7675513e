package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scribeworks/scribe/internal/apperror"
)

// SettingsService parses and validates the activity-log settings, falling
// back to the configured defaults for keys that were never set.
type SettingsService interface {
	// TrackedRoles returns the roles whose actions are logged. Implements
	// activity.TrackedRolesSource.
	TrackedRoles(ctx context.Context) ([]string, error)

	// SetTrackedRoles replaces the tracked role list.
	SetTrackedRoles(ctx context.Context, roles []string) error

	// RetentionMaxAge returns the event retention window. Implements
	// retention.MaxAgeSource.
	RetentionMaxAge(ctx context.Context) (time.Duration, error)

	// SetRetentionMaxAge replaces the retention window. Zero is rejected;
	// unbounded retention is expressed by disabling the retention job.
	SetRetentionMaxAge(ctx context.Context, maxAge time.Duration) error

	// Overview returns the effective settings for the admin surface.
	Overview(ctx context.Context) (*Overview, error)
}

// Defaults supplies the values used for keys that have never been stored.
type Defaults struct {
	TrackedRoles    []string
	RetentionMaxAge time.Duration
}

// settingsService implements SettingsService.
type settingsService struct {
	repo     SettingsRepository
	defaults Defaults
}

// NewSettingsService creates a settings service with the given repository
// and defaults.
func NewSettingsService(repo SettingsRepository, defaults Defaults) SettingsService {
	return &settingsService{repo: repo, defaults: defaults}
}

func (s *settingsService) TrackedRoles(ctx context.Context) ([]string, error) {
	raw, err := s.repo.Get(ctx, KeyTrackedRoles)
	if isNotFound(err) {
		return s.defaults.TrackedRoles, nil
	}
	if err != nil {
		return nil, err
	}

	var roles []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

func (s *settingsService) SetTrackedRoles(ctx context.Context, roles []string) error {
	cleaned := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return apperror.NewValidation("at least one tracked role is required")
	}
	return s.repo.Set(ctx, KeyTrackedRoles, strings.Join(cleaned, ","))
}

func (s *settingsService) RetentionMaxAge(ctx context.Context) (time.Duration, error) {
	raw, err := s.repo.Get(ctx, KeyRetentionMaxAge)
	if isNotFound(err) {
		return s.defaults.RetentionMaxAge, nil
	}
	if err != nil {
		return 0, err
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		// A broken stored value must not silently disable retention.
		return s.defaults.RetentionMaxAge, nil
	}
	return d, nil
}

func (s *settingsService) SetRetentionMaxAge(ctx context.Context, maxAge time.Duration) error {
	if maxAge <= 0 {
		return apperror.NewValidation("retention window must be positive")
	}
	return s.repo.Set(ctx, KeyRetentionMaxAge, maxAge.String())
}

func (s *settingsService) Overview(ctx context.Context) (*Overview, error) {
	roles, err := s.TrackedRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tracked roles: %w", err)
	}
	maxAge, err := s.RetentionMaxAge(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading retention window: %w", err)
	}
	return &Overview{TrackedRoles: roles, RetentionMaxAge: maxAge.String()}, nil
}

func isNotFound(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Type == "not_found"
}
