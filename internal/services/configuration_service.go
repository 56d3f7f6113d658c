// Package services – ConfigurationService
//
// Lists and resolves grounded-service configurations through the role
// filter. A caller only ever observes the configurations their roles grant;
// everything else behaves as if it did not exist.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chat-gateway/internal/access"
	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/repo"
)

// ConfigurationService exposes role-filtered configuration reads.
type ConfigurationService struct {
	DB *gorm.DB
}

// NewConfigurationService constructs a ConfigurationService.
func NewConfigurationService(db *gorm.DB) *ConfigurationService {
	return &ConfigurationService{DB: db}
}

// List returns the active configurations visible to the caller, ordered by
// domain then key. environment filters when non-empty ("staging" or
// "production"). An unauthorized caller sees an empty list, not an error.
func (s *ConfigurationService) List(ctx context.Context, environment string) ([]domain.Configuration, error) {
	tr := otel.Tracer("services/ConfigurationService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.String("environment", environment)),
	)
	defer span.End()

	scope, err := access.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	cfgs, err := repo.ListActiveConfigurations(ctx, s.DB, environment)
	if err != nil {
		return nil, err
	}
	return access.FilterConfigurations(scope, cfgs), nil
}

// Resolve fetches one active configuration visible to the caller. A missing,
// inactive, or forbidden configuration uniformly yields
// ErrConfigurationNotFound.
func (s *ConfigurationService) Resolve(ctx context.Context, id string) (*domain.Configuration, error) {
	tr := otel.Tracer("services/ConfigurationService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("configuration.id", id)),
	)
	defer span.End()

	scope, err := access.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := repo.GetConfiguration(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConfigurationNotFound
		}
		return nil, err
	}
	if !access.Visible(scope, cfg) {
		return nil, ErrConfigurationNotFound
	}
	return cfg, nil
}
