// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Configuration model.
//
// Repositories return configurations unfiltered; role filtering happens in
// the service layer through the access guard so every read path applies the
// same rule.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// ListActiveConfigurations returns all active configurations with their
// domain and granted roles preloaded, optionally restricted to one
// environment. Ordered by domain key then configuration key for stable
// output.
func ListActiveConfigurations(ctx context.Context, db *gorm.DB, environment string) ([]domain.Configuration, error) {
	q := db.WithContext(ctx).
		Preload("Domain").
		Preload("Roles").
		Joins("JOIN knowledge_domains ON knowledge_domains.id = configurations.domain_id").
		Where("configurations.is_active = ?", true).
		Order("knowledge_domains.key, configurations.key")
	if environment != "" {
		q = q.Where("configurations.environment = ?", environment)
	}
	var out []domain.Configuration
	err := q.Find(&out).Error
	return out, err
}

// GetConfiguration fetches a single active configuration by ID with domain
// and roles preloaded. Returns ErrNotFound if missing or inactive.
func GetConfiguration(ctx context.Context, db *gorm.DB, id string) (*domain.Configuration, error) {
	var c domain.Configuration
	err := db.WithContext(ctx).
		Preload("Domain").
		Preload("Roles").
		Where("id = ? AND is_active = ?", id, true).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
