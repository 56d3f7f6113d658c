// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file seeds a development fixture: a handful of
// users, roles, knowledge domains, and role-gated configurations, enough to
// exercise the full access matrix locally. Seeding is idempotent and only
// runs when the database has no users yet.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// SeedDemoData populates the database with demo users, roles, domains, and
// configurations when empty. It reports true when anything was inserted.
func SeedDemoData(ctx context.Context, db *gorm.DB) (bool, error) {
	var users int64
	if err := db.WithContext(ctx).Model(&domain.User{}).Count(&users).Error; err != nil {
		return false, err
	}
	if users > 0 {
		return false, nil
	}

	roleAdmin := domain.Role{ID: uuid.NewString(), Name: "ADMIN", Description: "Administrators; see every configuration"}
	roleOIS := domain.Role{ID: uuid.NewString(), Name: "OIS", Description: "Operational information systems team"}
	roleSIM := domain.Role{ID: uuid.NewString(), Name: "SIM", Description: "Service information management team"}

	intl := domain.Domain{
		ID:          uuid.NewString(),
		Key:         "sd_international",
		DisplayName: "SD International",
		Description: "Knowledge area for international service delivery",
		IsActive:    true,
	}
	support := domain.Domain{
		ID:          uuid.NewString(),
		Key:         "customer_support",
		DisplayName: "Customer Support",
		Description: "Customer-facing support knowledge base",
		IsActive:    true,
	}

	cfgs := []domain.Configuration{
		{
			ID:          uuid.NewString(),
			DomainID:    intl.ID,
			Key:         "sim_wiki_v1",
			DisplayName: "SIM Wiki v1",
			Description: "Service information wiki for international teams",
			Environment: domain.EnvProduction,
			IsActive:    true,
			Roles:       []domain.Role{roleSIM},
		},
		{
			ID:          uuid.NewString(),
			DomainID:    intl.ID,
			Key:         "ois_wiki_v1",
			DisplayName: "OIS Wiki v1",
			Description: "Operational information wiki for international teams",
			Environment: domain.EnvProduction,
			IsActive:    true,
			Roles:       []domain.Role{roleOIS},
		},
		{
			ID:          uuid.NewString(),
			DomainID:    support.ID,
			Key:         "support_kb_staging",
			DisplayName: "Support KB (staging)",
			Description: "Staging build of the support knowledge base",
			Environment: domain.EnvStaging,
			IsActive:    true,
			Roles:       []domain.Role{roleOIS, roleSIM},
		},
		{
			// Empty grant set: visible to administrators only.
			ID:          uuid.NewString(),
			DomainID:    support.ID,
			Key:         "support_kb_restricted",
			DisplayName: "Support KB (restricted)",
			Description: "Unreleased support knowledge base",
			Environment: domain.EnvProduction,
			IsActive:    true,
		},
	}

	seedUsers := []domain.User{
		{
			ID:          uuid.NewString(),
			Subject:     "admin",
			Email:       "admin@example.internal",
			DisplayName: "Demo Admin",
			IsAdmin:     true,
			IsActive:    true,
			Roles:       []domain.Role{roleAdmin},
		},
		{
			ID:          uuid.NewString(),
			Subject:     "ois.user",
			Email:       "ois.user@example.internal",
			DisplayName: "OIS Analyst",
			IsActive:    true,
			Roles:       []domain.Role{roleOIS},
		},
		{
			ID:          uuid.NewString(),
			Subject:     "sim.user",
			Email:       "sim.user@example.internal",
			DisplayName: "SIM Analyst",
			IsActive:    true,
			Roles:       []domain.Role{roleSIM},
		},
		{
			ID:          uuid.NewString(),
			Subject:     "plain.user",
			Email:       "plain.user@example.internal",
			DisplayName: "Unprivileged User",
			IsActive:    true,
		},
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range []domain.Role{roleAdmin, roleOIS, roleSIM} {
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
		}
		for _, d := range []domain.Domain{intl, support} {
			if err := tx.Create(&d).Error; err != nil {
				return err
			}
		}
		for i := range cfgs {
			if err := tx.Create(&cfgs[i]).Error; err != nil {
				return err
			}
		}
		for i := range seedUsers {
			if err := tx.Create(&seedUsers[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
