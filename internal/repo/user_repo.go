// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// GetUserBySubject fetches a user by their token subject with roles
// preloaded. Returns ErrNotFound when no such user exists.
func GetUserBySubject(ctx context.Context, db *gorm.DB, subject string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Preload("Roles").
		Where("subject = ?", subject).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by ID with roles preloaded.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Preload("Roles").
		Where("id = ?", id).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}
