// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Profile
// model, which carries the role used by the access policy.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ledgerlab/go-lessons-backend/internal/domain"
)

// GetProfile fetches the profile for userID, or ErrNotFound when the user has
// no profile row. Callers treat a missing profile as the student role.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile creates or updates a profile row. Used by the auth layer to
// keep locally cached role and display name in sync with token claims.
func UpsertProfile(ctx context.Context, db *gorm.DB, userID, role, displayName string) error {
	now := time.Now().UTC()
	p := &domain.Profile{
		ID:          userID,
		Role:        role,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return db.WithContext(ctx).Save(p).Error
}
