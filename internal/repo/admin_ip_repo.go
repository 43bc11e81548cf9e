// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the admin IP
// allow-list.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-fortune-backend/internal/domain"
)

// CreateAdminIP inserts an allow-list entry. Duplicate addresses return
// ErrDuplicate.
func CreateAdminIP(ctx context.Context, db *gorm.DB, ipAddress, description string) (*domain.AdminIP, error) {
	now := time.Now().UTC()
	row := &domain.AdminIP{
		IPAddress:   ipAddress,
		Description: description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return row, nil
}

// ListAdminIPs returns all allow-list entries, newest first.
func ListAdminIPs(ctx context.Context, db *gorm.DB) ([]domain.AdminIP, error) {
	var out []domain.AdminIP
	err := db.WithContext(ctx).Order("created_at desc, id desc").Find(&out).Error
	return out, err
}

// SetAdminIPActive toggles an entry. Returns ErrNotFound when no row matched.
func SetAdminIPActive(ctx context.Context, db *gorm.DB, id uint, active bool) error {
	res := db.WithContext(ctx).
		Model(&domain.AdminIP{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteAdminIP removes an entry. Returns ErrNotFound when no row matched.
func DeleteAdminIP(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.AdminIP{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountActiveAdminIPs returns the number of active allow-list entries.
func CountActiveAdminIPs(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.AdminIP{}).
		Where("is_active = ?", true).
		Count(&n).Error
	return n, err
}

// AdminIPAllowed reports whether ip is an active allow-list entry.
func AdminIPAllowed(ctx context.Context, db *gorm.DB, ip string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.AdminIP{}).
		Where("ip_address = ? AND is_active = ?", ip, true).
		Count(&n).Error
	return n > 0, err
}

// isUniqueViolation detects unique-constraint failures across the error
// shapes the glebarez/sqlite driver produces.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
