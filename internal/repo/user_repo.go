// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Nickname collision resolution, random
// guardian assignment, and the registration semantics live in the service
// layer (see services.UserService).
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-fortune-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateUser inserts u, stamping CreatedAt and LastActivityAt with the current
// UTC time when unset. The caller is responsible for having resolved nickname
// collisions beforehand; a residual race on the unique index surfaces as the
// raw constraint error.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.LastActivityAt.IsZero() {
		u.LastActivityAt = now
	}
	return db.WithContext(ctx).Create(u).Error
}

// GetUser fetches a user by primary key, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserBySessionID fetches the user holding sessionID, or ErrNotFound.
func FindUserBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByTuple fetches the user matching the exact (nickname, birth year,
// month, day) tuple, or ErrNotFound.
func FindUserByTuple(ctx context.Context, db *gorm.DB, nickname string, year, month, day int) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("nickname = ? AND birth_year = ? AND birth_month = ? AND birth_day = ?",
			nickname, year, month, day).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// NicknameTaken reports whether any user already holds nickname.
func NicknameTaken(ctx context.Context, db *gorm.DB, nickname string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("nickname = ?", nickname).
		Count(&n).Error
	return n > 0, err
}

// UpdateGuardian sets the guardian label of the user identified by id.
// Returns ErrNotFound when no row was affected.
func UpdateGuardian(ctx context.Context, db *gorm.DB, id uint, guardian string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("guardian", guardian)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdatePassphrase stores the bcrypt hash of a regenerated passphrase.
// Returns ErrNotFound when no row was affected.
func UpdatePassphrase(ctx context.Context, db *gorm.DB, id uint, hash string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("passphrase", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchUserActivity refreshes last_activity_at. Missing rows are ignored;
// activity refresh is best effort and must not fail a chat turn.
func TouchUserActivity(ctx context.Context, db *gorm.DB, id uint, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("last_activity_at", at.UTC()).Error
}

// UpdateUserFields applies an admin edit (nickname, birth date, gender) to the
// user identified by id. Returns ErrNotFound when the user does not exist.
func UpdateUserFields(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountUsers returns the total number of user rows.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error
	return total, err
}

// ListUsersPage returns a paginated slice of users ordered by creation time
// descending. Use CountUsers for pagination metadata.
func ListUsersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteUser removes the user and all of their conversation rows in one
// transaction, returning the number of conversation rows that were deleted.
// Returns ErrNotFound when the user does not exist.
func DeleteUser(ctx context.Context, db *gorm.DB, id uint) (int64, error) {
	var removed int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", id).Delete(&domain.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected

		ures := tx.Delete(&domain.User{}, id)
		if ures.Error != nil {
			return ures.Error
		}
		if ures.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
