// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-fortune-backend/internal/domain"
)

// ConversationStats returns aggregate metadata for a (user, persona) log: the
// total number of rows and the maximum Timestamp among those rows.
//
// When the pair has no messages, the returned count is 0 and maxTimestamp is
// nil. The pair (count, maxTimestamp) changes whenever the log changes, which
// makes it a cheap ETag input for the history read endpoint.
func ConversationStats(ctx context.Context, db *gorm.DB, userID uint, characterID string) (count int64, maxTimestamp *time.Time, err error) {
	q := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("user_id = ? AND character_id = ?", userID, characterID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest timestamp (avoid MAX() -> TEXT in SQLite)
	var row struct {
		Timestamp time.Time
	}
	if err = q.Select("timestamp").Order("timestamp DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.Timestamp, nil
}

// UsersStats returns the total user count and the most recent user activity
// timestamp, used for the admin dashboard summary.
func UsersStats(ctx context.Context, db *gorm.DB) (count int64, lastActivity *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.User{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		LastActivityAt time.Time
	}
	if err = q.Select("last_activity_at").Order("last_activity_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.LastActivityAt, nil
}
