// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model, including the retention-capped append.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-fortune-backend/internal/domain"
)

// AppendConversation inserts a message for (userID, characterID), evicting the
// oldest surplus rows first so the pair never holds more than cap rows.
//
// The count, eviction, and insert run in a single transaction: two concurrent
// appends for the same pair serialize on the write lock instead of both
// observing a stale count and leaving the log at cap+1.
func AppendConversation(ctx context.Context, db *gorm.DB, userID uint, characterID, role, message, messageType string, cap int) (*domain.Conversation, error) {
	now := time.Now().UTC()
	row := &domain.Conversation{
		UserID:      userID,
		CharacterID: characterID,
		Role:        role,
		Message:     message,
		MessageType: messageType,
		Timestamp:   now,
		CreatedAt:   now,
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cap > 0 {
			var count int64
			if err := tx.Model(&domain.Conversation{}).
				Where("user_id = ? AND character_id = ?", userID, characterID).
				Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(cap) {
				surplus := int(count) - cap + 1
				var ids []uint
				if err := tx.Model(&domain.Conversation{}).
					Where("user_id = ? AND character_id = ?", userID, characterID).
					Order("timestamp ASC, id ASC").
					Limit(surplus).
					Pluck("id", &ids).Error; err != nil {
					return err
				}
				if len(ids) > 0 {
					if err := tx.Delete(&domain.Conversation{}, ids).Error; err != nil {
						return err
					}
				}
			}
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// ListConversation returns messages for (userID, characterID) ordered oldest
// to newest for display. A limit <= 0 returns all rows.
func ListConversation(ctx context.Context, db *gorm.DB, userID uint, characterID string, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	q := db.WithContext(ctx).
		Where("user_id = ? AND character_id = ?", userID, characterID).
		Order("timestamp ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListRecentTurns returns the most recent limit rows for (userID, characterID)
// in oldest-first order, suitable as LLM context.
func ListRecentTurns(ctx context.Context, db *gorm.DB, userID uint, characterID string, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		return nil, nil
	}
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("user_id = ? AND character_id = ?", userID, characterID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountConversation returns the number of stored rows for (userID, characterID).
// A raw COUNT is used so a missing table surfaces as an error.
func CountConversation(ctx context.Context, db *gorm.DB, userID uint, characterID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM conversations WHERE user_id = ? AND character_id = ?", userID, characterID).
		Scan(&total).Error
	return total, err
}

// LastActivityByCharacter returns the most recent message timestamp per
// persona for userID. Personas without any stored rows map to nil, so the
// result always has one entry per requested id.
//
// One ordered single-row query per persona (avoid MAX() -> TEXT in SQLite).
func LastActivityByCharacter(ctx context.Context, db *gorm.DB, userID uint, characterIDs []string) (map[string]*time.Time, error) {
	out := make(map[string]*time.Time, len(characterIDs))
	for _, id := range characterIDs {
		out[id] = nil

		var rows []struct {
			Timestamp time.Time
		}
		err := db.WithContext(ctx).
			Model(&domain.Conversation{}).
			Select("timestamp").
			Where("user_id = ? AND character_id = ?", userID, id).
			Order("timestamp DESC").
			Limit(1).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			ts := rows[0].Timestamp
			out[id] = &ts
		}
	}
	return out, nil
}

// DeleteConversationsByID removes the given message rows and reports how many
// were actually deleted.
func DeleteConversationsByID(ctx context.Context, db *gorm.DB, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Delete(&domain.Conversation{}, ids)
	return res.RowsAffected, res.Error
}

// DeleteConversationsByPair wipes the full (userID, characterID) log and
// reports the affected-row count.
func DeleteConversationsByPair(ctx context.Context, db *gorm.DB, userID uint, characterID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("user_id = ? AND character_id = ?", userID, characterID).
		Delete(&domain.Conversation{})
	return res.RowsAffected, res.Error
}

// DeleteConversationsByUser wipes every log belonging to userID and reports
// the affected-row count.
func DeleteConversationsByUser(ctx context.Context, db *gorm.DB, userID uint) (int64, error) {
	res := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.Conversation{})
	return res.RowsAffected, res.Error
}
