package store

import (
	"database/sql"
	"fmt"

	"github.com/gospel5/gospel5/internal/model"
)

// BadgeStore records which streak badges each user has been awarded.
type BadgeStore struct {
	db *sql.DB
}

func NewBadgeStore(db *sql.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

// awardBadge records the badge for the user and reports whether it is new.
// A badge already held is left untouched.
func awardBadge(tx *sql.Tx, userID int64, badge model.Badge) (bool, error) {
	result, err := tx.Exec(
		`INSERT INTO user_badges (user_id, badge, threshold_days) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, badge) DO NOTHING`,
		userID, badge.Name, badge.ThresholdDays,
	)
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListByUser returns the user's badges in threshold order.
func (s *BadgeStore) ListByUser(userID int64) ([]model.AwardedBadge, error) {
	rows, err := s.db.Query(
		`SELECT user_id, badge, threshold_days, awarded_at FROM user_badges
		 WHERE user_id = ? ORDER BY threshold_days ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var badges []model.AwardedBadge
	for rows.Next() {
		var b model.AwardedBadge
		if err := rows.Scan(&b.UserID, &b.Name, &b.ThresholdDays, &b.AwardedAt); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}
