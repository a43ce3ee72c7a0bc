package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/gospel5/gospel5/internal/model"
)

const dateLayout = "2006-01-02"

// StreakStore persists one StreakRecord per user.
type StreakStore struct {
	db *sql.DB
}

func NewStreakStore(db *sql.DB) *StreakStore {
	return &StreakStore{db: db}
}

// Get returns the user's streak record, or nil if they have never visited.
func (s *StreakStore) Get(userID int64) (*model.StreakRecord, error) {
	var lastVisit string
	var rec model.StreakRecord
	err := s.db.QueryRow(
		`SELECT last_visit_date, current_streak FROM streaks WHERE user_id = ?`,
		userID,
	).Scan(&lastVisit, &rec.CurrentStreakCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}

	rec.LastVisitDate, err = time.Parse(dateLayout, lastVisit)
	if err != nil {
		return nil, fmt.Errorf("parse last visit date %q: %w", lastVisit, err)
	}
	return &rec, nil
}

// SaveVisit upserts the user's streak record and, when earned is non-nil,
// awards that badge in the same transaction. It reports whether the badge is
// newly awarded. If either write fails neither is kept.
func (s *StreakStore) SaveVisit(userID int64, rec model.StreakRecord, earned *model.Badge) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO streaks (user_id, last_visit_date, current_streak) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     last_visit_date = excluded.last_visit_date,
		     current_streak = excluded.current_streak,
		     updated_at = CURRENT_TIMESTAMP`,
		userID, rec.LastVisitDate.Format(dateLayout), rec.CurrentStreakCount,
	)
	if err != nil {
		return false, fmt.Errorf("save streak: %w", err)
	}

	var isNew bool
	if earned != nil {
		if isNew, err = awardBadge(tx, userID, *earned); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return isNew, nil
}
