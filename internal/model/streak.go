package model

import "time"

// StreakRecord is a user's consecutive-day visit state. LastVisitDate is a
// calendar date stored as midnight UTC; it carries no time of day.
type StreakRecord struct {
	LastVisitDate      time.Time `json:"last_visit_date"`
	CurrentStreakCount int       `json:"current_streak_count"`
}

// Badge is a streak milestone.
type Badge struct {
	ThresholdDays int    `json:"threshold_days"`
	Name          string `json:"name"`
}

type AwardedBadge struct {
	UserID        int64     `json:"user_id"`
	Name          string    `json:"name"`
	ThresholdDays int       `json:"threshold_days"`
	AwardedAt     time.Time `json:"awarded_at"`
}
