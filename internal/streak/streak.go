package streak

import (
	"time"

	"github.com/gospel5/gospel5/internal/model"
)

// Milestones are the streak badges in ascending threshold order.
var Milestones = []model.Badge{
	{ThresholdDays: 3, Name: "Beginner"},
	{ThresholdDays: 7, Name: "Consistent"},
	{ThresholdDays: 14, Name: "Steadfast"},
	{ThresholdDays: 30, Name: "Committed"},
	{ThresholdDays: 60, Name: "Faithful"},
	{ThresholdDays: 100, Name: "Devoted"},
	{ThresholdDays: 365, Name: "Saint"},
}

// Result is the outcome of a single visit.
type Result struct {
	Record      model.StreakRecord
	BadgeEarned *model.Badge
}

// RecordVisit applies a visit at now to the prior record and returns the
// updated record along with the badge reached on this visit, if any. The
// calendar day of now is taken in now's location. A nil record, or one with
// a non-positive count, is treated as a first visit.
func RecordVisit(now time.Time, record *model.StreakRecord) Result {
	today := CalendarDate(now)

	if record == nil || record.CurrentStreakCount <= 0 {
		return Result{Record: model.StreakRecord{LastVisitDate: today, CurrentStreakCount: 1}}
	}

	diff := DaysBetween(record.LastVisitDate, today)
	if diff <= 0 {
		// Same day, or the clock went backwards.
		return Result{Record: *record}
	}

	updated := model.StreakRecord{LastVisitDate: today, CurrentStreakCount: 1}
	if diff == 1 {
		updated.CurrentStreakCount = record.CurrentStreakCount + 1
	}

	return Result{Record: updated, BadgeEarned: BadgeFor(updated.CurrentStreakCount)}
}

// BadgeFor returns the milestone whose threshold equals count exactly.
func BadgeFor(count int) *model.Badge {
	for _, m := range Milestones {
		if m.ThresholdDays == count {
			b := m
			return &b
		}
	}
	return nil
}

// NextMilestone returns the first milestone above count, or nil once every
// badge has been reached.
func NextMilestone(count int) *model.Badge {
	for _, m := range Milestones {
		if m.ThresholdDays > count {
			b := m
			return &b
		}
	}
	return nil
}

// CalendarDate returns t's calendar day in t's own location as midnight UTC.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(CalendarDate(b).Sub(CalendarDate(a)).Hours() / 24)
}
