package domain

import "time"

// StreakState is the consecutive-day focus streak.
type StreakState struct {
	Count      int    `json:"count"`
	LastActive string `json:"last_active,omitempty"`
}

// RecordActivity registers focus time on today's calendar day.
//
// Activity already recorded today is a no-op. Activity on the day after
// LastActive extends the streak by one; any other gap restarts it at 1.
// It reports whether the state changed.
func (s *StreakState) RecordActivity(today time.Time) bool {
	todayKey := DateKey(today)
	last, _ := NormalizeDay(s.LastActive)

	if last == todayKey {
		return false
	}

	if last != "" && last == DateKey(today.AddDate(0, 0, -1)) {
		s.Count++
	} else {
		s.Count = 1
	}

	s.LastActive = todayKey
	return true
}
