package domain

import "time"

// FocusReport summarises the focus minutes of a stored document over a date range.
type FocusReport struct {
	StartDate      string        `json:"start_date"`
	EndDate        string        `json:"end_date"`
	TotalMinutes   float64       `json:"total_minutes"`
	ActiveDays     int           `json:"active_days"`
	AverageMinutes float64       `json:"average_minutes"`
	GoalMinutes    int           `json:"weekly_goal_minutes"`
	Streak         StreakState   `json:"streak"`
	Level          LevelProgress `json:"level"`
	Days           []DayBucket   `json:"days"`
}

type StatsInput struct {
	UserID    string
	StartDate time.Time
	EndDate   time.Time
	Location  *time.Location
}
