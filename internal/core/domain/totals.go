package domain

import (
	"strconv"
	"time"
)

// DailyTotals maps a date key to the focus minutes accumulated that day.
// Entries are never removed; a reset zeroes the day instead.
type DailyTotals map[string]float64

type WeekSummary struct {
	Minutes    float64 `json:"minutes"`
	ActiveDays int     `json:"active_days"`
}

type DayBucket struct {
	Date    string  `json:"date"`
	Label   string  `json:"label"`
	Minutes float64 `json:"minutes"`
}

type CalendarCell struct {
	Blank   bool    `json:"blank,omitempty"`
	Date    string  `json:"date,omitempty"`
	Day     int     `json:"day,omitempty"`
	IsToday bool    `json:"is_today,omitempty"`
	Minutes float64 `json:"minutes,omitempty"`
	HasTask bool    `json:"has_task,omitempty"`
}

// Add accumulates minutes on day and returns the new day total.
func (t DailyTotals) Add(day string, minutes float64) float64 {
	t[day] += minutes
	return t[day]
}

func (t DailyTotals) Reset(day string) {
	t[day] = 0
}

func (t DailyTotals) Day(day string) float64 {
	return t[day]
}

func (t DailyTotals) Clone() DailyTotals {
	out := make(DailyTotals, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Week sums the Monday-start week containing now.
func (t DailyTotals) Week(now time.Time) WeekSummary {
	start := StartOfWeek(now)
	end := start.AddDate(0, 0, 7)

	var summary WeekSummary
	for key, minutes := range t {
		day, err := ParseDateKey(key, now.Location())
		if err != nil {
			continue
		}
		if day.Before(start) || !day.Before(end) {
			continue
		}
		summary.Minutes += minutes
		if minutes > 0 {
			summary.ActiveDays++
		}
	}
	return summary
}

func (t DailyTotals) MonthActiveDays(now time.Time) int {
	count := 0
	for key, minutes := range t {
		day, err := ParseDateKey(key, now.Location())
		if err != nil {
			continue
		}
		if day.Year() == now.Year() && day.Month() == now.Month() && minutes > 0 {
			count++
		}
	}
	return count
}

// Window returns one bucket per day for the last `days` days ending today,
// oldest first. Weekly windows are labelled by weekday, longer ones by day of month.
func (t DailyTotals) Window(now time.Time, days int) []DayBucket {
	if days < 1 {
		return nil
	}
	buckets := make([]DayBucket, 0, days)
	for i := days - 1; i >= 0; i-- {
		d := now.AddDate(0, 0, -i)
		key := DateKey(d)

		label := strconv.Itoa(d.Day())
		if days <= 7 {
			label = d.Format("Mon")
		}

		buckets = append(buckets, DayBucket{
			Date:    key,
			Label:   label,
			Minutes: t[key],
		})
	}
	return buckets
}

// CalendarMonth lays out a Monday-first month grid. Leading cells before the
// first day of the month are blank.
func (t DailyTotals) CalendarMonth(year int, month time.Month, today time.Time, taskDates map[string]bool) []CalendarCell {
	loc := today.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	blanks := int(first.Weekday()) - 1
	if blanks < 0 {
		blanks = 6
	}

	todayKey := DateKey(today)
	cells := make([]CalendarCell, 0, blanks+daysInMonth)
	for i := 0; i < blanks; i++ {
		cells = append(cells, CalendarCell{Blank: true})
	}

	for day := 1; day <= daysInMonth; day++ {
		key := DateKey(time.Date(year, month, day, 0, 0, 0, 0, loc))
		cells = append(cells, CalendarCell{
			Date:    key,
			Day:     day,
			IsToday: key == todayKey,
			Minutes: t[key],
			HasTask: taskDates[key],
		})
	}
	return cells
}
