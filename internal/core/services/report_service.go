package services

import (
	"context"
	"math"
	"time"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

// ReportService builds focus reports from the stored remote documents.
type ReportService struct {
	store domain.DocumentStore
}

func NewReportService(store domain.DocumentStore) *ReportService {
	return &ReportService{store: store}
}

func (s *ReportService) GetFocusReport(ctx context.Context, input domain.StatsInput) (*domain.FocusReport, error) {
	loc := input.Location
	if loc == nil {
		loc = time.UTC
	}
	startDate := dayStart(input.StartDate, loc)
	endDate := dayStart(input.EndDate, loc)

	stored, err := s.store.Get(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	doc := domain.DecodeUserDocument(stored.Fields)

	totals := doc.Totals
	if totals == nil {
		totals = domain.DailyTotals{}
	}

	report := &domain.FocusReport{
		StartDate:   domain.DateKey(startDate),
		EndDate:     domain.DateKey(endDate),
		GoalMinutes: domain.DefaultWeeklyGoalMinutes,
		Days:        make([]domain.DayBucket, 0),
	}
	if doc.WeeklyGoal != nil && *doc.WeeklyGoal > 0 {
		report.GoalMinutes = *doc.WeeklyGoal
	}
	if doc.StreakCount != nil {
		report.Streak.Count = *doc.StreakCount
	}
	if doc.StreakLastActive != nil {
		report.Streak.LastActive = *doc.StreakLastActive
	}
	report.Level = domain.LevelOf(report.Streak.Count)

	daysInPeriod := 0
	currentDate := startDate
	for !currentDate.After(endDate) {
		dateKey := domain.DateKey(currentDate)
		minutes := totals[dateKey]

		report.Days = append(report.Days, domain.DayBucket{
			Date:    dateKey,
			Label:   currentDate.Format("Mon"),
			Minutes: minutes,
		})
		report.TotalMinutes += minutes
		if minutes > 0 {
			report.ActiveDays++
		}

		daysInPeriod++
		currentDate = currentDate.AddDate(0, 0, 1)
	}

	if daysInPeriod > 0 {
		report.AverageMinutes = math.Round(report.TotalMinutes/float64(daysInPeriod)*10) / 10
	}

	return report, nil
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
