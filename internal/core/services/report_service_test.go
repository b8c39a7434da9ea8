package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/repository"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
)

func TestReportService_GetFocusReport(t *testing.T) {
	ctx := context.Background()
	store := repository.NewInMemoryDocumentStore()
	svc := services.NewReportService(store)

	require.NoError(t, store.Merge(ctx, "u1", domain.DocumentPatch{
		domain.FieldTotals: domain.DailyTotals{
			"2024-03-04": 60,
			"2024-03-06": 25.5,
			"2024-03-10": 100,
			"2024-03-11": 999,
		},
		domain.FieldStreakCount:      3,
		domain.FieldStreakLastActive: "2024-03-10",
	}))

	t.Run("Week report", func(t *testing.T) {
		report, err := svc.GetFocusReport(ctx, domain.StatsInput{
			UserID:    "u1",
			StartDate: time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)

		assert.Equal(t, "2024-03-04", report.StartDate)
		assert.Equal(t, "2024-03-10", report.EndDate)
		assert.InDelta(t, 185.5, report.TotalMinutes, 0.001)
		assert.Equal(t, 3, report.ActiveDays)
		assert.InDelta(t, 26.5, report.AverageMinutes, 0.001)
		assert.Equal(t, domain.DefaultWeeklyGoalMinutes, report.GoalMinutes)
		assert.Equal(t, 3, report.Streak.Count)
		assert.Equal(t, domain.LevelBronze, report.Level.Level)

		require.Len(t, report.Days, 7)
		assert.Equal(t, "Mon", report.Days[0].Label)
		assert.Equal(t, 60.0, report.Days[0].Minutes)
		assert.Equal(t, "Sun", report.Days[6].Label)
		assert.Equal(t, 0.0, report.Days[1].Minutes)
	})

	t.Run("Custom weekly goal", func(t *testing.T) {
		require.NoError(t, store.Merge(ctx, "u2", domain.DocumentPatch{domain.FieldWeeklyGoal: 300}))

		day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
		report, err := svc.GetFocusReport(ctx, domain.StatsInput{UserID: "u2", StartDate: day, EndDate: day})
		require.NoError(t, err)
		assert.Equal(t, 300, report.GoalMinutes)
		assert.Equal(t, 0.0, report.TotalMinutes)
		assert.Len(t, report.Days, 1)
		assert.Equal(t, domain.LevelStarter, report.Level.Level)
	})

	t.Run("Fail: no document", func(t *testing.T) {
		_, err := svc.GetFocusReport(ctx, domain.StatsInput{UserID: "ghost", StartDate: time.Now(), EndDate: time.Now()})
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})
}
