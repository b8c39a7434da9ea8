package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

const barWidth = 24

func (m Model) View() string {
	var body string
	switch m.tab {
	case tabTimer:
		body = m.viewTimer()
	case tabStats:
		body = m.viewStats()
	case tabTasks:
		body = m.viewTasks()
	case tabNotes:
		body = m.viewNotes()
	}

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.viewTabs(),
		paneStyle.Render(body),
		mutedStyle.Render(m.status),
		mutedStyle.Render(m.helpLine()),
	))
}

func (m Model) viewTabs() string {
	tabs := make([]string, 0, tabCount)
	for i, label := range tabLabels {
		if tabID(i) == m.tab {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewTimer() string {
	state := m.timer.State
	if state == "" {
		state = "idle"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Focus"),
		"",
		clockStyle.Render(m.timer.Clock),
		mutedStyle.Render(fmt.Sprintf("%s · %d min session", state, m.timer.SessionMinutes)),
	)
}

func (m Model) viewStats() string {
	if m.summary == nil {
		return mutedStyle.Render("loading stats…")
	}
	s := m.summary

	var b strings.Builder
	b.WriteString(titleStyle.Render("Today") + "\n")
	fmt.Fprintf(&b, "%s focused\n\n", domain.FormatClock(int(math.Round(s.Today*60))))

	b.WriteString(titleStyle.Render("This week") + "\n")
	fmt.Fprintf(&b, "%.0f min over %d days, %d active days this month\n", s.WeekMinutes, s.WeekActiveDays, s.MonthActiveDays)
	fmt.Fprintf(&b, "goal %d min %s %d%%\n\n", s.WeeklyGoal, progressBar(s.WeeklyGoalProgress), s.WeeklyGoalProgress)

	level := s.Level.Level
	b.WriteString(titleStyle.Render("Streak") + "\n")
	fmt.Fprintf(&b, "%s %s\n", hotStyle.Render(fmt.Sprintf("%d days", s.Streak.Count)), levelStyle(level.Color()).Render(level.String()))
	if s.Level.Next != nil {
		fmt.Fprintf(&b, "%s %d days to %s\n", progressBar(s.Level.Progress), s.Level.Remaining, s.Level.Next.String())
	}

	if len(m.week) > 0 {
		b.WriteString("\n" + titleStyle.Render("Last 7 days") + "\n")
		b.WriteString(weekChart(m.week))
	}

	if len(m.today) > 0 {
		b.WriteString("\n" + titleStyle.Render("Sessions today") + "\n")
		for _, e := range m.today {
			fmt.Fprintf(&b, "• %d min\n", e.Minutes)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) viewTasks() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Tasks") + "\n\n")

	if len(m.tasks) == 0 {
		b.WriteString(mutedStyle.Render("no tasks yet") + "\n")
	}
	for i, t := range m.tasks {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		check := "[ ]"
		if t.Done {
			check = "[x]"
		}
		line := fmt.Sprintf("%s%s %s", cursor, check, t.Text)
		if t.Date != nil {
			line += mutedStyle.Render("  " + *t.Date)
		}
		b.WriteString(line + "\n")
	}

	if m.mode == modeAddTask {
		b.WriteString("\nnew task: " + string(m.input) + "▌")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) viewNotes() string {
	text := m.notepad
	if m.mode == modeEditNotes {
		text = string(m.input) + "▌"
	} else if text == "" {
		text = mutedStyle.Render("empty")
	}
	return titleStyle.Render("Notepad") + "\n\n" + text
}

func (m Model) helpLine() string {
	if m.mode == modeAddTask {
		return "enter save · esc cancel"
	}
	if m.mode == modeEditNotes {
		return "ctrl+s save · esc cancel"
	}

	common := "tab switch · q quit"
	switch m.tab {
	case tabTimer:
		return "space start/pause · r reset · +/- length · " + common
	case tabTasks:
		return "a add · x toggle · d delete · j/k move · " + common
	case tabNotes:
		return "e edit · " + common
	}
	return common
}

func progressBar(percent int) string {
	filled := clamp(percent*barWidth/100, 0, barWidth)
	return barStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", barWidth-filled))
}

func weekChart(buckets []domain.DayBucket) string {
	peak := 0.0
	for _, d := range buckets {
		peak = math.Max(peak, d.Minutes)
	}

	var b strings.Builder
	for _, d := range buckets {
		filled := 0
		if peak > 0 {
			filled = int(math.Round(d.Minutes / peak * barWidth))
		}
		fmt.Fprintf(&b, "%-4s %s %.0f\n", d.Label, barStyle.Render(strings.Repeat("█", filled)), d.Minutes)
	}
	return b.String()
}
