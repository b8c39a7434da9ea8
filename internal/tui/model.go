package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
)

const (
	refreshInterval = time.Second
	durationStep    = 5
	historyDays     = 7
)

type TimerPort interface {
	Snapshot() services.TimerSnapshot
	Toggle(ctx context.Context, uc domain.UserContext) (*services.FlushResult, error)
	Reset(ctx context.Context)
	SetDuration(ctx context.Context, minutes int) error
}

type StatsPort interface {
	Summary(ctx context.Context) (*services.StatsSummary, error)
	History(ctx context.Context, days int) ([]domain.DayBucket, error)
	TodaySessions(ctx context.Context) ([]domain.SessionHistoryEntry, error)
}

type WorkspacePort interface {
	Tasks(ctx context.Context) ([]domain.Task, error)
	AddTask(ctx context.Context, uc domain.UserContext, text, date string) (domain.Task, error)
	ToggleTask(ctx context.Context, uc domain.UserContext, id string) error
	DeleteTask(ctx context.Context, uc domain.UserContext, id string) error
	TaskReminder(ctx context.Context) (string, bool, error)
	Notepad(ctx context.Context) (string, error)
	SetNotepad(ctx context.Context, uc domain.UserContext, text string) error
}

type Ports struct {
	Timer     TimerPort
	Stats     StatsPort
	Workspace WorkspacePort
}

type tabID int

const (
	tabTimer tabID = iota
	tabStats
	tabTasks
	tabNotes
	tabCount
)

var tabLabels = [tabCount]string{"Timer", "Stats", "Tasks", "Notes"}

type inputMode int

const (
	modeNormal inputMode = iota
	modeAddTask
	modeEditNotes
)

type tickMsg time.Time

type eventMsg Event

type statsLoadedMsg struct {
	summary *services.StatsSummary
	week    []domain.DayBucket
	today   []domain.SessionHistoryEntry
	err     error
}

type tasksLoadedMsg struct {
	tasks []domain.Task
	err   error
}

type notepadLoadedMsg struct {
	text string
	err  error
}

type notepadSavedMsg struct{ err error }

type reminderMsg struct{ text string }

type flushedMsg struct {
	result *services.FlushResult
	err    error
}

type errMsg struct{ err error }

// Model is the root Bubble Tea model of the focus desk.
type Model struct {
	ports  Ports
	user   domain.UserContext
	events <-chan Event
	bell   io.Writer

	tab     tabID
	mode    inputMode
	input   []rune
	timer   services.TimerSnapshot
	summary *services.StatsSummary
	week    []domain.DayBucket
	today   []domain.SessionHistoryEntry
	tasks   []domain.Task
	cursor  int
	notepad string
	status  string
	width   int
}

func NewModel(ports Ports, user domain.UserContext, notifier *Notifier) Model {
	m := Model{
		ports:  ports,
		user:   user,
		bell:   os.Stderr,
		status: "ready",
	}
	if notifier != nil {
		m.events = notifier.Events()
	}
	if ports.Timer != nil {
		m.timer = ports.Timer.Snapshot()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(),
		m.waitForEvent(),
		m.loadStats(),
		m.loadTasks(),
		m.loadNotepad(),
		m.loadReminder(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.timer = m.ports.Timer.Snapshot()
		return m, tick()

	case eventMsg:
		m.status = msg.Text
		if msg.Bell && m.bell != nil {
			_, _ = io.WriteString(m.bell, "\a")
		}
		m.timer = m.ports.Timer.Snapshot()
		return m, tea.Batch(m.waitForEvent(), m.loadStats())

	case statsLoadedMsg:
		if msg.err != nil {
			m.status = "stats: " + msg.err.Error()
			return m, nil
		}
		m.summary, m.week, m.today = msg.summary, msg.week, msg.today
		return m, nil

	case tasksLoadedMsg:
		if msg.err != nil {
			m.status = "tasks: " + msg.err.Error()
			return m, nil
		}
		m.tasks = msg.tasks
		m.cursor = clamp(m.cursor, 0, len(m.tasks)-1)
		return m, nil

	case notepadLoadedMsg:
		if msg.err != nil {
			m.status = "notepad: " + msg.err.Error()
			return m, nil
		}
		m.notepad = msg.text
		return m, nil

	case notepadSavedMsg:
		if msg.err != nil {
			m.status = "notepad: " + msg.err.Error()
			return m, nil
		}
		m.status = "notepad saved"
		return m, nil

	case reminderMsg:
		m.status = msg.text
		return m, nil

	case flushedMsg:
		m.timer = m.ports.Timer.Snapshot()
		if msg.err != nil {
			m.status = "saving focus time failed: " + msg.err.Error()
			return m, nil
		}
		if msg.result != nil {
			m.status = fmt.Sprintf("paused, %.1f min logged today", msg.result.DayTotal)
			return m, m.loadStats()
		}
		return m, nil

	case errMsg:
		m.status = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		if m.mode != modeNormal {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		m.tab = (m.tab + 1) % tabCount
		return m, m.enterTab()
	case "shift+tab":
		m.tab = (m.tab + tabCount - 1) % tabCount
		return m, m.enterTab()
	}

	switch m.tab {
	case tabTimer:
		return m.updateTimerKeys(msg)
	case tabTasks:
		return m.updateTaskKeys(msg)
	case tabNotes:
		if msg.String() == "e" {
			m.mode = modeEditNotes
			m.input = []rune(m.notepad)
		}
	}
	return m, nil
}

func (m Model) updateTimerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case " ", "space", "s":
		return m, m.toggleTimer()
	case "r":
		m.ports.Timer.Reset(context.Background())
		m.timer = m.ports.Timer.Snapshot()
		m.status = "timer reset"
	case "+", "=":
		return m.changeDuration(m.timer.SessionMinutes + durationStep)
	case "-":
		return m.changeDuration(m.timer.SessionMinutes - durationStep)
	}
	return m, nil
}

func (m Model) changeDuration(minutes int) (tea.Model, tea.Cmd) {
	if minutes < durationStep {
		minutes = durationStep
	}
	if err := m.ports.Timer.SetDuration(context.Background(), minutes); err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.timer = m.ports.Timer.Snapshot()
	m.status = fmt.Sprintf("session length %d min", minutes)
	return m, nil
}

func (m Model) updateTaskKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down", "j":
		m.cursor = clamp(m.cursor+1, 0, len(m.tasks)-1)
	case "up", "k":
		m.cursor = clamp(m.cursor-1, 0, len(m.tasks)-1)
	case "a":
		m.mode = modeAddTask
		m.input = nil
	case "x", "enter":
		if id, ok := m.selectedTask(); ok {
			return m, m.toggleTask(id)
		}
	case "d":
		if id, ok := m.selectedTask(); ok {
			return m, m.deleteTask(id)
		}
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode, m.input = modeNormal, nil
		return m, nil
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	case tea.KeyCtrlS:
		if m.mode == modeEditNotes {
			text := string(m.input)
			m.notepad = text
			m.mode, m.input = modeNormal, nil
			return m, m.saveNotepad(text)
		}
		return m, nil
	case tea.KeyEnter:
		if m.mode == modeAddTask {
			text := string(m.input)
			m.mode, m.input = modeNormal, nil
			return m, m.addTask(text)
		}
		m.input = append(m.input, '\n')
		return m, nil
	case tea.KeySpace:
		m.input = append(m.input, ' ')
		return m, nil
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
		return m, nil
	}
	return m, nil
}

func (m Model) selectedTask() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return "", false
	}
	return m.tasks[m.cursor].ID, true
}

func (m Model) enterTab() tea.Cmd {
	if m.tab == tabStats {
		return m.loadStats()
	}
	return nil
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (m Model) toggleTimer() tea.Cmd {
	timer, uc := m.ports.Timer, m.user
	return func() tea.Msg {
		result, err := timer.Toggle(context.Background(), uc)
		return flushedMsg{result: result, err: err}
	}
}

func (m Model) loadStats() tea.Cmd {
	stats := m.ports.Stats
	return func() tea.Msg {
		ctx := context.Background()
		summary, err := stats.Summary(ctx)
		if err != nil {
			return statsLoadedMsg{err: err}
		}
		week, err := stats.History(ctx, historyDays)
		if err != nil {
			return statsLoadedMsg{err: err}
		}
		today, err := stats.TodaySessions(ctx)
		return statsLoadedMsg{summary: summary, week: week, today: today, err: err}
	}
}

func (m Model) loadTasks() tea.Cmd {
	ws := m.ports.Workspace
	return func() tea.Msg {
		tasks, err := ws.Tasks(context.Background())
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

func (m Model) loadNotepad() tea.Cmd {
	ws := m.ports.Workspace
	return func() tea.Msg {
		text, err := ws.Notepad(context.Background())
		return notepadLoadedMsg{text: text, err: err}
	}
}

func (m Model) loadReminder() tea.Cmd {
	ws := m.ports.Workspace
	return func() tea.Msg {
		text, ok, err := ws.TaskReminder(context.Background())
		if err != nil || !ok {
			return nil
		}
		return reminderMsg{text: text}
	}
}

func (m Model) addTask(text string) tea.Cmd {
	ws, uc := m.ports.Workspace, m.user
	return func() tea.Msg {
		ctx := context.Background()
		if _, err := ws.AddTask(ctx, uc, text, domain.DateKey(time.Now())); err != nil {
			return errMsg{err: err}
		}
		tasks, err := ws.Tasks(ctx)
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

func (m Model) toggleTask(id string) tea.Cmd {
	ws, uc := m.ports.Workspace, m.user
	return func() tea.Msg {
		ctx := context.Background()
		if err := ws.ToggleTask(ctx, uc, id); err != nil {
			return errMsg{err: err}
		}
		tasks, err := ws.Tasks(ctx)
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

func (m Model) deleteTask(id string) tea.Cmd {
	ws, uc := m.ports.Workspace, m.user
	return func() tea.Msg {
		ctx := context.Background()
		if err := ws.DeleteTask(ctx, uc, id); err != nil {
			return errMsg{err: err}
		}
		tasks, err := ws.Tasks(ctx)
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

func (m Model) saveNotepad(text string) tea.Cmd {
	ws, uc := m.ports.Workspace, m.user
	return func() tea.Msg {
		return notepadSavedMsg{err: ws.SetNotepad(context.Background(), uc, text)}
	}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}
