package domain

import (
	"fmt"
	"math"
	"strings"
)

type Level int

const (
	LevelStarter Level = iota
	LevelBronze
	LevelSilver
	LevelGold
	LevelDiamond
)

var levelNames = [...]string{"Starter", "Bronze", "Silver", "Gold", "Diamond"}

var levelColors = [...]string{"#9ca3af", "#d7a57c", "#c0d8ff", "#f5c06b", "#7ef9ff"}

// levelFloors holds the inclusive lower streak bound of every band.
var levelFloors = [...]int{0, 3, 7, 14, 30}

func (l Level) String() string {
	if l < LevelStarter || l > LevelDiamond {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

func (l Level) Color() string {
	if l < LevelStarter || l > LevelDiamond {
		return levelColors[LevelStarter]
	}
	return levelColors[l]
}

// Floor is the minimum streak needed to hold the level.
func (l Level) Floor() int {
	return levelFloors[l]
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, ok := ParseLevel(string(text))
	if !ok {
		return fmt.Errorf("unknown level %q", string(text))
	}
	*l = parsed
	return nil
}

func ParseLevel(name string) (Level, bool) {
	for i, n := range levelNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Level(i), true
		}
	}
	return LevelStarter, false
}

// Levels lists every band in ascending order.
func Levels() []Level {
	return []Level{LevelStarter, LevelBronze, LevelSilver, LevelGold, LevelDiamond}
}

type LevelProgress struct {
	Level     Level  `json:"level"`
	Next      *Level `json:"next"`
	Remaining int    `json:"remaining"`
	Progress  int    `json:"progress"`
}

// LevelOf maps a streak length to its badge band and the progress towards
// the next one. Diamond is terminal: no next level and 100% progress.
func LevelOf(streak int) LevelProgress {
	if streak < 0 {
		streak = 0
	}

	current := LevelStarter
	for _, l := range Levels() {
		if streak >= l.Floor() {
			current = l
		}
	}

	if current == LevelDiamond {
		return LevelProgress{Level: LevelDiamond, Progress: 100}
	}

	next := current + 1
	floor := current.Floor()
	width := next.Floor() - floor

	progress := int(math.Round(float64(streak-floor+1) / float64(width) * 100))
	if progress > 100 {
		progress = 100
	}

	return LevelProgress{
		Level:     current,
		Next:      &next,
		Remaining: next.Floor() - streak,
		Progress:  progress,
	}
}
