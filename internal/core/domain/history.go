package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// SessionHistoryEntry records one flush. Entries are append-only.
type SessionHistoryEntry struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
	At      int64  `json:"at"`
}

func NewSessionHistoryEntry(now time.Time, minutes float64) SessionHistoryEntry {
	return SessionHistoryEntry{
		ID:      uuid.NewString(),
		Date:    DateKey(now),
		Minutes: int(math.Round(minutes)),
		At:      now.UnixMilli(),
	}
}

// EntriesOn returns the last `limit` entries recorded on day, oldest first.
func EntriesOn(history []SessionHistoryEntry, day string, limit int) []SessionHistoryEntry {
	var out []SessionHistoryEntry
	for _, e := range history {
		if e.Date == day {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
