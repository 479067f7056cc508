// Package store keeps the augmentation history in SQLite.
package store

import "time"

// DefaultMaxEntries bounds the history when no limit is configured.
const DefaultMaxEntries = 100

// TimestampLayout is the display form of entry times.
const TimestampLayout = "2006-01-02 15:04:05"

// Entry is one completed augmentation.
type Entry struct {
	ID        string
	Query     string
	Result    string
	CreatedAt time.Time
}

// Timestamp formats CreatedAt in local time.
func (e Entry) Timestamp() string {
	return e.CreatedAt.Local().Format(TimestampLayout)
}
