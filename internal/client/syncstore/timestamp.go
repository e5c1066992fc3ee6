package syncstore

import (
	"time"

	"github.com/ledgersync/ledgersync/internal/db"
)

const TimeFormat = db.TimeFormat

type Timestamp = db.Timestamp

func NewTimestamp(t time.Time) Timestamp {
	return db.NewTimestamp(t)
}

func FormatTime(t time.Time) string {
	return db.FormatTime(t)
}
