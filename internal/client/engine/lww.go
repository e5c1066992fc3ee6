package engine

import (
	"time"

	"github.com/ledgersync/ledgersync/internal/client/syncstore"
)

// wins reports whether an incoming write beats the last applied one for the
// same entity. Later client timestamps win; ties go to the greater event id.
func wins(eventID, clientTimestamp string, current *syncstore.EntityMetadata) bool {
	if current == nil {
		return true
	}
	if c := compareTimestamps(clientTimestamp, current.LastClientTimestamp); c != 0 {
		return c > 0
	}
	return eventID > current.LastEventID
}

func compareTimestamps(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA != nil || errB != nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	return ta.Compare(tb)
}
