package syncstore

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// SyncTables are the entity tables eligible for sync, in dependency order.
var SyncTables = []string{
	"accounts",
	"assets",
	"asset_taxonomy_assignments",
	"activities",
	"activity_import_profiles",
	"goals",
	"goals_allocation",
	"ai_threads",
	"ai_messages",
	"ai_thread_tags",
	"contribution_limits",
	"platforms",
	"holdings_snapshots",
}

var syncTableSet = mapset.NewThreadUnsafeSet(SyncTables...)

func IsSyncTable(name string) bool {
	return syncTableSet.Contains(name)
}

// table names are interpolated into SQL, so they must come from SyncTables
func checkTable(name string) error {
	if !IsSyncTable(name) {
		return fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	return nil
}

func entityTablesDDL() string {
	var b strings.Builder
	for _, name := range SyncTables {
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n    id TEXT PRIMARY KEY,\n    data TEXT NOT NULL,\n    updated_at TEXT NOT NULL\n);\n", name)
	}
	return b.String()
}

func seedTableStateSQL() string {
	values := make([]string, len(SyncTables))
	for i, name := range SyncTables {
		values[i] = fmt.Sprintf("('%s', 1)", name)
	}
	return "INSERT OR IGNORE INTO sync_table_state (table_name, enabled) VALUES " + strings.Join(values, ", ") + ";"
}
