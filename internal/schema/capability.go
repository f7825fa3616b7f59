package schema

import "database/sql"

// Capability is an immutable snapshot of whether the full-text schema is
// present and usable, discovered once at startup and refreshed only on
// migration. Projection writers consult this before touching projection
// tables.
type Capability struct {
	FTSAvailable     bool
	TrigramAvailable bool
	FailureReason    string
}

// Snapshot inspects db and returns the current capability set.
func Snapshot(db *sql.DB) Capability {
	cap := Capability{
		FTSAvailable:     TableExists(db, "search_document") && TableExists(db, "search_document_fts") && TableExists(db, "file_search_map"),
		TrigramAvailable: TableExists(db, "file_trgm") && TableExists(db, "file_trgm_map"),
	}
	if !cap.FTSAvailable {
		cap.FailureReason = "search_document_fts schema missing or incomplete"
	}
	return cap
}
