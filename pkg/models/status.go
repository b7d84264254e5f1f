package models

// AssetStatus is the state of one distinct reference value within a run.
// Values move Discovered -> Local|Foreign|Malformed -> Fetched|Failed -> Rewritten.
type AssetStatus string

const (
	AssetStatusUnset      AssetStatus = ""           // Zero value = unset/unknown
	AssetStatusDiscovered AssetStatus = "discovered" // Seen in the document, not yet classified
	AssetStatusForeign    AssetStatus = "foreign"    // Different origin, left as authored
	AssetStatusMalformed  AssetStatus = "malformed"  // Unparseable reference, left as authored
	AssetStatusLocal      AssetStatus = "local"      // Same origin, scheduled for fetching
	AssetStatusFetched    AssetStatus = "fetched"    // Payload stored in the mirror directory
	AssetStatusFailed     AssetStatus = "failed"     // Fetch or storage failed (terminal)
	AssetStatusRewritten  AssetStatus = "rewritten"  // All owning elements point at the local copy
	AssetStatusNotFound   AssetStatus = "not_found"  // Value not in the journal
	AssetStatusDBError    AssetStatus = "db_error"   // Journal lookup failed
)

// String implements fmt.Stringer for logging
func (s AssetStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a state a value can actually be in
func (s AssetStatus) IsValid() bool {
	switch s {
	case AssetStatusDiscovered, AssetStatusForeign, AssetStatusMalformed, AssetStatusLocal,
		AssetStatusFetched, AssetStatusFailed, AssetStatusRewritten:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible within a run
func (s AssetStatus) IsTerminal() bool {
	switch s {
	case AssetStatusForeign, AssetStatusMalformed, AssetStatusFailed, AssetStatusRewritten:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next follows the per-run state machine
func (s AssetStatus) CanTransition(next AssetStatus) bool {
	switch s {
	case AssetStatusUnset:
		return next == AssetStatusDiscovered
	case AssetStatusDiscovered:
		return next == AssetStatusLocal || next == AssetStatusForeign || next == AssetStatusMalformed
	case AssetStatusLocal:
		return next == AssetStatusFetched || next == AssetStatusFailed
	case AssetStatusFetched:
		return next == AssetStatusRewritten
	}
	return false
}
