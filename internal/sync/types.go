package sync

import "errors"

// Strategy defines how a conflict between a client and a server version
// of the same record is resolved.
type Strategy string

const (
	// StrategyNewerWins picks the record with the later local_updated_at.
	// Equal timestamps resolve to the server (tie-break authority).
	StrategyNewerWins Strategy = "newer_wins"
	// StrategyClientWins always keeps the client's version.
	StrategyClientWins Strategy = "client_wins"
	// StrategyServerWins always keeps the server's version.
	StrategyServerWins Strategy = "server_wins"
	// StrategyMerge behaves as whole-record newer_wins. The name is a
	// forward-compatibility placeholder; no field-level merging happens.
	StrategyMerge Strategy = "merge"
)

// ValidStrategy reports whether s is one of the four wire strategies.
func ValidStrategy(s Strategy) bool {
	switch s {
	case StrategyNewerWins, StrategyClientWins, StrategyServerWins, StrategyMerge:
		return true
	}
	return false
}

// WinnerSource says which side a resolution picked. The values double
// as the `resolution` field of conflict descriptors on the wire.
type WinnerSource string

const (
	WinnerClient WinnerSource = "client_wins"
	WinnerServer WinnerSource = "server_wins"
)

// Store sentinels. The database adapter translates driver errors into
// these; the engine only ever checks them with errors.Is. Anything
// else coming out of the store is treated as infrastructure failure
// and aborts the cycle.
var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicateID = errors.New("duplicate record id")
	ErrStaleRecord = errors.New("stale record version")
)

// ValidationError marks a per-record rejection: the record is reported
// and skipped, the rest of the batch keeps going. This covers malformed
// fields, identity violations (cross-kind id reuse) and missing or
// foreign-owned parent references.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
