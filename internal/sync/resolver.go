package sync

import (
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
)

// Resolution is the outcome of resolving one conflict candidate.
type Resolution struct {
	Winner          models.SyncableEntity `json:"-"`
	WinnerSource    WinnerSource          `json:"winner_source"`
	Strategy        Strategy              `json:"strategy"`
	Reason          string                `json:"reason"`
	ClientUpdatedAt time.Time             `json:"client_updated_at"`
	ServerUpdatedAt time.Time             `json:"server_updated_at"`
}

// ConflictResolver picks the winning version of a record. Resolve is a
// pure decision function: no I/O, no clock reads, and neither candidate
// is modified.
type ConflictResolver struct {
	defaultStrategy Strategy
}

// NewConflictResolver creates a resolver with a fallback strategy for
// requests that do not name one.
func NewConflictResolver(defaultStrategy Strategy) *ConflictResolver {
	if !ValidStrategy(defaultStrategy) {
		defaultStrategy = StrategyNewerWins
	}
	return &ConflictResolver{defaultStrategy: defaultStrategy}
}

// Resolve decides between a client and a server version of the same
// record. Both candidates share one id — the server version was looked
// up by the client record's id — and identity never changes on
// resolution: the winner is persisted under that same id.
//
// Tombstones get no special case. A winning tombstone propagates the
// deletion; a winning live record resurrects a deleted one. The second
// half is intentional: a client that edited a record offline, unaware
// of a later deletion elsewhere, legitimately un-deletes it.
func (cr *ConflictResolver) Resolve(client, server models.SyncableEntity, strategy Strategy) Resolution {
	if !ValidStrategy(strategy) {
		strategy = cr.defaultStrategy
	}

	res := Resolution{
		Strategy:        strategy,
		ClientUpdatedAt: client.GetLocalUpdatedAt(),
		ServerUpdatedAt: server.GetLocalUpdatedAt(),
	}

	switch strategy {
	case StrategyServerWins:
		res.Winner = server
		res.WinnerSource = WinnerServer
		res.Reason = "server version always wins under server_wins"

	case StrategyClientWins:
		res.Winner = client
		res.WinnerSource = WinnerClient
		res.Reason = "client version always wins under client_wins"

	default:
		// newer_wins, and merge as its whole-record alias.
		if res.ClientUpdatedAt.After(res.ServerUpdatedAt) {
			res.Winner = client
			res.WinnerSource = WinnerClient
			res.Reason = "client timestamp is more recent"
		} else if res.ServerUpdatedAt.After(res.ClientUpdatedAt) {
			res.Winner = server
			res.WinnerSource = WinnerServer
			res.Reason = "server timestamp is more recent"
		} else {
			// Equal timestamps resolve to the server. The server is
			// the tie-break authority, so two devices racing at the
			// same millisecond cannot flap between winners.
			res.Winner = server
			res.WinnerSource = WinnerServer
			res.Reason = "equal timestamps, server is the tie-break authority"
		}
	}

	return res
}
