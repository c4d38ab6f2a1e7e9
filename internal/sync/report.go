package sync

import (
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
)

// ConflictRecord describes one resolved conflict. The shape matches the
// wire contract so a future manual-resolution UI could be fed from it
// directly.
type ConflictRecord struct {
	EntityType      models.EntityType `json:"entity_type"`
	EntityID        string            `json:"entity_id"`
	ClientUpdatedAt time.Time         `json:"client_updated_at"`
	ServerUpdatedAt time.Time         `json:"server_updated_at"`
	Resolution      WinnerSource      `json:"resolution"`
}

// RecordError describes one per-record rejection (malformed fields,
// identity violation, missing parent). The batch continued past it.
type RecordError struct {
	EntityType models.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id,omitempty"`
	Error      string            `json:"error"`
}

// Report is the observational summary of one sync cycle. It never
// feeds back into engine state and is safe to discard.
type Report struct {
	// SyncTimestamp is the new watermark the client must store for its
	// next cycle.
	SyncTimestamp time.Time
	Uploaded      map[models.EntityType]int
	Downloaded    map[models.EntityType]int
	Conflicts     []ConflictRecord
	Errors        []RecordError
	Duration      time.Duration
}

func newReport() *Report {
	return &Report{
		Uploaded:   make(map[models.EntityType]int),
		Downloaded: make(map[models.EntityType]int),
		Conflicts:  []ConflictRecord{},
		Errors:     []RecordError{},
	}
}

// TotalUploaded sums accepted client records across kinds.
func (r *Report) TotalUploaded() int {
	total := 0
	for _, n := range r.Uploaded {
		total += n
	}
	return total
}

// TotalDownloaded sums returned server records across kinds.
func (r *Report) TotalDownloaded() int {
	total := 0
	for _, n := range r.Downloaded {
		total += n
	}
	return total
}

// ConflictsResolved returns the number of conflicts this cycle settled.
func (r *Report) ConflictsResolved() int {
	return len(r.Conflicts)
}

func (r *Report) addConflict(kind models.EntityType, id string, res Resolution) {
	r.Conflicts = append(r.Conflicts, ConflictRecord{
		EntityType:      kind,
		EntityID:        id,
		ClientUpdatedAt: res.ClientUpdatedAt,
		ServerUpdatedAt: res.ServerUpdatedAt,
		Resolution:      res.WinnerSource,
	})
}

func (r *Report) addError(kind models.EntityType, id string, err error) {
	r.Errors = append(r.Errors, RecordError{
		EntityType: kind,
		EntityID:   id,
		Error:      err.Error(),
	})
}
