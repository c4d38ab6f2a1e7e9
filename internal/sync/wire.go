package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
)

// Request mirrors the sync endpoint's JSON body. The five entity
// arrays stay raw here and are decoded element by element, so a single
// malformed record (an unparseable timestamp, a wrong type) is
// rejected on its own instead of failing the whole batch.
type Request struct {
	LastSyncAt         *time.Time        `json:"last_sync_at"`
	ConflictResolution string            `json:"conflict_resolution"`
	Trips              []json.RawMessage `json:"trips"`
	Days               []json.RawMessage `json:"days"`
	Activities         []json.RawMessage `json:"activities"`
	BudgetItems        []json.RawMessage `json:"budget_items"`
	Notes              []json.RawMessage `json:"notes"`
}

// Size returns the submitted record count across all five arrays.
func (r *Request) Size() int {
	return len(r.Trips) + len(r.Days) + len(r.Activities) + len(r.BudgetItems) + len(r.Notes)
}

// DecodeBatch turns the raw arrays into typed records. Elements that
// fail to decode come back as RecordErrors, with a best-effort id so
// the client can tell which record was dropped.
func (r *Request) DecodeBatch() (*Batch, []RecordError) {
	batch := &Batch{}
	var errs []RecordError

	decode := func(kind models.EntityType, raws []json.RawMessage, newRec func() models.SyncableEntity) {
		for _, raw := range raws {
			rec := newRec()
			if err := json.Unmarshal(raw, rec); err != nil {
				errs = append(errs, RecordError{
					EntityType: kind,
					EntityID:   rawRecordID(raw),
					Error:      fmt.Sprintf("malformed %s record: %v", kind, err),
				})
				continue
			}
			batch.Add(rec)
		}
	}

	decode(models.EntityTypeTrip, r.Trips, func() models.SyncableEntity { return &models.Trip{} })
	decode(models.EntityTypeDay, r.Days, func() models.SyncableEntity { return &models.Day{} })
	decode(models.EntityTypeActivity, r.Activities, func() models.SyncableEntity { return &models.Activity{} })
	decode(models.EntityTypeBudgetItem, r.BudgetItems, func() models.SyncableEntity { return &models.BudgetItem{} })
	decode(models.EntityTypeNote, r.Notes, func() models.SyncableEntity { return &models.Note{} })

	return batch, errs
}

// rawRecordID pulls just the id out of a record that failed to decode
// fully. Returns "" when even that much cannot be read.
func rawRecordID(raw json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.ID
}

// Response is the sync endpoint's reply: per-kind counters, the
// resolved conflicts, per-record errors, and the server data the
// client has to fold into its local store before saving
// sync_timestamp as its next watermark.
type Response struct {
	SyncTimestamp time.Time `json:"sync_timestamp"`

	TripsUploaded         int `json:"trips_uploaded"`
	TripsDownloaded       int `json:"trips_downloaded"`
	DaysUploaded          int `json:"days_uploaded"`
	DaysDownloaded        int `json:"days_downloaded"`
	ActivitiesUploaded    int `json:"activities_uploaded"`
	ActivitiesDownloaded  int `json:"activities_downloaded"`
	BudgetItemsUploaded   int `json:"budget_items_uploaded"`
	BudgetItemsDownloaded int `json:"budget_items_downloaded"`
	NotesUploaded         int `json:"notes_uploaded"`
	NotesDownloaded       int `json:"notes_downloaded"`

	ConflictsResolved int              `json:"conflicts_resolved"`
	Conflicts         []ConflictRecord `json:"conflicts"`
	Errors            []RecordError    `json:"errors,omitempty"`
	ServerData        *Batch           `json:"server_data"`
}

// BuildResponse flattens a cycle result into the wire shape.
// decodeErrs are the records the transport layer already rejected
// before the engine ever saw them; they join the engine's own
// per-record errors.
func BuildResponse(result *Result, decodeErrs []RecordError) *Response {
	rep := result.Report

	resp := &Response{
		SyncTimestamp:         result.NewWatermark,
		TripsUploaded:         rep.Uploaded[models.EntityTypeTrip],
		TripsDownloaded:       rep.Downloaded[models.EntityTypeTrip],
		DaysUploaded:          rep.Uploaded[models.EntityTypeDay],
		DaysDownloaded:        rep.Downloaded[models.EntityTypeDay],
		ActivitiesUploaded:    rep.Uploaded[models.EntityTypeActivity],
		ActivitiesDownloaded:  rep.Downloaded[models.EntityTypeActivity],
		BudgetItemsUploaded:   rep.Uploaded[models.EntityTypeBudgetItem],
		BudgetItemsDownloaded: rep.Downloaded[models.EntityTypeBudgetItem],
		NotesUploaded:         rep.Uploaded[models.EntityTypeNote],
		NotesDownloaded:       rep.Downloaded[models.EntityTypeNote],
		ConflictsResolved:     rep.ConflictsResolved(),
		Conflicts:             rep.Conflicts,
		ServerData:            result.ServerData,
	}

	if resp.Conflicts == nil {
		resp.Conflicts = []ConflictRecord{}
	}
	if resp.ServerData == nil {
		resp.ServerData = &Batch{}
	}
	resp.ServerData.EnsureArrays()

	resp.Errors = append(resp.Errors, decodeErrs...)
	resp.Errors = append(resp.Errors, rep.Errors...)

	return resp
}
