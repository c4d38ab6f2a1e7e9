package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/config"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
)

const testUserID = "7b8a4f0e-1111-2222-3333-444455556666"

var baseTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func testConfig() *config.SyncConfig {
	return &config.SyncConfig{
		DefaultStrategy: string(StrategyNewerWins),
		MaxCASRetries:   3,
		MaxBatchRecords: 1000,
	}
}

func newTestEngine(store EntityStore) *Engine {
	return NewEngine(store, testConfig())
}

func strPtr(s string) *string {
	return &s
}

func tsPtr(t time.Time) *time.Time {
	return &t
}

func tripRecord(id, name string, ts time.Time) *models.Trip {
	return &models.Trip{
		Syncable:    models.Syncable{ID: id, LocalUpdatedAt: ts},
		Name:        name,
		Destination: "Paris",
	}
}

func dayRecord(id, tripID string, ts time.Time) *models.Day {
	return &models.Day{
		Syncable: models.Syncable{ID: id, LocalUpdatedAt: ts},
		TripID:   tripID,
		Title:    "Sightseeing",
	}
}

func activityRecord(id, dayID, title string, ts time.Time) *models.Activity {
	return &models.Activity{
		Syncable: models.Syncable{ID: id, LocalUpdatedAt: ts},
		DayID:    dayID,
		Title:    title,
	}
}

func budgetRecord(id string, tripID, dayID *string, ts time.Time) *models.BudgetItem {
	return &models.BudgetItem{
		Syncable: models.Syncable{ID: id, LocalUpdatedAt: ts},
		TripID:   tripID,
		DayID:    dayID,
		Category: "food",
		Amount:   25,
	}
}

func noteRecord(id string, tripID, dayID *string, content string, ts time.Time) *models.Note {
	return &models.Note{
		Syncable: models.Syncable{ID: id, LocalUpdatedAt: ts},
		TripID:   tripID,
		DayID:    dayID,
		Content:  content,
	}
}

// seed stores a record server-side under the test user, bypassing the
// engine.
func seed(st *memStore, rec models.SyncableEntity) {
	seedAs(st, testUserID, rec)
}

func seedAs(st *memStore, userID string, rec models.SyncableEntity) {
	rec.SetUserID(userID)
	st.put(rec)
}

func TestEngine_UploadNewRecords(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime)}}

	result, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if got := result.Report.Uploaded[models.EntityTypeTrip]; got != 1 {
		t.Errorf("Expected 1 uploaded trip, got %d", got)
	}
	if got := result.Report.TotalDownloaded(); got != 0 {
		t.Errorf("Upload echo should be suppressed, got %d downloads", got)
	}
	if len(result.ServerData.Trips) != 0 {
		t.Errorf("Server data should not echo the upload, got %d trips", len(result.ServerData.Trips))
	}
	if len(result.Report.Conflicts) != 0 || len(result.Report.Errors) != 0 {
		t.Error("Clean insert should produce no conflicts and no errors")
	}
	if !result.NewWatermark.Equal(baseTime) {
		t.Errorf("Watermark should be the applied record's timestamp, got %v", result.NewWatermark)
	}

	stored := st.stored(models.EntityTypeTrip, "T1")
	if stored == nil {
		t.Fatal("Record was not stored")
	}
	if stored.GetUserID() != testUserID {
		t.Errorf("Stored record should carry the owner, got %q", stored.GetUserID())
	}
}

func TestEngine_ConflictServerNewer(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	serverTS := baseTime.Add(5 * time.Minute)
	seed(st, tripRecord("T1", "France Trip", serverTS))

	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime)}}

	result, err := eng.Sync(context.Background(), testUserID, tsPtr(baseTime.Add(-time.Hour)), batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if got := result.Report.TotalUploaded(); got != 0 {
		t.Errorf("Losing client change should not count as uploaded, got %d", got)
	}
	if got := result.Report.Downloaded[models.EntityTypeTrip]; got != 1 {
		t.Errorf("Expected the winning server version downloaded once, got %d", got)
	}
	if len(result.ServerData.Trips) != 1 || result.ServerData.Trips[0].Name != "France Trip" {
		t.Errorf("Server data should carry the surviving version, got %+v", result.ServerData.Trips)
	}

	if len(result.Report.Conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(result.Report.Conflicts))
	}
	c := result.Report.Conflicts[0]
	if c.EntityType != models.EntityTypeTrip || c.EntityID != "T1" {
		t.Errorf("Conflict should name the record, got %s %s", c.EntityType, c.EntityID)
	}
	if c.Resolution != WinnerServer {
		t.Errorf("Expected server_wins resolution, got %s", c.Resolution)
	}
	if !c.ClientUpdatedAt.Equal(baseTime) || !c.ServerUpdatedAt.Equal(serverTS) {
		t.Error("Conflict should carry both candidate timestamps")
	}

	if !result.NewWatermark.Equal(serverTS) {
		t.Errorf("Watermark should be the server version's timestamp, got %v", result.NewWatermark)
	}

	if stored := st.stored(models.EntityTypeTrip, "T1").(*models.Trip); stored.Name != "France Trip" {
		t.Errorf("Server version should survive, got %q", stored.Name)
	}
}

func TestEngine_ConflictClientNewer(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	seed(st, tripRecord("T1", "France Trip", baseTime))

	clientTS := baseTime.Add(10 * time.Minute)
	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", clientTS)}}

	result, err := eng.Sync(context.Background(), testUserID, tsPtr(baseTime.Add(-time.Hour)), batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if got := result.Report.Uploaded[models.EntityTypeTrip]; got != 1 {
		t.Errorf("Winning client change should count as uploaded, got %d", got)
	}
	if got := result.Report.TotalDownloaded(); got != 0 {
		t.Errorf("The client's own winner should not bounce back, got %d downloads", got)
	}
	if len(result.Report.Conflicts) != 1 || result.Report.Conflicts[0].Resolution != WinnerClient {
		t.Fatalf("Expected one client_wins conflict, got %+v", result.Report.Conflicts)
	}
	if !result.NewWatermark.Equal(clientTS) {
		t.Errorf("Watermark should advance to the winner's timestamp, got %v", result.NewWatermark)
	}

	stored := st.stored(models.EntityTypeTrip, "T1").(*models.Trip)
	if stored.Name != "Paris Trip" {
		t.Errorf("Client version should survive, got %q", stored.Name)
	}
	if !stored.LocalUpdatedAt.Equal(clientTS) {
		t.Errorf("Winner keeps its own timestamp, got %v", stored.LocalUpdatedAt)
	}
}

func TestEngine_EqualTimestampsPreferServer(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	seed(st, tripRecord("T1", "France Trip", baseTime))
	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime)}}

	result, err := eng.Sync(context.Background(), testUserID, tsPtr(baseTime.Add(-time.Hour)), batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if len(result.Report.Conflicts) != 1 || result.Report.Conflicts[0].Resolution != WinnerServer {
		t.Fatalf("Equal timestamps should resolve to the server, got %+v", result.Report.Conflicts)
	}
	if stored := st.stored(models.EntityTypeTrip, "T1").(*models.Trip); stored.Name != "France Trip" {
		t.Errorf("Server version should survive the tie, got %q", stored.Name)
	}
}

func TestEngine_IdenticalUploadIsNoOp(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	seed(st, tripRecord("T1", "Paris Trip", baseTime))

	// Same substantive content, only the client clock moved
	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime.Add(30*time.Minute))}}

	result, err := eng.Sync(context.Background(), testUserID, tsPtr(baseTime.Add(-time.Hour)), batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if result.Report.TotalUploaded() != 0 || len(result.Report.Conflicts) != 0 || len(result.Report.Errors) != 0 {
		t.Errorf("Identical content should be a silent no-op, got %+v", result.Report)
	}
	if result.Report.TotalDownloaded() != 0 || len(result.ServerData.Trips) != 0 {
		t.Error("A no-op record should not bounce back to the client")
	}

	stored := st.stored(models.EntityTypeTrip, "T1")
	if !stored.GetLocalUpdatedAt().Equal(baseTime) {
		t.Errorf("No-op must not rewrite the stored record, timestamp moved to %v", stored.GetLocalUpdatedAt())
	}
	if result.NewWatermark.Before(baseTime) {
		t.Errorf("Watermark went backwards: %v", result.NewWatermark)
	}
}

func TestEngine_TombstonePropagation(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	seed(st, tripRecord("TR1", "Paris Trip", baseTime))
	seed(st, dayRecord("D1", "TR1", baseTime))
	seed(st, activityRecord("A1", "D1", "Louvre visit", baseTime.Add(time.Hour)))

	// Device B deletes the activity
	tombstone := activityRecord("A1", "D1", "Louvre visit", baseTime.Add(2*time.Hour))
	tombstone.IsDeleted = true
	batch := &Batch{Activities: []*models.Activity{tombstone}}

	result, err := eng.Sync(context.Background(), testUserID, tsPtr(baseTime.Add(90*time.Minute)), batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if got := result.Report.Uploaded[models.EntityTypeActivity]; got != 1 {
		t.Errorf("Tombstone upload should count, got %d", got)
	}
	if !st.stored(models.EntityTypeActivity, "A1").Tombstoned() {
		t.Fatal("Stored record should be a tombstone now")
	}

	// Device C syncs later and must learn about the deletion
	result, err = eng.Sync(context.Background(), testUserID, tsPtr(baseTime.Add(90*time.Minute)), nil, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if got := result.Report.TotalDownloaded(); got != 1 {
		t.Fatalf("Expected only the tombstone downloaded, got %d records", got)
	}
	if len(result.ServerData.Activities) != 1 || !result.ServerData.Activities[0].IsDeleted {
		t.Errorf("Download should carry the tombstone, got %+v", result.ServerData.Activities)
	}
	if !result.NewWatermark.Equal(baseTime.Add(2 * time.Hour)) {
		t.Errorf("Watermark should advance to the deletion, got %v", result.NewWatermark)
	}
}

func TestEngine_FirstSyncReturnsEverything(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	seed(st, tripRecord("TR1", "Paris Trip", baseTime))
	seed(st, dayRecord("D1", "TR1", baseTime.Add(1*time.Minute)))
	seed(st, activityRecord("A1", "D1", "Louvre visit", baseTime.Add(2*time.Minute)))
	seed(st, budgetRecord("B1", strPtr("TR1"), nil, baseTime.Add(3*time.Minute)))
	seed(st, noteRecord("N1", nil, strPtr("D1"), "Check opening hours", baseTime.Add(4*time.Minute)))

	// Another user's data must stay invisible
	seedAs(st, "00000000-9999-8888-7777-666655554444", tripRecord("TX", "Foreign Trip", baseTime))

	result, err := eng.Sync(context.Background(), testUserID, nil, nil, "")
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	for kind, want := range map[models.EntityType]int{
		models.EntityTypeTrip:       1,
		models.EntityTypeDay:        1,
		models.EntityTypeActivity:   1,
		models.EntityTypeBudgetItem: 1,
		models.EntityTypeNote:       1,
	} {
		if got := result.Report.Downloaded[kind]; got != want {
			t.Errorf("Expected %d %s downloads, got %d", want, kind, got)
		}
	}
	if len(result.ServerData.Trips) != 1 || result.ServerData.Trips[0].ID != "TR1" {
		t.Errorf("First sync must not leak other users' trips, got %+v", result.ServerData.Trips)
	}
	if result.Report.TotalUploaded() != 0 || len(result.Report.Conflicts) != 0 {
		t.Error("Pull-only first sync should upload nothing and resolve nothing")
	}
	if !result.NewWatermark.Equal(baseTime.Add(4 * time.Minute)) {
		t.Errorf("Watermark should be the newest record returned, got %v", result.NewWatermark)
	}
}

func TestEngine_ReplayIsIdempotent(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime)}}

	first, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("First sync failed: %v", err)
	}
	if first.Report.TotalUploaded() != 1 {
		t.Fatalf("Expected the first pass to store the record, got %d uploads", first.Report.TotalUploaded())
	}

	// The response was lost; the client replays the same batch
	replay, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if replay.Report.TotalUploaded() != 0 || len(replay.Report.Conflicts) != 0 || len(replay.Report.Errors) != 0 {
		t.Errorf("Replay should change nothing, got %+v", replay.Report)
	}
	if replay.Report.TotalDownloaded() != 0 || len(replay.ServerData.Trips) != 0 {
		t.Error("Replay should not bounce the record back")
	}
	if st.stored(models.EntityTypeTrip, "T1") == nil {
		t.Fatal("Record disappeared on replay")
	}
	if replay.NewWatermark.Before(first.NewWatermark) {
		t.Errorf("Replay watermark went backwards: %v < %v", replay.NewWatermark, first.NewWatermark)
	}
}

func TestEngine_TombstoneForUnknownIDIsStored(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	// The server has never seen T9; the delete still has to stick so a
	// late replay of the original create cannot resurrect it silently.
	tombstone := tripRecord("T9", "Cancelled Trip", baseTime)
	tombstone.IsDeleted = true
	batch := &Batch{Trips: []*models.Trip{tombstone}}

	result, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if got := result.Report.Uploaded[models.EntityTypeTrip]; got != 1 {
		t.Errorf("Tombstone insert should count as uploaded, got %d", got)
	}
	stored := st.stored(models.EntityTypeTrip, "T9")
	if stored == nil {
		t.Fatal("Tombstone was not stored")
	}
	if !stored.Tombstoned() {
		t.Error("Stored record should be a tombstone")
	}
}

func TestEngine_Resurrection(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	deleted := tripRecord("T1", "Paris Trip", baseTime)
	deleted.IsDeleted = true
	seed(st, deleted)

	// An offline edit from before the client learned of the deletion
	edit := tripRecord("T1", "Paris Trip, extended", baseTime.Add(time.Hour))
	batch := &Batch{Trips: []*models.Trip{edit}}

	result, err := eng.Sync(context.Background(), testUserID, tsPtr(baseTime.Add(-time.Hour)), batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if len(result.Report.Conflicts) != 1 || result.Report.Conflicts[0].Resolution != WinnerClient {
		t.Fatalf("Expected the live edit to win, got %+v", result.Report.Conflicts)
	}
	stored := st.stored(models.EntityTypeTrip, "T1").(*models.Trip)
	if stored.Tombstoned() {
		t.Error("Record should be live again")
	}
	if stored.Name != "Paris Trip, extended" {
		t.Errorf("Resurrected record should carry the edit, got %q", stored.Name)
	}
}

func TestEngine_ClientWinsKeepsOlderClientVersion(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	seed(st, tripRecord("T1", "France Trip", baseTime.Add(time.Hour)))
	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime)}}

	result, err := eng.Sync(context.Background(), testUserID, tsPtr(baseTime.Add(-time.Hour)), batch, StrategyClientWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if len(result.Report.Conflicts) != 1 || result.Report.Conflicts[0].Resolution != WinnerClient {
		t.Fatalf("client_wins should override the newer server copy, got %+v", result.Report.Conflicts)
	}
	stored := st.stored(models.EntityTypeTrip, "T1").(*models.Trip)
	if stored.Name != "Paris Trip" || !stored.LocalUpdatedAt.Equal(baseTime) {
		t.Errorf("Older client version should be stored verbatim, got %q at %v", stored.Name, stored.LocalUpdatedAt)
	}
}

func TestEngine_ServerWinsDeliversWinnerBelowWatermark(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	seed(st, tripRecord("T1", "France Trip", baseTime))
	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime.Add(time.Hour))}}

	// The client already saw the server version once: its watermark is
	// past the server record's timestamp. The incremental query would
	// skip it, but the losing client still has to converge now.
	wm := baseTime.Add(30 * time.Minute)
	result, err := eng.Sync(context.Background(), testUserID, tsPtr(wm), batch, StrategyServerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if got := result.Report.Downloaded[models.EntityTypeTrip]; got != 1 {
		t.Errorf("Winning server version should be delivered, got %d downloads", got)
	}
	if len(result.ServerData.Trips) != 1 || result.ServerData.Trips[0].Name != "France Trip" {
		t.Errorf("Server data should carry the winner, got %+v", result.ServerData.Trips)
	}
	if result.Report.TotalUploaded() != 0 {
		t.Error("Rejected client change must not count as uploaded")
	}
	if stored := st.stored(models.EntityTypeTrip, "T1").(*models.Trip); stored.Name != "France Trip" {
		t.Errorf("Server version should survive, got %q", stored.Name)
	}
	if !result.NewWatermark.Equal(wm) {
		t.Errorf("Watermark must not regress below the incoming one, got %v", result.NewWatermark)
	}
}

func TestEngine_EchoSuppression(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	seed(st, tripRecord("T0", "Existing Trip", baseTime.Add(5*time.Minute)))
	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "New Trip", baseTime.Add(10*time.Minute))}}

	result, err := eng.Sync(context.Background(), testUserID, tsPtr(baseTime), batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if got := result.Report.Uploaded[models.EntityTypeTrip]; got != 1 {
		t.Errorf("Expected 1 upload, got %d", got)
	}
	if len(result.ServerData.Trips) != 1 || result.ServerData.Trips[0].ID != "T0" {
		t.Errorf("Download set should hold only the other record, got %+v", result.ServerData.Trips)
	}
	if !result.NewWatermark.Equal(baseTime.Add(10 * time.Minute)) {
		t.Errorf("Watermark should cover both sides, got %v", result.NewWatermark)
	}
}

func TestEngine_ValidationErrors(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	seed(st, tripRecord("TR1", "Rome Trip", baseTime))

	ts := baseTime.Add(time.Minute)
	batch := &Batch{
		Days: []*models.Day{
			dayRecord("D1", "TR1", ts),     // valid
			dayRecord("D2", "ghost", ts),   // parent does not exist
		},
		Activities: []*models.Activity{
			activityRecord("A1", "", "Louvre visit", ts), // no parent reference
		},
		BudgetItems: []*models.BudgetItem{
			budgetRecord("B1", strPtr("TR1"), strPtr("D1"), ts), // both parents set
			budgetRecord("TR1", strPtr("TR1"), nil, ts),         // id collides with a trip
		},
		Notes: []*models.Note{
			noteRecord("N1", nil, nil, "Hotel booking code", ts), // no parent at all
		},
	}

	result, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Per-record problems must not abort the cycle: %v", err)
	}

	if got := result.Report.Uploaded[models.EntityTypeDay]; got != 1 {
		t.Errorf("The valid day should still be applied, got %d day uploads", got)
	}
	if st.stored(models.EntityTypeDay, "D1") == nil {
		t.Error("Valid record was not stored")
	}

	wants := map[string]string{
		"D2":  "does not exist",
		"A1":  `"required"`,
		"B1":  `"excluded_with"`,
		"TR1": "already belongs to a trip",
		"N1":  `"required_without"`,
	}
	for _, re := range result.Report.Errors {
		want, ok := wants[re.EntityID]
		if !ok {
			t.Errorf("Unexpected rejection of %s %s: %s", re.EntityType, re.EntityID, re.Error)
			continue
		}
		if !strings.Contains(re.Error, want) {
			t.Errorf("Rejection of %s should mention %s, got %q", re.EntityID, want, re.Error)
		}
		delete(wants, re.EntityID)
	}
	for id := range wants {
		t.Errorf("Expected a rejection for %s, got none", id)
	}
}

func TestEngine_StoreFailureAbortsCycle(t *testing.T) {
	st := newMemStore()
	st.failAll = errors.New("connection refused")
	eng := newTestEngine(st)

	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime)}}

	result, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err == nil {
		t.Fatal("Expected the cycle to abort on store failure")
	}
	if result != nil {
		t.Error("A failed cycle should return no partial result")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error should surface the cause, got %v", err)
	}
}

func TestEngine_AbortKeepsCommittedRecords(t *testing.T) {
	st := newMemStore()
	st.failChangedSince = errors.New("read replica lagging")
	eng := newTestEngine(st)

	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime)}}

	result, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err == nil || result != nil {
		t.Fatal("Expected the download phase failure to abort the cycle")
	}

	// The upload committed before the abort and must survive
	if st.stored(models.EntityTypeTrip, "T1") == nil {
		t.Fatal("Committed upload should survive an aborted cycle")
	}

	// The client retries with its old watermark; the replay is a no-op
	st.failChangedSince = nil
	retry, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if retry.Report.TotalUploaded() != 0 || len(retry.Report.Conflicts) != 0 {
		t.Errorf("Retry should be a clean replay, got %+v", retry.Report)
	}
}

func TestEngine_ContentionRetries(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	seed(st, tripRecord("T1", "France Trip", baseTime))

	// Another device slips in an older competing write between our read
	// and our compare-and-swap.
	st.beforeUpdate = func() {
		racer := tripRecord("T1", "Racer Trip", baseTime.Add(time.Hour))
		racer.SetUserID(testUserID)
		st.put(racer)
	}

	clientTS := baseTime.Add(2 * time.Hour)
	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", clientTS)}}

	result, err := eng.Sync(context.Background(), testUserID, tsPtr(baseTime.Add(-time.Hour)), batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if got := result.Report.Uploaded[models.EntityTypeTrip]; got != 1 {
		t.Errorf("Retry should eventually commit the client version, got %d uploads", got)
	}
	if len(result.Report.Conflicts) != 1 {
		t.Fatalf("Only the final resolution should be reported, got %d conflicts", len(result.Report.Conflicts))
	}
	if !result.Report.Conflicts[0].ServerUpdatedAt.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("Conflict should describe the state the final resolution saw, got %v", result.Report.Conflicts[0].ServerUpdatedAt)
	}
	stored := st.stored(models.EntityTypeTrip, "T1").(*models.Trip)
	if stored.Name != "Paris Trip" || !stored.LocalUpdatedAt.Equal(clientTS) {
		t.Errorf("Client version should win the retry, got %q at %v", stored.Name, stored.LocalUpdatedAt)
	}
}

func TestEngine_ContentionGivesUp(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	seed(st, tripRecord("T1", "France Trip", baseTime))

	// A writer that always sneaks in between read and compare-and-swap,
	// staying older than the client so the engine keeps retrying.
	attempts := 0
	var contend func()
	contend = func() {
		attempts++
		racer := tripRecord("T1", fmt.Sprintf("Racer %d", attempts), baseTime.Add(time.Duration(attempts)*time.Minute))
		racer.SetUserID(testUserID)
		st.put(racer)
		st.beforeUpdate = contend
	}
	st.beforeUpdate = contend

	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime.Add(10*time.Hour))}}

	result, err := eng.Sync(context.Background(), testUserID, tsPtr(baseTime.Add(-time.Hour)), batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Contention on one record must not abort the cycle: %v", err)
	}

	if attempts != 4 {
		t.Errorf("Expected 1 attempt plus 3 retries, got %d", attempts)
	}
	if len(result.Report.Errors) != 1 || !strings.Contains(result.Report.Errors[0].Error, "gave up") {
		t.Fatalf("Expected a give-up error for the record, got %+v", result.Report.Errors)
	}
	if result.Report.TotalUploaded() != 0 || len(result.Report.Conflicts) != 0 {
		t.Error("An abandoned record should not count as uploaded or resolved")
	}

	// The client still receives the current server state for the record
	if len(result.ServerData.Trips) != 1 || result.ServerData.Trips[0].Name != "Racer 4" {
		t.Errorf("Download should carry the latest server state, got %+v", result.ServerData.Trips)
	}
}

func TestEngine_InsertRaceResolves(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	// Another device creates the same id between our lookup and insert
	st.beforeInsert = func() {
		racer := tripRecord("T1", "Racer Trip", baseTime.Add(time.Hour))
		racer.SetUserID(testUserID)
		st.put(racer)
	}

	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime)}}

	result, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if result.Report.TotalUploaded() != 0 {
		t.Error("Losing the insert race should not count as uploaded")
	}
	if len(result.Report.Conflicts) != 1 || result.Report.Conflicts[0].Resolution != WinnerServer {
		t.Fatalf("The race should resolve as a conflict, got %+v", result.Report.Conflicts)
	}
	if len(result.ServerData.Trips) != 1 || result.ServerData.Trips[0].Name != "Racer Trip" {
		t.Errorf("Client should receive the surviving version, got %+v", result.ServerData.Trips)
	}
	if stored := st.stored(models.EntityTypeTrip, "T1").(*models.Trip); stored.Name != "Racer Trip" {
		t.Errorf("Winner of the race should survive, got %q", stored.Name)
	}
}

func TestEngine_WatermarkNeverRegresses(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	seed(st, tripRecord("T0", "Old Trip", baseTime))

	// A watermark from the future (client clock skew): nothing matches,
	// and the new watermark must not fall behind it.
	future := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	result, err := eng.Sync(context.Background(), testUserID, tsPtr(future), nil, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if result.Report.TotalDownloaded() != 0 {
		t.Errorf("Nothing is newer than the watermark, got %d downloads", result.Report.TotalDownloaded())
	}
	if !result.NewWatermark.Equal(future) {
		t.Errorf("Watermark regressed: got %v, want %v", result.NewWatermark, future)
	}
}

func TestEngine_EmptyCycleUsesProcessingInstant(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	before := time.Now().UTC()
	result, err := eng.Sync(context.Background(), testUserID, nil, nil, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	after := time.Now().UTC()

	if result.NewWatermark.Before(before) || result.NewWatermark.After(after) {
		t.Errorf("Empty cycle should stamp the processing instant, got %v", result.NewWatermark)
	}
}

func TestEngine_UnknownStrategyRejected(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime)}}

	result, err := eng.Sync(context.Background(), testUserID, nil, batch, Strategy("manual"))
	if err == nil || result != nil {
		t.Fatal("Unknown strategy should reject the whole request")
	}
	if !strings.Contains(err.Error(), "unknown conflict resolution strategy") {
		t.Errorf("Error should name the problem, got %v", err)
	}
	if st.stored(models.EntityTypeTrip, "T1") != nil {
		t.Error("Nothing should be applied under an unknown strategy")
	}
}

func TestEngine_BatchLimitRejected(t *testing.T) {
	st := newMemStore()
	cfg := testConfig()
	cfg.MaxBatchRecords = 2
	eng := NewEngine(st, cfg)

	batch := &Batch{Trips: []*models.Trip{
		tripRecord("T1", "Trip 1", baseTime),
		tripRecord("T2", "Trip 2", baseTime),
		tripRecord("T3", "Trip 3", baseTime),
	}}

	result, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err == nil || result != nil {
		t.Fatal("Oversized batch should be rejected")
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("Error should mention the limit, got %v", err)
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := &Batch{Trips: []*models.Trip{tripRecord("T1", "Paris Trip", baseTime)}}
	result, err := eng.Sync(ctx, testUserID, nil, batch, StrategyNewerWins)
	if err == nil || result != nil {
		t.Fatal("Cancelled context should abort the cycle")
	}
}

func TestEngine_ParentsBeforeChildrenInOneBatch(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	// A whole new trip arrives in one batch: the trip, its day, the
	// day's activity. Kind ordering makes the references resolve.
	batch := &Batch{
		Trips:      []*models.Trip{tripRecord("TR1", "Rome Trip", baseTime)},
		Days:       []*models.Day{dayRecord("D1", "TR1", baseTime)},
		Activities: []*models.Activity{activityRecord("A1", "D1", "Colosseum", baseTime)},
	}

	result, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if len(result.Report.Errors) != 0 {
		t.Fatalf("All references resolve within the batch, got %+v", result.Report.Errors)
	}
	if got := result.Report.TotalUploaded(); got != 3 {
		t.Errorf("Expected 3 uploads, got %d", got)
	}
	if st.stored(models.EntityTypeActivity, "A1") == nil {
		t.Error("Leaf record was not stored")
	}
}

func TestEngine_TombstonedParentAccepted(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	deletedTrip := tripRecord("TR1", "Paris Trip", baseTime)
	deletedTrip.IsDeleted = true
	seed(st, deletedTrip)

	// The parent is deleted but may yet be resurrected; the child is
	// not the place to enforce cleanup.
	batch := &Batch{Days: []*models.Day{dayRecord("D1", "TR1", baseTime.Add(time.Minute))}}

	result, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(result.Report.Errors) != 0 {
		t.Fatalf("Tombstoned parent should still resolve, got %+v", result.Report.Errors)
	}
	if got := result.Report.Uploaded[models.EntityTypeDay]; got != 1 {
		t.Errorf("Expected the day applied, got %d uploads", got)
	}
}

func TestEngine_ForeignParentRejected(t *testing.T) {
	st := newMemStore()
	eng := newTestEngine(st)

	// The referenced trip exists, but belongs to somebody else
	seedAs(st, "00000000-9999-8888-7777-666655554444", tripRecord("TRX", "Foreign Trip", baseTime))

	batch := &Batch{Days: []*models.Day{dayRecord("D1", "TRX", baseTime.Add(time.Minute))}}

	result, err := eng.Sync(context.Background(), testUserID, nil, batch, StrategyNewerWins)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if len(result.Report.Errors) != 1 || !strings.Contains(result.Report.Errors[0].Error, "does not exist") {
		t.Fatalf("Foreign parent must look nonexistent, got %+v", result.Report.Errors)
	}
	if result.Report.TotalUploaded() != 0 {
		t.Error("The orphan record must not be applied")
	}
	if st.stored(models.EntityTypeDay, "D1") != nil {
		t.Error("Rejected record must not be stored")
	}
}
