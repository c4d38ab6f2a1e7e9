package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/middleware"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/sync"
	"gorm.io/datatypes"
)

// handleSync runs one sync cycle for the authenticated user: apply the
// uploaded batch, resolve conflicts, return the download set and the
// next watermark.
func (r *Router) handleSync(w http.ResponseWriter, req *http.Request) {
	userID, ok := middleware.UserID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var syncReq sync.Request
	if err := json.NewDecoder(req.Body).Decode(&syncReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	strategy := sync.Strategy(syncReq.ConflictResolution)
	if strategy == "" {
		strategy = sync.Strategy(r.syncCfg.DefaultStrategy)
	}
	if !sync.ValidStrategy(strategy) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Unknown conflict resolution strategy %q", syncReq.ConflictResolution))
		return
	}
	if max := r.syncCfg.MaxBatchRecords; max > 0 && syncReq.Size() > max {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Batch of %d records exceeds the limit of %d", syncReq.Size(), max))
		return
	}

	batch, decodeErrs := syncReq.DecodeBatch()
	deviceID := req.Header.Get("X-Device-ID")
	started := time.Now().UTC()

	result, err := r.engine.Sync(req.Context(), userID, syncReq.LastSyncAt, batch, strategy)
	if err != nil {
		r.writeSyncLog(userID, deviceID, strategy, started, nil, err)
		respondError(w, http.StatusServiceUnavailable, "Sync is temporarily unavailable; retry with the same batch")
		return
	}

	r.touchDevice(req.Context(), userID, deviceID, result.NewWatermark)
	r.writeSyncLog(userID, deviceID, strategy, started, result, nil)

	respondJSON(w, http.StatusOK, sync.BuildResponse(result, decodeErrs))
}

// syncStatus reports the user's recent sync cycles and how many live
// records of each kind the server holds.
func (r *Router) syncStatus(w http.ResponseWriter, req *http.Request) {
	userID, ok := middleware.UserID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var history []models.SyncLog
	if err := r.db.WithContext(req.Context()).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(10).
		Find(&history).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load sync history")
		return
	}

	records := make(map[string]int64, len(models.SyncKindOrder))
	for _, kind := range models.SyncKindOrder {
		var n int64
		if err := r.db.WithContext(req.Context()).
			Model(kindModel(kind)).
			Where("user_id = ? AND is_deleted = ?", userID, false).
			Count(&n).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to count records")
			return
		}
		records[string(kind)] = n
	}

	var lastSync interface{}
	if len(history) > 0 {
		lastSync = history[0]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"last_sync": lastSync,
		"history":   history,
		"records":   records,
	})
}

// touchDevice refreshes the calling device's last-seen markers. Best
// effort: a sync cycle never fails because of this row.
func (r *Router) touchDevice(ctx context.Context, userID, deviceID string, syncedAt time.Time) {
	if deviceID == "" {
		return
	}

	res := r.db.WithContext(ctx).Model(&models.RegisteredDevice{}).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Updates(map[string]interface{}{
			"last_seen_at": syncedAt,
			"last_sync_at": syncedAt,
		})
	if res.Error != nil {
		log.Printf("⚠️ Device touch failed for %s: %v", deviceID, res.Error)
		return
	}
	if res.RowsAffected > 0 {
		return
	}

	// First time this install shows up: register it with what we know.
	device := models.RegisteredDevice{
		UserID:     userID,
		DeviceID:   deviceID,
		LastSeenAt: syncedAt,
		LastSyncAt: &syncedAt,
	}
	if err := r.db.WithContext(ctx).Create(&device).Error; err != nil {
		log.Printf("⚠️ Device auto-register failed for %s: %v", deviceID, err)
	}
}

// writeSyncLog records one cycle, successful or not, for the status
// endpoint and for operators.
func (r *Router) writeSyncLog(userID, deviceID string, strategy sync.Strategy, started time.Time, result *sync.Result, syncErr error) {
	entry := models.SyncLog{
		UserID:    userID,
		DeviceID:  deviceID,
		Strategy:  string(strategy),
		Status:    "success",
		StartedAt: started,
		Duration:  int(time.Since(started).Milliseconds()),
	}

	if syncErr != nil {
		entry.Status = "error"
		entry.ErrorDetail = syncErr.Error()
	}
	if result != nil {
		rep := result.Report
		entry.Uploaded = rep.TotalUploaded()
		entry.Downloaded = rep.TotalDownloaded()
		entry.Conflicts = rep.ConflictsResolved()
		entry.Errors = len(rep.Errors)
		if detail, err := json.Marshal(perKindCounts(rep)); err == nil {
			entry.Details = datatypes.JSON(detail)
		}
	}

	if err := r.db.Create(&entry).Error; err != nil {
		log.Printf("⚠️ Sync log write failed for user %s: %v", userID, err)
	}
}

// perKindCounts flattens the report counters into the log row's JSONB
// detail column.
func perKindCounts(rep *sync.Report) map[string]map[string]int {
	counts := make(map[string]map[string]int, len(models.SyncKindOrder))
	for _, kind := range models.SyncKindOrder {
		counts[string(kind)] = map[string]int{
			"uploaded":   rep.Uploaded[kind],
			"downloaded": rep.Downloaded[kind],
		}
	}
	return counts
}

// kindModel maps an entity kind to an empty record for GORM queries.
func kindModel(kind models.EntityType) interface{} {
	switch kind {
	case models.EntityTypeTrip:
		return &models.Trip{}
	case models.EntityTypeDay:
		return &models.Day{}
	case models.EntityTypeActivity:
		return &models.Activity{}
	case models.EntityTypeBudgetItem:
		return &models.BudgetItem{}
	case models.EntityTypeNote:
		return &models.Note{}
	}
	return nil
}
