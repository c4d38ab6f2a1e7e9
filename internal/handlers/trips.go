package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/middleware"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/sync"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// mutableRecord is what the write helpers need beyond the sync
// interface: the touch and soft-delete mutators from Syncable.
type mutableRecord interface {
	models.SyncableEntity
	Touch(now time.Time)
	MarkDeleted(now time.Time)
}

// currentUser pulls the authenticated user id injected by the auth
// middleware and answers 401 itself when it is missing.
func currentUser(w http.ResponseWriter, req *http.Request) (string, bool) {
	userID, ok := middleware.UserID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return userID, ok
}

// listTrips returns the user's live trips
func (r *Router) listTrips(w http.ResponseWriter, req *http.Request) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}

	var trips []models.Trip
	if err := r.db.WithContext(req.Context()).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Order("start_date, created_at").
		Find(&trips).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch trips")
		return
	}

	respondJSON(w, http.StatusOK, trips)
}

// getTrip returns a single trip, tombstoned or not
func (r *Router) getTrip(w http.ResponseWriter, req *http.Request) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}
	id := mux.Vars(req)["id"]

	var trip models.Trip
	if err := r.db.WithContext(req.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(&trip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Trip not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load trip")
		return
	}

	respondJSON(w, http.StatusOK, trip)
}

// createTrip creates a trip owned by the current user
func (r *Router) createTrip(w http.ResponseWriter, req *http.Request) {
	var trip models.Trip
	if err := json.NewDecoder(req.Body).Decode(&trip); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	r.saveNewRecord(w, req, &trip)
}

// updateTrip applies a partial update to a trip
func (r *Router) updateTrip(w http.ResponseWriter, req *http.Request) {
	var trip models.Trip
	r.updateRecord(w, req, &trip)
}

// deleteTrip tombstones a trip. Its days and children stay as they
// are; clients tombstone those themselves when the user deletes the
// whole trip in the app.
func (r *Router) deleteTrip(w http.ResponseWriter, req *http.Request) {
	var trip models.Trip
	r.deleteRecord(w, req, &trip)
}

// listDays returns a trip's live days in itinerary order
func (r *Router) listDays(w http.ResponseWriter, req *http.Request) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}
	tripID := mux.Vars(req)["id"]

	var days []models.Day
	if err := r.db.WithContext(req.Context()).
		Where("trip_id = ? AND user_id = ? AND is_deleted = ?", tripID, userID, false).
		Order("sort_order, date").
		Find(&days).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch days")
		return
	}

	respondJSON(w, http.StatusOK, days)
}

// listBudgetItems returns every live budget item of a trip, both
// trip-level costs and those attached to one of its days.
func (r *Router) listBudgetItems(w http.ResponseWriter, req *http.Request) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}
	tripID := mux.Vars(req)["id"]

	dayIDs := r.db.Model(&models.Day{}).Select("id").Where("trip_id = ? AND user_id = ?", tripID, userID)

	var items []models.BudgetItem
	if err := r.db.WithContext(req.Context()).
		Where("user_id = ? AND is_deleted = ? AND (trip_id = ? OR day_id IN (?))", userID, false, tripID, dayIDs).
		Order("created_at").
		Find(&items).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch budget items")
		return
	}

	respondJSON(w, http.StatusOK, items)
}

// listNotes returns every live note of a trip, trip-level and
// day-level alike. Pinned notes come first.
func (r *Router) listNotes(w http.ResponseWriter, req *http.Request) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}
	tripID := mux.Vars(req)["id"]

	dayIDs := r.db.Model(&models.Day{}).Select("id").Where("trip_id = ? AND user_id = ?", tripID, userID)

	var notes []models.Note
	if err := r.db.WithContext(req.Context()).
		Where("user_id = ? AND is_deleted = ? AND (trip_id = ? OR day_id IN (?))", userID, false, tripID, dayIDs).
		Order("pinned DESC, created_at").
		Find(&notes).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch notes")
		return
	}

	respondJSON(w, http.StatusOK, notes)
}

// saveNewRecord persists an already-decoded record: stamp owner and
// modification time, enforce the same identity rules the sync engine
// applies, insert. Records created here reach every device on its
// next sync.
func (r *Router) saveNewRecord(w http.ResponseWriter, req *http.Request, rec mutableRecord) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}

	clientChoseID := rec.GetEntityID() != ""
	if !clientChoseID {
		r.setRecordID(rec, uuid.NewString())
	}
	rec.SetUserID(userID)
	rec.Touch(time.Now().UTC())

	if err := r.validate.Struct(rec); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %v", rec.GetEntityType(), err))
		return
	}

	if clientChoseID {
		otherKind, used, err := r.store.IDUsedByOtherKind(req.Context(), userID, rec.GetEntityType(), rec.GetEntityID())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to check record id")
			return
		}
		if used {
			respondError(w, http.StatusConflict, fmt.Sprintf("Id already belongs to a %s", otherKind))
			return
		}
	}

	if err := r.checkParent(req.Context(), userID, rec); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.db.WithContext(req.Context()).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(w, http.StatusConflict, fmt.Sprintf("A %s with this id already exists", rec.GetEntityType()))
			return
		}
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create %s", rec.GetEntityType()))
		return
	}

	respondJSON(w, http.StatusCreated, rec)
}

// updateRecord loads one record, folds the request body over it and
// saves. Fields absent from the body keep their stored values, so
// clients can send partial updates.
func (r *Router) updateRecord(w http.ResponseWriter, req *http.Request, rec mutableRecord) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}
	id := mux.Vars(req)["id"]

	if err := r.db.WithContext(req.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("%s not found", rec.GetEntityType()))
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load record")
		return
	}

	if err := json.NewDecoder(req.Body).Decode(rec); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if rec.GetEntityID() != id {
		respondError(w, http.StatusBadRequest, "Record id cannot be changed")
		return
	}
	rec.SetUserID(userID)
	rec.Touch(time.Now().UTC())

	if err := r.validate.Struct(rec); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %v", rec.GetEntityType(), err))
		return
	}
	if err := r.checkParent(req.Context(), userID, rec); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.db.WithContext(req.Context()).Save(rec).Error; err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to update %s", rec.GetEntityType()))
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// deleteRecord tombstones one record. Deletion through this API is
// always soft; the tombstone flows to every device on its next sync.
func (r *Router) deleteRecord(w http.ResponseWriter, req *http.Request, rec mutableRecord) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}
	id := mux.Vars(req)["id"]

	if err := r.db.WithContext(req.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("%s not found", rec.GetEntityType()))
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load record")
		return
	}

	rec.MarkDeleted(time.Now().UTC())
	if err := r.db.WithContext(req.Context()).Save(rec).Error; err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete %s", rec.GetEntityType()))
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// checkParent verifies a child's parent reference exists and belongs
// to the same user, mirroring the identity rules the sync engine
// enforces. Tombstoned parents count as existing.
func (r *Router) checkParent(ctx context.Context, userID string, rec models.SyncableEntity) error {
	child, ok := rec.(models.ChildRecord)
	if !ok {
		return nil
	}

	parentKind, parentID := child.ParentRef()
	if parentID == "" {
		return fmt.Errorf("missing %s reference", parentKind)
	}
	if _, err := r.store.Get(ctx, userID, parentKind, parentID); err != nil {
		if errors.Is(err, sync.ErrNotFound) {
			return fmt.Errorf("%s %s does not exist", parentKind, parentID)
		}
		return err
	}
	return nil
}

// setRecordID fills a server-generated id on a freshly created record.
func (r *Router) setRecordID(rec models.SyncableEntity, id string) {
	switch v := rec.(type) {
	case *models.Trip:
		v.ID = id
	case *models.Day:
		v.ID = id
	case *models.Activity:
		v.ID = id
	case *models.BudgetItem:
		v.ID = id
	case *models.Note:
		v.ID = id
	}
}
