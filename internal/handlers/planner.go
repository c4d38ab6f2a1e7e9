package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
	"github.com/gorilla/mux"
)

// Day, activity, budget item and note endpoints. All of them go
// through the shared record helpers in trips.go, so every write is
// stamped and visible to the next sync cycle.

func (r *Router) createDay(w http.ResponseWriter, req *http.Request) {
	var day models.Day
	if err := json.NewDecoder(req.Body).Decode(&day); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	r.saveNewRecord(w, req, &day)
}

func (r *Router) updateDay(w http.ResponseWriter, req *http.Request) {
	var day models.Day
	r.updateRecord(w, req, &day)
}

func (r *Router) deleteDay(w http.ResponseWriter, req *http.Request) {
	var day models.Day
	r.deleteRecord(w, req, &day)
}

// listActivities returns a day's live activities in schedule order
func (r *Router) listActivities(w http.ResponseWriter, req *http.Request) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}
	dayID := mux.Vars(req)["id"]

	var activities []models.Activity
	if err := r.db.WithContext(req.Context()).
		Where("day_id = ? AND user_id = ? AND is_deleted = ?", dayID, userID, false).
		Order("sort_order, start_time").
		Find(&activities).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch activities")
		return
	}

	respondJSON(w, http.StatusOK, activities)
}

func (r *Router) createActivity(w http.ResponseWriter, req *http.Request) {
	var act models.Activity
	if err := json.NewDecoder(req.Body).Decode(&act); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	r.saveNewRecord(w, req, &act)
}

func (r *Router) updateActivity(w http.ResponseWriter, req *http.Request) {
	var act models.Activity
	r.updateRecord(w, req, &act)
}

func (r *Router) deleteActivity(w http.ResponseWriter, req *http.Request) {
	var act models.Activity
	r.deleteRecord(w, req, &act)
}

func (r *Router) createBudgetItem(w http.ResponseWriter, req *http.Request) {
	var item models.BudgetItem
	if err := json.NewDecoder(req.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	r.saveNewRecord(w, req, &item)
}

func (r *Router) updateBudgetItem(w http.ResponseWriter, req *http.Request) {
	var item models.BudgetItem
	r.updateRecord(w, req, &item)
}

func (r *Router) deleteBudgetItem(w http.ResponseWriter, req *http.Request) {
	var item models.BudgetItem
	r.deleteRecord(w, req, &item)
}

func (r *Router) createNote(w http.ResponseWriter, req *http.Request) {
	var note models.Note
	if err := json.NewDecoder(req.Body).Decode(&note); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	r.saveNewRecord(w, req, &note)
}

func (r *Router) updateNote(w http.ResponseWriter, req *http.Request) {
	var note models.Note
	r.updateRecord(w, req, &note)
}

func (r *Router) deleteNote(w http.ResponseWriter, req *http.Request) {
	var note models.Note
	r.deleteRecord(w, req, &note)
}
