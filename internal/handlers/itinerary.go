package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/ai"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
	"gorm.io/gorm"
)

// GenerateItineraryRequest asks for a day-by-day plan of one trip
type GenerateItineraryRequest struct {
	TripID      string   `json:"trip_id" validate:"required"`
	Interests   []string `json:"interests"`
	BudgetLevel string   `json:"budget_level"`
	Pace        string   `json:"pace"`
}

// RefineItineraryRequest reworks an existing plan with one instruction
type RefineItineraryRequest struct {
	TripID      string `json:"trip_id" validate:"required"`
	Instruction string `json:"instruction" validate:"required"`
}

// plannerKnobs merges the planning preferences stored on the trip with
// the ones sent in the request. Request fields win; the stored
// preferences fill whatever the request leaves out.
func plannerKnobs(trip *models.Trip, genReq GenerateItineraryRequest) ai.ItineraryRequest {
	var knobs ai.ItineraryRequest
	if len(trip.Preferences) > 0 {
		// Stored preferences use the same shape as the request knobs.
		// A malformed blob just means no defaults.
		_ = json.Unmarshal(trip.Preferences, &knobs)
	}
	if len(genReq.Interests) > 0 {
		knobs.Interests = genReq.Interests
	}
	if genReq.BudgetLevel != "" {
		knobs.BudgetLevel = genReq.BudgetLevel
	}
	if genReq.Pace != "" {
		knobs.Pace = genReq.Pace
	}
	return knobs
}

// generateItinerary builds a full day-by-day plan for an unplanned
// trip and persists it. The new records reach the user's devices on
// their next sync like any other server-side change.
func (r *Router) generateItinerary(w http.ResponseWriter, req *http.Request) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}
	if r.planner == nil {
		respondError(w, http.StatusServiceUnavailable, "AI itinerary generation is not configured")
		return
	}

	var genReq GenerateItineraryRequest
	if err := json.NewDecoder(req.Body).Decode(&genReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := r.validate.Struct(genReq); err != nil {
		respondError(w, http.StatusBadRequest, "trip_id is required")
		return
	}

	var trip models.Trip
	if err := r.db.WithContext(req.Context()).
		Where("id = ? AND user_id = ? AND is_deleted = ?", genReq.TripID, userID, false).
		First(&trip).Error; err != nil {
		respondError(w, http.StatusNotFound, "Trip not found")
		return
	}

	var existing int64
	if err := r.db.WithContext(req.Context()).Model(&models.Day{}).
		Where("trip_id = ? AND user_id = ? AND is_deleted = ?", trip.ID, userID, false).
		Count(&existing).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to inspect trip")
		return
	}
	if existing > 0 {
		respondError(w, http.StatusConflict, "Trip already has a day-by-day plan; use refine instead")
		return
	}

	days, activities, err := r.planner.PlanTrip(req.Context(), &trip, plannerKnobs(&trip, genReq))
	if err != nil {
		respondError(w, http.StatusBadGateway, "The itinerary service returned an unusable plan; try again")
		return
	}

	err = r.db.WithContext(req.Context()).Transaction(func(tx *gorm.DB) error {
		if len(days) > 0 {
			if err := tx.Create(days).Error; err != nil {
				return err
			}
		}
		if len(activities) > 0 {
			if err := tx.Create(activities).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save generated itinerary")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"trip_id":    trip.ID,
		"days":       days,
		"activities": activities,
	})
}

// refineItinerary replaces a trip's current plan with a reworked one.
// The old days and activities become tombstones in the same
// transaction that inserts their replacements, so devices drop and
// re-add the plan in a single sync cycle.
func (r *Router) refineItinerary(w http.ResponseWriter, req *http.Request) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}
	if r.planner == nil {
		respondError(w, http.StatusServiceUnavailable, "AI itinerary generation is not configured")
		return
	}

	var refReq RefineItineraryRequest
	if err := json.NewDecoder(req.Body).Decode(&refReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := r.validate.Struct(refReq); err != nil {
		respondError(w, http.StatusBadRequest, "trip_id and instruction are required")
		return
	}

	var trip models.Trip
	if err := r.db.WithContext(req.Context()).
		Where("id = ? AND user_id = ? AND is_deleted = ?", refReq.TripID, userID, false).
		First(&trip).Error; err != nil {
		respondError(w, http.StatusNotFound, "Trip not found")
		return
	}

	var oldDays []*models.Day
	if err := r.db.WithContext(req.Context()).
		Where("trip_id = ? AND user_id = ? AND is_deleted = ?", trip.ID, userID, false).
		Order("sort_order, date").
		Find(&oldDays).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load current plan")
		return
	}
	if len(oldDays) == 0 {
		respondError(w, http.StatusConflict, "Trip has no plan to refine; generate one first")
		return
	}

	dayIDs := make([]string, len(oldDays))
	for i, day := range oldDays {
		dayIDs[i] = day.ID
	}

	var oldActivities []*models.Activity
	if err := r.db.WithContext(req.Context()).
		Where("user_id = ? AND is_deleted = ? AND day_id IN (?)", userID, false, dayIDs).
		Order("sort_order, start_time").
		Find(&oldActivities).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load current plan")
		return
	}

	days, activities, err := r.planner.RefineTrip(req.Context(), &trip, oldDays, oldActivities, refReq.Instruction)
	if err != nil {
		respondError(w, http.StatusBadGateway, "The itinerary service returned an unusable plan; try again")
		return
	}

	now := time.Now().UTC()
	tombstone := map[string]interface{}{"is_deleted": true, "local_updated_at": now}

	err = r.db.WithContext(req.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Activity{}).
			Where("user_id = ? AND is_deleted = ? AND day_id IN (?)", userID, false, dayIDs).
			Updates(tombstone).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Day{}).
			Where("trip_id = ? AND user_id = ? AND is_deleted = ?", trip.ID, userID, false).
			Updates(tombstone).Error; err != nil {
			return err
		}
		if len(days) > 0 {
			if err := tx.Create(days).Error; err != nil {
				return err
			}
		}
		if len(activities) > 0 {
			if err := tx.Create(activities).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save refined itinerary")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trip_id":       trip.ID,
		"replaced_days": len(oldDays),
		"days":          days,
		"activities":    activities,
	})
}
