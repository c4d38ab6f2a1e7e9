package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/services/export"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// exportTripPDF renders a trip's itinerary as a PDF. By default the
// document streams straight back; with ?upload=true it is pushed to
// object storage instead and a presigned download link is returned.
func (r *Router) exportTripPDF(w http.ResponseWriter, req *http.Request) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}
	tripID := mux.Vars(req)["id"]

	doc, err := r.loadTripDocument(req.Context(), userID, tripID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Trip not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load trip")
		return
	}

	pdfBytes, err := export.GenerateTripPDF(doc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate PDF: %v", err))
		return
	}

	now := time.Now().UTC()

	if req.URL.Query().Get("upload") == "true" {
		if !r.uploader.Enabled() {
			respondError(w, http.StatusServiceUnavailable, "Export uploads are not configured")
			return
		}

		key := export.StorageKey(userID, tripID)
		if err := r.uploader.Upload(req.Context(), key, pdfBytes); err != nil {
			respondError(w, http.StatusBadGateway, "Failed to upload export")
			return
		}
		url, err := r.uploader.PresignDownload(req.Context(), key)
		if err != nil {
			respondError(w, http.StatusBadGateway, "Failed to create download link")
			return
		}

		expiry := r.cfg.Export.PresignExpiryMin
		if expiry <= 0 {
			expiry = 15
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"url":        url,
			"key":        key,
			"expires_at": now.Add(time.Duration(expiry) * time.Minute),
		})
		return
	}

	// Set headers for download
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(doc.Trip, now)))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))

	w.Write(pdfBytes)
}

// loadTripDocument assembles the live records the PDF renders: the
// trip, its days in itinerary order, activities grouped per day, and
// the budget items and notes of the whole trip.
func (r *Router) loadTripDocument(ctx context.Context, userID, tripID string) (export.TripDocument, error) {
	var doc export.TripDocument

	var trip models.Trip
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_deleted = ?", tripID, userID, false).
		First(&trip).Error; err != nil {
		return doc, err
	}

	var days []*models.Day
	if err := r.db.WithContext(ctx).
		Where("trip_id = ? AND user_id = ? AND is_deleted = ?", tripID, userID, false).
		Order("sort_order, date").
		Find(&days).Error; err != nil {
		return doc, err
	}

	byDay := make(map[string][]*models.Activity, len(days))
	dayIDs := make([]string, len(days))
	for i, day := range days {
		dayIDs[i] = day.ID
	}
	if len(dayIDs) > 0 {
		var activities []*models.Activity
		if err := r.db.WithContext(ctx).
			Where("user_id = ? AND is_deleted = ? AND day_id IN (?)", userID, false, dayIDs).
			Order("sort_order, start_time").
			Find(&activities).Error; err != nil {
			return doc, err
		}
		for _, act := range activities {
			byDay[act.DayID] = append(byDay[act.DayID], act)
		}
	}

	scope := func(q *gorm.DB) *gorm.DB {
		if len(dayIDs) > 0 {
			return q.Where("user_id = ? AND is_deleted = ? AND (trip_id = ? OR day_id IN (?))", userID, false, tripID, dayIDs)
		}
		return q.Where("user_id = ? AND is_deleted = ? AND trip_id = ?", userID, false, tripID)
	}

	var budget []*models.BudgetItem
	if err := scope(r.db.WithContext(ctx)).Order("created_at").Find(&budget).Error; err != nil {
		return doc, err
	}

	var notes []*models.Note
	if err := scope(r.db.WithContext(ctx)).Order("pinned DESC, created_at").Find(&notes).Error; err != nil {
		return doc, err
	}

	doc = export.TripDocument{
		Trip:       &trip,
		Days:       days,
		Activities: byDay,
		Budget:     budget,
		Notes:      notes,
	}
	return doc, nil
}
