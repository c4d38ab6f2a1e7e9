package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
	"gorm.io/gorm"
)

// RegisterDeviceRequest identifies the installing client
type RegisterDeviceRequest struct {
	DeviceID   string `json:"device_id" validate:"required"`
	Name       string `json:"name"`
	Platform   string `json:"platform" validate:"omitempty,oneof=ios android web"`
	AppVersion string `json:"app_version"`
}

// registerDevice creates the calling device's record, or refreshes its
// metadata when the install is already known.
func (r *Router) registerDevice(w http.ResponseWriter, req *http.Request) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}

	var devReq RegisterDeviceRequest
	if err := json.NewDecoder(req.Body).Decode(&devReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := r.validate.Struct(devReq); err != nil {
		respondError(w, http.StatusBadRequest, "device_id is required; platform must be ios, android or web")
		return
	}

	now := time.Now().UTC()

	var device models.RegisteredDevice
	err := r.db.WithContext(req.Context()).
		Where("user_id = ? AND device_id = ?", userID, devReq.DeviceID).
		First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		device = models.RegisteredDevice{
			UserID:     userID,
			DeviceID:   devReq.DeviceID,
			Name:       devReq.Name,
			Platform:   devReq.Platform,
			AppVersion: devReq.AppVersion,
			LastSeenAt: now,
		}
		if err := r.db.WithContext(req.Context()).Create(&device).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to register device")
			return
		}
		respondJSON(w, http.StatusCreated, device)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to look up device")
		return
	}

	device.Name = devReq.Name
	device.Platform = devReq.Platform
	device.AppVersion = devReq.AppVersion
	device.LastSeenAt = now
	if err := r.db.WithContext(req.Context()).Save(&device).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update device")
		return
	}

	respondJSON(w, http.StatusOK, device)
}

// listDevices returns the user's registered devices, most recently
// seen first.
func (r *Router) listDevices(w http.ResponseWriter, req *http.Request) {
	userID, ok := currentUser(w, req)
	if !ok {
		return
	}

	var devices []models.RegisteredDevice
	if err := r.db.WithContext(req.Context()).
		Where("user_id = ?", userID).
		Order("last_seen_at DESC").
		Find(&devices).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch devices")
		return
	}

	respondJSON(w, http.StatusOK, devices)
}
