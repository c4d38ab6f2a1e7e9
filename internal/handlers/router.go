package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/ai"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/buildinfo"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/config"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/database"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/middleware"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/services/export"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/sync"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// Router wraps the mux router and the handler dependencies
type Router struct {
	*mux.Router
	db       *database.DB
	cfg      *config.Config
	syncCfg  *config.SyncConfig
	engine   *sync.Engine
	store    *database.EntityStore
	validate *validator.Validate
	uploader *export.Uploader
	planner  *ai.Planner
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *database.DB, cfg *config.Config, engine *sync.Engine, syncCfg *config.SyncConfig) *Router {
	r := &Router{
		Router:   mux.NewRouter(),
		db:       db,
		cfg:      cfg,
		syncCfg:  syncCfg,
		engine:   engine,
		store:    database.NewEntityStore(db),
		validate: validator.New(),
		uploader: export.NewUploader(cfg.Export),
	}

	// Public endpoints
	r.HandleFunc("/api/health", r.healthCheck).Methods("GET")
	r.HandleFunc("/api/auth/register", r.register).Methods("POST")
	r.HandleFunc("/api/auth/login", r.login).Methods("POST")
	r.HandleFunc("/api/auth/refresh", r.refresh).Methods("POST")

	// Everything below requires a valid access token
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg))

	api.HandleFunc("/auth/me", r.me).Methods("GET")

	// Sync
	api.HandleFunc("/sync", r.handleSync).Methods("POST")
	api.HandleFunc("/sync/status", r.syncStatus).Methods("GET")

	// Devices
	api.HandleFunc("/devices/register", r.registerDevice).Methods("POST")
	api.HandleFunc("/devices", r.listDevices).Methods("GET")

	// Trips
	api.HandleFunc("/trips", r.listTrips).Methods("GET")
	api.HandleFunc("/trips", r.createTrip).Methods("POST")
	api.HandleFunc("/trips/{id}", r.getTrip).Methods("GET")
	api.HandleFunc("/trips/{id}", r.updateTrip).Methods("PUT")
	api.HandleFunc("/trips/{id}", r.deleteTrip).Methods("DELETE")
	api.HandleFunc("/trips/{id}/days", r.listDays).Methods("GET")
	api.HandleFunc("/trips/{id}/budget", r.listBudgetItems).Methods("GET")
	api.HandleFunc("/trips/{id}/notes", r.listNotes).Methods("GET")
	api.HandleFunc("/trips/{id}/export/pdf", r.exportTripPDF).Methods("GET")

	// Days, activities, budget items, notes
	api.HandleFunc("/days", r.createDay).Methods("POST")
	api.HandleFunc("/days/{id}", r.updateDay).Methods("PUT")
	api.HandleFunc("/days/{id}", r.deleteDay).Methods("DELETE")
	api.HandleFunc("/days/{id}/activities", r.listActivities).Methods("GET")
	api.HandleFunc("/activities", r.createActivity).Methods("POST")
	api.HandleFunc("/activities/{id}", r.updateActivity).Methods("PUT")
	api.HandleFunc("/activities/{id}", r.deleteActivity).Methods("DELETE")
	api.HandleFunc("/budget-items", r.createBudgetItem).Methods("POST")
	api.HandleFunc("/budget-items/{id}", r.updateBudgetItem).Methods("PUT")
	api.HandleFunc("/budget-items/{id}", r.deleteBudgetItem).Methods("DELETE")
	api.HandleFunc("/notes", r.createNote).Methods("POST")
	api.HandleFunc("/notes/{id}", r.updateNote).Methods("PUT")
	api.HandleFunc("/notes/{id}", r.deleteNote).Methods("DELETE")

	// AI itinerary
	api.HandleFunc("/ai/itinerary/generate", r.generateItinerary).Methods("POST")
	api.HandleFunc("/ai/itinerary/refine", r.refineItinerary).Methods("POST")

	return r
}

// SetPlanner wires the AI itinerary planner. Without it the AI
// endpoints respond 503.
func (r *Router) SetPlanner(planner *ai.Planner) {
	r.planner = planner
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	status := "ok"
	code := http.StatusOK
	dbState := "up"
	if err := r.db.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		dbState = "down"
	}

	respondJSON(w, code, map[string]interface{}{
		"status":   status,
		"database": dbState,
		"build":    buildinfo.Summary(),
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
