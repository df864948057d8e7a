// Package api exposes the read-only HTTP surface: health, server stats,
// and the list of live rooms.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Stats is the view of the hub the HTTP layer needs.
type Stats interface {
	RoomCount() int
	ClientCount() int
	ActiveRooms() map[string]int
}

type API struct {
	hub Stats
}

func New(hub Stats) *API {
	return &API{hub: hub}
}

// Register mounts the API routes on a router.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", a.StatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms", a.RoomsHandler).Methods(http.MethodGet)
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("error encoding JSON response: %v", err)
	}
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"active_rooms":   a.hub.RoomCount(),
		"active_clients": a.hub.ClientCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

type RoomResponse struct {
	ID          string `json:"id"`
	ActiveUsers int    `json:"active_users"`
}

func (a *API) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	active := a.hub.ActiveRooms()

	rooms := make([]RoomResponse, 0, len(active))
	for id, users := range active {
		rooms = append(rooms, RoomResponse{ID: id, ActiveUsers: users})
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"count": len(rooms),
	})
}
