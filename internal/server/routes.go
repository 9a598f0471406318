package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/audiolive/signaling/internal/signaling"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// We need to check the origin, but for development, we can allow all.
	// In production, you'd check r.Header.Get("Origin") against your frontend's domain
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all connections for now
	},
}

// NewRouter wires the websocket endpoint, the room REST surface, and the
// health check onto one mux.
func NewRouter(hub *signaling.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws/{user_id}", serveWs(hub))

	mux.HandleFunc("POST /rooms", handleCreateRoom(hub))
	mux.HandleFunc("GET /rooms", handleListRooms(hub))
	mux.HandleFunc("GET /rooms/{room_id}", handleGetRoom(hub))
	mux.HandleFunc("DELETE /rooms/{room_id}", handleDeleteRoom(hub))

	mux.HandleFunc("GET /{$}", handleHealth(hub))

	return mux
}

// serveWs returns the handler that upgrades HTTP requests to websocket
// connections and hands them to the hub.
func serveWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("user_id")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "user id is required")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("failed to upgrade connection", "err", err)
			return
		}

		client := signaling.NewClient(hub, conn, userID)
		hub.Register(client)

		// One goroutine pair per connection; ReadPump's exit triggers
		// the hub cleanup.
		go client.WritePump()
		go client.ReadPump()
	}
}

func handleCreateRoom(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := hub.CreateRoom()
		writeJSON(w, http.StatusCreated, map[string]any{
			"room_id":    room.RoomID,
			"created_at": room.CreatedAt,
		})
	}
}

func handleGetRoom(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := hub.GetRoom(r.PathValue("room_id"))
		if !ok {
			writeError(w, http.StatusNotFound, "Room not found")
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleListRooms(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hub.ListRooms())
	}
}

func handleDeleteRoom(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !hub.DeleteRoom(r.PathValue("room_id")) {
			writeError(w, http.StatusNotFound, "Room not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Room deleted"})
	}
}

func handleHealth(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, users := hub.Stats()
		writeJSON(w, http.StatusOK, map[string]any{
			"message":         "Signaling server is running",
			"active_rooms":    rooms,
			"connected_users": users,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
