/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

type lobbyResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// serveLobby lists rooms that are still waiting for players.
func serveLobby(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		rooms, err := h.JoinableRooms(ctx)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorAck{Error: "Failed to get rooms"})
			return
		}

		securityHeaders(cfg, w)
		writeJSON(w, http.StatusOK, lobbyResponse{Rooms: rooms})

		logf(cfg, "SERVE: Lobby (%d rooms) to %s in %s",
			len(rooms),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
