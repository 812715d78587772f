/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWS upgrades the request and pumps frames between the connection
// and the hub until either side goes away.
func serveWS(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SOCKS: Upgrade for %s failed: %v", realIP(r), err)
			return
		}

		client := newClient(cfg, conn)
		if !h.attach(client) {
			_ = conn.Close()
			return
		}

		logf(cfg, "SOCKS: %s connected as %s", realIP(r), client.id)

		go client.writePump(cfg)
		client.readPump(cfg, h)

		logf(cfg, "SOCKS: %s disconnected", client.id)
	}
}
