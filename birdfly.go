package main

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// serveRoomWS attaches a websocket connection to an existing room's hub.
// Unknown room codes are a hard 404; rooms are only ever created through
// the redirect handler.
func serveRoomWS(cfg *Config, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("room")
		if code == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}

		hub, ok := rm.getRoom(code)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		playerID := getPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: playerID,
		}

		select {
		case hub.register <- client:
		case <-hub.stop:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

// qrHandler generates a PNG QR code for the current room URL using
// go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := ps.ByName("room")
	if code == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:room/qr; strip the trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func getRoomPageHandler(cfg *Config, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("room")

		if _, ok := rm.getRoom(code); !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_ = getPlayerID(w, r)

		body := fmt.Sprintf(`<h1>Chidiya Udd</h1>
<p>Room code: <strong>%s</strong></p>
<p><img src="%s/qr" alt="Join QR" width="320" height="320"></p>
<p>Scan to join, or connect a client to this room.</p>`,
			code, strings.TrimSuffix(r.URL.Path, "/"))

		_, _ = w.Write([]byte(newPage("Chidiya Udd — "+code, body)))
	}
}

// redirectNewRoom handles GET $path by creating a room and redirecting to
// its page. The creator's browser connects first and therefore hosts.
func redirectNewRoom(cfg *Config, path string, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		code, _ := rm.createRoom(cfg)
		http.Redirect(w, r, path+"/"+code, http.StatusTemporaryRedirect)
	}
}

// registerBirdflyGame sets up routes so that:
//   - $path            → creates a room, redirects to it
//   - $path/:room      → HTML room page
//   - $path/:room/ws   → WebSocket for that room
//   - $path/:room/qr   → PNG QR code for that room URL
func registerBirdflyGame(cfg *Config, path string, mux *httprouter.Router, rm *RoomManager) {
	mux.GET(path, redirectNewRoom(cfg, path, rm))
	mux.GET(cfg.prefix+path+"/:room", getRoomPageHandler(cfg, rm))
	mux.GET(cfg.prefix+path+"/:room/ws", serveRoomWS(cfg, rm))
	mux.GET(cfg.prefix+path+"/:room/qr", qrHandler)
}
