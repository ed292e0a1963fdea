package main

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const roomCodeLength = 6

// RoomManager holds the set of live hubs keyed by room code, so each
// $path/$room is its own isolated session.
type RoomManager struct {
	mu          sync.Mutex
	rooms       map[string]*Hub
	clock       clockwork.Clock
	idleTimeout time.Duration
}

func newRoomManager(clock clockwork.Clock, idleTimeout time.Duration) *RoomManager {
	rm := &RoomManager{
		rooms:       make(map[string]*Hub),
		clock:       clock,
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go rm.reaperLoop()
	}
	return rm
}

// createRoom mints a fresh room and starts its hub.
func (rm *RoomManager) createRoom(cfg *Config) (string, *Hub) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	code := rm.newRoomCodeLocked()
	hub := newHub(cfg, code, rm.clock)
	rm.rooms[code] = hub
	go hub.run()

	logf(cfg, "GAMES: Created room %s", code)

	return code, hub
}

// getRoom is an exact lookup. Unknown codes do not create rooms; joining a
// room that does not exist is a hard failure for the caller.
func (rm *RoomManager) getRoom(code string) (*Hub, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	hub, ok := rm.rooms[code]

	return hub, ok
}

// newRoomCodeLocked generates a crypto-random room code and regenerates
// silently on collision with a live room.
func (rm *RoomManager) newRoomCodeLocked() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	for {
		buf := make([]byte, roomCodeLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		out := make([]byte, roomCodeLength)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		code := string(out)

		if _, exists := rm.rooms[code]; !exists {
			return code
		}
	}
}

// reaperLoop periodically shuts down hubs that have been idle longer than
// idleTimeout.
func (rm *RoomManager) reaperLoop() {
	ticker := time.NewTicker(rm.idleTimeout / 2)
	for range ticker.C {
		cutoff := rm.clock.Now().Add(-rm.idleTimeout)

		rm.mu.Lock()
		for code, hub := range rm.rooms {
			hub.mu.RLock()
			last := hub.lastActive
			hub.mu.RUnlock()

			if last.Before(cutoff) {
				delete(rm.rooms, code)
				go hub.shutdown()
			}
		}
		rm.mu.Unlock()
	}
}
