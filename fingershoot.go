package main

import (
	"log"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
)

// Finger-shoot: a single-player gesture game. The browser streams hand
// landmarks from its camera; this side runs the whole simulation (trigger
// detection, crosshair smoothing, bird movement, hits) and streams state
// snapshots back.

const (
	handLandmarkCount = 21

	// MediaPipe-style landmark indices.
	landmarkWrist    = 0
	landmarkThumbTip = 4
	landmarkIndexMCP = 5
	landmarkIndexTip = 8

	// Trigger hysteresis, in normalized hand-space distance between thumb
	// tip and index MCP. Fire below the low threshold, re-arm above the
	// high one, never both from a single jittery sample.
	pinchFireThreshold  = 0.08
	pinchResetThreshold = 0.14

	fireCooldown = 300 * time.Millisecond

	crosshairSamples = 5
	crosshairLerp    = 0.25

	birdHitRadiusScale = 2.5
	birdHitPoints      = 10

	initialSpawnInterval = 2000 * time.Millisecond
	minSpawnInterval     = 800 * time.Millisecond
	spawnIntervalStep    = 20 * time.Millisecond
)

// handPoint is one landmark in normalized [0,1] screen space.
type handPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func dist(a, b handPoint) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y

	return math.Sqrt(dx*dx + dy*dy)
}

// trigger is the pinch-to-fire state machine.
type trigger struct {
	armed    bool
	lastFire time.Time
}

func newTrigger() trigger {
	return trigger{armed: true}
}

// update feeds one pinch-distance sample and reports whether a shot fired.
func (t *trigger) update(now time.Time, pinch float64) bool {
	if pinch > pinchResetThreshold {
		t.armed = true
		return false
	}

	if pinch < pinchFireThreshold && t.armed && now.Sub(t.lastFire) >= fireCooldown {
		t.armed = false
		t.lastFire = now
		return true
	}

	return false
}

// crosshair smooths the raw index-tip position: a short moving average to
// knock down sensor jitter, then a lerp toward the average so the sight
// glides instead of teleporting.
type crosshair struct {
	samples []handPoint
	pos     handPoint
	primed  bool
}

func (c *crosshair) update(raw handPoint) handPoint {
	c.samples = append(c.samples, raw)
	if len(c.samples) > crosshairSamples {
		c.samples = c.samples[1:]
	}

	var avg handPoint
	for _, s := range c.samples {
		avg.X += s.X
		avg.Y += s.Y
	}
	avg.X /= float64(len(c.samples))
	avg.Y /= float64(len(c.samples))

	if !c.primed {
		c.pos = avg
		c.primed = true
		return c.pos
	}

	c.pos.X += (avg.X - c.pos.X) * crosshairLerp
	c.pos.Y += (avg.Y - c.pos.Y) * crosshairLerp

	return c.pos
}

type shootBird struct {
	ID   int     `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`

	baseY float64
	speed float64
	phase float64
}

// shootWorld is one player's simulation. Time comes from the injected
// clock; frames arrive at whatever rate the browser's camera delivers.
type shootWorld struct {
	mu    sync.Mutex
	clock clockwork.Clock
	rng   *rand.Rand

	birds  []*shootBird
	nextID int
	score  int

	spawnInterval time.Duration
	nextSpawn     time.Time

	trig  trigger
	cross crosshair

	lastStep time.Time
}

func newShootWorld(clock clockwork.Clock, seed int64) *shootWorld {
	now := clock.Now()

	return &shootWorld{
		clock:         clock,
		rng:           rand.New(rand.NewSource(seed)),
		spawnInterval: initialSpawnInterval,
		nextSpawn:     now,
		trig:          newTrigger(),
		lastStep:      now,
	}
}

// shootState is one snapshot pushed to the browser after each frame.
type shootState struct {
	Type      string       `json:"type"` // "state"
	Crosshair handPoint    `json:"crosshair"`
	Birds     []*shootBird `json:"birds"`
	Score     int          `json:"score"`
	Fired     bool         `json:"fired"`
	Hits      []int        `json:"hits,omitempty"`
}

// step advances the world by one camera frame. Landmarks shorter than the
// full hand are treated as "no hand visible": birds keep moving but no aim
// or trigger input applies.
func (w *shootWorld) step(landmarks []handPoint) shootState {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	dt := now.Sub(w.lastStep).Seconds()
	w.lastStep = now

	w.spawnLocked(now)
	w.advanceLocked(dt)

	state := shootState{
		Type:      "state",
		Crosshair: w.cross.pos,
		Score:     w.score,
	}

	if len(landmarks) >= handLandmarkCount {
		pinch := dist(landmarks[landmarkThumbTip], landmarks[landmarkIndexMCP])
		state.Crosshair = w.cross.update(landmarks[landmarkIndexTip])

		if w.trig.update(now, pinch) {
			state.Fired = true
			state.Hits = w.shootLocked(state.Crosshair)
			state.Score = w.score
		}
	}

	state.Birds = make([]*shootBird, len(w.birds))
	copy(state.Birds, w.birds)

	return state
}

// spawnLocked releases a new bird when due and tightens the interval, down
// to the floor, so the field gets busier as the game runs.
func (w *shootWorld) spawnLocked(now time.Time) {
	if now.Before(w.nextSpawn) {
		return
	}

	w.nextID++
	baseY := 0.15 + w.rng.Float64()*0.6

	w.birds = append(w.birds, &shootBird{
		ID:    w.nextID,
		X:     -0.1,
		Y:     baseY,
		Size:  0.04 + w.rng.Float64()*0.03,
		baseY: baseY,
		speed: 0.12 + w.rng.Float64()*0.1,
		phase: w.rng.Float64() * 2 * math.Pi,
	})

	w.spawnInterval -= spawnIntervalStep
	if w.spawnInterval < minSpawnInterval {
		w.spawnInterval = minSpawnInterval
	}
	w.nextSpawn = now.Add(w.spawnInterval)
}

// advanceLocked moves every bird along its flight path and drops the ones
// that escaped off the right edge.
func (w *shootWorld) advanceLocked(dt float64) {
	kept := w.birds[:0]
	for _, b := range w.birds {
		b.X += b.speed * dt
		b.phase += 4 * dt
		b.Y = b.baseY + 0.05*math.Sin(b.phase)

		if b.X <= 1.2 {
			kept = append(kept, b)
		}
	}
	w.birds = kept
}

// shootLocked resolves one shot at the given crosshair position. Every bird
// within its generous hitbox drops.
func (w *shootWorld) shootLocked(at handPoint) []int {
	var hits []int

	kept := w.birds[:0]
	for _, b := range w.birds {
		if dist(at, handPoint{X: b.X, Y: b.Y}) < b.Size*birdHitRadiusScale {
			hits = append(hits, b.ID)
			w.score += birdHitPoints
			continue
		}
		kept = append(kept, b)
	}
	w.birds = kept

	return hits
}

// handFrame is the inbound message from the browser: one camera frame's
// worth of landmarks, or an empty list when no hand is detected.
type handFrame struct {
	Type      string      `json:"type"` // "handFrame"
	Landmarks []handPoint `json:"landmarks"`
}

func serveShootWS(cfg *Config, clock clockwork.Clock) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}
		defer conn.Close()

		world := newShootWorld(clock, clock.Now().UnixNano())

		logf(cfg, "GAMES: Finger-shoot session started from %s", r.RemoteAddr)

		for {
			var frame handFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Type != "handFrame" {
				continue
			}

			if err := conn.WriteJSON(world.step(frame.Landmarks)); err != nil {
				return
			}
		}
	}
}

func getShootPageHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		body := `<h1>Finger Shoot</h1>
<p>Point with your index finger to aim. Pinch your thumb to the base of
your index finger to fire. Each bird is worth 10 points.</p>
<p>Connect a client with camera hand tracking to the <code>ws</code>
endpoint under this path to play.</p>`

		_, _ = w.Write([]byte(newPage("Finger Shoot", body)))
	}
}

// registerFingerShoot sets up routes so that:
//   - $path      → HTML instructions page
//   - $path/ws   → per-connection simulation WebSocket
func registerFingerShoot(cfg *Config, path string, mux *httprouter.Router, clock clockwork.Clock) {
	mux.GET(path, getShootPageHandler(cfg))
	mux.GET(cfg.prefix+path+"/ws", serveShootWS(cfg, clock))
}
