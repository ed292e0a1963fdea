package main

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type gamePhase string

const (
	phaseLobby     gamePhase = "lobby"
	phaseCountdown gamePhase = "countdown"
	phaseRound     gamePhase = "round"
	phaseScoring   gamePhase = "scoring"
	phaseEnded     gamePhase = "ended"
)

const countdownSteps = 4 // 3, 2, 1, GO

// Player is one roster entry. The first connection to a fresh room becomes
// the host; its connection identity doubles as its player id.
type Player struct {
	ID         string
	Name       string
	ColorIndex int
	Score      int
	Connected  bool
	IsHost     bool

	joinOrder int
	touching  bool // most recent touchStatus sample
}

type playerResponse struct {
	action    Action
	timestamp int64
}

type inboundMessage struct {
	client *Client
	msg    ClientMessage
}

// Hub owns the canonical state of one room: roster, round lifecycle, and
// scores. All mutation happens under mu, driven by the run loop, by timer
// callbacks, and by removal goroutines.
type Hub struct {
	cfg   *Config
	code  string
	clock clockwork.Clock

	register chan *Client
	unreg    chan *Client
	inbound  chan inboundMessage

	stop     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex

	clients  map[*Client]bool
	players  map[string]*Player
	hostID   string
	nextJoin int

	createdAt  time.Time
	lastActive time.Time

	phase gamePhase
	round int
	deck  *itemDeck
	item  Item

	// wasTouching is snapshotted once at round start and never rewritten by
	// touchStatus messages arriving mid-round; those only feed the next
	// round's snapshot.
	wasTouching map[string]bool
	responses   map[string]playerResponse

	// roundSeq invalidates pending phase timers: every scheduled transition
	// captures the sequence at creation and is dropped if it no longer
	// matches when the timer fires.
	roundSeq int

	paused          bool
	pausedRemaining time.Duration
	roundDeadline   time.Time
}

func newHub(cfg *Config, code string, clock clockwork.Clock) *Hub {
	now := clock.Now()

	return &Hub{
		cfg:         cfg,
		code:        code,
		clock:       clock,
		register:    make(chan *Client),
		unreg:       make(chan *Client),
		inbound:     make(chan inboundMessage),
		stop:        make(chan struct{}),
		clients:     make(map[*Client]bool),
		players:     make(map[string]*Player),
		createdAt:   now,
		lastActive:  now,
		phase:       phaseLobby,
		deck:        newItemDeck(now.UnixNano()),
		wasTouching: make(map[string]bool),
		responses:   make(map[string]playerResponse),
	}
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unreg:
			h.handleUnregister(c)
		case in := <-h.inbound:
			h.handleMessage(in.client, in.msg)
		case <-h.stop:
			return
		}
	}
}

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	h.closeAll()
}

// closeAll disconnects every client of this hub (used by the reaper and on
// host departure).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(h.clients, c)
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = h.clock.Now()

	// First connection to a fresh room is the host.
	if h.hostID == "" {
		h.hostID = c.playerID
	}

	h.clients[c] = true

	// A reconnect within the grace window lands back on the same Player.
	if p, ok := h.players[c.playerID]; ok {
		p.Connected = true
	}

	h.sendToLocked(c, h.playerListLocked())
}

func (h *Hub) handleUnregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = h.clock.Now()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}

	p, ok := h.players[c.playerID]
	if !ok || h.connectedLocked(c.playerID) {
		return
	}

	// The round does not wait for them: scoring proceeds on their last
	// known response and touch state while the grace timer runs.
	p.Connected = false
	h.broadcastLocked(PlayerDisconnectedMessage{
		Type:     msgPlayerDisconnected,
		PlayerID: c.playerID,
	})

	go h.scheduleRemoval(c.playerID)
}

func (h *Hub) connectedLocked(playerID string) bool {
	for c := range h.clients {
		if c.playerID == playerID {
			return true
		}
	}
	return false
}

// scheduleRemoval purges a disconnected player once the grace window
// elapses, unless they reconnected in the meantime.
func (h *Hub) scheduleRemoval(playerID string) {
	timer := h.clock.NewTimer(h.cfg.disconnectGrace)

	select {
	case <-timer.Chan():
	case <-h.stop:
		stopAndDrainTimer(timer)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connectedLocked(playerID) {
		return
	}

	p, ok := h.players[playerID]
	if !ok || p.Connected {
		return
	}

	delete(h.players, playerID)
	delete(h.wasTouching, playerID)
	delete(h.responses, playerID)

	h.lastActive = h.clock.Now()

	logf(h.cfg, "GAMES: Removed player %q from %s after grace period", p.Name, h.code)

	h.broadcastLocked(h.playerListLocked())

	if playerID == h.hostID {
		go h.shutdown()
	}
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

func (h *Hub) handleMessage(c *Client, msg ClientMessage) {
	switch msg.Type {
	case msgJoin:
		h.handleJoin(c, msg.Name)
	case msgStartGame:
		h.handleStartGame(c)
	case msgTouchStatus:
		h.handleTouchStatus(c, msg.IsTouched != nil && *msg.IsTouched)
	case msgPlayerAction:
		h.handlePlayerAction(c, msg.Action, msg.Timestamp)
	case msgScoreUpdate:
		if msg.Score != nil {
			h.handleScoreUpdate(c, *msg.Score)
		}
	case msgPause:
		h.handlePause(c)
	case msgResume:
		h.handleResume(c)
	case msgLeave:
		h.handleLeave(c)
	default:
		// Protocol errors never kill the session.
		logf(h.cfg, "GAMES: Ignoring unknown message type %q in %s", msg.Type, h.code)
	}
}

func (h *Hub) handleJoin(c *Client, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = h.clock.Now()

	if p, ok := h.players[c.playerID]; ok {
		if name != "" {
			p.Name = name
		}
		p.Connected = true
		h.broadcastLocked(h.playerListLocked())
		return
	}

	if len(h.players) >= h.cfg.maxPlayers {
		h.sendToLocked(c, SimpleMessage{
			Type:    msgRoomFull,
			Message: fmt.Sprintf("Room is full (max %d players)", h.cfg.maxPlayers),
		})
		return
	}

	if name == "" {
		name = fmt.Sprintf("Player %d", len(h.players)+1)
	}

	h.players[c.playerID] = &Player{
		ID:         c.playerID,
		Name:       name,
		ColorIndex: h.nextColorLocked(),
		Connected:  true,
		IsHost:     c.playerID == h.hostID,
		joinOrder:  h.nextJoin,
	}
	h.nextJoin++

	logf(h.cfg, "GAMES: Player %q joined %s", name, h.code)

	h.broadcastLocked(h.playerListLocked())
}

func (h *Hub) nextColorLocked() int {
	used := make(map[int]bool, len(h.players))
	for _, p := range h.players {
		used[p.ColorIndex] = true
	}

	for i := 0; i < maxRoomSize; i++ {
		if !used[i] {
			return i
		}
	}

	return 0
}

// handleStartGame begins a match, or restarts one from the results screen.
// Host-only; requires the minimum player count.
func (h *Hub) handleStartGame(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = h.clock.Now()

	if c.playerID != h.hostID {
		return
	}
	if h.phase != phaseLobby && h.phase != phaseEnded {
		return
	}
	if len(h.players) < h.cfg.minPlayers {
		logf(h.cfg, "GAMES: Refused start of %s with %d players", h.code, len(h.players))
		return
	}

	h.round = 0
	h.deck.reset()
	h.paused = false
	for _, p := range h.players {
		p.Score = 0
	}

	h.phase = phaseCountdown
	h.broadcastLocked(GameStartMessage{
		Type:    msgGameStart,
		Players: h.rosterLocked(),
	})

	logf(h.cfg, "GAMES: Match started in %s with %d players", h.code, len(h.players))

	// 3-2-1-GO, then a short settle window so every client's current touch
	// status has propagated before the first snapshot is taken.
	delay := time.Duration(countdownSteps)*h.cfg.countdownStep + h.cfg.startGrace
	h.schedule(delay, h.bumpSeqLocked(), h.startRoundLocked)
}

// schedule arms a one-shot phase transition. The callback runs with the hub
// locked and only if the captured sequence is still current.
func (h *Hub) schedule(d time.Duration, seq int, fn func()) {
	timer := h.clock.NewTimer(d)

	go func() {
		select {
		case <-timer.Chan():
			h.mu.Lock()
			if h.roundSeq == seq {
				fn()
			}
			h.mu.Unlock()
		case <-h.stop:
			stopAndDrainTimer(timer)
		}
	}()
}

func (h *Hub) bumpSeqLocked() int {
	h.roundSeq++
	return h.roundSeq
}

func (h *Hub) startRoundLocked() {
	h.round++

	if h.round > h.cfg.totalRounds {
		h.endGameLocked()
		return
	}

	h.item = h.deck.draw(h.round)
	h.responses = make(map[string]playerResponse)
	h.wasTouching = make(map[string]bool, len(h.players))
	for id, p := range h.players {
		h.wasTouching[id] = p.touching
	}

	h.phase = phaseRound
	h.paused = false
	h.roundDeadline = h.clock.Now().Add(h.cfg.roundDuration)

	h.broadcastLocked(RoundStartMessage{
		Type:        msgRoundStart,
		Round:       h.round,
		TotalRounds: h.cfg.totalRounds,
		Item:        h.item,
		DurationMs:  h.cfg.roundDuration.Milliseconds(),
	})

	h.schedule(h.cfg.roundDuration, h.bumpSeqLocked(), h.endRoundLocked)
}

func (h *Hub) endRoundLocked() {
	h.phase = phaseScoring

	results := make(map[string]PlayerResult, len(h.players))
	for id, p := range h.players {
		action := ActionKept
		if resp, ok := h.responses[id]; ok {
			action = resp.action
		}

		points, correct := scoreRound(h.item, action, h.wasTouching[id])
		if correct != nil {
			p.Score = clampScore(p.Score + points)
		}

		results[id] = PlayerResult{
			Action:   action,
			Points:   points,
			Correct:  correct,
			NewScore: p.Score,
		}
	}

	correctAnswer := "keep"
	if h.item.CanFly {
		correctAnswer = "lift"
	}

	h.broadcastLocked(RoundEndMessage{
		Type:          msgRoundEnd,
		Results:       results,
		CorrectAnswer: correctAnswer,
	})
	h.broadcastLocked(h.leaderboardLocked())

	seq := h.bumpSeqLocked()
	if h.round >= h.cfg.totalRounds {
		h.schedule(h.cfg.roundPause, seq, h.endGameLocked)
	} else {
		h.schedule(h.cfg.roundPause, seq, h.startRoundLocked)
	}
}

func (h *Hub) endGameLocked() {
	if h.phase == phaseEnded {
		return
	}

	h.phase = phaseEnded
	h.bumpSeqLocked()

	h.broadcastLocked(GameEndMessage{
		Type:     msgGameEnd,
		Rankings: h.rankedLocked(),
	})

	logf(h.cfg, "GAMES: Match ended in %s", h.code)
}

func (h *Hub) handleTouchStatus(c *Client, isTouched bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = h.clock.Now()

	p, ok := h.players[c.playerID]
	if !ok {
		return
	}

	p.touching = isTouched
}

// handlePlayerAction records a committed response for the active round.
// Last write wins per player; anything arriving after the deadline is
// dropped and the default 'kept' stands.
func (h *Hub) handlePlayerAction(c *Client, action Action, timestamp int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = h.clock.Now()

	if action != ActionLifted && action != ActionKept {
		return
	}
	if h.phase != phaseRound || h.paused {
		return
	}
	if _, ok := h.players[c.playerID]; !ok {
		return
	}

	h.responses[c.playerID] = playerResponse{
		action:    action,
		timestamp: timestamp,
	}

	// Relayed for live visual feedback only; receivers never score from it.
	h.broadcastLocked(PlayerActionUpdateMessage{
		Type:     msgPlayerActionUpdate,
		PlayerID: c.playerID,
		Action:   action,
	})
}

// handleScoreUpdate accepts a client's locally-predicted score for its own
// player. The client is authoritative for itself; see the wire protocol
// notes in DESIGN.md.
func (h *Hub) handleScoreUpdate(c *Client, score int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = h.clock.Now()

	p, ok := h.players[c.playerID]
	if !ok {
		return
	}

	p.Score = clampScore(score)

	h.broadcastLocked(h.leaderboardLocked())
}

func (h *Hub) handlePause(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.playerID != h.hostID {
		return
	}
	if h.phase != phaseRound || h.paused {
		return
	}

	h.paused = true
	h.pausedRemaining = h.roundDeadline.Sub(h.clock.Now())
	if h.pausedRemaining < 0 {
		h.pausedRemaining = 0
	}
	h.bumpSeqLocked() // invalidates the pending deadline timer

	h.broadcastLocked(PauseMessage{
		Type:     msgPause,
		PausedBy: h.hostID,
	})
}

func (h *Hub) handleResume(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.playerID != h.hostID {
		return
	}
	if !h.paused {
		return
	}

	h.paused = false
	h.roundDeadline = h.clock.Now().Add(h.pausedRemaining)
	h.schedule(h.pausedRemaining, h.bumpSeqLocked(), h.endRoundLocked)

	h.broadcastLocked(PauseMessage{
		Type: msgResume,
	})
}

// handleLeave is a graceful exit: no grace period, immediate removal.
func (h *Hub) handleLeave(c *Client) {
	h.mu.Lock()

	p, ok := h.players[c.playerID]
	if !ok {
		h.mu.Unlock()
		return
	}

	delete(h.players, c.playerID)
	delete(h.wasTouching, c.playerID)
	delete(h.responses, c.playerID)

	h.lastActive = h.clock.Now()

	logf(h.cfg, "GAMES: Player %q left %s", p.Name, h.code)

	h.broadcastLocked(PlayerDisconnectedMessage{
		Type:     msgPlayerDisconnected,
		PlayerID: c.playerID,
	})
	h.broadcastLocked(h.playerListLocked())

	isHost := c.playerID == h.hostID
	h.mu.Unlock()

	if isHost {
		h.shutdown()
	}
}

func (h *Hub) playerInfoLocked(p *Player) PlayerInfo {
	return PlayerInfo{
		ID:         p.ID,
		Name:       p.Name,
		ColorIndex: p.ColorIndex,
		Score:      p.Score,
		Connected:  p.Connected,
		IsHost:     p.IsHost,
	}
}

// rosterLocked returns the players in join order.
func (h *Hub) rosterLocked() []PlayerInfo {
	ordered := make([]*Player, 0, len(h.players))
	for _, p := range h.players {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].joinOrder < ordered[j].joinOrder
	})

	roster := make([]PlayerInfo, 0, len(ordered))
	for _, p := range ordered {
		roster = append(roster, h.playerInfoLocked(p))
	}

	return roster
}

// rankedLocked returns the players by score descending, ties broken by join
// order.
func (h *Hub) rankedLocked() []PlayerInfo {
	ranked := make([]*Player, 0, len(h.players))
	for _, p := range h.players {
		ranked = append(ranked, p)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].joinOrder < ranked[j].joinOrder
	})

	rankings := make([]PlayerInfo, 0, len(ranked))
	for _, p := range ranked {
		rankings = append(rankings, h.playerInfoLocked(p))
	}

	return rankings
}

func (h *Hub) playerListLocked() PlayerListMessage {
	return PlayerListMessage{
		Type:    msgPlayerList,
		Players: h.rosterLocked(),
		HostID:  h.hostID,
	}
}

func (h *Hub) leaderboardLocked() LeaderboardMessage {
	return LeaderboardMessage{
		Type:    msgLeaderboard,
		Players: h.rankedLocked(),
	}
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) sendToLocked(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}
