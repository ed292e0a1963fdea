package main

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		port:            8080,
		totalRounds:     2,
		roundDuration:   time.Second,
		countdownStep:   time.Second,
		startGrace:      500 * time.Millisecond,
		roundPause:      2 * time.Second,
		disconnectGrace: 5 * time.Second,
		maxPlayers:      maxRoomSize,
		minPlayers:      2,
	}
}

func newTestHub(t *testing.T, cfg *Config) (*Hub, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	h := newHub(cfg, "ABC123", clock)
	go h.run()
	t.Cleanup(h.shutdown)

	return h, clock
}

// joinPlayer connects a fake client and joins it to the roster, consuming
// the playerList replies so later assertions see a clean channel.
func joinPlayer(t *testing.T, h *Hub, id, name string) *Client {
	t.Helper()

	c := &Client{send: make(chan any, 64), playerID: id}
	h.register <- c
	recv[PlayerListMessage](t, c)

	h.inbound <- inboundMessage{client: c, msg: ClientMessage{Type: msgJoin, Name: name}}
	recv[PlayerListMessage](t, c)

	return c
}

// recv waits for the next message of type T on the client's send channel,
// discarding everything else.
func recv[T any](t *testing.T, c *Client) T {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				t.Fatalf("send channel closed while waiting for %T", *new(T))
			}
			if v, ok := msg.(T); ok {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %T", *new(T))
		}
	}
}

// barrier pushes a no-op message through the run loop so everything sent
// before it is known to be processed.
func barrier(h *Hub, c *Client) {
	h.inbound <- inboundMessage{client: c, msg: ClientMessage{Type: "noop"}}
}

func TestFirstConnectionBecomesHost(t *testing.T) {
	h, _ := newTestHub(t, testConfig())

	c1 := &Client{send: make(chan any, 64), playerID: "p1"}
	h.register <- c1

	list := recv[PlayerListMessage](t, c1)
	assert.Equal(t, "p1", list.HostID)
	assert.Empty(t, list.Players)

	h.inbound <- inboundMessage{client: c1, msg: ClientMessage{Type: msgJoin, Name: "Asha"}}
	list = recv[PlayerListMessage](t, c1)

	require.Len(t, list.Players, 1)
	assert.True(t, list.Players[0].IsHost)
	assert.Equal(t, "Asha", list.Players[0].Name)
	assert.Equal(t, 0, list.Players[0].ColorIndex)

	joinPlayer(t, h, "p2", "Ravi")
	list = recv[PlayerListMessage](t, c1)

	require.Len(t, list.Players, 2)
	assert.False(t, list.Players[1].IsHost)
	assert.Equal(t, 1, list.Players[1].ColorIndex)
}

func TestRoomFullRejectsExtraJoin(t *testing.T) {
	cfg := testConfig()
	cfg.maxPlayers = 2

	h, _ := newTestHub(t, cfg)

	joinPlayer(t, h, "p1", "Asha")
	joinPlayer(t, h, "p2", "Ravi")

	c3 := &Client{send: make(chan any, 64), playerID: "p3"}
	h.register <- c3
	recv[PlayerListMessage](t, c3)

	h.inbound <- inboundMessage{client: c3, msg: ClientMessage{Type: msgJoin, Name: "Meera"}}
	full := recv[SimpleMessage](t, c3)
	assert.Equal(t, msgRoomFull, full.Type)

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Len(t, h.players, 2)
}

func TestRoundScoring(t *testing.T) {
	h, _ := newTestHub(t, testConfig())

	c1 := joinPlayer(t, h, "p1", "Asha")
	c2 := joinPlayer(t, h, "p2", "Ravi")
	joinPlayer(t, h, "p3", "Meera")
	recv[PlayerListMessage](t, c1)
	recv[PlayerListMessage](t, c1)
	recv[PlayerListMessage](t, c2)

	// p1 and p2 were touching when the round began; p3 was not.
	h.mu.Lock()
	h.phase = phaseRound
	h.round = 1
	h.item = Item{Name: "PARROT", CanFly: true}
	h.wasTouching = map[string]bool{"p1": true, "p2": true, "p3": false}
	h.responses = make(map[string]playerResponse)
	h.mu.Unlock()

	h.inbound <- inboundMessage{client: c1, msg: ClientMessage{Type: msgPlayerAction, Action: ActionLifted, Timestamp: 123}}

	upd := recv[PlayerActionUpdateMessage](t, c2)
	assert.Equal(t, "p1", upd.PlayerID)
	assert.Equal(t, ActionLifted, upd.Action)

	h.mu.Lock()
	h.endRoundLocked()
	h.mu.Unlock()

	re := recv[RoundEndMessage](t, c2)
	assert.Equal(t, "lift", re.CorrectAnswer)
	require.Len(t, re.Results, 3)

	// Lifted on a flying item: correct.
	require.NotNil(t, re.Results["p1"].Correct)
	assert.True(t, *re.Results["p1"].Correct)
	assert.Equal(t, 10, re.Results["p1"].Points)
	assert.Equal(t, 10, re.Results["p1"].NewScore)

	// Silent player defaults to kept: wrong, and the -5 clamps at zero.
	require.NotNil(t, re.Results["p2"].Correct)
	assert.False(t, *re.Results["p2"].Correct)
	assert.Equal(t, -5, re.Results["p2"].Points)
	assert.Equal(t, 0, re.Results["p2"].NewScore)

	// Not touching at the start: sat the round out.
	assert.Nil(t, re.Results["p3"].Correct)
	assert.Equal(t, 0, re.Results["p3"].Points)
	assert.Equal(t, 0, re.Results["p3"].NewScore)

	lb := recv[LeaderboardMessage](t, c2)
	require.Len(t, lb.Players, 3)
	assert.Equal(t, "p1", lb.Players[0].ID)
	assert.Equal(t, 10, lb.Players[0].Score)
}

func TestTouchStatusDoesNotRewriteSnapshot(t *testing.T) {
	h, _ := newTestHub(t, testConfig())

	c1 := joinPlayer(t, h, "p1", "Asha")

	h.mu.Lock()
	h.phase = phaseRound
	h.round = 1
	h.item = Item{Name: "COW", CanFly: false}
	h.wasTouching = map[string]bool{"p1": true}
	h.responses = make(map[string]playerResponse)
	h.mu.Unlock()

	// Releasing mid-round changes live state but never the snapshot the
	// round will be judged against.
	touched := false
	h.inbound <- inboundMessage{client: c1, msg: ClientMessage{Type: msgTouchStatus, IsTouched: &touched}}
	barrier(h, c1)

	h.mu.RLock()
	assert.False(t, h.players["p1"].touching)
	assert.True(t, h.wasTouching["p1"])
	h.mu.RUnlock()
}

func TestLateActionDropped(t *testing.T) {
	h, _ := newTestHub(t, testConfig())

	c1 := joinPlayer(t, h, "p1", "Asha")

	h.mu.Lock()
	h.phase = phaseScoring
	h.round = 1
	h.responses = make(map[string]playerResponse)
	h.mu.Unlock()

	h.inbound <- inboundMessage{client: c1, msg: ClientMessage{Type: msgPlayerAction, Action: ActionLifted, Timestamp: 999}}
	barrier(h, c1)

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Empty(t, h.responses)
}

func TestFullMatchFlow(t *testing.T) {
	cfg := testConfig()
	h, clock := newTestHub(t, cfg)

	joinPlayer(t, h, "p1", "Asha")
	c2 := joinPlayer(t, h, "p2", "Ravi")

	h.inbound <- inboundMessage{client: &Client{send: make(chan any, 1), playerID: "p1"}, msg: ClientMessage{Type: msgStartGame}}

	start := recv[GameStartMessage](t, c2)
	require.Len(t, start.Players, 2)

	countdown := time.Duration(countdownSteps)*cfg.countdownStep + cfg.startGrace

	clock.BlockUntil(1)
	clock.Advance(countdown)

	rs := recv[RoundStartMessage](t, c2)
	assert.Equal(t, 1, rs.Round)
	assert.Equal(t, 2, rs.TotalRounds)
	assert.NotEmpty(t, rs.Item.Name)

	clock.BlockUntil(1)
	clock.Advance(cfg.roundDuration)

	recv[RoundEndMessage](t, c2)
	recv[LeaderboardMessage](t, c2)

	clock.BlockUntil(1)
	clock.Advance(cfg.roundPause)

	rs = recv[RoundStartMessage](t, c2)
	assert.Equal(t, 2, rs.Round)

	clock.BlockUntil(1)
	clock.Advance(cfg.roundDuration)
	recv[RoundEndMessage](t, c2)

	clock.BlockUntil(1)
	clock.Advance(cfg.roundPause)

	end := recv[GameEndMessage](t, c2)
	require.Len(t, end.Rankings, 2)

	// Nobody touched, so both sat every round out; ranking falls back to
	// join order.
	assert.Equal(t, "p1", end.Rankings[0].ID)
	assert.Equal(t, "p2", end.Rankings[1].ID)

	// The results screen is terminal until the host restarts: no stray
	// timers may fire another transition.
	clock.Advance(time.Minute)
	select {
	case msg := <-c2.send:
		_, isEnd := msg.(GameEndMessage)
		_, isStart := msg.(RoundStartMessage)
		assert.False(t, isEnd || isStart, "unexpected %T after game end", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHostRestartFromResults(t *testing.T) {
	h, _ := newTestHub(t, testConfig())

	c1 := joinPlayer(t, h, "p1", "Asha")
	c2 := joinPlayer(t, h, "p2", "Ravi")
	recv[PlayerListMessage](t, c1)

	h.mu.Lock()
	h.phase = phaseEnded
	h.players["p1"].Score = 40
	h.players["p2"].Score = 25
	h.mu.Unlock()

	h.inbound <- inboundMessage{client: c1, msg: ClientMessage{Type: msgStartGame}}

	start := recv[GameStartMessage](t, c2)
	require.Len(t, start.Players, 2)
	for _, p := range start.Players {
		assert.Zero(t, p.Score)
	}
}

func TestStartRequiresHostAndQuorum(t *testing.T) {
	h, _ := newTestHub(t, testConfig())

	c1 := joinPlayer(t, h, "p1", "Asha")
	c2 := joinPlayer(t, h, "p2", "Ravi")

	// Not the host.
	h.inbound <- inboundMessage{client: c2, msg: ClientMessage{Type: msgStartGame}}
	barrier(h, c2)

	h.mu.RLock()
	assert.Equal(t, phaseLobby, h.phase)
	h.mu.RUnlock()

	// Host, but below the minimum.
	h.inbound <- inboundMessage{client: c2, msg: ClientMessage{Type: msgLeave}}
	recv[PlayerListMessage](t, c1)

	h.inbound <- inboundMessage{client: c1, msg: ClientMessage{Type: msgStartGame}}
	barrier(h, c1)

	h.mu.RLock()
	assert.Equal(t, phaseLobby, h.phase)
	h.mu.RUnlock()
}

func TestDisconnectGracePurge(t *testing.T) {
	h, clock := newTestHub(t, testConfig())

	c1 := joinPlayer(t, h, "p1", "Asha")
	c2 := joinPlayer(t, h, "p2", "Ravi")
	recv[PlayerListMessage](t, c1)

	h.unreg <- c2

	gone := recv[PlayerDisconnectedMessage](t, c1)
	assert.Equal(t, "p2", gone.PlayerID)

	h.mu.RLock()
	assert.False(t, h.players["p2"].Connected)
	h.mu.RUnlock()

	clock.BlockUntil(1)
	clock.Advance(testConfig().disconnectGrace)

	list := recv[PlayerListMessage](t, c1)
	require.Len(t, list.Players, 1)
	assert.Equal(t, "p1", list.Players[0].ID)
}

func TestReconnectWithinGrace(t *testing.T) {
	h, clock := newTestHub(t, testConfig())

	c1 := joinPlayer(t, h, "p1", "Asha")
	c2 := joinPlayer(t, h, "p2", "Ravi")
	recv[PlayerListMessage](t, c1)

	h.unreg <- c2
	recv[PlayerDisconnectedMessage](t, c1)

	// Same player id, fresh connection.
	c2b := &Client{send: make(chan any, 64), playerID: "p2"}
	h.register <- c2b
	recv[PlayerListMessage](t, c2b)

	clock.BlockUntil(1)
	clock.Advance(testConfig().disconnectGrace)

	assert.Never(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, ok := h.players["p2"]
		return !ok
	}, 300*time.Millisecond, 20*time.Millisecond, "reconnected player was purged")

	h.mu.RLock()
	assert.True(t, h.players["p2"].Connected)
	h.mu.RUnlock()
}

func TestLeaveRemovesImmediately(t *testing.T) {
	h, _ := newTestHub(t, testConfig())

	c1 := joinPlayer(t, h, "p1", "Asha")
	c2 := joinPlayer(t, h, "p2", "Ravi")
	recv[PlayerListMessage](t, c1)

	h.inbound <- inboundMessage{client: c2, msg: ClientMessage{Type: msgLeave}}

	gone := recv[PlayerDisconnectedMessage](t, c1)
	assert.Equal(t, "p2", gone.PlayerID)

	list := recv[PlayerListMessage](t, c1)
	require.Len(t, list.Players, 1)
}

func TestScoreUpdateClampsAndRebroadcasts(t *testing.T) {
	h, _ := newTestHub(t, testConfig())

	c1 := joinPlayer(t, h, "p1", "Asha")
	c2 := joinPlayer(t, h, "p2", "Ravi")
	recv[PlayerListMessage](t, c1)

	score := 40
	h.inbound <- inboundMessage{client: c1, msg: ClientMessage{Type: msgScoreUpdate, Score: &score}}

	lb := recv[LeaderboardMessage](t, c2)
	assert.Equal(t, "p1", lb.Players[0].ID)
	assert.Equal(t, 40, lb.Players[0].Score)

	negative := -10
	h.inbound <- inboundMessage{client: c1, msg: ClientMessage{Type: msgScoreUpdate, Score: &negative}}

	lb = recv[LeaderboardMessage](t, c2)
	for _, p := range lb.Players {
		if p.ID == "p1" {
			assert.Zero(t, p.Score)
		}
	}
}

func TestPauseFreezesDeadline(t *testing.T) {
	cfg := testConfig()
	h, clock := newTestHub(t, cfg)

	c1 := joinPlayer(t, h, "p1", "Asha")
	c2 := joinPlayer(t, h, "p2", "Ravi")
	recv[PlayerListMessage](t, c1)

	h.mu.Lock()
	h.round = 0
	h.startRoundLocked()
	h.mu.Unlock()

	recv[RoundStartMessage](t, c2)
	clock.BlockUntil(1)

	h.inbound <- inboundMessage{client: c1, msg: ClientMessage{Type: msgPause}}

	pause := recv[PauseMessage](t, c2)
	assert.Equal(t, msgPause, pause.Type)
	assert.Equal(t, "p1", pause.PausedBy)

	// The original deadline elapses while paused; the round must survive it.
	clock.Advance(2 * cfg.roundDuration)

	select {
	case msg := <-c2.send:
		_, ended := msg.(RoundEndMessage)
		assert.False(t, ended, "round ended while paused")
	case <-time.After(200 * time.Millisecond):
	}

	h.mu.RLock()
	assert.Equal(t, phaseRound, h.phase)
	h.mu.RUnlock()

	h.inbound <- inboundMessage{client: c1, msg: ClientMessage{Type: msgResume}}

	resume := recv[PauseMessage](t, c2)
	assert.Equal(t, msgResume, resume.Type)

	clock.BlockUntil(1)
	clock.Advance(cfg.roundDuration)

	recv[RoundEndMessage](t, c2)
}

func TestRankingTiebreakByJoinOrder(t *testing.T) {
	h, _ := newTestHub(t, testConfig())

	joinPlayer(t, h, "p1", "Asha")
	joinPlayer(t, h, "p2", "Ravi")
	joinPlayer(t, h, "p3", "Meera")

	h.mu.Lock()
	h.players["p1"].Score = 10
	h.players["p2"].Score = 25
	h.players["p3"].Score = 10
	ranked := h.rankedLocked()
	h.mu.Unlock()

	require.Len(t, ranked, 3)
	assert.Equal(t, "p2", ranked[0].ID)
	assert.Equal(t, "p1", ranked[1].ID)
	assert.Equal(t, "p3", ranked[2].ID)
}
