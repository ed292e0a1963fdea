package main

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	joinAttempts    = 3
	joinBackoff     = 2 * time.Second
	dialTimeout     = 5 * time.Second
	joinReplyWindow = 5 * time.Second
)

var (
	errNameRequired  = errors.New("player name must be at least 2 characters")
	errBadRoomCode   = errors.New("room code must be 6 letters or digits")
	errRoomFull      = errors.New("room is full")
	errNotHost       = errors.New("only the host can do that")
	errTooFewPlayers = errors.New("need at least 2 players to start")
)

var roomCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

// GameClient is a headless player. It mirrors the host's broadcasts into a
// local view and predicts its own score locally so the player sees the
// result of a lift immediately instead of a round-trip later.
type GameClient struct {
	conn     Conn
	playerID string
	name     string

	mu       sync.Mutex
	hostID   string
	roster   []PlayerInfo
	round    int
	item     Item
	inRound  bool
	paused   bool
	touching bool

	// touchedAtStart is this client's own snapshot, taken when roundStart
	// arrives. It feeds the same scoring rule the host runs.
	touchedAtStart bool
	score          int

	// lastScoredRound makes self-scoring idempotent: each round adjusts the
	// local score exactly once, whether triggered by a lift or by roundEnd.
	lastScoredRound int

	joined   chan error
	joinOnce sync.Once
	done     chan struct{}

	// Optional hooks, invoked from the receive loop. Nil hooks are skipped.
	OnRoster         func([]PlayerInfo)
	OnGameStart      func([]PlayerInfo)
	OnRoundStart     func(round int, item Item, duration time.Duration)
	OnActionUpdate   func(playerID string, action Action)
	OnRoundEnd       func(results map[string]PlayerResult, correctAnswer string)
	OnLeaderboard    func([]PlayerInfo)
	OnGameEnd        func(rankings []PlayerInfo)
	OnPeerDisconnect func(playerID string)
	OnPause          func(pausedBy string)
	OnResume         func()
	OnDisconnect     func()
}

// JoinRoom dials the room and joins it under the given name. The dial is
// retried a few times with backoff so a room code typed a moment before the
// host's page finished loading still resolves.
func JoinRoom(ctx context.Context, baseURL, path, code, name string) (*GameClient, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < 2 {
		return nil, errNameRequired
	}
	if !roomCodePattern.MatchString(strings.TrimSpace(code)) {
		return nil, errBadRoomCode
	}

	playerID := uuid.NewString()

	var conn Conn
	var err error
	for attempt := 0; attempt < joinAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(joinBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		conn, err = dialRoom(ctx, baseURL, path, strings.TrimSpace(code), playerID, dialTimeout)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	c := &GameClient{
		conn:     conn,
		playerID: playerID,
		name:     name,
		joined:   make(chan error, 1),
		done:     make(chan struct{}),
	}

	if err := conn.Send(ClientMessage{Type: msgJoin, Name: name}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go c.run()

	select {
	case err := <-c.joined:
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
	case <-time.After(joinReplyWindow):
		_ = conn.Close()
		return nil, errors.New("no join confirmation from room")
	case <-ctx.Done():
		_ = conn.Close()
		return nil, ctx.Err()
	}

	return c, nil
}

func (c *GameClient) run() {
	defer func() {
		close(c.done)
		if c.OnDisconnect != nil {
			c.OnDisconnect()
		}
	}()

	for data := range c.conn.Messages() {
		msg, err := decodeServerMessage(data)
		if err != nil || msg == nil {
			continue
		}
		c.handle(msg)
	}
}

func (c *GameClient) handle(msg any) {
	switch v := msg.(type) {
	case *PlayerListMessage:
		c.mu.Lock()
		c.hostID = v.HostID
		c.roster = c.reconcileRoster(v.Players)
		roster := c.roster
		c.mu.Unlock()

		c.joinOnce.Do(func() { c.joined <- nil })
		if c.OnRoster != nil {
			c.OnRoster(roster)
		}

	case *SimpleMessage:
		if v.Type == msgRoomFull {
			c.joinOnce.Do(func() { c.joined <- errRoomFull })
		}

	case *GameStartMessage:
		c.mu.Lock()
		c.score = 0
		c.lastScoredRound = 0
		c.round = 0
		c.roster = c.reconcileRoster(v.Players)
		players := c.roster
		c.mu.Unlock()

		if c.OnGameStart != nil {
			c.OnGameStart(players)
		}

	case *RoundStartMessage:
		c.mu.Lock()
		c.round = v.Round
		c.item = v.Item
		c.inRound = true
		c.paused = false
		c.touchedAtStart = c.touching
		c.mu.Unlock()

		if c.OnRoundStart != nil {
			c.OnRoundStart(v.Round, v.Item, time.Duration(v.DurationMs)*time.Millisecond)
		}

	case *PlayerActionUpdateMessage:
		// Visual feedback only; never scored from.
		if c.OnActionUpdate != nil {
			c.OnActionUpdate(v.PlayerID, v.Action)
		}

	case *RoundEndMessage:
		c.reconcileRoundEnd(v)
		if c.OnRoundEnd != nil {
			c.OnRoundEnd(v.Results, v.CorrectAnswer)
		}

	case *LeaderboardMessage:
		c.mu.Lock()
		c.roster = c.reconcileRoster(v.Players)
		roster := c.roster
		c.mu.Unlock()

		if c.OnLeaderboard != nil {
			c.OnLeaderboard(roster)
		}

	case *GameEndMessage:
		c.mu.Lock()
		rankings := c.reconcileRoster(v.Rankings)
		c.inRound = false
		c.mu.Unlock()

		if c.OnGameEnd != nil {
			c.OnGameEnd(rankings)
		}

	case *PlayerDisconnectedMessage:
		if c.OnPeerDisconnect != nil {
			c.OnPeerDisconnect(v.PlayerID)
		}

	case *PauseMessage:
		switch v.Type {
		case msgPause:
			c.mu.Lock()
			c.paused = true
			c.mu.Unlock()
			if c.OnPause != nil {
				c.OnPause(v.PausedBy)
			}
		case msgResume:
			c.mu.Lock()
			c.paused = false
			c.mu.Unlock()
			if c.OnResume != nil {
				c.OnResume()
			}
		}
	}
}

// reconcileRoster adopts the host's view of everyone except this client's
// own score, which local prediction owns. Callers hold mu.
func (c *GameClient) reconcileRoster(players []PlayerInfo) []PlayerInfo {
	out := make([]PlayerInfo, len(players))
	copy(out, players)

	for i := range out {
		if out[i].ID == c.playerID {
			out[i].Score = c.score
		}
	}

	return out
}

// reconcileRoundEnd applies a round result broadcast. Everyone else's score
// comes from the host; this client's own comes from the shared scoring rule
// run locally, exactly once per round, then pushed back upstream. Replayed
// roundEnd broadcasts are no-ops for the local score.
func (c *GameClient) reconcileRoundEnd(v *RoundEndMessage) {
	c.mu.Lock()

	c.inRound = false

	if c.lastScoredRound < c.round {
		c.applySelfScoreLocked(ActionKept)
	}

	for i := range c.roster {
		if c.roster[i].ID == c.playerID {
			continue
		}
		if res, ok := v.Results[c.roster[i].ID]; ok {
			c.roster[i].Score = res.NewScore
		}
	}

	score := c.score
	c.mu.Unlock()

	_ = c.conn.Send(ClientMessage{Type: msgScoreUpdate, Score: &score})
}

func (c *GameClient) applySelfScoreLocked(action Action) {
	points, correct := scoreRound(c.item, action, c.touchedAtStart)
	if correct != nil {
		c.score = clampScore(c.score + points)
	}
	c.lastScoredRound = c.round

	for i := range c.roster {
		if c.roster[i].ID == c.playerID {
			c.roster[i].Score = c.score
		}
	}
}

// Touch reports that the player's finger is down on the board.
func (c *GameClient) Touch() error {
	c.mu.Lock()
	c.touching = true
	c.mu.Unlock()

	t := true
	return c.conn.Send(ClientMessage{
		Type:      msgTouchStatus,
		IsTouched: &t,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Release lifts the finger. During an active round this commits a "lifted"
// action and immediately applies the predicted score, so the player's own
// number updates with zero latency.
func (c *GameClient) Release() error {
	c.mu.Lock()
	c.touching = false

	commit := c.inRound && !c.paused
	if commit && c.lastScoredRound < c.round {
		c.applySelfScoreLocked(ActionLifted)
	}
	c.mu.Unlock()

	t := false
	if err := c.conn.Send(ClientMessage{
		Type:      msgTouchStatus,
		IsTouched: &t,
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		return err
	}

	if !commit {
		return nil
	}

	return c.conn.Send(ClientMessage{
		Type:      msgPlayerAction,
		Action:    ActionLifted,
		Timestamp: time.Now().UnixMilli(),
	})
}

// StartGame asks the host loop to begin the match. Validation runs locally
// first so the player gets an immediate error instead of silence.
func (c *GameClient) StartGame() error {
	c.mu.Lock()
	isHost := c.playerID == c.hostID
	count := len(c.roster)
	c.mu.Unlock()

	if !isHost {
		return errNotHost
	}
	if count < 2 {
		return errTooFewPlayers
	}

	return c.conn.Send(ClientMessage{Type: msgStartGame})
}

func (c *GameClient) Pause() error {
	return c.conn.Send(ClientMessage{Type: msgPause})
}

func (c *GameClient) Resume() error {
	return c.conn.Send(ClientMessage{Type: msgResume})
}

// Leave exits the room gracefully: the host removes this player right away
// instead of waiting out the disconnect grace period.
func (c *GameClient) Leave() error {
	err := c.conn.Send(ClientMessage{Type: msgLeave})
	_ = c.conn.Close()

	return err
}

func (c *GameClient) PlayerID() string {
	return c.playerID
}

func (c *GameClient) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.playerID == c.hostID
}

func (c *GameClient) Score() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.score
}

func (c *GameClient) Roster() []PlayerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]PlayerInfo, len(c.roster))
	copy(out, c.roster)

	return out
}

// Done is closed once the connection to the room is gone.
func (c *GameClient) Done() <-chan struct{} {
	return c.done
}
