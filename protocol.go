package main

import "encoding/json"

// Wire protocol message types. Every message is a JSON object carrying a
// "type" tag; the remaining fields depend on the tag.
const (
	// client → host
	msgJoin         = "join"
	msgStartGame    = "startGame"
	msgTouchStatus  = "touchStatus"
	msgPlayerAction = "playerAction"
	msgScoreUpdate  = "scoreUpdate"
	msgPause        = "pause"
	msgResume       = "resume"
	msgLeave        = "leave"

	// host → clients
	msgPlayerList         = "playerList"
	msgRoomFull           = "roomFull"
	msgGameStart          = "gameStart"
	msgRoundStart         = "roundStart"
	msgPlayerActionUpdate = "playerActionUpdate"
	msgRoundEnd           = "roundEnd"
	msgLeaderboard        = "leaderboard"
	msgGameEnd            = "gameEnd"
	msgPlayerDisconnected = "playerDisconnected"
)

// ClientMessage is the single inbound shape: clients send a type tag plus
// whichever optional fields that tag uses.
type ClientMessage struct {
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`      // join
	Action    Action `json:"action,omitempty"`    // playerAction
	IsTouched *bool  `json:"isTouched,omitempty"` // touchStatus
	Score     *int   `json:"score,omitempty"`     // scoreUpdate
	Timestamp int64  `json:"timestamp,omitempty"` // touchStatus / playerAction
}

// PlayerInfo is the roster entry shared in playerList, leaderboard, and
// ranking broadcasts.
type PlayerInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ColorIndex int    `json:"colorIndex"`
	Score      int    `json:"score"`
	Connected  bool   `json:"connected"`
	IsHost     bool   `json:"isHost"`
}

type PlayerListMessage struct {
	Type    string       `json:"type"` // "playerList"
	Players []PlayerInfo `json:"players"`
	HostID  string       `json:"hostId"`
}

// SimpleMessage covers notifications that carry at most a human-readable
// string ("roomFull", error notices).
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type GameStartMessage struct {
	Type    string       `json:"type"` // "gameStart"
	Players []PlayerInfo `json:"players"`
}

type RoundStartMessage struct {
	Type        string `json:"type"` // "roundStart"
	Round       int    `json:"round"`
	TotalRounds int    `json:"totalRounds"`
	Item        Item   `json:"item"`
	DurationMs  int64  `json:"durationMs"`
}

// PlayerActionUpdateMessage relays one player's action to everyone for live
// visual feedback. Receivers never score from it.
type PlayerActionUpdateMessage struct {
	Type     string `json:"type"` // "playerActionUpdate"
	PlayerID string `json:"playerId"`
	Action   Action `json:"action"`
}

// PlayerResult is one player's outcome for a single round. Correct is nil
// when the player was not touching at round start and sat the round out.
type PlayerResult struct {
	Action   Action `json:"action"`
	Points   int    `json:"points"`
	Correct  *bool  `json:"correct"`
	NewScore int    `json:"newScore"`
}

type RoundEndMessage struct {
	Type          string                  `json:"type"` // "roundEnd"
	Results       map[string]PlayerResult `json:"results"`
	CorrectAnswer string                  `json:"correctAnswer"` // "lift" or "keep"
}

type LeaderboardMessage struct {
	Type    string       `json:"type"` // "leaderboard"
	Players []PlayerInfo `json:"players"`
}

type GameEndMessage struct {
	Type     string       `json:"type"` // "gameEnd"
	Rankings []PlayerInfo `json:"rankings"`
}

type PlayerDisconnectedMessage struct {
	Type     string `json:"type"` // "playerDisconnected"
	PlayerID string `json:"playerId"`
}

type PauseMessage struct {
	Type     string `json:"type"` // "pause" or "resume"
	PausedBy string `json:"pausedBy,omitempty"`
}

// decodeServerMessage turns a raw host→client frame into its concrete
// message struct. Unknown tags decode to (nil, nil) and are ignored by the
// caller rather than failing the session.
func decodeServerMessage(data []byte) (any, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	var target any

	switch probe.Type {
	case msgPlayerList:
		target = &PlayerListMessage{}
	case msgRoomFull:
		target = &SimpleMessage{}
	case msgGameStart:
		target = &GameStartMessage{}
	case msgRoundStart:
		target = &RoundStartMessage{}
	case msgPlayerActionUpdate:
		target = &PlayerActionUpdateMessage{}
	case msgRoundEnd:
		target = &RoundEndMessage{}
	case msgLeaderboard:
		target = &LeaderboardMessage{}
	case msgGameEnd:
		target = &GameEndMessage{}
	case msgPlayerDisconnected:
		target = &PlayerDisconnectedMessage{}
	case msgPause, msgResume:
		target = &PauseMessage{}
	default:
		return nil, nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, err
	}

	return target, nil
}
