package main

// Action is a player's committed response for a round.
type Action string

const (
	// ActionLifted means the player released contact during the round window.
	ActionLifted Action = "lifted"
	// ActionKept is the default: contact held through the whole round.
	ActionKept Action = "kept"
)

const (
	pointsCorrect = 10
	pointsWrong   = -5
)

// scoreRound is the shared scoring rule, run identically by the host and by
// every client's local prediction. Any divergence between the two sides
// desynchronizes the leaderboards, so all scoring everywhere goes through
// this one function.
//
// A player who was not in contact when the round began gets a nil correct
// flag and no score change: the round was not a fair trial for them.
func scoreRound(item Item, action Action, wasTouchingAtStart bool) (points int, correct *bool) {
	if !wasTouchingAtStart {
		return 0, nil
	}

	if (item.CanFly && action == ActionLifted) || (!item.CanFly && action == ActionKept) {
		return pointsCorrect, boolPtr(true)
	}

	return pointsWrong, boolPtr(false)
}

// clampScore enforces the floor: cumulative scores never go negative.
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	return score
}

func boolPtr(b bool) *bool {
	return &b
}
