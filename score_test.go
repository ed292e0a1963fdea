package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreRound(t *testing.T) {
	flying := Item{Name: "PARROT", CanFly: true}
	grounded := Item{Name: "COW", CanFly: false}

	tests := []struct {
		name        string
		item        Item
		action      Action
		touching    bool
		wantPoints  int
		wantCorrect *bool
	}{
		{"lift on flying", flying, ActionLifted, true, 10, boolPtr(true)},
		{"keep on flying", flying, ActionKept, true, -5, boolPtr(false)},
		{"lift on grounded", grounded, ActionLifted, true, -5, boolPtr(false)},
		{"keep on grounded", grounded, ActionKept, true, 10, boolPtr(true)},
		{"not touching, lift", flying, ActionLifted, false, 0, nil},
		{"not touching, keep", grounded, ActionKept, false, 0, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			points, correct := scoreRound(tc.item, tc.action, tc.touching)

			assert.Equal(t, tc.wantPoints, points)
			if tc.wantCorrect == nil {
				assert.Nil(t, correct)
			} else {
				require.NotNil(t, correct)
				assert.Equal(t, *tc.wantCorrect, *correct)
			}
		})
	}
}

func TestScoreRoundNeverZeroWhenJudged(t *testing.T) {
	// A judged round always moves the score; only sitting out yields zero.
	for _, item := range []Item{{CanFly: true}, {CanFly: false}} {
		for _, action := range []Action{ActionLifted, ActionKept} {
			points, correct := scoreRound(item, action, true)

			require.NotNil(t, correct)
			assert.NotZero(t, points)
			if *correct {
				assert.Equal(t, 10, points)
			} else {
				assert.Equal(t, -5, points)
			}
		}
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, clampScore(-5))
	assert.Equal(t, 0, clampScore(0))
	assert.Equal(t, 25, clampScore(25))
}
