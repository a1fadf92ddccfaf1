// internal/game/janitor_test.go
package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepIdleAbandonsIdleLobbies(t *testing.T) {
	h := newHarness(t)
	_, _, staleCode := h.lobby(2)

	h.clock.Advance(20 * time.Minute)
	freshID, freshPlayers, freshCode := h.lobby(2)

	h.clock.Advance(11 * time.Minute)
	h.m.SweepIdle()

	// the inbox is FIFO, so this state call runs after the sweep
	_, err := h.m.State(h.ctx, freshID, freshPlayers[0])
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := h.m.LookupJoinCode(staleCode)
		return !ok
	}, waitFor, tick)
	_, ok := h.m.LookupJoinCode(freshCode)
	assert.True(t, ok)
	assert.Empty(t, h.archiver.archived())

	ended := h.mb.eventsOfType(EventGameEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, "idle", ended[0].Payload["reason"])
}

func TestSweepIdleLeavesActiveGames(t *testing.T) {
	h := newHarness(t)
	sessionID, players := h.startGame(3, 5, 8, 12, 60)

	h.clock.Advance(time.Hour)
	h.m.SweepIdle()

	snap := h.state(sessionID, players[0])
	assert.Equal(t, StatusPlaying, snap.Status)
	assert.Equal(t, 1, snap.Round.Number)
}

func TestJanitorLifecycle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.StartJanitor(time.Minute))
	require.NoError(t, h.m.StartJanitor(time.Minute))
	h.m.StopJanitor()
	h.m.StopJanitor()
}
