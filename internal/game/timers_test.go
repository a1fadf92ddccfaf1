// internal/game/timers_test.go
package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func (h *harness) roundNumber(sessionID, playerID uuid.UUID) int {
	snap, err := h.m.State(h.ctx, sessionID, playerID)
	if err != nil || snap.Round == nil {
		return -1
	}
	return snap.Round.Number
}

func TestReconnectWithinWindow(t *testing.T) {
	h := newHarness(t)
	sessionID, players := h.startGame(3, 5, 8, 12, 60)
	before := cardIDs(h.state(sessionID, players[1]).Hand)

	h.do(sessionID, Disconnect{PlayerID: players[1]})
	snap := h.state(sessionID, players[0])
	assert.False(t, snap.Players[1].Connected)
	assert.Len(t, h.mb.eventsOfType(EventPlayerDisconnected), 1)

	// disconnecting twice is harmless
	h.do(sessionID, Disconnect{PlayerID: players[1]})
	assert.Len(t, h.mb.eventsOfType(EventPlayerDisconnected), 1)

	h.clock.Advance(4 * time.Minute)

	res, err := h.m.ReconnectToGame(h.ctx, sessionID, nil, &players[1])
	require.NoError(t, err)
	assert.Equal(t, players[1], res.PlayerID)
	assert.Equal(t, before, cardIDs(res.Snapshot.Hand))
	assert.True(t, res.Snapshot.Players[1].Connected)
	assert.Len(t, h.mb.eventsOfType(EventPlayerReconnected), 1)

	h.clock.Advance(2 * time.Minute)
	assert.Never(t, func() bool {
		snap, err := h.m.State(h.ctx, sessionID, players[0])
		return err != nil || len(snap.Players) != 3
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestEvictionAfterTimeout(t *testing.T) {
	h := newHarness(t)
	sessionID, players := h.startGame(4, 5, 8, 12, 60)

	h.do(sessionID, Disconnect{PlayerID: players[3]})
	h.clock.Advance(DefaultPlayerEvictTimeout + time.Second)

	require.Eventually(t, func() bool {
		snap, err := h.m.State(h.ctx, sessionID, players[0])
		return err == nil && len(snap.Players) == 3
	}, waitFor, tick)

	_, err := h.m.ReconnectToGame(h.ctx, sessionID, nil, &players[3])
	require.ErrorIs(t, err, ErrNotInGame)

	left := h.mb.eventsOfType(EventPlayerLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "timeout", left[0].Payload["reason"])
	assert.Equal(t, 2, h.state(sessionID, players[0]).Round.RequiredCount)
}

func TestEvictionBelowMinimumAbandons(t *testing.T) {
	h := newHarness(t)
	sessionID, players := h.startGame(3, 5, 8, 12, 60)

	h.do(sessionID, Disconnect{PlayerID: players[2]})
	h.clock.Advance(DefaultPlayerEvictTimeout)

	require.Eventually(t, func() bool {
		return len(h.archiver.archived()) == 1
	}, waitFor, tick)
	assert.True(t, h.archiver.archived()[0].WasAbandoned)

	require.Eventually(t, func() bool {
		_, err := h.m.State(h.ctx, sessionID, players[0])
		return err != nil
	}, waitFor, tick)
}

func TestReconnectMatching(t *testing.T) {
	h := newHarness(t)
	sessionID, players, code := h.lobby(3)
	userID := uuid.New()
	member, err := h.m.JoinGame(h.ctx, code, &userID, "Member")
	require.NoError(t, err)

	t.Run("sole disconnected guest", func(t *testing.T) {
		h.do(sessionID, Disconnect{PlayerID: players[1]})
		res, err := h.m.ReconnectToGame(h.ctx, sessionID, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, players[1], res.PlayerID)
	})

	t.Run("ambiguous guests", func(t *testing.T) {
		h.do(sessionID, Disconnect{PlayerID: players[1]})
		h.do(sessionID, Disconnect{PlayerID: players[2]})
		_, err := h.m.ReconnectToGame(h.ctx, sessionID, nil, nil)
		require.ErrorIs(t, err, ErrNotInGame)

		res, err := h.m.ReconnectToGame(h.ctx, sessionID, nil, &players[2])
		require.NoError(t, err)
		assert.Equal(t, players[2], res.PlayerID)
	})

	t.Run("hint cannot claim a registered player", func(t *testing.T) {
		_, err := h.m.ReconnectToGame(h.ctx, sessionID, nil, &players[1])
		require.NoError(t, err)

		h.do(sessionID, Disconnect{PlayerID: member.PlayerID})
		_, err = h.m.ReconnectToGame(h.ctx, sessionID, nil, &member.PlayerID)
		require.ErrorIs(t, err, ErrNotInGame)
	})

	t.Run("by user id", func(t *testing.T) {
		res, err := h.m.ReconnectToGame(h.ctx, sessionID, &userID, nil)
		require.NoError(t, err)
		assert.Equal(t, member.PlayerID, res.PlayerID)

		other := uuid.New()
		_, err = h.m.ReconnectToGame(h.ctx, sessionID, &other, nil)
		require.ErrorIs(t, err, ErrNotInGame)
	})

	t.Run("connected guest cannot be claimed", func(t *testing.T) {
		require.True(t, h.state(sessionID, players[2]).Players[2].Connected)

		_, err := h.m.ReconnectToGame(h.ctx, sessionID, nil, &players[2])
		require.ErrorIs(t, err, ErrNotInGame)

		stranger := uuid.New()
		_, err = h.m.ReconnectToGame(h.ctx, sessionID, &stranger, &players[2])
		require.ErrorIs(t, err, ErrNotInGame)
	})

	t.Run("signed-in caller cannot claim a disconnected guest", func(t *testing.T) {
		h.do(sessionID, Disconnect{PlayerID: players[2]})
		res, err := h.m.ReconnectToGame(h.ctx, sessionID, &userID, &players[2])
		require.NoError(t, err)
		assert.Equal(t, member.PlayerID, res.PlayerID)

		stranger := uuid.New()
		_, err = h.m.ReconnectToGame(h.ctx, sessionID, &stranger, &players[2])
		require.ErrorIs(t, err, ErrNotInGame)
		assert.False(t, h.state(sessionID, players[0]).Players[2].Connected)
	})
}

func TestCzarTimeoutAutoSelects(t *testing.T) {
	h := newHarness(t)
	sessionID, players := h.startGame(3, 5, 8, 12, 60)

	subs := h.submitAll(sessionID, players)
	require.Len(t, subs, 2)
	h.do(sessionID, Disconnect{PlayerID: players[0]})

	h.clock.Advance(DefaultCzarDisconnectTimeout - time.Second)
	assert.Never(t, func() bool {
		return h.roundNumber(sessionID, players[1]) != 1
	}, 50*time.Millisecond, 10*time.Millisecond)

	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return h.roundNumber(sessionID, players[1]) == 2
	}, waitFor, tick)

	snap := h.state(sessionID, players[1])
	assert.Equal(t, 1, scoreOf(snap, players[1])+scoreOf(snap, players[2]))
	assert.Equal(t, 0, scoreOf(snap, players[0]))
	assert.Equal(t, players[1], snap.Round.CzarID)
	assert.Len(t, h.mb.eventsOfType(EventWinnerSelected), 1)
	assert.Contains(t, h.actions.types(), "select-winner")
}

func TestCzarTimeoutWithoutSubmissionsVoids(t *testing.T) {
	h := newHarness(t)
	sessionID, players := h.startGame(3, 5, 8, 12, 60)

	h.do(sessionID, Disconnect{PlayerID: players[0]})
	h.clock.Advance(DefaultCzarDisconnectTimeout)

	require.Eventually(t, func() bool {
		return h.roundNumber(sessionID, players[1]) == 2
	}, waitFor, tick)

	snap := h.state(sessionID, players[1])
	for _, p := range snap.Players {
		assert.Zero(t, p.Score)
	}
	ended := h.mb.eventsOfType(EventRoundEnded)
	require.Len(t, ended, 1)
	assert.True(t, ended[0].Round.Voided)
	assert.Empty(t, h.mb.eventsOfType(EventWinnerSelected))
}

func TestCzarReconnectCancelsTimeout(t *testing.T) {
	h := newHarness(t)
	sessionID, players := h.startGame(3, 5, 8, 12, 60)

	h.submitAll(sessionID, players)
	h.do(sessionID, Disconnect{PlayerID: players[0]})
	res, err := h.m.ReconnectToGame(h.ctx, sessionID, nil, &players[0])
	require.NoError(t, err)
	// a returning czar gets the submissions to judge again
	assert.Len(t, res.Snapshot.Submissions, 2)
	assert.Len(t, h.mb.playerEventsOfType(players[0], EventAllCardsSubmitted), 2)

	h.clock.Advance(DefaultCzarDisconnectTimeout + time.Second)
	assert.Never(t, func() bool {
		return h.roundNumber(sessionID, players[1]) != 1
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Empty(t, h.mb.eventsOfType(EventWinnerSelected))
}

func TestCzarTimerArmedForDisconnectedNextCzar(t *testing.T) {
	h := newHarness(t)
	sessionID, players := h.startGame(3, 5, 8, 12, 60)

	// p1 is the next czar and is gone before the round starts
	h.do(sessionID, Disconnect{PlayerID: players[1]})
	h.playRound(sessionID, players, players[2])
	require.Equal(t, players[1], h.state(sessionID, players[0]).Round.CzarID)

	h.clock.Advance(DefaultCzarDisconnectTimeout)
	require.Eventually(t, func() bool {
		return h.roundNumber(sessionID, players[0]) == 3
	}, waitFor, tick)
}
