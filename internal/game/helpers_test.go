// internal/game/helpers_test.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent
	playerEvents map[uuid.UUID][]GameEvent
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{playerEvents: make(map[uuid.UUID][]GameEvent)}
}

func (mb *mockBroadcaster) Broadcast(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) SendToPlayer(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) eventsOfType(t EventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.allEvents {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) playerEventsOfType(playerID uuid.UUID, t EventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.playerEvents[playerID] {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// memoryDecks is an in-memory DeckRepository.
type memoryDecks struct {
	mu    sync.Mutex
	decks map[uuid.UUID][]models.Card
	err   error
}

func newMemoryDecks() *memoryDecks {
	return &memoryDecks{decks: make(map[uuid.UUID][]models.Card)}
}

// add registers a deck with the given number of black cards (each with the given pick) and white cards.
func (d *memoryDecks) add(black, white, pick int) uuid.UUID {
	deckID := uuid.New()
	cards := make([]models.Card, 0, black+white)
	for i := 0; i < black; i++ {
		cards = append(cards, models.Card{ID: uuid.New(), DeckID: deckID, Kind: models.CardKindBlack, Text: fmt.Sprintf("prompt %d ____", i), Pick: pick})
	}
	for i := 0; i < white; i++ {
		cards = append(cards, models.Card{ID: uuid.New(), DeckID: deckID, Kind: models.CardKindWhite, Text: fmt.Sprintf("answer %d", i)})
	}
	d.put(deckID, cards)
	return deckID
}

func (d *memoryDecks) put(deckID uuid.UUID, cards []models.Card) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decks[deckID] = cards
}

func (d *memoryDecks) FetchCardsByDeckIDs(_ context.Context, deckIDs []uuid.UUID) ([]models.Card, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	var out []models.Card
	for _, id := range deckIDs {
		out = append(out, d.decks[id]...)
	}
	return out, nil
}

// recordingArchiver keeps archived games in memory and can be told to fail.
type recordingArchiver struct {
	mu    sync.Mutex
	games []*models.CompletedGame
	fail  bool
}

func (a *recordingArchiver) ArchiveGame(_ context.Context, g *models.CompletedGame) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("tx aborted")
	}
	a.games = append(a.games, g)
	return nil
}

func (a *recordingArchiver) setFail(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail = fail
}

func (a *recordingArchiver) archived() []*models.CompletedGame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*models.CompletedGame(nil), a.games...)
}

type recordingActions struct {
	mu      sync.Mutex
	records []models.ActionRecord
}

func (r *recordingActions) Record(rec models.ActionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recordingActions) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.ActionType)
	}
	return out
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	m        *Manager
	mb       *mockBroadcaster
	decks    *memoryDecks
	archiver *recordingArchiver
	actions  *recordingActions
	clock    *clockwork.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	h := &harness{
		t:        t,
		ctx:      context.Background(),
		mb:       newMockBroadcaster(),
		decks:    newMemoryDecks(),
		archiver: &recordingArchiver{},
		actions:  &recordingActions{},
		clock:    clockwork.NewFakeClock(),
	}
	h.m = NewManager(Dependencies{
		Decks:       h.decks,
		Archiver:    h.archiver,
		Broadcaster: h.mb,
		Actions:     h.actions,
		Clock:       h.clock,
		Logger:      logger,
		Rand:        rand.New(rand.NewPCG(1, 2)),
	})
	t.Cleanup(func() {
		_ = h.m.Shutdown(context.Background())
	})
	return h
}

// lobby creates a session with n players; players[0] is the owner.
func (h *harness) lobby(n int) (uuid.UUID, []uuid.UUID, string) {
	h.t.Helper()
	res, err := h.m.CreateGame(h.ctx, nil, "Owner")
	require.NoError(h.t, err)
	players := []uuid.UUID{res.PlayerID}
	for i := 1; i < n; i++ {
		jr, err := h.m.JoinGame(h.ctx, res.JoinCode, nil, fmt.Sprintf("Player %d", i))
		require.NoError(h.t, err)
		players = append(players, jr.PlayerID)
	}
	return res.SessionID, players, res.JoinCode
}

func (h *harness) do(sessionID uuid.UUID, cmd Command) interface{} {
	h.t.Helper()
	v, err := h.m.Dispatch(h.ctx, sessionID, cmd)
	require.NoError(h.t, err, "command %s", cmd.commandName())
	return v
}

func (h *harness) state(sessionID, playerID uuid.UUID) *Snapshot {
	h.t.Helper()
	snap, err := h.m.State(h.ctx, sessionID, playerID)
	require.NoError(h.t, err)
	return snap
}

// startGame builds a lobby of n players with a fresh deck and starts it.
func (h *harness) startGame(n, handSize, pointsToWin, black, white int) (uuid.UUID, []uuid.UUID) {
	h.t.Helper()
	sessionID, players, _ := h.lobby(n)
	deckID := h.decks.add(black, white, 1)
	h.do(sessionID, UpdateDecks{RequesterID: players[0], DeckIDs: []uuid.UUID{deckID}})
	h.do(sessionID, UpdateSettings{RequesterID: players[0], Changes: map[string]interface{}{
		"handSize":    handSize,
		"pointsToWin": pointsToWin,
	}})
	h.do(sessionID, StartGame{RequesterID: players[0]})
	return sessionID, players
}

// submitAll makes every non-czar player submit the first cards of their hand.
// It returns the submission id of each submitter.
func (h *harness) submitAll(sessionID uuid.UUID, players []uuid.UUID) map[uuid.UUID]uuid.UUID {
	h.t.Helper()
	round := h.state(sessionID, players[0]).Round
	require.NotNil(h.t, round)
	subs := make(map[uuid.UUID]uuid.UUID)
	for _, pid := range players {
		if pid == round.CzarID {
			continue
		}
		hand := h.state(sessionID, pid).Hand
		require.GreaterOrEqual(h.t, len(hand), round.BlackCard.Pick)
		ids := make([]uuid.UUID, 0, round.BlackCard.Pick)
		for _, c := range hand[:round.BlackCard.Pick] {
			ids = append(ids, c.ID)
		}
		res := h.do(sessionID, SubmitCards{PlayerID: pid, RoundID: round.ID, CardIDs: ids}).(*SubmitResult)
		subs[pid] = res.SubmissionID
	}
	return subs
}

// playRound has everyone submit and the czar pick winner's submission.
func (h *harness) playRound(sessionID uuid.UUID, players []uuid.UUID, winner uuid.UUID) *SelectResult {
	h.t.Helper()
	round := h.state(sessionID, players[0]).Round
	subs := h.submitAll(sessionID, players)
	subID, ok := subs[winner]
	require.True(h.t, ok, "winner must not be the czar")
	return h.do(sessionID, SelectWinner{RequesterID: round.CzarID, RoundID: round.ID, SubmissionID: subID}).(*SelectResult)
}

func cardIDs(cards []models.Card) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	return ids
}

func scoreOf(snap *Snapshot, playerID uuid.UUID) int {
	for _, p := range snap.Players {
		if p.ID == playerID {
			return p.Score
		}
	}
	return -1
}

func findArchived(g *models.CompletedGame, playerID uuid.UUID) *models.CompletedGamePlayer {
	for i := range g.Players {
		if g.Players[i].PlayerID == playerID {
			return &g.Players[i]
		}
	}
	return nil
}
