// internal/game/pool_test.go
package game

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

func TestBuildPoolMinimums(t *testing.T) {
	decks := newMemoryDecks()
	ctx := context.Background()

	tests := []struct {
		name    string
		black   int
		white   int
		players int
		hand    int
		wantErr bool
	}{
		{name: "exact minimum", black: 10, white: 40, players: 3, hand: 10},
		{name: "one white short", black: 10, white: 39, players: 3, hand: 10, wantErr: true},
		{name: "one black short", black: 9, white: 100, players: 3, hand: 10, wantErr: true},
		{name: "small hands", black: 10, white: 19, players: 3, hand: 3},
		{name: "large table", black: 20, white: 249, players: 20, hand: 12, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deckID := decks.add(tt.black, tt.white, 1)
			pool, err := BuildPool(ctx, decks, []uuid.UUID{deckID}, tt.players, tt.hand, testRand())
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInsufficientCards)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.black, pool.BlackRemaining())
			assert.Equal(t, tt.white, pool.WhiteRemaining())
			assert.Equal(t, tt.black+tt.white, pool.Size())
		})
	}
}

func TestBuildPoolNoDecks(t *testing.T) {
	_, err := BuildPool(context.Background(), newMemoryDecks(), nil, 3, 10, testRand())
	require.ErrorIs(t, err, ErrInsufficientCards)
}

func TestBuildPoolRepositoryError(t *testing.T) {
	decks := newMemoryDecks()
	decks.err = assert.AnError
	_, err := BuildPool(context.Background(), decks, []uuid.UUID{uuid.New()}, 3, 10, testRand())
	require.ErrorIs(t, err, assert.AnError)

	var ge *GameError
	assert.NotErrorAs(t, err, &ge)
}

func TestBuildPoolDeduplicates(t *testing.T) {
	decks := newMemoryDecks()
	first := decks.add(10, 40, 0)

	// a second deck sharing every card of the first plus a few of its own
	shared := append([]models.Card(nil), decks.decks[first]...)
	second := uuid.New()
	for i := 0; i < 5; i++ {
		shared = append(shared, models.Card{ID: uuid.New(), DeckID: second, Kind: models.CardKindWhite, Text: "extra"})
	}
	shared = append(shared, models.Card{ID: uuid.New(), DeckID: second, Kind: "purple", Text: "ignored"})
	decks.put(second, shared)

	pool, err := BuildPool(context.Background(), decks, []uuid.UUID{first, second}, 3, 10, testRand())
	require.NoError(t, err)
	assert.Equal(t, 10, pool.BlackRemaining())
	assert.Equal(t, 45, pool.WhiteRemaining())

	black, ok := pool.DrawBlack()
	require.True(t, ok)
	assert.Equal(t, 1, black.Pick, "a missing pick defaults to one")
}

func TestPoolDrawsEachCardOnce(t *testing.T) {
	decks := newMemoryDecks()
	deckID := decks.add(10, 40, 1)
	pool, err := BuildPool(context.Background(), decks, []uuid.UUID{deckID}, 3, 10, testRand())
	require.NoError(t, err)

	seen := make(map[uuid.UUID]bool)
	for {
		c, ok := pool.DrawBlack()
		if !ok {
			break
		}
		assert.Equal(t, models.CardKindBlack, c.Kind)
		assert.False(t, seen[c.ID])
		seen[c.ID] = true
	}
	assert.Len(t, seen, 10)
	assert.Zero(t, pool.BlackRemaining())

	first := pool.DrawWhite(25)
	assert.Len(t, first, 25)
	rest := pool.DrawWhite(25)
	assert.Len(t, rest, 15, "a short draw returns what is left")
	assert.Empty(t, pool.DrawWhite(1))

	for _, id := range append(first, rest...) {
		c, ok := pool.Card(id)
		require.True(t, ok)
		assert.Equal(t, models.CardKindWhite, c.Kind)
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, seen, 50)
	assert.Len(t, pool.Cards(first[:3]), 3)
}

func TestPoolShuffleIsSeeded(t *testing.T) {
	decks := newMemoryDecks()
	deckID := decks.add(10, 40, 1)

	draw := func(seed uint64) []uuid.UUID {
		pool, err := BuildPool(context.Background(), decks, []uuid.UUID{deckID}, 3, 10, rand.New(rand.NewPCG(seed, seed)))
		require.NoError(t, err)
		return pool.DrawWhite(40)
	}
	assert.Equal(t, draw(1), draw(1))
	assert.ElementsMatch(t, draw(1), draw(2))
	assert.NotEqual(t, draw(1), draw(2))
}

func TestRequiredWhiteCards(t *testing.T) {
	assert.Equal(t, 40, RequiredWhiteCards(3, 10))
	assert.Equal(t, 130, RequiredWhiteCards(12, 10))
}
