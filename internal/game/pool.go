// internal/game/pool.go
package game

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/models"
)

const (
	// MinBlackCards is the number of prompts a pool must hold before a game may start.
	MinBlackCards = 10
	// WhiteCardBuffer is the number of white cards required beyond the initial deal.
	WhiteCardBuffer = 10
)

// DeckRepository fetches the card contents of a set of decks.
type DeckRepository interface {
	FetchCardsByDeckIDs(ctx context.Context, deckIDs []uuid.UUID) ([]models.Card, error)
}

// CardPool holds the shuffled draw queues of one session. Each queue is consumed
// through a cursor so a card is handed out at most once.
type CardPool struct {
	cards     map[uuid.UUID]models.Card
	black     []uuid.UUID
	white     []uuid.UUID
	blackNext int
	whiteNext int
}

// RequiredWhiteCards is the white card minimum for a game with the given player count and hand size.
func RequiredWhiteCards(players, handSize int) int {
	return players*handSize + WhiteCardBuffer
}

// BuildPool fetches every card of deckIDs, drops duplicates, splits the result by kind
// and shuffles both queues. It fails with InsufficientCards when the pool cannot
// support a game for the given player count and hand size.
func BuildPool(ctx context.Context, repo DeckRepository, deckIDs []uuid.UUID, players, handSize int, rng *rand.Rand) (*CardPool, error) {
	if len(deckIDs) == 0 {
		return nil, newError(CodeInsufficientCards, "no decks selected")
	}

	cards, err := repo.FetchCardsByDeckIDs(ctx, deckIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch cards for %d decks: %w", len(deckIDs), err)
	}

	pool := &CardPool{cards: make(map[uuid.UUID]models.Card, len(cards))}
	for _, c := range cards {
		if _, dup := pool.cards[c.ID]; dup {
			continue
		}
		switch c.Kind {
		case models.CardKindBlack:
			if c.Pick < 1 {
				c.Pick = 1
			}
			pool.black = append(pool.black, c.ID)
		case models.CardKindWhite:
			pool.white = append(pool.white, c.ID)
		default:
			continue
		}
		pool.cards[c.ID] = c
	}

	if len(pool.black) < MinBlackCards {
		return nil, newError(CodeInsufficientCards, "need at least %d black cards, decks hold %d", MinBlackCards, len(pool.black))
	}
	if need := RequiredWhiteCards(players, handSize); len(pool.white) < need {
		return nil, newError(CodeInsufficientCards, "need at least %d white cards, decks hold %d", need, len(pool.white))
	}

	// rand.Shuffle is a Fisher-Yates shuffle
	rng.Shuffle(len(pool.black), func(i, j int) { pool.black[i], pool.black[j] = pool.black[j], pool.black[i] })
	rng.Shuffle(len(pool.white), func(i, j int) { pool.white[i], pool.white[j] = pool.white[j], pool.white[i] })
	return pool, nil
}

// DrawBlack takes the next prompt card. ok is false once the black queue is empty.
func (p *CardPool) DrawBlack() (card models.Card, ok bool) {
	if p.blackNext >= len(p.black) {
		return models.Card{}, false
	}
	card = p.cards[p.black[p.blackNext]]
	p.blackNext++
	return card, true
}

// DrawWhite takes up to n white cards. Fewer are returned when the queue runs low.
func (p *CardPool) DrawWhite(n int) []uuid.UUID {
	if n <= 0 {
		return nil
	}
	end := min(p.whiteNext+n, len(p.white))
	drawn := make([]uuid.UUID, end-p.whiteNext)
	copy(drawn, p.white[p.whiteNext:end])
	p.whiteNext = end
	return drawn
}

// Card looks up a card of this pool by id.
func (p *CardPool) Card(id uuid.UUID) (models.Card, bool) {
	c, ok := p.cards[id]
	return c, ok
}

// Cards resolves ids into cards, skipping unknown ids.
func (p *CardPool) Cards(ids []uuid.UUID) []models.Card {
	out := make([]models.Card, 0, len(ids))
	for _, id := range ids {
		if c, ok := p.cards[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (p *CardPool) BlackRemaining() int { return len(p.black) - p.blackNext }
func (p *CardPool) WhiteRemaining() int { return len(p.white) - p.whiteNext }

// Size is the total number of distinct cards in the pool.
func (p *CardPool) Size() int { return len(p.black) + len(p.white) }
