// internal/database/deck.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/czar/internal/models"
)

// FetchCardsByDeckIDs returns every card of the given decks. A card shared by
// several decks is returned once per deck; callers dedupe by id.
func FetchCardsByDeckIDs(ctx context.Context, deckIDs []uuid.UUID) ([]models.Card, error) {
	q := `
	SELECT id, deck_id, kind, text, pick
	FROM cards
	WHERE deck_id = ANY($1)
	ORDER BY deck_id, id
	`
	rows, err := DB.Query(ctx, q, deckIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		var c models.Card
		var kind string
		if err := rows.Scan(&c.ID, &c.DeckID, &kind, &c.Text, &c.Pick); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		c.Kind = models.CardKind(kind)
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}
	return cards, nil
}

// ListDecks returns the public decks plus the viewer's own, with card counts.
func ListDecks(ctx context.Context, viewer *uuid.UUID) ([]models.Deck, error) {
	q := `
	SELECT d.id, d.owner_user_id, d.name, d.description, d.is_public, d.created_at,
	       COUNT(c.id) FILTER (WHERE c.kind = 'black'),
	       COUNT(c.id) FILTER (WHERE c.kind = 'white')
	FROM decks d
	LEFT JOIN cards c ON c.deck_id = d.id
	WHERE d.is_public OR d.owner_user_id = $1
	GROUP BY d.id
	ORDER BY d.name
	`
	rows, err := DB.Query(ctx, q, viewer)
	if err != nil {
		return nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer rows.Close()

	decks := []models.Deck{}
	for rows.Next() {
		var d models.Deck
		if err := rows.Scan(
			&d.ID, &d.OwnerUserID, &d.Name, &d.Description, &d.IsPublic, &d.CreatedAt,
			&d.BlackCount, &d.WhiteCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read decks: %w", err)
	}
	return decks, nil
}

// CreateDeck inserts deck and its cards in one transaction. Missing ids are generated
// and the deck's counts are filled in.
func CreateDeck(ctx context.Context, deck *models.Deck, cards []models.Card) error {
	if deck.ID == uuid.Nil {
		deck.ID = uuid.New()
	}
	deck.BlackCount, deck.WhiteCount = 0, 0

	rows := make([][]any, 0, len(cards))
	for i := range cards {
		c := &cards[i]
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.DeckID = deck.ID
		switch c.Kind {
		case models.CardKindBlack:
			if c.Pick < 1 {
				c.Pick = 1
			}
			deck.BlackCount++
		case models.CardKindWhite:
			c.Pick = 1
			deck.WhiteCount++
		default:
			return fmt.Errorf("card %d has unknown kind %q", i, c.Kind)
		}
		rows = append(rows, []any{c.ID, c.DeckID, string(c.Kind), c.Text, c.Pick})
	}

	q := `
	INSERT INTO decks (id, owner_user_id, name, description, is_public)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, q, deck.ID, deck.OwnerUserID, deck.Name, deck.Description, deck.IsPublic).Scan(&deck.CreatedAt); err != nil {
			return err
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"cards"},
			[]string{"id", "deck_id", "kind", "text", "pick"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert deck: %w", err)
	}
	return nil
}
