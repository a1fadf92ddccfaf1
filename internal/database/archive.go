// internal/database/archive.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/czar/internal/models"
)

// Store hands the package functions to the game engine as its deck repository and archiver.
type Store struct{}

func (Store) FetchCardsByDeckIDs(ctx context.Context, deckIDs []uuid.UUID) ([]models.Card, error) {
	return FetchCardsByDeckIDs(ctx, deckIDs)
}

func (Store) ArchiveGame(ctx context.Context, g *models.CompletedGame) error {
	return ArchiveGame(ctx, g)
}

const (
	insertCompletedGameQ = `
	INSERT INTO completed_games (
		id, join_code, owner_user_id, deck_ids, points_to_win, hand_size,
		created_at, ended_at, duration_sec, was_abandoned, winner_player_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	insertCompletedPlayerQ = `
	INSERT INTO completed_game_players (
		game_id, player_id, user_id, nickname, final_score, placement, rounds_won, is_owner
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	insertCompletedRoundQ = `
	INSERT INTO completed_game_rounds (
		game_id, round_id, number, black_card_id, black_card_text, czar_player_id,
		winner_player_id, winning_submission, submissions, voided, completed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	upsertUserStatsQ = `
	INSERT INTO user_stats (user_id, games_played, games_won, rounds_played, rounds_won)
	VALUES ($1, 1, $2, $3, $4)
	ON CONFLICT (user_id) DO UPDATE SET
		games_played  = user_stats.games_played + 1,
		games_won     = user_stats.games_won + EXCLUDED.games_won,
		rounds_played = user_stats.rounds_played + EXCLUDED.rounds_played,
		rounds_won    = user_stats.rounds_won + EXCLUDED.rounds_won
	`
)

// ArchiveGame persists a finished game in a single transaction. Nothing is
// written if any statement fails. Abandoned games still count as played for every
// registered player, but nobody is credited with a win.
func ArchiveGame(ctx context.Context, g *models.CompletedGame) error {
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertCompletedGameQ,
			g.ID, g.JoinCode, g.OwnerUserID, g.DeckIDs, g.PointsToWin, g.HandSize,
			g.CreatedAt, g.EndedAt, g.DurationSec, g.WasAbandoned, g.WinnerPlayerID,
		); err != nil {
			return fmt.Errorf("insert game: %w", err)
		}

		for _, p := range g.Players {
			if _, err := tx.Exec(ctx, insertCompletedPlayerQ,
				g.ID, p.PlayerID, p.UserID, p.Nickname, p.FinalScore, p.Placement, p.RoundsWon, p.IsOwner,
			); err != nil {
				return fmt.Errorf("insert player %s: %w", p.PlayerID, err)
			}
		}

		roundsPlayed := 0
		for _, r := range g.Rounds {
			if !r.Voided {
				roundsPlayed++
			}
			subs, err := json.Marshal(r.Submissions)
			if err != nil {
				return err
			}
			var winning []byte
			if r.WinningSubmission != nil {
				if winning, err = json.Marshal(r.WinningSubmission); err != nil {
					return err
				}
			}
			if _, err := tx.Exec(ctx, insertCompletedRoundQ,
				g.ID, r.RoundID, r.Number, r.BlackCardID, r.BlackCardText, r.CzarPlayerID,
				r.WinnerPlayerID, winning, subs, r.Voided, r.CompletedAt,
			); err != nil {
				return fmt.Errorf("insert round %d: %w", r.Number, err)
			}
		}

		for _, p := range g.Players {
			if p.UserID == nil {
				continue
			}
			won := 0
			if p.Placement != nil && *p.Placement == 1 {
				won = 1
			}
			if _, err := tx.Exec(ctx, upsertUserStatsQ, *p.UserID, won, roundsPlayed, p.RoundsWon); err != nil {
				return fmt.Errorf("update stats for user %s: %w", *p.UserID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to archive game %s: %w", g.ID, err)
	}
	return nil
}
