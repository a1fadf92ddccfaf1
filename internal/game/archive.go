// internal/game/archive.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/models"
)

// Archiver persists a finished session. ArchiveGame must be all-or-nothing:
// when it returns an error nothing may have been written.
type Archiver interface {
	ArchiveGame(ctx context.Context, game *models.CompletedGame) error
}

// competitionPlacements ranks scores the way standings tables do: tied scores
// share a placement and the following placements are skipped (1, 1, 3).
func competitionPlacements(scores []int) []int {
	placements := make([]int, len(scores))
	for i, score := range scores {
		higher := 0
		for _, other := range scores {
			if other > score {
				higher++
			}
		}
		placements[i] = higher + 1
	}
	return placements
}

// buildArchive snapshots the session into its archive form. Only completed rounds
// are included. Abandoned games carry no placements and no winner.
func (s *Session) buildArchive(abandoned bool, endedAt time.Time) *models.CompletedGame {
	rec := &models.CompletedGame{
		ID:           s.ID,
		JoinCode:     s.JoinCode,
		DeckIDs:      append([]uuid.UUID(nil), s.deckIDs...),
		PointsToWin:  s.settings.PointsToWin,
		HandSize:     s.settings.HandSize,
		CreatedAt:    s.CreatedAt,
		EndedAt:      endedAt,
		DurationSec:  int(endedAt.Sub(s.CreatedAt).Seconds()),
		WasAbandoned: abandoned,
		Players:      make([]models.CompletedGamePlayer, 0, len(s.players)),
		Rounds:       make([]models.CompletedRound, 0, len(s.rounds)),
	}
	if o := s.owner(); o != nil {
		rec.OwnerUserID = o.UserID
	}

	roundsWon := make(map[uuid.UUID]int)
	for _, r := range s.rounds {
		if r.Status != RoundCompleted {
			continue
		}
		cr := models.CompletedRound{
			RoundID:        r.ID,
			Number:         r.Number,
			BlackCardID:    r.BlackCard.ID,
			BlackCardText:  r.BlackCard.Text,
			CzarPlayerID:   r.CzarID,
			WinnerPlayerID: r.WinnerID,
			Submissions:    make([]models.ArchivedSubmission, 0, len(r.Submissions)),
			Voided:         r.Voided,
			CompletedAt:    r.CompletedAt,
		}
		for _, sub := range r.Submissions {
			as := models.ArchivedSubmission{
				SubmissionID: sub.ID,
				PlayerID:     sub.PlayerID,
				Nickname:     sub.Nickname,
				CardIDs:      append([]uuid.UUID(nil), sub.CardIDs...),
			}
			cr.Submissions = append(cr.Submissions, as)
			if r.WinningSubmissionID != nil && *r.WinningSubmissionID == sub.ID {
				winning := as
				cr.WinningSubmission = &winning
			}
		}
		if r.WinnerID != nil {
			roundsWon[*r.WinnerID]++
		}
		rec.Rounds = append(rec.Rounds, cr)
	}

	scores := make([]int, len(s.players))
	for i, p := range s.players {
		scores[i] = p.Score
	}
	placements := competitionPlacements(scores)

	for i, p := range s.players {
		cp := models.CompletedGamePlayer{
			PlayerID:   p.ID,
			UserID:     p.UserID,
			Nickname:   p.Nickname,
			FinalScore: p.Score,
			RoundsWon:  roundsWon[p.ID],
			IsOwner:    p.IsOwner,
		}
		if !abandoned {
			placement := placements[i]
			cp.Placement = &placement
		}
		rec.Players = append(rec.Players, cp)
	}

	if !abandoned {
		if w := s.topScorer(); w != nil {
			id := w.ID
			rec.WinnerPlayerID = &id
		}
	}
	return rec
}
