// internal/game/round.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/models"
)

// RoundStatus tracks a round through submission collection and judging.
type RoundStatus string

const (
	RoundPlaying   RoundStatus = "playing"
	RoundJudging   RoundStatus = "judging"
	RoundCompleted RoundStatus = "completed"
)

// Round is one judging cycle. At most one round of a session is not completed.
type Round struct {
	ID          uuid.UUID
	Number      int
	BlackCard   models.Card
	CzarID      uuid.UUID
	Status      RoundStatus
	Submissions []*Submission

	// judgingOrder is the shuffled order shown to the czar, fixed when judging starts.
	judgingOrder []*Submission

	WinnerID            *uuid.UUID
	WinningSubmissionID *uuid.UUID
	Voided              bool
	StartedAt           time.Time
	CompletedAt         time.Time
}

// Submission is one player's answer to a round's prompt.
type Submission struct {
	ID          uuid.UUID
	PlayerID    uuid.UUID
	Nickname    string
	CardIDs     []uuid.UUID
	SubmittedAt time.Time
}

func (r *Round) submissionBy(playerID uuid.UUID) *Submission {
	for _, sub := range r.Submissions {
		if sub.PlayerID == playerID {
			return sub
		}
	}
	return nil
}

func (r *Round) submission(id uuid.UUID) *Submission {
	for _, sub := range r.Submissions {
		if sub.ID == id {
			return sub
		}
	}
	return nil
}

// withdraw removes the player's submission and returns it, or nil if there was none.
func (r *Round) withdraw(playerID uuid.UUID) *Submission {
	for i, sub := range r.Submissions {
		if sub.PlayerID == playerID {
			r.Submissions = append(r.Submissions[:i], r.Submissions[i+1:]...)
			for j, o := range r.judgingOrder {
				if o.ID == sub.ID {
					r.judgingOrder = append(r.judgingOrder[:j], r.judgingOrder[j+1:]...)
					break
				}
			}
			return sub
		}
	}
	return nil
}

func (r *Round) view(required int) *RoundView {
	return &RoundView{
		ID:              r.ID,
		Number:          r.Number,
		BlackCard:       r.BlackCard,
		CzarID:          r.CzarID,
		Status:          r.Status,
		SubmissionCount: len(r.Submissions),
		RequiredCount:   required,
		WinnerID:        r.WinnerID,
		Voided:          r.Voided,
	}
}
