// internal/game/timers.go
package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// playerTimers are the supervisor timers of one player. A firing timer only posts a
// command; the generation check on the session goroutine discards firings that were
// superseded or canceled after the callback was already scheduled.
type playerTimers struct {
	czar     clockwork.Timer
	czarGen  uint64
	evict    clockwork.Timer
	evictGen uint64
}

func (s *Session) timersFor(playerID uuid.UUID) *playerTimers {
	t, ok := s.timers[playerID]
	if !ok {
		t = &playerTimers{}
		s.timers[playerID] = t
	}
	return t
}

func (s *Session) nextGeneration() uint64 {
	s.timerGen++
	return s.timerGen
}

// armCzarTimer starts the czar-disconnect countdown for the czar of r.
func (s *Session) armCzarTimer(czarID uuid.UUID, r *Round) {
	t := s.timersFor(czarID)
	if t.czar != nil {
		t.czar.Stop()
	}
	gen := s.nextGeneration()
	roundID := r.ID
	t.czarGen = gen
	t.czar = s.cfg.clock.AfterFunc(s.cfg.czarTimeout, func() {
		s.post(czarTimeout{PlayerID: czarID, RoundID: roundID, Generation: gen})
	})
}

// armEvictTimer starts the stale-player countdown.
func (s *Session) armEvictTimer(playerID uuid.UUID) {
	t := s.timersFor(playerID)
	if t.evict != nil {
		t.evict.Stop()
	}
	gen := s.nextGeneration()
	t.evictGen = gen
	t.evict = s.cfg.clock.AfterFunc(s.cfg.evictTimeout, func() {
		s.post(evictTimeout{PlayerID: playerID, Generation: gen})
	})
}

func (s *Session) cancelCzarTimer(playerID uuid.UUID) {
	t, ok := s.timers[playerID]
	if !ok || t.czar == nil {
		return
	}
	t.czar.Stop()
	t.czar = nil
	t.czarGen = 0
}

func (s *Session) cancelTimers(playerID uuid.UUID) {
	t, ok := s.timers[playerID]
	if !ok {
		return
	}
	if t.czar != nil {
		t.czar.Stop()
	}
	if t.evict != nil {
		t.evict.Stop()
	}
	delete(s.timers, playerID)
}

func (s *Session) stopAllTimers() {
	for id := range s.timers {
		s.cancelTimers(id)
	}
}

// onCzarTimeout resolves a round whose czar stayed disconnected. With no submissions
// the round is voided; otherwise a random submission wins.
func (s *Session) onCzarTimeout(ctx context.Context, c czarTimeout) {
	t, ok := s.timers[c.PlayerID]
	if !ok || t.czar == nil || t.czarGen != c.Generation {
		return
	}
	t.czar = nil
	t.czarGen = 0

	p, _ := s.player(c.PlayerID)
	r := s.current
	if s.status != StatusPlaying || p == nil || p.Connected || r == nil || r.ID != c.RoundID ||
		r.Status == RoundCompleted || r.CzarID != p.ID || s.abandonPending() {
		return
	}

	log := s.log.WithField("player", p.ID).WithField("round", r.Number)
	if len(r.Submissions) == 0 {
		log.Info("czar timed out with no submissions, voiding round")
		s.voidRound(r)
		if err := s.afterRound(ctx); err != nil {
			log.WithError(err).Warn("failed to advance after voided round")
		}
		return
	}

	if r.Status == RoundPlaying {
		s.beginJudging(r)
	}
	sub := r.Submissions[s.cfg.rng.IntN(len(r.Submissions))]
	log.Infof("czar timed out, auto-selecting submission %s", sub.ID)
	if _, err := s.awardRound(ctx, r, sub); err != nil {
		log.WithError(err).Warn("auto-select failed, rearming czar timer")
		s.armCzarTimer(p.ID, r)
		return
	}
	s.record("select-winner", p.ID, map[string]interface{}{"roundId": r.ID, "submissionId": sub.ID, "auto": true})
}

// onEvictTimeout removes a player who stayed disconnected for the full eviction window.
func (s *Session) onEvictTimeout(ctx context.Context, c evictTimeout) {
	t, ok := s.timers[c.PlayerID]
	if !ok || t.evict == nil || t.evictGen != c.Generation {
		return
	}
	t.evict = nil

	p, idx := s.player(c.PlayerID)
	if p == nil || p.Connected {
		return
	}
	s.record("evict-player", p.ID, nil)
	s.removePlayer(ctx, idx, "timeout")
}
