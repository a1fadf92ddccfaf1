// internal/game/session.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Status is the lifecycle state of a session. Transitions only move forward:
// lobby -> playing -> ended | abandoned.
type Status string

const (
	StatusLobby     Status = "lobby"
	StatusPlaying   Status = "playing"
	StatusEnded     Status = "ended"
	StatusAbandoned Status = "abandoned"
)

// MinPlayers is one czar plus two submitters.
const MinPlayers = 3

// ActionRecorder receives every applied command for the action log. Record must not block.
type ActionRecorder interface {
	Record(rec models.ActionRecord)
}

type sessionConfig struct {
	decks       DeckRepository
	archiver    Archiver
	broadcaster Broadcaster
	actions     ActionRecorder
	clock       clockwork.Clock
	logger      *logrus.Logger
	rng         *rand.Rand

	czarTimeout  time.Duration
	evictTimeout time.Duration

	// onClose runs on the session goroutine right before Done is closed.
	onClose func(*Session)
}

// Session is a single game instance. All of its state is owned by one goroutine
// (see run) and is only touched by commands delivered through Do.
type Session struct {
	ID        uuid.UUID
	JoinCode  string
	CreatedAt time.Time

	cfg sessionConfig
	log *logrus.Entry

	inbox     chan envelope
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Everything below belongs to the run goroutine.
	status    Status
	settings  Settings
	deckIDs   []uuid.UUID
	players   []*models.Player
	pool      *CardPool
	rounds    []*Round
	current   *Round
	czarIndex int
	discards  []uuid.UUID

	timers   map[uuid.UUID]*playerTimers
	timerGen uint64

	actionIndex  int
	lastActivity time.Time
	finished     bool
}

func newSession(id uuid.UUID, cfg sessionConfig) *Session {
	now := cfg.clock.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		cfg:          cfg,
		log:          cfg.logger.WithField("session", id),
		inbox:        make(chan envelope, 32),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		status:       StatusLobby,
		settings:     DefaultSettings(),
		deckIDs:      []uuid.UUID{},
		timers:       make(map[uuid.UUID]*playerTimers),
		lastActivity: now,
	}
}

func (s *Session) now() time.Time { return s.cfg.clock.Now() }

// dispatch applies one command. It is only called from the run goroutine.
func (s *Session) dispatch(ctx context.Context, cmd Command) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("panic while applying %s: %v", cmd.commandName(), r)
			value, err = nil, ErrInternal
		}
	}()

	switch cmd.(type) {
	case czarTimeout, evictTimeout, sweepIdle:
	default:
		s.lastActivity = s.now()
	}

	switch c := cmd.(type) {
	case JoinGame:
		return s.join(c)
	case LeaveGame:
		return nil, s.leave(ctx, c)
	case KickPlayer:
		return nil, s.kick(ctx, c)
	case UpdateDecks:
		return s.updateDecks(c)
	case UpdateSettings:
		return s.updateSettings(c)
	case StartGame:
		return s.start(ctx, c)
	case SubmitCards:
		return s.submitCards(c)
	case SelectWinner:
		return s.selectWinner(ctx, c)
	case EndGameEarly:
		return nil, s.endEarly(ctx, c)
	case ReconnectToGame:
		return s.reconnect(c)
	case Disconnect:
		return nil, s.disconnect(c)
	case GetState:
		p, _ := s.player(c.PlayerID)
		if p == nil {
			return nil, ErrNotInGame
		}
		return s.snapshotFor(p), nil
	case czarTimeout:
		s.onCzarTimeout(ctx, c)
		return nil, nil
	case evictTimeout:
		s.onEvictTimeout(ctx, c)
		return nil, nil
	case sweepIdle:
		s.onSweep(ctx, c)
		return nil, nil
	default:
		return nil, newError(CodeInvalidRequest, "unsupported command %T", cmd)
	}
}

// player returns the player with the given id and its index in join order, or nil and -1.
func (s *Session) player(id uuid.UUID) (*models.Player, int) {
	for i, p := range s.players {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

func (s *Session) owner() *models.Player {
	for _, p := range s.players {
		if p.IsOwner {
			return p
		}
	}
	return nil
}

// requireOwner resolves the requester and checks ownership.
func (s *Session) requireOwner(requesterID uuid.UUID) (*models.Player, error) {
	p, _ := s.player(requesterID)
	if p == nil {
		return nil, ErrNotInGame
	}
	if !p.IsOwner {
		return nil, ErrNotOwner
	}
	return p, nil
}

// topScorer is the first player in join order holding the highest score.
func (s *Session) topScorer() *models.Player {
	var best *models.Player
	for _, p := range s.players {
		if best == nil || p.Score > best.Score {
			best = p
		}
	}
	return best
}

// addPlayer appends a connected player. Assumes the nickname has been validated.
func (s *Session) addPlayer(userID *uuid.UUID, nickname string) *models.Player {
	p := &models.Player{
		ID:        uuid.New(),
		UserID:    userID,
		Nickname:  nickname,
		IsOwner:   len(s.players) == 0,
		Connected: true,
		Hand:      []uuid.UUID{},
		JoinedAt:  s.now(),
	}
	s.players = append(s.players, p)
	s.broadcast(GameEvent{Type: EventPlayerJoined, Player: s.playerView(p)})
	s.record("join-game", p.ID, map[string]interface{}{"nickname": nickname, "guest": p.IsGuest()})
	return p
}

func (s *Session) join(c JoinGame) (*JoinResult, error) {
	if c.UserID != nil && s.status == StatusLobby {
		for _, p := range s.players {
			if p.HasUser(*c.UserID) {
				s.markConnected(p)
				return s.joinResult(p), nil
			}
		}
	}
	if s.status != StatusLobby {
		return nil, ErrGameAlreadyStarted
	}
	nickname, err := NormalizeNickname(c.Nickname)
	if err != nil {
		return nil, err
	}
	if len(s.players) >= s.settings.MaxPlayers {
		return nil, newError(CodeInvalidRequest, "session is full (%d players)", s.settings.MaxPlayers)
	}
	p := s.addPlayer(c.UserID, nickname)
	s.log.WithField("player", p.ID).Infof("%s joined", nickname)
	return s.joinResult(p), nil
}

func (s *Session) joinResult(p *models.Player) *JoinResult {
	return &JoinResult{
		SessionID: s.ID,
		PlayerID:  p.ID,
		JoinCode:  s.JoinCode,
		Snapshot:  s.snapshotFor(p),
	}
}

func (s *Session) leave(ctx context.Context, c LeaveGame) error {
	_, idx := s.player(c.PlayerID)
	if idx < 0 {
		return ErrNotInGame
	}
	s.record("leave-game", c.PlayerID, nil)
	s.removePlayer(ctx, idx, "left")
	return nil
}

func (s *Session) kick(ctx context.Context, c KickPlayer) error {
	if _, err := s.requireOwner(c.RequesterID); err != nil {
		return err
	}
	if c.TargetID == c.RequesterID {
		return newError(CodeInvalidRequest, "the owner cannot kick themselves")
	}
	_, idx := s.player(c.TargetID)
	if idx < 0 {
		return ErrNotInGame
	}
	s.record("kick-player", c.RequesterID, map[string]interface{}{"target": c.TargetID})
	s.removePlayer(ctx, idx, "kicked")
	return nil
}

// removePlayer drops the player at idx and resolves ownership and the active round.
// The game is abandoned when too few players remain.
func (s *Session) removePlayer(ctx context.Context, idx int, reason string) {
	p := s.players[idx]
	s.cancelTimers(p.ID)

	s.discards = append(s.discards, p.Hand...)
	p.Hand = nil

	czarLeft := false
	if r := s.current; s.status == StatusPlaying && r != nil && r.Status != RoundCompleted {
		if r.CzarID == p.ID {
			czarLeft = true
		} else if sub := r.withdraw(p.ID); sub != nil {
			s.log.WithField("player", p.ID).Debug("withdrew submission of departing player")
		}
	}

	s.players = append(s.players[:idx], s.players[idx+1:]...)
	if s.status == StatusPlaying && idx <= s.czarIndex {
		s.czarIndex--
	}

	s.log.WithField("player", p.ID).Infof("%s removed (%s)", p.Nickname, reason)
	view := s.playerView(p)
	view.Connected = false
	s.broadcast(GameEvent{Type: EventPlayerLeft, Player: view, Payload: map[string]interface{}{"reason": reason}})

	if p.IsOwner && len(s.players) > 0 {
		next := s.players[0]
		next.IsOwner = true
		s.broadcast(GameEvent{Type: EventOwnerChanged, Player: s.playerView(next)})
	}

	switch {
	case len(s.players) == 0 && s.status == StatusLobby:
		s.terminate(StatusAbandoned, "empty")
	case s.status == StatusPlaying && len(s.players) < MinPlayers:
		if err := s.finishGame(ctx, true, "too-few-players"); err != nil {
			s.log.WithError(err).Warn("abandon after player removal failed; janitor will retry")
		}
	case s.status == StatusPlaying && czarLeft:
		s.voidRound(s.current)
		if err := s.afterRound(ctx); err != nil {
			s.log.WithError(err).Warn("failed to advance after czar left")
		}
	case s.status == StatusPlaying:
		s.resolveWithdrawal(ctx)
	}
}

// resolveWithdrawal re-evaluates the active round after a submitter left.
func (s *Session) resolveWithdrawal(ctx context.Context) {
	r := s.current
	if r == nil || r.Status == RoundCompleted {
		return
	}
	if r.Status == RoundJudging {
		if len(r.Submissions) > 0 {
			s.sendSubmissionsToCzar(r)
			return
		}
		s.voidRound(r)
		if err := s.afterRound(ctx); err != nil {
			s.log.WithError(err).Warn("failed to advance after last submission was withdrawn")
		}
		return
	}
	s.broadcastSubmissionCount(r)
	s.checkJudging()
}

func (s *Session) updateDecks(c UpdateDecks) ([]uuid.UUID, error) {
	if _, err := s.requireOwner(c.RequesterID); err != nil {
		return nil, err
	}
	if s.status != StatusLobby {
		return nil, ErrGameAlreadyStarted
	}
	seen := make(map[uuid.UUID]bool, len(c.DeckIDs))
	ids := make([]uuid.UUID, 0, len(c.DeckIDs))
	for _, id := range c.DeckIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	s.deckIDs = ids
	s.broadcast(GameEvent{Type: EventDecksUpdated, Payload: map[string]interface{}{"deckIds": ids}})
	s.record("update-decks", c.RequesterID, map[string]interface{}{"deckIds": ids})
	return ids, nil
}

func (s *Session) updateSettings(c UpdateSettings) (*Settings, error) {
	if _, err := s.requireOwner(c.RequesterID); err != nil {
		return nil, err
	}
	if s.status != StatusLobby {
		return nil, ErrGameAlreadyStarted
	}
	next, err := ParseSettings(c.Changes, s.settings)
	if err != nil {
		return nil, err
	}
	s.settings = next
	s.broadcast(GameEvent{Type: EventSettingsUpdated, Payload: map[string]interface{}{"settings": next}})
	s.record("update-settings", c.RequesterID, c.Changes)
	return &next, nil
}

func (s *Session) start(ctx context.Context, c StartGame) (*Snapshot, error) {
	requester, err := s.requireOwner(c.RequesterID)
	if err != nil {
		return nil, err
	}
	if s.status != StatusLobby {
		return nil, ErrGameAlreadyStarted
	}
	if len(s.players) < MinPlayers {
		return nil, newError(CodeTooFewPlayers, "need at least %d players, have %d", MinPlayers, len(s.players))
	}

	pool, err := BuildPool(ctx, s.cfg.decks, s.deckIDs, len(s.players), s.settings.HandSize, s.cfg.rng)
	if err != nil {
		var ge *GameError
		if errors.As(err, &ge) {
			return nil, ge
		}
		s.log.WithError(err).Error("failed to build card pool")
		return nil, ErrInternal
	}

	s.pool = pool
	s.status = StatusPlaying
	s.czarIndex = 0
	for i, p := range s.players {
		p.Score = 0
		if i == s.czarIndex {
			continue
		}
		p.Hand = pool.DrawWhite(s.settings.HandSize)
	}

	s.log.Infof("game started with %d players and %d cards", len(s.players), pool.Size())
	s.broadcast(GameEvent{Type: EventGameStarted, Payload: map[string]interface{}{
		"players":  s.playerViews(),
		"settings": s.settings,
	}})
	s.record("start-game", c.RequesterID, map[string]interface{}{"players": len(s.players), "poolSize": pool.Size()})

	if err := s.startRound(); err != nil {
		// the pool was validated above, so this is unreachable
		return nil, err
	}
	return s.snapshotFor(requester), nil
}

// refill tops the player's hand up to the configured size. A short hand is left
// as is once the white queue runs dry.
func (s *Session) refill(p *models.Player) {
	if need := s.settings.HandSize - len(p.Hand); need > 0 {
		p.Hand = append(p.Hand, s.pool.DrawWhite(need)...)
	}
}

// startRound draws the next prompt and opens a round for the current czar.
func (s *Session) startRound() error {
	black, ok := s.pool.DrawBlack()
	if !ok {
		return ErrPoolExhausted
	}
	s.discards = append(s.discards, black.ID)

	czar := s.players[s.czarIndex]
	for _, p := range s.players {
		if p.ID != czar.ID {
			s.refill(p)
		}
	}

	r := &Round{
		ID:        uuid.New(),
		Number:    len(s.rounds) + 1,
		BlackCard: black,
		CzarID:    czar.ID,
		Status:    RoundPlaying,
		StartedAt: s.now(),
	}
	s.rounds = append(s.rounds, r)
	s.current = r

	s.broadcast(GameEvent{Type: EventRoundStarted, Round: r.view(s.requiredSubmissions()), Player: s.playerView(czar)})
	for _, p := range s.players {
		s.sendHand(p)
	}
	if !czar.Connected {
		s.armCzarTimer(czar.ID, r)
	}
	return nil
}

func (s *Session) requiredSubmissions() int {
	return len(s.players) - 1
}

// abandonPending reports a playing session that fell below MinPlayers and still
// has to be archived as abandoned. No round may be played in that state.
func (s *Session) abandonPending() bool {
	return s.status == StatusPlaying && len(s.players) < MinPlayers
}

var errAbandonPending = newError(CodeTooFewPlayers, "fewer than %d players remain, the game is being abandoned", MinPlayers)

func (s *Session) nextCzar() {
	s.czarIndex = (s.czarIndex + 1) % len(s.players)
}

func (s *Session) submitCards(c SubmitCards) (*SubmitResult, error) {
	r := s.current
	if s.status != StatusPlaying || r == nil || r.ID != c.RoundID || r.Status == RoundCompleted {
		return nil, ErrRoundNotFound
	}
	if s.abandonPending() {
		return nil, errAbandonPending
	}
	if len(c.CardIDs) != r.BlackCard.Pick {
		return nil, newError(CodeWrongCardCount, "prompt needs %d cards, got %d", r.BlackCard.Pick, len(c.CardIDs))
	}
	p, _ := s.player(c.PlayerID)
	if p == nil {
		return nil, ErrNotInGame
	}
	if p.ID == r.CzarID {
		return nil, newError(CodeNotYourTurn, "the czar does not submit")
	}
	if r.submissionBy(p.ID) != nil {
		return nil, ErrAlreadySubmitted
	}
	if r.Status != RoundPlaying {
		return nil, newError(CodeRoundNotFound, "round is no longer accepting submissions")
	}
	if !p.HoldsCards(c.CardIDs) {
		return nil, ErrCardNotInHand
	}

	cardIDs := append([]uuid.UUID(nil), c.CardIDs...)
	p.RemoveCards(cardIDs)
	s.discards = append(s.discards, cardIDs...)
	sub := &Submission{
		ID:          uuid.New(),
		PlayerID:    p.ID,
		Nickname:    p.Nickname,
		CardIDs:     cardIDs,
		SubmittedAt: s.now(),
	}
	r.Submissions = append(r.Submissions, sub)

	s.refill(p)
	s.sendHand(p)
	s.broadcastSubmissionCount(r)
	s.record("submit-cards", p.ID, map[string]interface{}{"roundId": r.ID, "cardIds": cardIDs})
	s.checkJudging()

	return &SubmitResult{SubmissionID: sub.ID, Judging: r.Status == RoundJudging}, nil
}

func (s *Session) broadcastSubmissionCount(r *Round) {
	if r == nil || r.Status == RoundCompleted {
		return
	}
	s.broadcast(GameEvent{Type: EventCardSubmitted, Payload: map[string]interface{}{
		"roundId":        r.ID,
		"submittedCount": len(r.Submissions),
		"requiredCount":  s.requiredSubmissions(),
	}})
}

// checkJudging moves the active round to judging once every non-czar player has submitted.
func (s *Session) checkJudging() {
	r := s.current
	if r == nil || r.Status != RoundPlaying {
		return
	}
	if len(r.Submissions) == 0 || len(r.Submissions) < s.requiredSubmissions() {
		return
	}
	s.beginJudging(r)
}

func (s *Session) beginJudging(r *Round) {
	r.Status = RoundJudging
	r.judgingOrder = append([]*Submission(nil), r.Submissions...)
	s.cfg.rng.Shuffle(len(r.judgingOrder), func(i, j int) {
		r.judgingOrder[i], r.judgingOrder[j] = r.judgingOrder[j], r.judgingOrder[i]
	})
	s.sendSubmissionsToCzar(r)
}

func (s *Session) submissionViews(r *Round) []SubmissionView {
	views := make([]SubmissionView, 0, len(r.judgingOrder))
	for _, sub := range r.judgingOrder {
		views = append(views, SubmissionView{ID: sub.ID, Cards: s.pool.Cards(sub.CardIDs)})
	}
	return views
}

func (s *Session) sendSubmissionsToCzar(r *Round) {
	s.sendTo(r.CzarID, GameEvent{
		Type:  EventAllCardsSubmitted,
		Round: r.view(s.requiredSubmissions()),
		Payload: map[string]interface{}{
			"submissions": s.submissionViews(r),
		},
	})
}

func (s *Session) selectWinner(ctx context.Context, c SelectWinner) (*SelectResult, error) {
	r := s.current
	if s.status != StatusPlaying || r == nil || r.ID != c.RoundID || r.Status == RoundCompleted {
		return nil, ErrRoundNotFound
	}
	if s.abandonPending() {
		return nil, errAbandonPending
	}
	if c.RequesterID != r.CzarID {
		return nil, ErrNotCzar
	}
	if r.Status != RoundJudging {
		return nil, newError(CodeNotYourTurn, "submissions are still being collected")
	}
	sub := r.submission(c.SubmissionID)
	if sub == nil {
		return nil, ErrSubmissionNotFound
	}
	res, err := s.awardRound(ctx, r, sub)
	if err != nil {
		return nil, err
	}
	s.record("select-winner", c.RequesterID, map[string]interface{}{"roundId": r.ID, "submissionId": sub.ID})
	return res, nil
}

// awardRound completes r with sub as the winner. If that ends the game and the
// archive write fails, every change is rolled back and the round stays in judging.
func (s *Session) awardRound(ctx context.Context, r *Round, sub *Submission) (*SelectResult, error) {
	winner, _ := s.player(sub.PlayerID)
	if winner == nil {
		return nil, ErrSubmissionNotFound
	}

	winnerID, subID := winner.ID, sub.ID
	r.Status = RoundCompleted
	r.WinnerID = &winnerID
	r.WinningSubmissionID = &subID
	r.CompletedAt = s.now()
	winner.Score++

	if reason := s.endReason(); reason != "" {
		if err := s.archive(ctx, false); err != nil {
			winner.Score--
			r.Status = RoundJudging
			r.WinnerID = nil
			r.WinningSubmissionID = nil
			r.CompletedAt = time.Time{}
			return nil, err
		}
		s.cancelCzarTimer(r.CzarID)
		s.announceWinner(r, sub, winner)
		s.terminate(StatusEnded, reason)
		return &SelectResult{WinnerPlayerID: winner.ID, GameEnded: true}, nil
	}

	s.cancelCzarTimer(r.CzarID)
	s.announceWinner(r, sub, winner)
	s.nextCzar()
	if err := s.startRound(); err != nil {
		return nil, err
	}
	return &SelectResult{WinnerPlayerID: winner.ID}, nil
}

func (s *Session) announceWinner(r *Round, sub *Submission, winner *models.Player) {
	view := r.view(s.requiredSubmissions())
	s.broadcast(GameEvent{
		Type:   EventWinnerSelected,
		Player: s.playerView(winner),
		Round:  view,
		Cards:  s.pool.Cards(sub.CardIDs),
		Payload: map[string]interface{}{
			"submissionId": sub.ID,
			"score":        winner.Score,
		},
	})
	s.broadcast(GameEvent{Type: EventRoundEnded, Round: view})
}

// voidRound completes r without a winner.
func (s *Session) voidRound(r *Round) {
	if r == nil || r.Status == RoundCompleted {
		return
	}
	r.Status = RoundCompleted
	r.Voided = true
	r.CompletedAt = s.now()
	s.cancelCzarTimer(r.CzarID)
	s.broadcast(GameEvent{Type: EventRoundEnded, Round: r.view(s.requiredSubmissions())})
}

// afterRound either ends the game or opens the next round once the current one is completed.
func (s *Session) afterRound(ctx context.Context) error {
	if reason := s.endReason(); reason != "" {
		return s.finishGame(ctx, false, reason)
	}
	s.nextCzar()
	return s.startRound()
}

// endReason reports why the game should end now, or "" if play continues.
func (s *Session) endReason() string {
	for _, p := range s.players {
		if p.Score >= s.settings.PointsToWin {
			return "points"
		}
	}
	if s.settings.MaxRounds > 0 && len(s.rounds) >= s.settings.MaxRounds {
		return "max-rounds"
	}
	if s.pool.BlackRemaining() == 0 {
		return "pool-exhausted"
	}
	return ""
}

func (s *Session) endEarly(ctx context.Context, c EndGameEarly) error {
	if _, err := s.requireOwner(c.RequesterID); err != nil {
		return err
	}
	if s.status != StatusPlaying {
		return ErrGameNotStarted
	}
	s.record("end-game-early", c.RequesterID, nil)
	if s.abandonPending() {
		return s.finishGame(ctx, true, "too-few-players")
	}
	return s.finishGame(ctx, false, "ended-early")
}

// finishGame archives the session and terminates it. On archive failure nothing changes.
func (s *Session) finishGame(ctx context.Context, abandoned bool, reason string) error {
	if err := s.archive(ctx, abandoned); err != nil {
		return err
	}
	status := StatusEnded
	if abandoned {
		status = StatusAbandoned
	}
	s.terminate(status, reason)
	return nil
}

func (s *Session) archive(ctx context.Context, abandoned bool) error {
	if s.cfg.archiver == nil {
		return nil
	}
	rec := s.buildArchive(abandoned, s.now())
	if err := s.cfg.archiver.ArchiveGame(ctx, rec); err != nil {
		s.log.WithError(err).Error("failed to archive game")
		return newError(CodeInternalError, "failed to archive game")
	}
	return nil
}

// terminate moves the session into a final status. The run loop exits after the current command.
func (s *Session) terminate(status Status, reason string) {
	s.status = status
	s.stopAllTimers()

	scores := make(map[string]int, len(s.players))
	for _, p := range s.players {
		scores[p.ID.String()] = p.Score
	}
	payload := map[string]interface{}{
		"reason":    reason,
		"abandoned": status == StatusAbandoned,
		"scores":    scores,
	}
	if status == StatusEnded {
		if w := s.topScorer(); w != nil {
			payload["winnerId"] = w.ID
		}
	}
	s.broadcast(GameEvent{Type: EventGameEnded, Payload: payload})
	s.log.Infof("session %s (%s)", status, reason)
	s.finished = true
}

func (s *Session) reconnect(c ReconnectToGame) (*JoinResult, error) {
	p := s.matchReconnect(c)
	if p == nil {
		return nil, ErrNotInGame
	}
	s.markConnected(p)
	s.sendHand(p)
	if r := s.current; s.status == StatusPlaying && r != nil && r.Status == RoundJudging && r.CzarID == p.ID {
		s.sendSubmissionsToCzar(r)
	}
	s.record("reconnect-to-game", p.ID, nil)
	return s.joinResult(p), nil
}

// matchReconnect finds the player a returning connection belongs to. A signed-in
// caller only matches their own player. An anonymous caller may name a guest by id,
// or otherwise gets the only disconnected guest. A guest who is still connected is
// never matched, so a known player id is not enough to take over a live seat.
func (s *Session) matchReconnect(c ReconnectToGame) *models.Player {
	if c.UserID != nil {
		for _, p := range s.players {
			if p.HasUser(*c.UserID) {
				return p
			}
		}
		return nil
	}
	if c.PlayerIDHint != nil {
		if p, _ := s.player(*c.PlayerIDHint); p != nil && p.IsGuest() && !p.Connected {
			return p
		}
		return nil
	}
	var guest *models.Player
	for _, p := range s.players {
		if p.IsGuest() && !p.Connected {
			if guest != nil {
				return nil
			}
			guest = p
		}
	}
	return guest
}

func (s *Session) markConnected(p *models.Player) {
	s.cancelTimers(p.ID)
	if p.Connected {
		return
	}
	p.Connected = true
	p.DisconnectedAt = nil
	s.broadcast(GameEvent{Type: EventPlayerReconnected, Player: s.playerView(p)})
}

func (s *Session) disconnect(c Disconnect) error {
	p, _ := s.player(c.PlayerID)
	if p == nil {
		return ErrNotInGame
	}
	if !p.Connected {
		return nil
	}
	now := s.now()
	p.Connected = false
	p.DisconnectedAt = &now
	s.broadcast(GameEvent{Type: EventPlayerDisconnected, Player: s.playerView(p)})
	s.armEvictTimer(p.ID)
	if r := s.current; s.status == StatusPlaying && r != nil && r.Status != RoundCompleted && r.CzarID == p.ID {
		s.armCzarTimer(p.ID, r)
	}
	s.record("disconnect", p.ID, nil)
	return nil
}

func (s *Session) onSweep(ctx context.Context, c sweepIdle) {
	switch s.status {
	case StatusLobby:
		if c.IdleAfter > 0 && s.now().Sub(s.lastActivity) > c.IdleAfter {
			s.terminate(StatusAbandoned, "idle")
		}
	case StatusPlaying:
		if len(s.players) < MinPlayers {
			if err := s.finishGame(ctx, true, "too-few-players"); err != nil {
				s.log.WithError(err).Warn("retrying abandon failed")
			}
			return
		}
		if s.current == nil || s.current.Status == RoundCompleted {
			if err := s.afterRound(ctx); err != nil {
				s.log.WithError(err).Warn("retrying round advance failed")
			}
		}
	}
}

func (s *Session) broadcast(ev GameEvent) {
	ev.SessionID = s.ID
	s.cfg.broadcaster.Broadcast(ev)
}

func (s *Session) sendTo(playerID uuid.UUID, ev GameEvent) {
	ev.SessionID = s.ID
	s.cfg.broadcaster.SendToPlayer(playerID, ev)
}

// sendHand privately sends the player's full hand. No-op before the game starts.
func (s *Session) sendHand(p *models.Player) {
	if s.pool == nil {
		return
	}
	s.sendTo(p.ID, GameEvent{
		Type:    EventCardsDealt,
		Cards:   s.pool.Cards(p.Hand),
		Payload: map[string]interface{}{"handSize": len(p.Hand)},
	})
}

func (s *Session) record(actionType string, actor uuid.UUID, payload map[string]interface{}) {
	if s.cfg.actions == nil {
		return
	}
	s.actionIndex++
	s.cfg.actions.Record(models.ActionRecord{
		SessionID:     s.ID,
		ActionIndex:   s.actionIndex,
		ActorPlayerID: actor,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     s.now().UnixMilli(),
	})
}

func (s *Session) playerView(p *models.Player) *PlayerView {
	return &PlayerView{
		ID:        p.ID,
		Nickname:  p.Nickname,
		Score:     p.Score,
		IsOwner:   p.IsOwner,
		IsGuest:   p.IsGuest(),
		Connected: p.Connected,
		HandCount: len(p.Hand),
	}
}

func (s *Session) playerViews() []PlayerView {
	views := make([]PlayerView, 0, len(s.players))
	for _, p := range s.players {
		views = append(views, *s.playerView(p))
	}
	return views
}

func (s *Session) snapshotFor(p *models.Player) *Snapshot {
	snap := &Snapshot{
		SessionID:    s.ID,
		JoinCode:     s.JoinCode,
		Status:       s.status,
		Settings:     s.settings,
		DeckIDs:      append([]uuid.UUID(nil), s.deckIDs...),
		Players:      s.playerViews(),
		YouID:        p.ID,
		Hand:         []models.Card{},
		DiscardCount: len(s.discards),
	}
	if s.pool != nil {
		snap.Hand = s.pool.Cards(p.Hand)
		snap.BlackRemaining = s.pool.BlackRemaining()
		snap.WhiteRemaining = s.pool.WhiteRemaining()
	}
	if r := s.current; r != nil && s.status == StatusPlaying {
		snap.Round = r.view(s.requiredSubmissions())
		snap.Submitted = r.submissionBy(p.ID) != nil
		if r.Status == RoundJudging && r.CzarID == p.ID {
			snap.Submissions = s.submissionViews(r)
		}
	}
	return snap
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s)", s.ID, s.JoinCode)
}
