// Package scheduler drives every room's current round through its
// lifecycle: waiting rounds start, active rounds get numbers called on
// an interval, and rounds that exhaust all 75 numbers are completed
// under the round lock.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bellapacxx/bingo75-backend/events"
	"github.com/bellapacxx/bingo75-backend/game"
	"github.com/bellapacxx/bingo75-backend/lock"
	"github.com/bellapacxx/bingo75-backend/models"
	"github.com/bellapacxx/bingo75-backend/monitor"
	"github.com/bellapacxx/bingo75-backend/store"

	"go.uber.org/zap"
)

// Store is the slice of the data layer the scheduler touches.
type Store interface {
	RoundsByStatus(ctx context.Context, status string) ([]models.Round, error)
	ActivateRound(ctx context.Context, roundID uint, at time.Time) error
	LastCalledAt(ctx context.Context, roundID uint) (time.Time, bool, error)
	AppendCalledNumber(ctx context.Context, roundID uint, number int, at time.Time) ([]int, error)
	CompleteRound(ctx context.Context, roundID uint, carry float64, at time.Time) (*models.Round, error)
}

type Publisher interface {
	Publish(ctx context.Context, roomID uint, ev events.Event) error
}

type Locker interface {
	Acquire(ctx context.Context, name string, lease time.Duration) (string, bool, error)
	Release(ctx context.Context, name, token string) error
}

type Config struct {
	PollInterval time.Duration
	CallInterval time.Duration
	LockLease    time.Duration
	JackpotRate  float64
}

type Scheduler struct {
	store   Store
	bus     Publisher
	locks   Locker
	cfg     Config
	log     *zap.SugaredLogger
	metrics *monitor.Metrics

	stop chan struct{}
	done chan struct{}
}

func New(st Store, bus Publisher, locks Locker, cfg Config, log *zap.SugaredLogger, metrics *monitor.Metrics) *Scheduler {
	return &Scheduler{
		store:   st,
		bus:     bus,
		locks:   locks,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
	}
}

// Start launches the poll loop. Call Stop to end it; the in-flight scan
// finishes first.
func (s *Scheduler) Start() {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop()
	s.log.Infow("round scheduler started", "poll_interval", s.cfg.PollInterval)
}

// Stop signals the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
	s.log.Info("round scheduler stopped")
}

func (s *Scheduler) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.scan(context.Background())
		}
	}
}

// scan processes every round once. A failure on one round is logged and
// never stops the others.
func (s *Scheduler) scan(ctx context.Context) {
	active, err := s.store.RoundsByStatus(ctx, models.RoundActive)
	if err != nil {
		s.log.Errorw("list active rounds", "error", err)
	}
	for i := range active {
		if err := s.processActive(ctx, &active[i]); err != nil {
			s.log.Errorw("process active round", "round_id", active[i].ID, "error", err)
		}
	}

	waiting, err := s.store.RoundsByStatus(ctx, models.RoundWaiting)
	if err != nil {
		s.log.Errorw("list waiting rounds", "error", err)
	}
	for i := range waiting {
		if err := s.startRound(ctx, &waiting[i]); err != nil {
			s.log.Errorw("start round", "round_id", waiting[i].ID, "error", err)
		}
	}
}

func (s *Scheduler) startRound(ctx context.Context, round *models.Round) error {
	start := time.Now().UTC()
	if err := s.store.ActivateRound(ctx, round.ID, start); err != nil {
		if errors.Is(err, store.ErrRoundNotOpen) {
			return nil // another instance got there first
		}
		return err
	}
	s.log.Infow("round started", "round_id", round.ID, "room_id", round.RoomID)
	return s.bus.Publish(ctx, round.RoomID, events.RoundStarted(round.ID, start))
}

func (s *Scheduler) processActive(ctx context.Context, round *models.Round) error {
	called := round.Called()
	if len(called) >= game.MaxNumber {
		return s.completeRound(ctx, round)
	}

	last, ok, err := s.store.LastCalledAt(ctx, round.ID)
	if err != nil {
		return err
	}
	if !ok {
		// nothing called yet: measure from round start
		if round.StartTime != nil {
			last = *round.StartTime
		} else {
			last = round.CreatedAt
		}
	}
	if time.Since(last) < s.cfg.CallInterval {
		return nil
	}

	number, err := game.Draw(called)
	if errors.Is(err, game.ErrPoolExhausted) {
		return s.completeRound(ctx, round)
	}
	if err != nil {
		return err
	}

	updated, err := s.store.AppendCalledNumber(ctx, round.ID, number, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrRoundNotOpen) {
			return nil // settled by a claim between reads
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.NumbersCalled.Inc()
	}
	s.log.Infow("number called", "round_id", round.ID, "number", number, "count", len(updated))
	return s.bus.Publish(ctx, round.RoomID, events.NumberCalled(round.ID, number, updated))
}

// completeRound makes the no-winner terminal transition. It runs under
// the same round lock as claim settlement, so a claim racing with the
// forced completion cannot both settle; a busy lock just defers
// completion to the next poll.
func (s *Scheduler) completeRound(ctx context.Context, round *models.Round) error {
	token, ok, err := s.locks.Acquire(ctx, lock.RoundLock(round.ID), s.cfg.LockLease)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debugw("round lock busy, deferring completion", "round_id", round.ID)
		return nil
	}
	defer func() {
		if err := s.locks.Release(ctx, lock.RoundLock(round.ID), token); err != nil {
			s.log.Errorw("release round lock", "round_id", round.ID, "error", err)
		}
	}()

	carry := round.JackpotPool + round.TotalPool*s.cfg.JackpotRate
	next, err := s.store.CompleteRound(ctx, round.ID, carry, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrRoundNotOpen) {
			return nil // a claim settled it while we acquired the lock
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.RoundsCompleted.Inc()
	}
	s.log.Infow("round ended without winner", "round_id", round.ID, "next_round_id", next.ID)

	if err := s.bus.Publish(ctx, round.RoomID, events.RoundEnded(round.ID)); err != nil {
		return err
	}
	return s.bus.Publish(ctx, round.RoomID, events.NewRound(next.ID))
}
