// Package claims decides win/lose for a claim and settles the payout
// with at-most-one-winner semantics. Every terminal transition of a
// round happens under the round lock, so two coordinators (or a
// coordinator racing the scheduler's forced completion) can never both
// settle: whichever takes the lock first wins, the loser is rejected
// against the committed state.
package claims

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

// Rejection messages surfaced to the caller. These are results, not
// errors; only infrastructure failures propagate as errors.
const (
	MsgProcessing = "Claim is being processed"
	MsgInvalid    = "Invalid round or card"
	MsgNotActive  = "Round is not active"
	MsgClaimed    = "Card already claimed"
	MsgNoLine     = "No winning line yet"
	MsgBlocked    = "Account is blocked"
	MsgWinner     = "Winner!"
	MsgJackpot    = "Jackpot!"
)

type Result struct {
	Success   bool    `json:"success"`
	Message   string  `json:"message"`
	Amount    float64 `json:"amount,omitempty"`
	IsJackpot bool    `json:"is_jackpot,omitempty"`
}

type Store interface {
	Round(ctx context.Context, id uint) (*models.Round, error)
	CardForUser(ctx context.Context, cardID, userID uint) (*models.Card, error)
	User(ctx context.Context, id uint) (*models.User, error)
	SettleWin(ctx context.Context, st store.Settlement) (*models.Round, error)
}

type Publisher interface {
	Publish(ctx context.Context, roomID uint, ev events.Event) error
}

type Locker interface {
	Acquire(ctx context.Context, name string, lease time.Duration) (string, bool, error)
	Release(ctx context.Context, name, token string) error
}

type Config struct {
	HouseRate        float64
	WinnerRate       float64
	JackpotRate      float64
	JackpotThreshold int
	LockLease        time.Duration
}

type Coordinator struct {
	store   Store
	bus     Publisher
	locks   Locker
	cfg     Config
	log     *zap.SugaredLogger
	metrics *monitor.Metrics
}

func New(st Store, bus Publisher, locks Locker, cfg Config, log *zap.SugaredLogger, metrics *monitor.Metrics) *Coordinator {
	return &Coordinator{
		store:   st,
		bus:     bus,
		locks:   locks,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
	}
}

// Process verifies and settles one claim attempt. A held lock returns
// the busy result; everything the caller can act on comes back as a
// Result, and the returned error is reserved for store/transport
// failures (nothing partial is committed on those).
func (c *Coordinator) Process(ctx context.Context, roundID, cardID, userID uint) (Result, error) {
	res, err := c.process(ctx, roundID, cardID, userID)
	if c.metrics != nil {
		switch {
		case err != nil:
			c.metrics.Claims.WithLabelValues("error").Inc()
		case res.Success:
			c.metrics.Claims.WithLabelValues("won").Inc()
		case res.Message == MsgProcessing:
			c.metrics.Claims.WithLabelValues("busy").Inc()
		default:
			c.metrics.Claims.WithLabelValues("rejected").Inc()
		}
	}
	return res, err
}

func (c *Coordinator) process(ctx context.Context, roundID, cardID, userID uint) (Result, error) {
	token, ok, err := c.locks.Acquire(ctx, lock.RoundLock(roundID), c.cfg.LockLease)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Message: MsgProcessing}, nil
	}
	defer func() {
		if err := c.locks.Release(ctx, lock.RoundLock(roundID), token); err != nil {
			c.log.Errorw("release round lock", "round_id", roundID, "error", err)
		}
	}()

	// Re-read under the lock; pre-lock state is worthless.
	round, err := c.store.Round(ctx, roundID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Message: MsgInvalid}, nil
	}
	if err != nil {
		return Result{}, err
	}

	card, err := c.store.CardForUser(ctx, cardID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Message: MsgInvalid}, nil
	}
	if err != nil {
		return Result{}, err
	}

	user, err := c.store.User(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Message: MsgInvalid}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if user.IsBlocked {
		return Result{Message: MsgBlocked}, nil
	}

	if round.Status != models.RoundActive {
		return Result{Message: MsgNotActive}, nil
	}
	if card.Claimed {
		return Result{Message: MsgClaimed}, nil
	}

	grid, err := card.Grid()
	if err != nil {
		return Result{}, err
	}
	called := round.Called()
	if _, won := game.WinningRow(grid, called); !won {
		return Result{Message: MsgNoLine}, nil
	}

	isJackpot := len(called) <= c.cfg.JackpotThreshold
	amount := round.TotalPool * c.cfg.WinnerRate
	carry := 0.0
	if isJackpot {
		amount += round.TotalPool * c.cfg.JackpotRate
	} else {
		// unpaid jackpot share carries into the successor round's pool
		carry = round.JackpotPool + round.TotalPool*c.cfg.JackpotRate
	}

	next, err := c.store.SettleWin(ctx, store.Settlement{
		RoundID:   roundID,
		CardID:    cardID,
		UserID:    userID,
		Amount:    amount,
		IsJackpot: isJackpot,
		Carry:     carry,
		At:        time.Now().UTC(),
	})
	if errors.Is(err, store.ErrRoundNotOpen) {
		return Result{Message: MsgNotActive}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if c.metrics != nil {
		c.metrics.RoundsCompleted.Inc()
	}
	c.log.Infow("claim settled",
		"round_id", roundID, "winner_id", userID, "amount", amount,
		"is_jackpot", isJackpot, "numbers_called", len(called))

	if err := c.bus.Publish(ctx, round.RoomID, events.Winner(roundID, userID, amount, isJackpot, len(called))); err != nil {
		c.log.Errorw("publish winner event", "round_id", roundID, "error", err)
	}
	if err := c.bus.Publish(ctx, round.RoomID, events.NewRound(next.ID)); err != nil {
		c.log.Errorw("publish new round event", "round_id", next.ID, "error", err)
	}

	msg := MsgWinner
	if isJackpot {
		msg = MsgJackpot
	}
	return Result{Success: true, Message: msg, Amount: amount, IsJackpot: isJackpot}, nil
}
