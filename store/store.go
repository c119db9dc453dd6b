// Package store is the single source of truth. Every multi-row step of
// the round lifecycle (number call, settlement, purchase) is one
// database transaction; in-memory copies of rows are disposable
// projections.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bellapacxx/bingo75-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrRoundNotOpen        = errors.New("round is not open")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateCard       = errors.New("user already has a card for this round")
	ErrUserBlocked         = errors.New("user is blocked")
	ErrRoomFull            = errors.New("room is full")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func wrap(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// -------------------- Lookups --------------------

func (s *Store) Round(ctx context.Context, id uint) (*models.Round, error) {
	var round models.Round
	if err := s.db.WithContext(ctx).First(&round, id).Error; err != nil {
		return nil, wrap(err)
	}
	return &round, nil
}

// CardForUser finds a card by id only if the user owns it.
func (s *Store) CardForUser(ctx context.Context, cardID, userID uint) (*models.Card, error) {
	var card models.Card
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", cardID, userID).
		First(&card).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &card, nil
}

func (s *Store) Room(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := s.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return nil, wrap(err)
	}
	return &room, nil
}

func (s *Store) User(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, wrap(err)
	}
	return &user, nil
}

// CurrentRound returns the room's newest waiting or active round.
func (s *Store) CurrentRound(ctx context.Context, roomID uint) (*models.Round, error) {
	var round models.Round
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND status IN ?", roomID, []string{models.RoundWaiting, models.RoundActive}).
		Order("created_at DESC").
		First(&round).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &round, nil
}

func (s *Store) RoundsByStatus(ctx context.Context, status string) ([]models.Round, error) {
	var rounds []models.Round
	if err := s.db.WithContext(ctx).Where("status = ?", status).Find(&rounds).Error; err != nil {
		return nil, err
	}
	return rounds, nil
}

func (s *Store) ActiveRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := s.db.WithContext(ctx).Where("status = ?", models.RoomActive).Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// LastCalledAt returns the timestamp of the round's most recent call.
// ok is false when nothing has been called yet.
func (s *Store) LastCalledAt(ctx context.Context, roundID uint) (time.Time, bool, error) {
	var last models.CalledNumber
	err := s.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("called_at DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return last.CalledAt, true, nil
}

// -------------------- Lifecycle commits --------------------

// ActivateRound moves a waiting round to active and stamps its start
// time. Returns ErrRoundNotOpen when the round is no longer waiting.
func (s *Store) ActivateRound(ctx context.Context, roundID uint, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.Round{}).
		Where("id = ? AND status = ?", roundID, models.RoundWaiting).
		Updates(map[string]any{"status": models.RoundActive, "start_time": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoundNotOpen
	}
	return nil
}

// AppendCalledNumber appends one number to the round's call sequence
// and writes the matching CalledNumber row in the same commit. The
// round row is locked so the sequence can never fork or duplicate.
func (s *Store) AppendCalledNumber(ctx context.Context, roundID uint, number int, at time.Time) ([]int, error) {
	var called []int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var round models.Round
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&round, roundID).Error; err != nil {
			return wrap(err)
		}
		if round.Status != models.RoundActive {
			return ErrRoundNotOpen
		}

		called = round.Called()
		for _, n := range called {
			if n == number {
				return nil // already called, nothing to do
			}
		}
		called = append(called, number)
		round.SetCalled(called)

		if err := tx.Model(&round).Update("numbers_called", round.NumbersCalled).Error; err != nil {
			return err
		}
		return tx.Create(&models.CalledNumber{
			RoundID:  roundID,
			Number:   number,
			CalledAt: at,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return called, nil
}

// CompleteRound ends an active round without a winner and creates the
// successor waiting round in the same commit. carry seeds the
// successor's jackpot pool. Returns ErrRoundNotOpen when another path
// already made the terminal transition.
func (s *Store) CompleteRound(ctx context.Context, roundID uint, carry float64, at time.Time) (*models.Round, error) {
	var next models.Round
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var round models.Round
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&round, roundID).Error; err != nil {
			return wrap(err)
		}
		if round.Status != models.RoundActive {
			return ErrRoundNotOpen
		}

		if err := tx.Model(&round).Updates(map[string]any{
			"status":   models.RoundCompleted,
			"end_time": at,
		}).Error; err != nil {
			return err
		}

		next = models.Round{RoomID: round.RoomID, Status: models.RoundWaiting, JackpotPool: carry}
		next.SetCalled(nil)
		return tx.Create(&next).Error
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// Settlement is one winning claim applied as a unit.
type Settlement struct {
	RoundID   uint
	CardID    uint
	UserID    uint
	Amount    float64
	IsJackpot bool
	Carry     float64 // successor jackpot pool; zero when the jackpot paid out
	At        time.Time
}

// SettleWin commits a win: round terminal + winner fields, card
// claimed, balance credit, ledger transaction, successor round. All or
// nothing.
func (s *Store) SettleWin(ctx context.Context, st Settlement) (*models.Round, error) {
	var next models.Round
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var round models.Round
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&round, st.RoundID).Error; err != nil {
			return wrap(err)
		}
		if round.Status != models.RoundActive {
			return ErrRoundNotOpen
		}

		status := models.RoundCompleted
		kind := models.WinTransaction
		if st.IsJackpot {
			status = models.RoundJackpot
			kind = models.JackpotTransaction
		}

		if err := tx.Model(&round).Updates(map[string]any{
			"status":        status,
			"winner_id":     st.UserID,
			"winner_amount": st.Amount,
			"end_time":      st.At,
		}).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Card{}).
			Where("id = ? AND claimed = ?", st.CardID, false).
			Update("claimed", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoundNotOpen
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", st.UserID).
			Update("wallet_balance", gorm.Expr("wallet_balance + ?", st.Amount)).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.Transaction{
			UserID:      st.UserID,
			Amount:      st.Amount,
			Type:        kind,
			ReferenceID: uuid.NewString(),
			Status:      models.TransactionCompleted,
		}).Error; err != nil {
			return err
		}

		next = models.Round{RoomID: round.RoomID, Status: models.RoundWaiting, JackpotPool: st.Carry}
		next.SetCalled(nil)
		return tx.Create(&next).Error
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// BuyCard sells one card for a waiting round: card insert, balance
// debit, pool credit and ledger entry in one commit.
func (s *Store) BuyCard(ctx context.Context, userID, roundID uint, grid [][]int) (*models.Card, *models.User, error) {
	var (
		card models.Card
		user models.User
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return wrap(err)
		}
		if user.IsBlocked {
			return ErrUserBlocked
		}

		var round models.Round
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&round, roundID).Error; err != nil {
			return wrap(err)
		}
		if round.Status != models.RoundWaiting {
			return ErrRoundNotOpen
		}

		var room models.Room
		if err := tx.First(&room, round.RoomID).Error; err != nil {
			return wrap(err)
		}
		if room.Status != models.RoomActive {
			return ErrRoundNotOpen
		}

		var sold int64
		if err := tx.Model(&models.Card{}).Where("round_id = ?", roundID).Count(&sold).Error; err != nil {
			return err
		}
		if sold >= int64(room.MaxPlayers) {
			return ErrRoomFull
		}

		var existing int64
		if err := tx.Model(&models.Card{}).
			Where("round_id = ? AND user_id = ?", roundID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateCard
		}

		if user.WalletBalance < room.CardPrice {
			return ErrInsufficientBalance
		}

		user.WalletBalance -= room.CardPrice
		if err := tx.Model(&user).Update("wallet_balance", user.WalletBalance).Error; err != nil {
			return err
		}

		if err := tx.Model(&round).
			Update("total_pool", gorm.Expr("total_pool + ?", room.CardPrice)).Error; err != nil {
			return err
		}

		card = models.Card{RoundID: roundID, UserID: userID}
		card.SetGrid(grid)
		if err := tx.Create(&card).Error; err != nil {
			return err
		}

		return tx.Create(&models.Transaction{
			UserID:      userID,
			Amount:      -room.CardPrice,
			Type:        models.BuyCardTransaction,
			ReferenceID: uuid.NewString(),
			Status:      models.TransactionCompleted,
		}).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &card, &user, nil
}
