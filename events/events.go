package events

import (
	"fmt"
	"time"
)

type Type string

const (
	TypeNumberCalled Type = "number_called"
	TypeRoundStarted Type = "round_started"
	TypeRoundEnded   Type = "round_ended"
	TypeNewRound     Type = "new_round"
	TypeWinner       Type = "winner"
)

// Event is the closed set of messages published on a room channel.
// Fields beyond Type and RoundID are populated per kind by the
// constructors below; consumers switch on Type.
type Event struct {
	Type    Type `json:"type"`
	RoundID uint `json:"round_id"`

	// number_called
	Number        int   `json:"number,omitempty"`
	CalledNumbers []int `json:"called_numbers,omitempty"`

	// round_started
	StartTime *time.Time `json:"start_time,omitempty"`

	// winner
	WinnerID           uint    `json:"winner_id,omitempty"`
	Amount             float64 `json:"amount,omitempty"`
	IsJackpot          bool    `json:"is_jackpot,omitempty"`
	NumbersCalledCount int     `json:"numbers_called_count,omitempty"`
}

func NumberCalled(roundID uint, number int, called []int) Event {
	return Event{Type: TypeNumberCalled, RoundID: roundID, Number: number, CalledNumbers: called}
}

func RoundStarted(roundID uint, start time.Time) Event {
	return Event{Type: TypeRoundStarted, RoundID: roundID, StartTime: &start}
}

func RoundEnded(roundID uint) Event {
	return Event{Type: TypeRoundEnded, RoundID: roundID}
}

func NewRound(roundID uint) Event {
	return Event{Type: TypeNewRound, RoundID: roundID}
}

func Winner(roundID, winnerID uint, amount float64, isJackpot bool, calledCount int) Event {
	return Event{
		Type:               TypeWinner,
		RoundID:            roundID,
		WinnerID:           winnerID,
		Amount:             amount,
		IsJackpot:          isJackpot,
		NumbersCalledCount: calledCount,
	}
}

// RoomChannel names the pub/sub channel for a room.
func RoomChannel(roomID uint) string {
	return fmt.Sprintf("room:%d", roomID)
}
