package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Round statuses. Transitions are monotonic: waiting -> active -> completed|jackpot.
const (
	RoundWaiting   = "waiting"
	RoundActive    = "active"
	RoundCompleted = "completed"
	RoundJackpot   = "jackpot"
)

type Round struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	RoomID        uint           `gorm:"index" json:"room_id"`
	Status        string         `gorm:"default:waiting" json:"status"`
	TotalPool     float64        `gorm:"default:0" json:"total_pool"`
	JackpotPool   float64        `gorm:"default:0" json:"jackpot_pool"`
	WinnerID      *uint          `json:"winner_id"`
	WinnerAmount  float64        `gorm:"default:0" json:"winner_amount"`
	NumbersCalled datatypes.JSON `json:"numbers_called"` // ordered []int, append-only
	StartTime     *time.Time     `json:"start_time"`
	EndTime       *time.Time     `json:"end_time"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Called decodes the stored call sequence. An empty or missing column
// decodes to nil.
func (r *Round) Called() []int {
	var nums []int
	if len(r.NumbersCalled) > 0 {
		_ = json.Unmarshal(r.NumbersCalled, &nums)
	}
	return nums
}

func (r *Round) SetCalled(nums []int) {
	b, _ := json.Marshal(nums)
	r.NumbersCalled = datatypes.JSON(b)
}

func (r *Round) IsTerminal() bool {
	return r.Status == RoundCompleted || r.Status == RoundJackpot
}
