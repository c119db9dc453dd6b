package models

import "time"

// CalledNumber is the append-only call log for a round, mirroring
// Round.NumbersCalled. The newest row drives the "time since last call"
// check in the scheduler.
type CalledNumber struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	RoundID  uint      `gorm:"index" json:"round_id"`
	Number   int       `gorm:"not null" json:"number"`
	CalledAt time.Time `json:"called_at"`
}
