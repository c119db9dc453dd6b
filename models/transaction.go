package models

import "time"

type TransactionType string

const (
	BuyCardTransaction    TransactionType = "buy_card"
	WinTransaction        TransactionType = "win"
	JackpotTransaction    TransactionType = "jackpot"
	AdjustmentTransaction TransactionType = "adjustment"
	DepositTransaction    TransactionType = "deposit"
	WithdrawalTransaction TransactionType = "withdrawal"
)

const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"index" json:"user_id"`
	Amount      float64         `gorm:"not null" json:"amount"` // signed; debits are negative
	Type        TransactionType `gorm:"not null" json:"type"`
	ReferenceID string          `json:"reference_id"`
	Status      string          `gorm:"default:completed" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}
