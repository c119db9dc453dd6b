package models

import "time"

type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TelegramID    string    `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Username      string    `json:"username"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	WalletBalance float64   `gorm:"default:0" json:"wallet_balance"`
	IsBlocked     bool      `gorm:"default:false" json:"is_blocked"`
	CreatedAt     time.Time `json:"created_at"`
	LastActive    time.Time `json:"last_active"`
}
