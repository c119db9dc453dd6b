package models

import "time"

const (
	RoomActive   = "active"
	RoomInactive = "inactive"
	RoomDeleted  = "deleted"
)

type Room struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	CardPrice   float64   `gorm:"default:1.0" json:"card_price"`
	MaxPlayers  int       `gorm:"default:100" json:"max_players"`
	Status      string    `gorm:"default:active" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
