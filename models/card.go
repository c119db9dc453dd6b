package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type Card struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	RoundID   uint           `gorm:"index;uniqueIndex:idx_unique_card" json:"round_id"`
	UserID    uint           `gorm:"index;uniqueIndex:idx_unique_card" json:"user_id"`
	Numbers   datatypes.JSON `gorm:"not null" json:"numbers"` // 3 rows x 5 numbers
	Claimed   bool           `gorm:"default:false" json:"claimed"`
	CreatedAt time.Time      `json:"created_at"`
}

// Grid decodes the stored 3x5 number grid.
func (c *Card) Grid() ([][]int, error) {
	var grid [][]int
	if err := json.Unmarshal(c.Numbers, &grid); err != nil {
		return nil, err
	}
	return grid, nil
}

func (c *Card) SetGrid(grid [][]int) {
	b, _ := json.Marshal(grid)
	c.Numbers = datatypes.JSON(b)
}
