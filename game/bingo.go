package game

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
)

const (
	MaxNumber   = 75 // 75-ball bingo
	CardRows    = 3
	CardRowSize = 5
)

// ErrPoolExhausted is returned by Draw once all 75 numbers have been called.
var ErrPoolExhausted = errors.New("all numbers have been called")

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read random index: %w", err)
	}
	return int(v.Int64()), nil
}

// Draw picks one uncalled number uniformly at random from 1..75.
func Draw(called []int) (int, error) {
	seen := make(map[int]bool, len(called))
	for _, n := range called {
		seen[n] = true
	}

	pool := make([]int, 0, MaxNumber-len(called))
	for n := 1; n <= MaxNumber; n++ {
		if !seen[n] {
			pool = append(pool, n)
		}
	}
	if len(pool) == 0 {
		return 0, ErrPoolExhausted
	}

	i, err := randIndex(len(pool))
	if err != nil {
		return 0, err
	}
	return pool[i], nil
}

// NewCardNumbers generates a card: 3 rows of 5 distinct numbers drawn
// without replacement from 1..75, each row sorted.
func NewCardNumbers() ([][]int, error) {
	pool := make([]int, MaxNumber)
	for i := range pool {
		pool[i] = i + 1
	}

	grid := make([][]int, CardRows)
	for r := 0; r < CardRows; r++ {
		row := make([]int, 0, CardRowSize)
		for len(row) < CardRowSize {
			i, err := randIndex(len(pool))
			if err != nil {
				return nil, err
			}
			row = append(row, pool[i])
			pool[i] = pool[len(pool)-1]
			pool = pool[:len(pool)-1]
		}
		sort.Ints(row)
		grid[r] = row
	}
	return grid, nil
}

// WinningRow reports the first row of the grid whose five numbers have
// all been called. There is no partial-row credit.
func WinningRow(grid [][]int, called []int) (int, bool) {
	set := make(map[int]bool, len(called))
	for _, n := range called {
		set[n] = true
	}

	for i, row := range grid {
		full := len(row) == CardRowSize
		for _, n := range row {
			if !set[n] {
				full = false
				break
			}
		}
		if full {
			return i, true
		}
	}
	return 0, false
}
