package controllers

import (
	"errors"
	"net/http"

	"github.com/bellapacxx/bingo75-backend/game"
	"github.com/bellapacxx/bingo75-backend/store"

	"github.com/gin-gonic/gin"
)

type buyCardRequest struct {
	UserID  uint `json:"user_id" binding:"required"`
	RoundID uint `json:"round_id" binding:"required"`
}

// BuyCard sells one card for a waiting round.
func (a *API) BuyCard(c *gin.Context) {
	var req buyCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "user_id and round_id are required"})
		return
	}

	grid, err := game.NewCardNumbers()
	if err != nil {
		a.log.Errorw("generate card", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
		return
	}

	card, user, err := a.store.BuyCard(c.Request.Context(), req.UserID, req.RoundID, grid)
	if err != nil {
		status, msg := buyCardFailure(err)
		if status == http.StatusInternalServerError {
			a.log.Errorw("buy card", "user_id", req.UserID, "round_id", req.RoundID, "error", err)
		}
		c.JSON(status, gin.H{"success": false, "message": msg})
		return
	}

	numbers, _ := card.Grid()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"card_id": card.ID,
		"numbers": numbers,
		"balance": user.WalletBalance,
	})
}

func buyCardFailure(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrRoundNotOpen):
		return http.StatusBadRequest, "Round not available"
	case errors.Is(err, store.ErrInsufficientBalance):
		return http.StatusBadRequest, "Insufficient balance"
	case errors.Is(err, store.ErrDuplicateCard):
		return http.StatusBadRequest, "You already have a card for this round"
	case errors.Is(err, store.ErrUserBlocked):
		return http.StatusForbidden, "Account is blocked"
	case errors.Is(err, store.ErrRoomFull):
		return http.StatusBadRequest, "Room is full"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
