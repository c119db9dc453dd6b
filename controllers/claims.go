package controllers

import (
	"net/http"

	"github.com/bellapacxx/bingo75-backend/claims"

	"github.com/gin-gonic/gin"
)

type claimRequest struct {
	UserID  uint `json:"user_id" binding:"required"`
	RoundID uint `json:"round_id" binding:"required"`
	CardID  uint `json:"card_id" binding:"required"`
}

// Claim verifies and settles a win claim. Rejections come back as 400
// with the coordinator's message; infrastructure failures are a
// generic 500 with nothing committed.
func (a *API) Claim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "user_id, round_id and card_id are required"})
		return
	}

	result, err := a.claims.Process(c.Request.Context(), req.RoundID, req.CardID, req.UserID)
	if err != nil {
		a.log.Errorw("process claim", "round_id", req.RoundID, "card_id", req.CardID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
		return
	}

	if !result.Success {
		status := http.StatusBadRequest
		if result.Message == claims.MsgBlocked {
			status = http.StatusForbidden
		}
		c.JSON(status, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
