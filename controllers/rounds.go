package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bellapacxx/bingo75-backend/store"

	"github.com/gin-gonic/gin"
)

// CurrentRound returns the room's waiting or active round.
func (a *API) CurrentRound(c *gin.Context) {
	roomID, err := strconv.ParseUint(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room_id"})
		return
	}

	ctx := c.Request.Context()
	round, err := a.store.CurrentRound(ctx, uint(roomID))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"status": "no_round"})
		return
	}
	if err != nil {
		a.log.Errorw("current round", "room_id", roomID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	cardPrice := 0.0
	if room, err := a.store.Room(ctx, round.RoomID); err == nil {
		cardPrice = room.CardPrice
	}

	c.JSON(http.StatusOK, gin.H{
		"round_id":       round.ID,
		"status":         round.Status,
		"total_pool":     round.TotalPool,
		"jackpot_pool":   round.JackpotPool,
		"numbers_called": round.Called(),
		"start_time":     round.StartTime,
		"card_price":     cardPrice,
	})
}

// ListRooms returns the active rooms clients can join.
func (a *API) ListRooms(c *gin.Context) {
	rooms, err := a.store.ActiveRooms(c.Request.Context())
	if err != nil {
		a.log.Errorw("list rooms", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, rooms)
}
