package services

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bellapacxx/bingo75-backend/models"
	"github.com/bellapacxx/bingo75-backend/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket upgrades /ws/:room_id/:user_id connections and
// registers them with the hub.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	roomID, err := strconv.ParseUint(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room_id"})
		return
	}
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	ctx := c.Request.Context()

	user, err := h.store.User(ctx, uint(userID))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if user.IsBlocked {
		c.JSON(http.StatusForbidden, gin.H{"error": "user is blocked"})
		return
	}

	room, err := h.store.Room(ctx, uint(roomID))
	if errors.Is(err, store.ErrNotFound) || (err == nil && room.Status != models.RoomActive) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := &Client{
		userID: user.ID,
		roomID: room.ID,
		conn:   conn,
		hub:    h,
		send:   make(chan []byte, 32),
	}
	h.addClient(client)

	go client.writePump()
	go client.readPump()
}
