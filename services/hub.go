// Package services owns the live websocket side: the connection
// registry mapping rooms and users to sockets, and the relay that
// replicates room-channel events to every socket in the room.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/bellapacxx/bingo75-backend/claims"
	"github.com/bellapacxx/bingo75-backend/events"
	"github.com/bellapacxx/bingo75-backend/game"
	"github.com/bellapacxx/bingo75-backend/models"
	"github.com/bellapacxx/bingo75-backend/monitor"
	"github.com/bellapacxx/bingo75-backend/store"

	"go.uber.org/zap"
)

type Store interface {
	User(ctx context.Context, id uint) (*models.User, error)
	Room(ctx context.Context, id uint) (*models.Room, error)
	CurrentRound(ctx context.Context, roomID uint) (*models.Round, error)
	BuyCard(ctx context.Context, userID, roundID uint, grid [][]int) (*models.Card, *models.User, error)
}

type ClaimProcessor interface {
	Process(ctx context.Context, roundID, cardID, userID uint) (claims.Result, error)
}

// EventSource is the subscribe side of the event channel.
type EventSource interface {
	Subscribe(ctx context.Context, roomID uint) *events.Subscription
}

// Hub is the connection registry plus event relay. Registry state is
// process-local only; cross-process consistency flows through the
// redis event channel.
type Hub struct {
	mu    sync.Mutex
	rooms map[uint]map[*Client]struct{}
	users map[uint]*Client
	subs  map[uint]*events.Subscription

	bus     EventSource
	store   Store
	claims  ClaimProcessor
	log     *zap.SugaredLogger
	metrics *monitor.Metrics
}

func NewHub(bus EventSource, st Store, cp ClaimProcessor, log *zap.SugaredLogger, metrics *monitor.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[uint]map[*Client]struct{}),
		users:   make(map[uint]*Client),
		subs:    make(map[uint]*events.Subscription),
		bus:     bus,
		store:   st,
		claims:  cp,
		log:     log,
		metrics: metrics,
	}
}

// addClient registers a client. The first client in a room opens the
// room's event subscription. A reconnecting user replaces the registry
// entry; the old socket is left to die on its next failed write rather
// than being force-closed.
func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	set, ok := h.rooms[c.roomID]
	if !ok {
		set = make(map[*Client]struct{})
		h.rooms[c.roomID] = set
		sub := h.bus.Subscribe(context.Background(), c.roomID)
		h.subs[c.roomID] = sub
		go h.relay(c.roomID, sub)
	}
	set[c] = struct{}{}
	h.users[c.userID] = c
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectedClients.Inc()
	}
	h.log.Infow("client joined", "room_id", c.roomID, "user_id", c.userID)
}

// removeClient prunes a client and closes the room subscription when
// the room empties.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	set, ok := h.rooms[c.roomID]
	if ok {
		if _, present := set[c]; !present {
			ok = false
		}
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, c.roomID)
			if sub, exists := h.subs[c.roomID]; exists {
				_ = sub.Close()
				delete(h.subs, c.roomID)
			}
		}
	}
	if h.users[c.userID] == c {
		delete(h.users, c.userID)
	}
	h.mu.Unlock()

	c.Close()
	if ok {
		if h.metrics != nil {
			h.metrics.ConnectedClients.Dec()
		}
		h.log.Infow("client left", "room_id", c.roomID, "user_id", c.userID)
	}
}

// relay consumes one room's event stream and fans it out. It ends when
// the subscription closes.
func (h *Hub) relay(roomID uint, sub *events.Subscription) {
	for ev := range sub.C {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.log.Errorw("encode event", "room_id", roomID, "error", err)
			continue
		}
		h.broadcast(roomID, payload)
	}
}

// broadcast delivers to every socket in the room, best effort per
// socket: a client with a full send buffer loses this message only.
func (h *Hub) broadcast(roomID uint, payload []byte) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warnw("dropping message to slow client", "room_id", roomID, "user_id", c.userID)
		}
	}
}

func (h *Hub) sendToUser(userID uint, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Errorw("encode user message", "user_id", userID, "error", err)
		return
	}

	h.mu.Lock()
	c, ok := h.users[userID]
	h.mu.Unlock()
	if !ok {
		return
	}

	select {
	case c.send <- payload:
	default:
		h.log.Warnw("dropping message to slow client", "user_id", userID)
	}
}

// Close tears down all room subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, sub := range h.subs {
		_ = sub.Close()
		delete(h.subs, roomID)
	}
}

// -------------------- Inbound client messages --------------------

type clientMessage struct {
	Type    string `json:"type"`
	CardID  uint   `json:"card_id"`
	RoundID uint   `json:"round_id"`
}

type claimResultMessage struct {
	Type string `json:"type"`
	claims.Result
}

type cardPurchasedMessage struct {
	Type    string  `json:"type"`
	CardID  uint    `json:"card_id"`
	Numbers [][]int `json:"numbers"`
	Balance float64 `json:"balance"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// handleMessage dispatches one inbound socket message. Business logic
// lives in the claim coordinator and the store; this only routes and
// acknowledges.
func (h *Hub) handleMessage(c *Client, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.log.Warnw("invalid client message", "user_id", c.userID, "error", err)
		return
	}

	ctx := context.Background()
	switch msg.Type {
	case "claim":
		h.handleClaim(ctx, c, msg)
	case "buy_card":
		h.handleBuyCard(ctx, c, msg)
	default:
		h.log.Warnw("unknown message type", "user_id", c.userID, "type", msg.Type)
	}
}

func (h *Hub) handleClaim(ctx context.Context, c *Client, msg clientMessage) {
	roundID := msg.RoundID
	if roundID == 0 {
		round, err := h.store.CurrentRound(ctx, c.roomID)
		if errors.Is(err, store.ErrNotFound) {
			h.sendToUser(c.userID, claimResultMessage{Type: "claim_result", Result: claims.Result{Message: claims.MsgInvalid}})
			return
		}
		if err != nil {
			h.log.Errorw("resolve current round", "room_id", c.roomID, "error", err)
			h.sendToUser(c.userID, errorMessage{Type: "error", Message: "Claim failed, please retry"})
			return
		}
		roundID = round.ID
	}

	result, err := h.claims.Process(ctx, roundID, msg.CardID, c.userID)
	if err != nil {
		h.log.Errorw("process claim", "round_id", roundID, "user_id", c.userID, "error", err)
		h.sendToUser(c.userID, errorMessage{Type: "error", Message: "Claim failed, please retry"})
		return
	}
	h.sendToUser(c.userID, claimResultMessage{Type: "claim_result", Result: result})
}

func (h *Hub) handleBuyCard(ctx context.Context, c *Client, msg clientMessage) {
	grid, err := game.NewCardNumbers()
	if err != nil {
		h.log.Errorw("generate card", "user_id", c.userID, "error", err)
		h.sendToUser(c.userID, errorMessage{Type: "error", Message: "Purchase failed, please retry"})
		return
	}

	card, user, err := h.store.BuyCard(ctx, c.userID, msg.RoundID, grid)
	if err != nil {
		h.sendToUser(c.userID, errorMessage{Type: "error", Message: purchaseFailure(err)})
		return
	}

	numbers, _ := card.Grid()
	h.sendToUser(c.userID, cardPurchasedMessage{
		Type:    "card_purchased",
		CardID:  card.ID,
		Numbers: numbers,
		Balance: user.WalletBalance,
	})
}

func purchaseFailure(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "Round not available"
	case errors.Is(err, store.ErrRoundNotOpen):
		return "Round not available"
	case errors.Is(err, store.ErrInsufficientBalance):
		return "Insufficient balance"
	case errors.Is(err, store.ErrDuplicateCard):
		return "You already have a card for this round"
	case errors.Is(err, store.ErrUserBlocked):
		return "Account is blocked"
	case errors.Is(err, store.ErrRoomFull):
		return "Room is full"
	default:
		return "Purchase failed, please retry"
	}
}
