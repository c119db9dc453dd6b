package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/bellapacxx/bingo75-backend/claims"
	"github.com/bellapacxx/bingo75-backend/events"
	"github.com/bellapacxx/bingo75-backend/models"
	"github.com/bellapacxx/bingo75-backend/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// -------------------- Fakes --------------------

type fakeSource struct {
	mu       sync.Mutex
	channels map[uint]chan events.Event
	closed   []uint
}

func newFakeSource() *fakeSource {
	return &fakeSource{channels: make(map[uint]chan events.Event)}
}

func (s *fakeSource) Subscribe(_ context.Context, roomID uint) *events.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan events.Event, 8)
	s.channels[roomID] = ch
	return events.NewSubscription(ch, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.channels[roomID]; ok {
			close(c)
			delete(s.channels, roomID)
			s.closed = append(s.closed, roomID)
		}
		return nil
	})
}

func (s *fakeSource) emit(roomID uint, ev events.Event) {
	s.mu.Lock()
	ch := s.channels[roomID]
	s.mu.Unlock()
	if ch != nil {
		ch <- ev
	}
}

func (s *fakeSource) closedRooms() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint(nil), s.closed...)
}

type fakeHubStore struct {
	round   *models.Round
	buyErr  error
	bought  []uint
	balance float64
}

func (f *fakeHubStore) User(_ context.Context, id uint) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (f *fakeHubStore) Room(_ context.Context, id uint) (*models.Room, error) {
	return &models.Room{ID: id, Status: models.RoomActive}, nil
}

func (f *fakeHubStore) CurrentRound(_ context.Context, _ uint) (*models.Round, error) {
	if f.round == nil {
		return nil, store.ErrNotFound
	}
	return f.round, nil
}

func (f *fakeHubStore) BuyCard(_ context.Context, userID, _ uint, grid [][]int) (*models.Card, *models.User, error) {
	if f.buyErr != nil {
		return nil, nil, f.buyErr
	}
	f.bought = append(f.bought, userID)
	card := &models.Card{ID: 42, UserID: userID}
	card.SetGrid(grid)
	return card, &models.User{ID: userID, WalletBalance: f.balance}, nil
}

type fakeClaims struct {
	mu     sync.Mutex
	result claims.Result
	calls  [][3]uint
}

func (f *fakeClaims) Process(_ context.Context, roundID, cardID, userID uint) (claims.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, [3]uint{roundID, cardID, userID})
	return f.result, nil
}

// -------------------- Helpers --------------------

func newTestHub(src *fakeSource, st *fakeHubStore, cp *fakeClaims) *Hub {
	return NewHub(src, st, cp, zap.NewNop().Sugar(), nil)
}

func newTestClient(h *Hub, roomID, userID uint) *Client {
	return &Client{userID: userID, roomID: roomID, hub: h, send: make(chan []byte, 8)}
}

func recv(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case b := <-c.send:
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

// -------------------- Tests --------------------

func TestRelayDeliversToRoom(t *testing.T) {
	src := newFakeSource()
	h := newTestHub(src, &fakeHubStore{}, &fakeClaims{})

	a := newTestClient(h, 1, 10)
	b := newTestClient(h, 1, 11)
	other := newTestClient(h, 2, 12)
	h.addClient(a)
	h.addClient(b)
	h.addClient(other)

	src.emit(1, events.RoundEnded(5))

	for _, c := range []*Client{a, b} {
		m := recv(t, c)
		assert.Equal(t, "round_ended", m["type"])
		assert.EqualValues(t, 5, m["round_id"])
	}
	assert.Empty(t, other.send, "other rooms must not receive the event")
}

func TestReconnectReplacesUserEntry(t *testing.T) {
	src := newFakeSource()
	h := newTestHub(src, &fakeHubStore{}, &fakeClaims{})

	old := newTestClient(h, 1, 10)
	h.addClient(old)
	fresh := newTestClient(h, 1, 10)
	h.addClient(fresh)

	h.sendToUser(10, map[string]string{"type": "ping"})

	m := recv(t, fresh)
	assert.Equal(t, "ping", m["type"])
	assert.Empty(t, old.send, "user messages go to the newest socket only")

	// the stale socket is still in the room set until its pump dies
	h.mu.Lock()
	assert.Len(t, h.rooms[1], 2)
	h.mu.Unlock()
}

func TestRemoveLastClientClosesSubscription(t *testing.T) {
	src := newFakeSource()
	h := newTestHub(src, &fakeHubStore{}, &fakeClaims{})

	c := newTestClient(h, 1, 10)
	h.addClient(c)
	h.removeClient(c)

	assert.Equal(t, []uint{1}, src.closedRooms())
	h.mu.Lock()
	assert.Empty(t, h.rooms)
	assert.Empty(t, h.users)
	h.mu.Unlock()
}

func TestClaimMessageRoutedToCoordinator(t *testing.T) {
	src := newFakeSource()
	st := &fakeHubStore{round: &models.Round{ID: 7, Status: models.RoundActive}}
	cp := &fakeClaims{result: claims.Result{Success: true, Message: claims.MsgWinner, Amount: 2.4}}
	h := newTestHub(src, st, cp)

	c := newTestClient(h, 1, 10)
	h.addClient(c)

	h.handleMessage(c, []byte(`{"type":"claim","card_id":5}`))

	require.Len(t, cp.calls, 1)
	assert.Equal(t, [3]uint{7, 5, 10}, cp.calls[0], "round resolved from the room's current round")

	m := recv(t, c)
	assert.Equal(t, "claim_result", m["type"])
	assert.Equal(t, true, m["success"])
	assert.Equal(t, claims.MsgWinner, m["message"])
}

func TestClaimWithoutCurrentRound(t *testing.T) {
	src := newFakeSource()
	h := newTestHub(src, &fakeHubStore{}, &fakeClaims{})

	c := newTestClient(h, 1, 10)
	h.addClient(c)

	h.handleMessage(c, []byte(`{"type":"claim","card_id":5}`))

	m := recv(t, c)
	assert.Equal(t, "claim_result", m["type"])
	assert.Equal(t, claims.MsgInvalid, m["message"])
}

func TestBuyCardMessage(t *testing.T) {
	src := newFakeSource()
	st := &fakeHubStore{balance: 9.0}
	h := newTestHub(src, st, &fakeClaims{})

	c := newTestClient(h, 1, 10)
	h.addClient(c)

	h.handleMessage(c, []byte(`{"type":"buy_card","round_id":7}`))

	require.Equal(t, []uint{10}, st.bought)
	m := recv(t, c)
	assert.Equal(t, "card_purchased", m["type"])
	assert.EqualValues(t, 42, m["card_id"])
	assert.EqualValues(t, 9.0, m["balance"])
}

func TestBuyCardFailureMessage(t *testing.T) {
	src := newFakeSource()
	st := &fakeHubStore{buyErr: store.ErrInsufficientBalance}
	h := newTestHub(src, st, &fakeClaims{})

	c := newTestClient(h, 1, 10)
	h.addClient(c)

	h.handleMessage(c, []byte(`{"type":"buy_card","round_id":7}`))

	m := recv(t, c)
	assert.Equal(t, "error", m["type"])
	assert.Equal(t, "Insufficient balance", m["message"])
}
