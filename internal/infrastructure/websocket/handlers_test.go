package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"player-auction/internal/domain"
	"player-auction/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

type stubBids struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *stubBids) SubmitBid(_ context.Context, partyRef string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, partyRef+":"+amount.String())
	return s.err
}

func (s *stubBids) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type stubState struct{}

func (stubState) SyncEvent(context.Context) *domain.RoundEvent {
	return &domain.RoundEvent{
		Type: domain.EventRoundSnapshot,
		Seq:  4,
		Data: &domain.RoundView{RoundID: "round-1", ItemRef: "player-1", Open: true, Phase: "open"},
	}
}

type wsFixture struct {
	cm   *ConnectionManager
	bids *stubBids
	url  string
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	cm := startManager(t)
	bids := &stubBids{}
	h := NewWebSocketHandler(cm, bids, stubState{}, DefaultConnectionConfig(), logger.NewNop())

	srv := httptest.NewServer(http.HandlerFunc(h.HandleConnection))
	t.Cleanup(srv.Close)

	return &wsFixture{
		cm:   cm,
		bids: bids,
		url:  "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (f *wsFixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url+query, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	assert.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]interface{}
	assert.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketHandler_SyncOnConnect(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "?party_id=team-a")

	msg := readJSON(t, conn)
	check.Equal(t, "roundSnapshot", msg["type"])
	check.Equal[interface{}](t, float64(4), msg["seq"])
	data := msg["data"].(map[string]interface{})
	check.Equal(t, "player-1", data["item_ref"])

	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "sync"}))
	check.Equal(t, "roundSnapshot", readJSON(t, conn)["type"])
}

func TestWebSocketHandler_PlaceBid(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "?party_id=team-a")
	readJSON(t, conn)

	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "place_bid", "amount": "25"}))
	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	// The pong proves the bid was handled first.
	check.Equal(t, "pong", readJSON(t, conn)["type"])
	check.Equal(t, []string{"team-a:25"}, f.bids.recorded())
}

func TestWebSocketHandler_ObserverCannotBid(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "")
	readJSON(t, conn)

	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "place_bid", "amount": "25"}))
	msg := readJSON(t, conn)
	check.Equal(t, "error", msg["type"])
	check.Equal(t, "observers cannot bid", msg["message"])
	check.Equal(t, 0, len(f.bids.recorded()))
}

func TestWebSocketHandler_BidErrors(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "?party_id=team-a")
	readJSON(t, conn)

	// Rejections are reported by the coordinator, stale bids are silent.
	for _, err := range []error{domain.ErrStaleBid, domain.ErrInsufficientFunds} {
		f.bids.mu.Lock()
		f.bids.err = err
		f.bids.mu.Unlock()
		assert.NoError(t, conn.WriteJSON(map[string]string{"type": "place_bid", "amount": "25"}))
	}
	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	check.Equal(t, "pong", readJSON(t, conn)["type"])

	f.bids.mu.Lock()
	f.bids.err = context.DeadlineExceeded
	f.bids.mu.Unlock()
	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "place_bid", "amount": "25"}))
	check.Equal(t, "error", readJSON(t, conn)["type"])

	assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	check.Equal(t, "invalid message", readJSON(t, conn)["message"])

	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	check.Equal(t, "unknown message type", readJSON(t, conn)["message"])
}

func TestWebSocketHandler_ReceivesBroadcasts(t *testing.T) {
	f := newWSFixture(t)
	party := f.dial(t, "?party_id=team-a")
	observer := f.dial(t, "")
	readJSON(t, party)
	readJSON(t, observer)

	notifier := NewWebSocketNotifier(f.cm)
	assert.NoError(t, notifier.Publish(context.Background(), &domain.RoundEvent{
		Type: domain.EventItemSold,
		Seq:  5,
		Data: &domain.ItemSoldPayload{Item: "player-1", WinnerRef: "team-a", FinalAmount: decimal.NewFromInt(25)},
	}))

	for _, conn := range []*websocket.Conn{party, observer} {
		msg := readJSON(t, conn)
		check.Equal(t, "itemSold", msg["type"])
		check.Equal[interface{}](t, float64(5), msg["seq"])
	}

	assert.NoError(t, notifier.NotifyUser(context.Background(), "team-a", &domain.RoundEvent{
		Type: domain.EventBidRejected,
		Data: domain.BidRejection{Reason: "insufficient_funds"},
	}))
	check.Equal(t, "bidRejected", readJSON(t, party)["type"])
}

func TestWebSocketHandler_UnregistersOnClose(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "?party_id=team-a")
	readJSON(t, conn)
	check.Equal(t, 1, f.cm.Count())

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.cm.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	check.Equal(t, 0, f.cm.Count())
}
