package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"player-auction/internal/api/middleware"
	"player-auction/internal/domain"
	"player-auction/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

type stubCoordinator struct {
	openErr   error
	bidErr    error
	sellErr   error
	unsoldErr error
	opened    string
	bids      []string
}

func (s *stubCoordinator) OpenRound(_ context.Context, itemRef string) (*domain.RoundView, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened = itemRef
	return &domain.RoundView{RoundID: "round-1", ItemRef: itemRef, Open: true, Phase: "open",
		RemainingSeconds: 30, BidLog: []domain.Bid{}}, nil
}

func (s *stubCoordinator) SubmitBid(_ context.Context, partyRef string, amount decimal.Decimal) error {
	if s.bidErr != nil {
		return s.bidErr
	}
	s.bids = append(s.bids, partyRef+":"+amount.String())
	return nil
}

func (s *stubCoordinator) Sell(context.Context) (*domain.ItemSoldPayload, error) {
	if s.sellErr != nil {
		return nil, s.sellErr
	}
	return &domain.ItemSoldPayload{Item: "player-1", WinnerRef: "team-b", FinalAmount: decimal.NewFromInt(25)}, nil
}

func (s *stubCoordinator) MarkUnsold(context.Context) (*domain.ItemUnsoldPayload, error) {
	if s.unsoldErr != nil {
		return nil, s.unsoldErr
	}
	return &domain.ItemUnsoldPayload{Item: "player-1"}, nil
}

type stubState struct{ view *domain.RoundView }

func (s stubState) CurrentState(context.Context) *domain.RoundView { return s.view }

func newTestServer(coord *stubCoordinator, leader bool) *echo.Echo {
	e := echo.New()
	h := NewAuctionHandler(coord, stubState{view: &domain.RoundView{Phase: "idle", BidLog: []domain.Bid{}}}, logger.NewNop())
	h.Register(e.Group("/api/v1"), middleware.RequireLeader(func() bool { return leader }, logger.NewNop()))
	return e
}

func do(e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestAuctionHandler_OpenRound(t *testing.T) {
	coord := &stubCoordinator{}
	e := newTestServer(coord, true)

	rec, body := do(e, http.MethodPost, "/api/v1/rounds", `{"item_ref":"player-1"}`)
	check.Equal(t, http.StatusCreated, rec.Code)
	check.Equal(t, "player-1", body["item_ref"])
	check.Equal(t, "player-1", coord.opened)

	rec, _ = do(e, http.MethodPost, "/api/v1/rounds", `{}`)
	check.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(e, http.MethodPost, "/api/v1/rounds", `{nope`)
	check.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuctionHandler_OpenRoundErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrConflict, http.StatusConflict},
		{fmt.Errorf("look up item: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrItemUnavailable, http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		e := newTestServer(&stubCoordinator{openErr: tt.err}, true)
		rec, body := do(e, http.MethodPost, "/api/v1/rounds", `{"item_ref":"player-1"}`)
		check.Equal(t, tt.code, rec.Code)
		check.NotNil(t, body["error"])
	}
}

func TestAuctionHandler_Sell(t *testing.T) {
	e := newTestServer(&stubCoordinator{}, true)
	rec, body := do(e, http.MethodPost, "/api/v1/rounds/current/sell", "")
	check.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, "team-b", body["winner_ref"])
	check.Equal(t, "25", body["final_amount"])

	e = newTestServer(&stubCoordinator{sellErr: domain.ErrInvalidTransition}, true)
	rec, _ = do(e, http.MethodPost, "/api/v1/rounds/current/sell", "")
	check.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuctionHandler_CommitFailureIsRetryable(t *testing.T) {
	commitErr := &domain.CommitError{Op: "sell", Item: "player-1", Err: errors.New("deadlock")}
	e := newTestServer(&stubCoordinator{sellErr: commitErr, unsoldErr: commitErr}, true)

	for _, path := range []string{"/api/v1/rounds/current/sell", "/api/v1/rounds/current/unsold"} {
		rec, body := do(e, http.MethodPost, path, "")
		check.Equal(t, http.StatusServiceUnavailable, rec.Code)
		check.Equal(t, true, body["retry"])
	}
}

func TestAuctionHandler_MarkUnsold(t *testing.T) {
	e := newTestServer(&stubCoordinator{}, true)
	rec, body := do(e, http.MethodPost, "/api/v1/rounds/current/unsold", "")
	check.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, "player-1", body["item"])
}

func TestAuctionHandler_GetCurrentRound(t *testing.T) {
	e := newTestServer(&stubCoordinator{}, false)
	rec, body := do(e, http.MethodGet, "/api/v1/rounds/current", "")
	check.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, "idle", body["phase"])
}

func TestAuctionHandler_SubmitBid(t *testing.T) {
	coord := &stubCoordinator{}
	e := newTestServer(coord, true)

	rec, _ := do(e, http.MethodPost, "/api/v1/bids", `{"party_ref":"team-a","amount":"25"}`)
	check.Equal(t, http.StatusAccepted, rec.Code)
	check.Equal(t, []string{"team-a:25"}, coord.bids)

	rec, _ = do(e, http.MethodPost, "/api/v1/bids", `{"amount":25}`)
	check.Equal(t, http.StatusBadRequest, rec.Code)

	coord.bidErr = domain.ErrInsufficientFunds
	rec, body := do(e, http.MethodPost, "/api/v1/bids", `{"party_ref":"team-a","amount":"25"}`)
	check.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	check.Equal(t, "insufficient_funds", body["reason"])

	coord.bidErr = domain.ErrStaleBid
	rec, body = do(e, http.MethodPost, "/api/v1/bids", `{"party_ref":"team-a","amount":"25"}`)
	check.Equal(t, http.StatusConflict, rec.Code)
	check.Equal(t, "stale_bid", body["reason"])
}

func TestAuctionHandler_FollowerRefusesCommands(t *testing.T) {
	coord := &stubCoordinator{}
	e := newTestServer(coord, false)

	rec, body := do(e, http.MethodPost, "/api/v1/rounds", `{"item_ref":"player-1"}`)
	check.Equal(t, http.StatusServiceUnavailable, rec.Code)
	check.Equal(t, true, body["retry"])
	check.Equal(t, "", coord.opened)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, statusFor(domain.ErrUnauthorizedParty))
	check.Equal(t, http.StatusConflict, statusFor(domain.ErrInactiveRound))
	check.Equal(t, http.StatusUnprocessableEntity, statusFor(domain.ErrInvalidAmount))
	check.Equal(t, http.StatusServiceUnavailable, statusFor(domain.ErrNotLeader))
}
