package handlers

import (
	"context"
	"errors"
	"net/http"

	"player-auction/internal/domain"
	"player-auction/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// RoundCoordinator is what the operator API drives.
type RoundCoordinator interface {
	OpenRound(ctx context.Context, itemRef string) (*domain.RoundView, error)
	SubmitBid(ctx context.Context, partyRef string, amount decimal.Decimal) error
	Sell(ctx context.Context) (*domain.ItemSoldPayload, error)
	MarkUnsold(ctx context.Context) (*domain.ItemUnsoldPayload, error)
}

// StateReader answers round queries, including on instances not running it.
type StateReader interface {
	CurrentState(ctx context.Context) *domain.RoundView
}

type AuctionHandler struct {
	coordinator RoundCoordinator
	state       StateReader
	log         logger.Logger
}

type OpenRoundRequest struct {
	ItemRef string `json:"item_ref"`
}

type SubmitBidRequest struct {
	PartyRef string          `json:"party_ref"`
	Amount   decimal.Decimal `json:"amount"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Retry  bool   `json:"retry,omitempty"`
}

func NewAuctionHandler(coordinator RoundCoordinator, state StateReader, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		coordinator: coordinator,
		state:       state,
		log:         log,
	}
}

// Register mounts the routes. guard, when set, wraps the commands that change
// the round.
func (h *AuctionHandler) Register(g *echo.Group, guard echo.MiddlewareFunc) {
	var mw []echo.MiddlewareFunc
	if guard != nil {
		mw = append(mw, guard)
	}

	g.GET("/rounds/current", h.GetCurrentRound)
	g.POST("/rounds", h.OpenRound, mw...)
	g.POST("/rounds/current/sell", h.Sell, mw...)
	g.POST("/rounds/current/unsold", h.MarkUnsold, mw...)
	g.POST("/bids", h.SubmitBid, mw...)
}

func (h *AuctionHandler) OpenRound(c echo.Context) error {
	var req OpenRoundRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}
	if req.ItemRef == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "item_ref is required"})
	}

	view, err := h.coordinator.OpenRound(c.Request().Context(), req.ItemRef)
	if err != nil {
		return h.fail(c, "open round", err)
	}

	return c.JSON(http.StatusCreated, view)
}

func (h *AuctionHandler) Sell(c echo.Context) error {
	sold, err := h.coordinator.Sell(c.Request().Context())
	if err != nil {
		return h.fail(c, "sell", err)
	}
	return c.JSON(http.StatusOK, sold)
}

func (h *AuctionHandler) MarkUnsold(c echo.Context) error {
	unsold, err := h.coordinator.MarkUnsold(c.Request().Context())
	if err != nil {
		return h.fail(c, "mark unsold", err)
	}
	return c.JSON(http.StatusOK, unsold)
}

func (h *AuctionHandler) GetCurrentRound(c echo.Context) error {
	return c.JSON(http.StatusOK, h.state.CurrentState(c.Request().Context()))
}

// SubmitBid lets clients without a websocket place bids.
func (h *AuctionHandler) SubmitBid(c echo.Context) error {
	var req SubmitBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}
	if req.PartyRef == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "party_ref is required"})
	}

	if err := h.coordinator.SubmitBid(c.Request().Context(), req.PartyRef, req.Amount); err != nil {
		return h.fail(c, "submit bid", err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *AuctionHandler) fail(c echo.Context, op string, err error) error {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	switch {
	case errors.Is(err, domain.ErrCommitFailed):
		resp.Retry = true
	case domain.IsBidRejection(err) || domain.IsExpectedRejection(err):
		resp.Reason = domain.RejectionReason(err)
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("Operator command failed", "op", op, "error", err)
	} else {
		h.log.Info("Operator command refused", "op", op, "error", err)
	}
	return c.JSON(status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCommitFailed), errors.Is(err, domain.ErrNotLeader):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrItemUnavailable),
		errors.Is(err, domain.ErrInactiveRound),
		errors.Is(err, domain.ErrStaleBid):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorizedParty):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
