package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradebook/order"
	"github.com/rustyeddy/tradebook/position"
)

type createOrderRequest struct {
	Symbol      string          `json:"symbol"`
	Kind        order.Kind      `json:"kind"`
	Side        string          `json:"side"`
	Volume      decimal.Decimal `json:"volume"`
	Price       decimal.Decimal `json:"price"`
	StopPrice   decimal.Decimal `json:"stop_price"`
	Currency    string          `json:"currency"`
	PortfolioID string          `json:"portfolio_id"`
	ExpiryTime  *time.Time      `json:"expiry_time"`
	Comment     string          `json:"comment"`
}

type orderPatchRequest struct {
	Price       *decimal.Decimal `json:"price"`
	StopPrice   *decimal.Decimal `json:"stop_price"`
	Volume      *decimal.Decimal `json:"volume"`
	ExpiryTime  *time.Time       `json:"expiry_time"`
	ClearExpiry bool             `json:"clear_expiry"`
	Comment     *string          `json:"comment"`
}

type executeRequest struct {
	Price          decimal.Decimal  `json:"price"`
	Volume         *decimal.Decimal `json:"volume"`
	Commission     decimal.Decimal  `json:"commission"`
	Fees           decimal.Decimal  `json:"fees"`
	Time           time.Time        `json:"time"`
	CreatePosition *bool            `json:"create_position"`
}

type executeResponse struct {
	Order           *order.Order          `json:"order"`
	Position        *position.Position    `json:"position,omitempty"`
	Remaining       decimal.Decimal       `json:"remaining"`
	PositionOutcome order.PositionOutcome `json:"position_outcome"`
	PositionError   string                `json:"position_error,omitempty"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type expireResponse struct {
	Expired []string `json:"expired"`
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if !s.bind(c, &req) {
		return
	}
	o, err := s.deps.Orders.Create(c.Request.Context(), user(c), order.CreateSpec{
		Symbol:      req.Symbol,
		Kind:        req.Kind,
		Side:        side(req.Side),
		Volume:      req.Volume,
		Price:       req.Price,
		StopPrice:   req.StopPrice,
		Currency:    req.Currency,
		PortfolioID: req.PortfolioID,
		ExpiryTime:  req.ExpiryTime,
		Comment:     req.Comment,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) listOrders(c *gin.Context) {
	limit, offset, err := page(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	list, err := s.deps.Orders.List(c.Request.Context(), user(c), order.ListFilter{
		Statuses:    queryList[order.Status](c, "status"),
		Symbol:      c.Query("symbol"),
		PortfolioID: c.Query("portfolio_id"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []*order.Order{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getOrder(c *gin.Context) {
	o, err := s.deps.Orders.Get(c.Request.Context(), user(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) updateOrder(c *gin.Context) {
	var req orderPatchRequest
	if !s.bind(c, &req) {
		return
	}
	o, err := s.deps.Orders.Update(c.Request.Context(), user(c), c.Param("id"), order.Patch{
		Price:       req.Price,
		StopPrice:   req.StopPrice,
		Volume:      req.Volume,
		ExpiryTime:  req.ExpiryTime,
		ClearExpiry: req.ClearExpiry,
		Comment:     req.Comment,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) executeOrder(c *gin.Context) {
	var req executeRequest
	if !s.bind(c, &req) {
		return
	}
	res, err := s.deps.Orders.Execute(c.Request.Context(), user(c), c.Param("id"), order.ExecuteSpec{
		Price:          req.Price,
		Volume:         req.Volume,
		Commission:     req.Commission,
		Fees:           req.Fees,
		Time:           req.Time,
		CreatePosition: req.CreatePosition,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	out := executeResponse{
		Order:           res.Order,
		Position:        res.Position,
		Remaining:       res.Remaining,
		PositionOutcome: res.PositionOutcome,
	}
	if res.PositionErr != nil {
		out.PositionError = res.PositionErr.Error()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) cancelOrder(c *gin.Context) {
	var req cancelRequest
	if !s.bindOptional(c, &req) {
		return
	}
	o, err := s.deps.Orders.Cancel(c.Request.Context(), user(c), c.Param("id"), req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) expireOrders(c *gin.Context) {
	now := s.now()
	t, err := queryTime(c, "now")
	if err != nil {
		s.fail(c, err)
		return
	}
	if t != nil {
		now = *t
	}

	ids, err := s.deps.Orders.ExpireSweep(c.Request.Context(), now)
	if ids == nil {
		ids = []string{}
	}
	if err != nil {
		// Some orders may have expired before the failure.
		s.log.WithError(err).WithField("expired", len(ids)).Error("expire sweep incomplete")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "expire sweep incomplete", "expired": ids})
		return
	}
	c.JSON(http.StatusOK, expireResponse{Expired: ids})
}
