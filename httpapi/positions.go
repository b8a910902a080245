package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradebook/errs"
	"github.com/rustyeddy/tradebook/market"
	"github.com/rustyeddy/tradebook/position"
)

type openRequest struct {
	Symbol      string           `json:"symbol"`
	Side        string           `json:"side"`
	Volume      decimal.Decimal  `json:"volume"`
	OpenPrice   decimal.Decimal  `json:"open_price"`
	OpenTime    time.Time        `json:"open_time"`
	Currency    string           `json:"currency"`
	PortfolioID string           `json:"portfolio_id"`
	Commission  decimal.Decimal  `json:"commission"`
	Swap        decimal.Decimal  `json:"swap"`
	Taxes       decimal.Decimal  `json:"taxes"`
	StopLoss    *decimal.Decimal `json:"stop_loss"`
	TakeProfit  *decimal.Decimal `json:"take_profit"`
	Comment     string           `json:"comment"`
}

type markRequest struct {
	Price decimal.Decimal `json:"price"`
}

type closeRequest struct {
	Price           decimal.Decimal `json:"price"`
	Time            time.Time       `json:"time"`
	ExtraCommission decimal.Decimal `json:"extra_commission"`
	ExtraTaxes      decimal.Decimal `json:"extra_taxes"`
	Note            string          `json:"note"`
}

type positionPatchRequest struct {
	Comment    *string          `json:"comment"`
	StopLoss   *decimal.Decimal `json:"stop_loss"`
	TakeProfit *decimal.Decimal `json:"take_profit"`
	Swap       *decimal.Decimal `json:"swap"`
}

// side accepts either case. Unknown values pass through so the manager
// reports them.
func side(raw string) market.Side {
	if s, ok := market.ParseSide(raw); ok {
		return s
	}
	return market.Side(raw)
}

func (s *Server) openPosition(c *gin.Context) {
	var req openRequest
	if !s.bind(c, &req) {
		return
	}
	p, err := s.deps.Positions.Open(c.Request.Context(), user(c), position.OpenSpec{
		Symbol:      req.Symbol,
		Side:        side(req.Side),
		Volume:      req.Volume,
		OpenPrice:   req.OpenPrice,
		OpenTime:    req.OpenTime,
		Currency:    req.Currency,
		PortfolioID: req.PortfolioID,
		Commission:  req.Commission,
		Swap:        req.Swap,
		Taxes:       req.Taxes,
		StopLoss:    req.StopLoss,
		TakeProfit:  req.TakeProfit,
		Comment:     req.Comment,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) listPositions(c *gin.Context) {
	limit, offset, err := page(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	list, err := s.deps.Positions.List(c.Request.Context(), user(c), position.ListFilter{
		Statuses:    queryList[position.Status](c, "status"),
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
		list = []*position.Position{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) positionSummary(c *gin.Context) {
	sum, err := s.deps.Positions.Summary(c.Request.Context(), user(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) getPosition(c *gin.Context) {
	p, err := s.deps.Positions.Get(c.Request.Context(), user(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) updatePosition(c *gin.Context) {
	var req positionPatchRequest
	if !s.bind(c, &req) {
		return
	}
	p, err := s.deps.Positions.Update(c.Request.Context(), user(c), c.Param("id"), position.Patch{
		Comment:    req.Comment,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Swap:       req.Swap,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) markPosition(c *gin.Context) {
	var req markRequest
	if !s.bind(c, &req) {
		return
	}
	p, err := s.deps.Positions.UpdateMarketPrice(c.Request.Context(), user(c), c.Param("id"), req.Price)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) closePosition(c *gin.Context) {
	var req closeRequest
	if !s.bind(c, &req) {
		return
	}
	p, err := s.deps.Positions.Close(c.Request.Context(), user(c), c.Param("id"), position.CloseSpec{
		Price:           req.Price,
		Time:            req.Time,
		ExtraCommission: req.ExtraCommission,
		ExtraTaxes:      req.ExtraTaxes,
		Note:            req.Note,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// deletePosition soft deletes unless ?hard=true.
func (s *Server) deletePosition(c *gin.Context) {
	hard := false
	if v := c.Query("hard"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(c, errs.Validation("hard must be a boolean, got %q", v))
			return
		}
		hard = b
	}

	ctx, uid, pid := c.Request.Context(), user(c), c.Param("id")
	if hard {
		if err := s.deps.Positions.HardDelete(ctx, uid, pid); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}
	p, err := s.deps.Positions.SoftDelete(ctx, uid, pid, c.Query("reason"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
