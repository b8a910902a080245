package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradebook/ledger"
)

type entryRequest struct {
	Type       ledger.EntryType   `json:"type"`
	Amount     decimal.Decimal    `json:"amount"`
	Currency   string             `json:"currency"`
	OccurredAt time.Time          `json:"occurred_at"`
	Status     ledger.EntryStatus `json:"status"`
	Comment    string             `json:"comment"`
	Symbol     string             `json:"symbol"`
	Tax        *ledger.Tax        `json:"tax"`
}

type entryPatchRequest struct {
	Amount     *decimal.Decimal    `json:"amount"`
	OccurredAt *time.Time          `json:"occurred_at"`
	Status     *ledger.EntryStatus `json:"status"`
	Comment    *string             `json:"comment"`
	Symbol     *string             `json:"symbol"`
	Tax        *ledger.Tax         `json:"tax"`
	ClearTax   bool                `json:"clear_tax"`
}

func (s *Server) recordEntry(c *gin.Context) {
	var req entryRequest
	if !s.bind(c, &req) {
		return
	}
	e, err := s.deps.Ledger.Record(c.Request.Context(), user(c), ledger.NewEntry{
		Type:       req.Type,
		Amount:     req.Amount,
		Currency:   req.Currency,
		OccurredAt: req.OccurredAt,
		Status:     req.Status,
		Comment:    req.Comment,
		Symbol:     req.Symbol,
		Tax:        req.Tax,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (s *Server) listEntries(c *gin.Context) {
	from, err := queryTime(c, "from")
	if err != nil {
		s.fail(c, err)
		return
	}
	upTo, err := queryTime(c, "up_to")
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, offset, err := page(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	list, err := s.deps.Ledger.List(c.Request.Context(), user(c), ledger.Filter{
		Types:    queryList[ledger.EntryType](c, "type"),
		Statuses: queryList[ledger.EntryStatus](c, "status"),
		Currency: c.Query("currency"),
		Symbol:   c.Query("symbol"),
		From:     from,
		UpTo:     upTo,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []*ledger.Entry{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getEntry(c *gin.Context) {
	e, err := s.deps.Ledger.Get(c.Request.Context(), user(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) updateEntry(c *gin.Context) {
	var req entryPatchRequest
	if !s.bind(c, &req) {
		return
	}
	e, err := s.deps.Ledger.Update(c.Request.Context(), user(c), c.Param("id"), ledger.Patch{
		Amount:     req.Amount,
		OccurredAt: req.OccurredAt,
		Status:     req.Status,
		Comment:    req.Comment,
		Symbol:     req.Symbol,
		Tax:        req.Tax,
		ClearTax:   req.ClearTax,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) deleteEntry(c *gin.Context) {
	if err := s.deps.Ledger.Delete(c.Request.Context(), user(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) balances(c *gin.Context) {
	upTo, err := queryTime(c, "up_to")
	if err != nil {
		s.fail(c, err)
		return
	}
	b, err := s.deps.Aggregator.ComputeBalances(c.Request.Context(), user(c), ledger.BalanceQuery{
		Currency: c.Query("currency"),
		UpTo:     upTo,
		Status:   ledger.EntryStatus(c.Query("status")),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) flows(c *gin.Context) {
	from, err := queryTime(c, "from")
	if err != nil {
		s.fail(c, err)
		return
	}
	upTo, err := queryTime(c, "up_to")
	if err != nil {
		s.fail(c, err)
		return
	}
	f, err := s.deps.Aggregator.ComputeFlows(c.Request.Context(), user(c), ledger.FlowQuery{
		Currency: c.Query("currency"),
		From:     from,
		UpTo:     upTo,
		Status:   ledger.EntryStatus(c.Query("status")),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}
