// Package httpapi exposes the ledger, position and order managers over
// HTTP. Callers are identified by a header set by an upstream gateway.
package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/tradebook/errs"
	"github.com/rustyeddy/tradebook/ledger"
	"github.com/rustyeddy/tradebook/order"
	"github.com/rustyeddy/tradebook/position"
)

const userKey = "user_id"

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Deps are the managers the API serves.
type Deps struct {
	Ledger     *ledger.Book
	Aggregator *ledger.Aggregator
	Positions  *position.Manager
	Orders     *order.Manager
}

type Server struct {
	deps       Deps
	log        logrus.FieldLogger
	userHeader string
	now        func() time.Time
}

type Option func(*Server)

func WithLogger(l logrus.FieldLogger) Option { return func(s *Server) { s.log = l } }
func WithUserHeader(h string) Option { return func(s *Server) { s.userHeader = h } }
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

func New(deps Deps, opts ...Option) *Server {
	s := &Server{
		deps:       deps,
		log:        logrus.StandardLogger(),
		userHeader: "X-User-ID",
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api", s.requireUser())

	l := api.Group("/ledger")
	l.POST("/entries", s.recordEntry)
	l.GET("/entries", s.listEntries)
	l.GET("/entries/:id", s.getEntry)
	l.PATCH("/entries/:id", s.updateEntry)
	l.DELETE("/entries/:id", s.deleteEntry)
	l.GET("/balances", s.balances)
	l.GET("/flows", s.flows)

	p := api.Group("/positions")
	p.POST("", s.openPosition)
	p.GET("", s.listPositions)
	p.GET("/summary", s.positionSummary)
	p.GET("/:id", s.getPosition)
	p.PATCH("/:id", s.updatePosition)
	p.POST("/:id/mark", s.markPosition)
	p.POST("/:id/close", s.closePosition)
	p.DELETE("/:id", s.deletePosition)

	o := api.Group("/orders")
	o.POST("", s.createOrder)
	o.GET("", s.listOrders)
	o.GET("/:id", s.getOrder)
	o.PATCH("/:id", s.updateOrder)
	o.POST("/:id/execute", s.executeOrder)
	o.POST("/:id/cancel", s.cancelOrder)

	// Not user scoped: driven by a scheduler.
	r.POST("/admin/orders/expire", s.expireOrders)

	return r
}

func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(s.userHeader))
		if user == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "missing " + s.userHeader + " header"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// fail writes err with the status its kind maps to. Errors without a kind
// are logged and hidden from the caller.
func (s *Server) fail(c *gin.Context, err error) {
	status, kind := http.StatusInternalServerError, ""
	switch errs.Kind(err) {
	case errs.ErrValidation:
		status, kind = http.StatusBadRequest, "validation"
	case errs.ErrNotFound:
		status, kind = http.StatusNotFound, "not_found"
	case errs.ErrConflict:
		status, kind = http.StatusConflict, "conflict"
	case errs.ErrInvariant:
		status, kind = http.StatusUnprocessableEntity, "invariant"
	}
	if kind == "" {
		s.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.AbortWithStatusJSON(status, errorBody{Error: "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, errorBody{Error: err.Error(), Kind: kind})
}

func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.fail(c, errs.Validation("decode body: %v", err))
		return false
	}
	return true
}

// bindOptional is bind for endpoints that also accept no body at all.
// Chunked requests carry no length, so emptiness shows up as EOF.
func (s *Server) bindOptional(c *gin.Context, v any) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		s.fail(c, errs.Validation("decode body: %v", err))
		return false
	}
	return true
}

func user(c *gin.Context) string { return c.GetString(userKey) }

// query helpers report bad values as validation errors.

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errs.Validation("%s must be RFC3339, got %q", key, v)
	}
	return &t, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errs.Validation("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}

func queryList[T ~string](c *gin.Context, key string) []T {
	var out []T
	for _, v := range strings.Split(c.Query(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, T(v))
		}
	}
	return out
}

func page(c *gin.Context) (limit, offset int, err error) {
	if limit, err = queryInt(c, "limit"); err != nil {
		return 0, 0, err
	}
	offset, err = queryInt(c, "offset")
	return limit, offset, err
}
