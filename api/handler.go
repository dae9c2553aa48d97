package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradeview/apperr"
	"github.com/rustyeddy/tradeview/market"
)

// Store is the read side of store.Store used by the handlers.
type Store interface {
	Ping(ctx context.Context) error

	ListSymbols(ctx context.Context) ([]market.Symbol, error)
	GetSymbol(ctx context.Context, code string) (market.Symbol, error)

	ListBars(ctx context.Context) ([]market.Bar, error)
	ListBarsBySymbol(ctx context.Context, code string) ([]market.Bar, error)
	ListBarsBySymbolAndRange(ctx context.Context, code string, start, end market.Timestamp) ([]market.Bar, error)

	ListIndicators(ctx context.Context) ([]market.Indicator, error)
	ListIndicatorsBySymbol(ctx context.Context, code string) ([]market.Indicator, error)
	ListIndicatorsBySymbolAndRange(ctx context.Context, code string, start, end market.Timestamp) ([]market.Indicator, error)

	ListSignals(ctx context.Context) ([]market.Signal, error)
	ListSignalsBySymbol(ctx context.Context, code string) ([]market.Signal, error)
	ListSignalsBySymbolAndRange(ctx context.Context, code string, start, end market.Timestamp) ([]market.Signal, error)

	ListBacktests(ctx context.Context) ([]market.BacktestResult, error)
	ListBacktestsBySymbol(ctx context.Context, code string) ([]market.BacktestResult, error)
	GetBacktest(ctx context.Context, id string) (market.BacktestResult, error)
}

type Handler struct {
	Store  Store
	Logger *zap.Logger
	// ExposeErrors reports store error detail to clients.
	ExposeErrors bool
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.health)
	r.GET("/ready", h.ready)

	g := r.Group("/api")

	g.GET("/symbols", listAll(h, "list symbols", h.Store.ListSymbols))
	g.GET("/symbols/:symbol", h.getSymbol)

	g.GET("/ohlc", listAll(h, "list bars", h.Store.ListBars))
	g.GET("/ohlc/:symbol", listBySymbol(h, "list bars by symbol", h.Store.ListBarsBySymbol))
	g.GET("/ohlc/:symbol/range", listByRange(h, "list bars by range", h.Store.ListBarsBySymbolAndRange))

	g.GET("/indicators", listAll(h, "list indicators", h.Store.ListIndicators))
	g.GET("/indicators/:symbol", listBySymbol(h, "list indicators by symbol", h.Store.ListIndicatorsBySymbol))
	g.GET("/indicators/:symbol/range", listByRange(h, "list indicators by range", h.Store.ListIndicatorsBySymbolAndRange))

	g.GET("/signals", listAll(h, "list signals", h.Store.ListSignals))
	g.GET("/signals/:symbol", listBySymbol(h, "list signals by symbol", h.Store.ListSignalsBySymbol))
	g.GET("/signals/:symbol/range", listByRange(h, "list signals by range", h.Store.ListSignalsBySymbolAndRange))

	// gin needs one wildcard name per path segment: ":symbol" selects by
	// symbol here and by backtest id under /trades.
	g.GET("/backtests", listAll(h, "list backtests", h.Store.ListBacktests))
	g.GET("/backtests/:symbol", listBySymbol(h, "list backtests by symbol", h.Store.ListBacktestsBySymbol))
	g.GET("/backtests/:symbol/trades", h.listTrades)
}

func (h *Handler) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (h *Handler) ready(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		h.failed(c, "ready", err)
		return
	}
	ok(c, gin.H{"status": "ready"})
}

func (h *Handler) getSymbol(c *gin.Context) {
	sym, err := h.Store.GetSymbol(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		h.failed(c, "get symbol", err)
		return
	}
	ok(c, sym)
}

func (h *Handler) listTrades(c *gin.Context) {
	bt, err := h.Store.GetBacktest(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		h.failed(c, "list trades", err)
		return
	}
	ok(c, listOf(bt.Trades))
}

// failed logs err and writes its envelope. Client errors log at debug.
func (h *Handler) failed(c *gin.Context, op string, err error) {
	if h.Logger != nil {
		kind := apperr.KindOf(err)
		fields := []zap.Field{
			zap.String("op", op),
			zap.String("path", c.Request.URL.Path),
			zap.Stringer("kind", kind),
			zap.Error(err),
		}
		if kind.ClientError() {
			h.Logger.Debug("request rejected", fields...)
		} else {
			h.Logger.Error("request failed", fields...)
		}
	}
	fail(c, err, h.ExposeErrors)
}

func listAll[T any](h *Handler, op string, fn func(context.Context) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := fn(c.Request.Context())
		if err != nil {
			h.failed(c, op, err)
			return
		}
		ok(c, listOf(items))
	}
}

func listBySymbol[T any](h *Handler, op string, fn func(context.Context, string) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := fn(c.Request.Context(), c.Param("symbol"))
		if err != nil {
			h.failed(c, op, err)
			return
		}
		ok(c, listOf(items))
	}
}

func listByRange[T any](h *Handler, op string, fn func(context.Context, string, market.Timestamp, market.Timestamp) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		start, end, err := rangeParams(c)
		if err != nil {
			h.failed(c, op, err)
			return
		}
		items, err := fn(c.Request.Context(), c.Param("symbol"), start, end)
		if err != nil {
			h.failed(c, op, err)
			return
		}
		ok(c, listOf(items))
	}
}

// rangeParams reads ?start=&end= as "YYYY-MM-DD HH:MM:SS".
func rangeParams(c *gin.Context) (start, end market.Timestamp, err error) {
	if start, err = timeParam(c, "start"); err != nil {
		return
	}
	end, err = timeParam(c, "end")
	return
}

func timeParam(c *gin.Context, name string) (market.Timestamp, error) {
	raw, present := c.GetQuery(name)
	if !present || strings.TrimSpace(raw) == "" {
		return market.Timestamp{}, apperr.Newf(apperr.BadRequest, "parse range",
			"missing query parameter %q", name)
	}
	return market.ParseTimestamp(raw)
}
