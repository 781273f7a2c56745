package api

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"tradecollector/config"
	"tradecollector/internal/query"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const Version = "1.0.0"

var endpoints = []string{
	"/api/trading",
	"/api/trading/latest",
	"/api/trading/symbol/<symbol>",
	"/api/trading/stats",
	"/api/health",
	"/api/info",
}

type TradingHandler struct {
	query     *query.Service
	cfg       config.APIConfig
	logger    *zap.Logger
	startedAt time.Time
	now       func() time.Time
}

func NewTradingHandler(svc *query.Service, cfg config.APIConfig, logger *zap.Logger) *TradingHandler {
	return &TradingHandler{
		query:     svc,
		cfg:       cfg,
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

func (h *TradingHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/", h.Home)

	api := r.Group("/api")
	{
		api.GET("/info", h.Info)
		api.GET("/health", h.Health)
		api.GET("/trading", h.List)
		api.GET("/trading/latest", h.Latest)
		api.GET("/trading/stats", h.Stats)
		api.GET("/trading/symbol/:symbol", h.BySymbol)
	}
}

func (h *TradingHandler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}

// intQuery reads an integer query parameter, falling back to def when the
// parameter is missing or not a number.
func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// internalError answers with a fixed message; details only go to the log.
func (h *TradingHandler) internalError(c *gin.Context, op string, err error) {
	h.logger.Error("query failed", zap.String("op", op), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"status":    "error",
		"message":   "Internal server error",
		"timestamp": h.timestamp(),
	})
}

func (h *TradingHandler) Home(c *gin.Context) {
	res, err := h.query.Stats()
	if err != nil {
		h.internalError(c, "home", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Bitget Trading API Server",
		"status":  "running",
		"version": Version,
		"endpoints": gin.H{
			"/api/trading":                 "GET - Get all trading data (with pagination)",
			"/api/trading/latest":          "GET - Get latest trades",
			"/api/trading/symbol/<symbol>": "GET - Get trades by symbol",
			"/api/trading/stats":           "GET - Get comprehensive statistics",
			"/api/health":                  "GET - Health check",
			"/api/info":                    "GET - Server information",
		},
		"quick_stats": gin.H{
			"total_trades":   res.Stats.TotalTrades,
			"active_symbols": res.Stats.SymbolsCount,
			"last_update":    res.Stats.LatestTradeTime,
		},
		"server_info": gin.H{
			"timestamp":               h.timestamp(),
			"cache_enabled":           true,
			"max_records_per_request": h.cfg.MaxRecordsPerRequest,
		},
	})
}

func (h *TradingHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"server": gin.H{
			"version":    Version,
			"start_time": h.startedAt.UTC().Format(time.RFC3339),
			"go_version": runtime.Version(),
		},
		"configuration": gin.H{
			"max_records_per_request": h.cfg.MaxRecordsPerRequest,
			"default_limit":           h.cfg.DefaultLimit,
			"latest_default_limit":    h.cfg.LatestDefaultLimit,
			"latest_max_limit":        h.cfg.LatestMaxLimit,
			"symbol_default_limit":    h.cfg.SymbolDefaultLimit,
			"cache_timeout":           h.cfg.CacheTTL.Seconds(),
			"enable_cors":             h.cfg.EnableCORS,
		},
		"features": gin.H{
			"caching":    true,
			"pagination": true,
			"filtering":  true,
			"statistics": true,
			"cors":       h.cfg.EnableCORS,
		},
	})
}

func (h *TradingHandler) List(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	page, err := h.query.List(intQuery(c, "limit", h.cfg.DefaultLimit), intQuery(c, "offset", 0), symbol)
	if err != nil {
		h.internalError(c, "list", err)
		return
	}

	var filter *string
	if symbol != "" {
		filter = &symbol
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Trading data retrieved successfully",
		"data":    page.Records,
		"pagination": gin.H{
			"total_records":    page.TotalRecords,
			"returned_records": len(page.Records),
			"offset":           page.Offset,
			"limit":            page.Limit,
			"has_more":         page.HasMore,
		},
		"filters":   gin.H{"symbol": filter},
		"timestamp": h.timestamp(),
	})
}

func (h *TradingHandler) Latest(c *gin.Context) {
	records, err := h.query.Latest(intQuery(c, "limit", h.cfg.LatestDefaultLimit))
	if err != nil {
		h.internalError(c, "latest", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"message":       "Latest " + strconv.Itoa(len(records)) + " trades",
		"data":          records,
		"total_records": len(records),
		"timestamp":     h.timestamp(),
	})
}

// BySymbol serves the newest trades of one symbol; limit=0 returns all of them.
func (h *TradingHandler) BySymbol(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	records, err := h.query.BySymbol(symbol, intQuery(c, "limit", h.cfg.SymbolDefaultLimit))
	if err != nil {
		h.internalError(c, "symbol", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"message":       "Trading data for " + symbol,
		"symbol":        symbol,
		"data":          records,
		"total_records": len(records),
		"timestamp":     h.timestamp(),
	})
}

func (h *TradingHandler) Stats(c *gin.Context) {
	res, err := h.query.Stats()
	if err != nil {
		h.internalError(c, "stats", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Trading statistics",
		"stats":   res.Stats,
		"cache_info": gin.H{
			"cached":            true,
			"cache_age_seconds": res.CacheAge.Seconds(),
		},
		"timestamp": h.timestamp(),
	})
}

func (h *TradingHandler) Health(c *gin.Context) {
	health, err := h.query.Health()
	if err != nil {
		h.internalError(c, "health", err)
		return
	}

	var lastRefresh *string
	if health.LastRefresh != nil {
		s := health.LastRefresh.UTC().Format(time.RFC3339Nano)
		lastRefresh = &s
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    health.Status,
		"timestamp": h.timestamp(),
		"data_status": gin.H{
			"total_records": health.TotalRecords,
			"freshness":     health.Freshness,
			"last_trade":    health.LastTrade,
		},
		"cache_status": gin.H{
			"enabled":      true,
			"last_refresh": lastRefresh,
		},
		"disk_status": gin.H{
			"data_file_exists":  health.FileExists,
			"data_file_size_mb": health.FileSizeMB,
		},
	})
}

// NotFound lists the valid endpoints.
func (h *TradingHandler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"status":              "error",
		"message":             "Endpoint not found",
		"available_endpoints": endpoints,
	})
}
