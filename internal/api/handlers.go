package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// httpStatus 错误类别到 HTTP 状态码
func httpStatus(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnknownSymbol:
		return http.StatusNotFound
	case domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindTransientEnrichment:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(httpStatus(err), gin.H{"error": err.Error()})
}

func intQuery(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"state":   s.sim.CurrentState(),
		"clients": s.hub.Clients(),
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.sim.StateSnapshot())
}

type controlRequest struct {
	Action string `json:"action" binding:"required"`
	Steps  int    `json:"steps"`
}

func (s *Server) handleControl(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.E(domain.KindValidation, "请求体无效: %v", err))
		return
	}

	var err error
	switch req.Action {
	case "start":
		err = s.sim.Start()
	case "pause":
		err = s.sim.Pause()
	case "resume":
		err = s.sim.Resume()
	case "stop":
		err = s.sim.Stop()
	case "reset":
		err = s.sim.Reset()
	case "step":
		steps := req.Steps
		if steps <= 0 {
			steps = 1
		}
		err = s.sim.Step(steps)
	default:
		err = domain.E(domain.KindValidation, "未知控制动作: %s", req.Action)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": s.sim.CurrentState()})
}

func (s *Server) handleConfigGet(c *gin.Context) {
	c.JSON(http.StatusOK, s.sim.Config())
}

// handleConfigPatch 接收 yaml/json 局部补丁，全有或全无
func (s *Server) handleConfigPatch(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil || len(body) == 0 {
		fail(c, domain.E(domain.KindValidation, "补丁内容为空"))
		return
	}
	if err := s.sim.ApplyConfigPatch(body); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": true})
}

type populateRequest struct {
	Days int `json:"days"`
}

func (s *Server) handlePopulate(c *gin.Context) {
	var req populateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, domain.E(domain.KindValidation, "请求体无效: %v", err))
			return
		}
	}
	if err := s.sim.Populate(req.Days); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"state": s.sim.CurrentState()})
}

func (s *Server) handlePopulateStatus(c *gin.Context) {
	done, total := s.sim.PopulateProgress()
	c.JSON(http.StatusOK, gin.H{
		"state": s.sim.CurrentState(),
		"done":  done,
		"total": total,
	})
}

func (s *Server) handleCommodities(c *gin.Context) {
	c.JSON(http.StatusOK, s.sim.Commodities())
}

func (s *Server) handleOrderbook(c *gin.Context) {
	levels := intQuery(c, "levels", 20)
	bids, asks, err := s.sim.Depth(c.Param("symbol"), levels)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol": c.Param("symbol"),
		"bids":   bids,
		"asks":   asks,
	})
}

func (s *Server) handleCandles(c *gin.Context) {
	interval := c.DefaultQuery("interval", "1m")
	since, _ := strconv.ParseInt(c.Query("since"), 10, 64)
	limit := intQuery(c, "limit", 500)

	out, err := s.sim.Candles(c.Param("symbol"), interval, since, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":   c.Param("symbol"),
		"interval": interval,
		"candles":  out,
	})
}

func (s *Server) handleTrades(c *gin.Context) {
	c.JSON(http.StatusOK, s.sim.Trades(intQuery(c, "limit", 100)))
}

func (s *Server) handleAgents(c *gin.Context) {
	c.JSON(http.StatusOK, s.sim.AgentStats())
}

type newsInjectRequest struct {
	Category  string  `json:"category" binding:"required"`
	Sentiment string  `json:"sentiment" binding:"required"`
	Magnitude float64 `json:"magnitude"`
	Symbol    string  `json:"symbol"`
	Headline  string  `json:"headline"`
}

func (s *Server) handleNewsInject(c *gin.Context) {
	var req newsInjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.E(domain.KindValidation, "请求体无效: %v", err))
		return
	}
	err := s.sim.InjectNews(domain.NewsEvent{
		Category:  domain.NewsCategory(req.Category),
		Sentiment: domain.NewsSentiment(req.Sentiment),
		Magnitude: req.Magnitude,
		Symbol:    req.Symbol,
		Headline:  req.Headline,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

func (s *Server) handleNewsHistory(c *gin.Context) {
	category := domain.NewsCategory(c.Query("category"))
	limit := intQuery(c, "limit", 100)
	c.JSON(http.StatusOK, s.sim.News(category, limit))
}

// orderRequest 外部下单
// 价格走 decimal 精确校验：必须为正、小数位不超过 4 位。
type orderRequest struct {
	Symbol      string          `json:"symbol" binding:"required"`
	Side        string          `json:"side" binding:"required"`
	Kind        string          `json:"kind"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity" binding:"required"`
	ClientToken string          `json:"clientToken"`
}

func (s *Server) handleOrderSubmit(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.E(domain.KindValidation, "请求体无效: %v", err))
		return
	}
	kind := domain.OrderKind(req.Kind)
	if req.Kind == "" {
		kind = domain.KindLimit
	}
	if kind == domain.KindLimit {
		if req.Price.Sign() <= 0 {
			fail(c, domain.E(domain.KindValidation, "限价单价格必须为正数: %s", req.Price))
			return
		}
		if req.Price.Exponent() < -4 {
			fail(c, domain.E(domain.KindValidation, "价格最多 4 位小数: %s", req.Price))
			return
		}
	}
	token := req.ClientToken
	if token == "" {
		token = uuid.NewString()
	}

	price, _ := req.Price.Float64()
	id, err := s.sim.SubmitOrder(req.Symbol, domain.Side(req.Side), kind,
		price, req.Quantity, token)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"orderId": id, "clientToken": token})
}

func (s *Server) handleOrderCancel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, domain.E(domain.KindValidation, "订单号无效: %s", c.Param("id")))
		return
	}
	if err := s.sim.CancelOrder(c.Param("symbol"), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": id})
}
