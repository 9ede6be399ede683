package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/swaptrading/internal/trade/application"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	"github.com/wyfcoding/swaptrading/pkg/middleware"
)

// TradeHandler HTTP 处理器
// 负责处理与交易相关的 HTTP 请求
type TradeHandler struct {
	svc    *application.TradeService
	logger *slog.Logger
}

// NewTradeHandler 创建 HTTP 处理器实例
func NewTradeHandler(svc *application.TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{svc: svc, logger: logger}
}

// RegisterRoutes 注册路由
func (h *TradeHandler) RegisterRoutes(router gin.IRouter) {
	registerValidators()
	router.GET("/health", h.Health)

	api := router.Group("/api/trades")
	{
		api.GET("", h.ListTrades)                                        // 交易列表
		api.POST("", h.CreateTrade)                                      // 创建交易
		api.GET("/search", h.SearchTrades)                               // 多条件检索
		api.GET("/filter", h.FilterTrades)                               // 多条件分页检索
		api.GET("/rsql", h.SearchRSQL)                                   // RSQL 检索
		api.GET("/search/settlement-instructions", h.SearchBySettlement) // 按结算指令检索
		api.GET("/:id", h.GetTrade)                                      // 交易详情
		api.PUT("/:id", h.AmendTrade)                                    // 修改交易
		api.DELETE("/:id", h.DeleteTrade)                                // 删除（取消）交易
		api.POST("/:id/terminate", h.TerminateTrade)                     // 终止交易
		api.POST("/:id/cancel", h.CancelTrade)                           // 取消交易
		api.PUT("/:id/settlement-instructions", h.UpdateSettlement)      // 更新结算指令
	}
}

// Health 健康检查
func (h *TradeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// ListTrades 交易员/销售只返回自己的交易
func (h *TradeHandler) ListTrades(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	trades, err := h.svc.ListTrades(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

// GetTrade 获取交易活跃版本
func (h *TradeHandler) GetTrade(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	trade, err := h.svc.GetTrade(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// CreateTrade 创建交易
func (h *TradeHandler) CreateTrade(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req application.TradeDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	trade, err := h.svc.CreateTrade(c.Request.Context(), &req, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

// AmendTrade 修改交易，路径与请求体中的交易编号必须一致
func (h *TradeHandler) AmendTrade(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req application.TradeDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.TradeID != 0 && req.TradeID != id {
		badRequest(c, "Trade ID in path must match Trade ID in request body")
		return
	}
	req.TradeID = id

	trade, err := h.svc.AmendTrade(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// DeleteTrade 删除即取消
func (h *TradeHandler) DeleteTrade(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteTrade(c.Request.Context(), id, userID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TerminateTrade 终止交易
func (h *TradeHandler) TerminateTrade(c *gin.Context) {
	h.transition(c, h.svc.TerminateTrade)
}

// CancelTrade 取消交易
func (h *TradeHandler) CancelTrade(c *gin.Context) {
	h.transition(c, h.svc.CancelTrade)
}

func (h *TradeHandler) transition(c *gin.Context, fn func(ctx context.Context, id int64, userID string) (*application.TradeDTO, error)) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	trade, err := fn(c.Request.Context(), id, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// SearchTrades 多条件检索，返回全部匹配版本
func (h *TradeHandler) SearchTrades(c *gin.Context) {
	criteria, ok := searchCriteria(c)
	if !ok {
		return
	}
	trades, err := h.svc.SearchTrades(c.Request.Context(), criteria)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

// FilterTrades 多条件分页检索
func (h *TradeHandler) FilterTrades(c *gin.Context) {
	criteria, ok := searchCriteria(c)
	if !ok {
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	result, err := h.svc.FilterTrades(c.Request.Context(), criteria, page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SearchRSQL RSQL 表达式分页检索
func (h *TradeHandler) SearchRSQL(c *gin.Context) {
	query, present := c.GetQuery("query")
	if !present {
		badRequest(c, "Required parameter 'query' is not present")
		return
	}
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	result, err := h.svc.SearchRSQL(c.Request.Context(), query, page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SearchBySettlement 按结算指令内容检索活跃交易
func (h *TradeHandler) SearchBySettlement(c *gin.Context) {
	text, present := c.GetQuery("instructions")
	if !present {
		badRequest(c, "Required parameter 'instructions' is not present")
		return
	}
	trades, err := h.svc.SearchBySettlementInstructions(c.Request.Context(), text)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

// UpdateSettlement 更新结算指令，空文本删除
func (h *TradeHandler) UpdateSettlement(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req application.SettlementInstructionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindingMessage(err))
		return
	}

	trade, err := h.svc.UpdateSettlementInstructions(c.Request.Context(), id, req.SettlementInstructions, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.InfoContext(c.Request.Context(), "settlement instructions updated", "trade_id", id)
	c.JSON(http.StatusOK, trade)
}

type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Errors    []string  `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func respond(c *gin.Context, status int, title, message string, errs []string) {
	c.JSON(status, errorResponse{Error: title, Message: message, Errors: errs, Timestamp: time.Now()})
}

func badRequest(c *gin.Context, message string) {
	respond(c, http.StatusBadRequest, "Bad Request", message, nil)
}

// writeError 领域错误到 HTTP 状态的统一映射
func (h *TradeHandler) writeError(c *gin.Context, err error) {
	var (
		notFound     *domain.NotFoundError
		invalid      *domain.ValidationError
		unauthorized *domain.UnauthorizedError
		malformed    *domain.MalformedQueryError
		schedule     *domain.ScheduleFormatError
		conflict     *domain.ConflictError
	)
	switch {
	case errors.As(err, &notFound):
		respond(c, http.StatusNotFound, "Not Found", notFound.Message, nil)
	case errors.As(err, &invalid):
		respond(c, http.StatusBadRequest, "Bad Request", invalid.Message, invalid.Errors)
	case errors.As(err, &unauthorized):
		respond(c, http.StatusForbidden, unauthorized.Error(), "You are not authorized to perform this operation", nil)
	case errors.As(err, &conflict):
		respond(c, http.StatusConflict, "Conflict", conflict.Message, nil)
	case errors.As(err, &malformed):
		badRequest(c, malformed.Error())
	case errors.As(err, &schedule):
		badRequest(c, schedule.Error())
	default:
		h.logger.ErrorContext(c.Request.Context(), "trade request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		respond(c, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", nil)
	}
}

func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader(middleware.HeaderUserID)
	if userID == "" {
		badRequest(c, "Missing required header "+middleware.HeaderUserID)
		return "", false
	}
	return userID, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid trade ID: "+c.Param("id"))
		return 0, false
	}
	return id, true
}

func searchCriteria(c *gin.Context) (domain.SearchCriteria, bool) {
	criteria := domain.SearchCriteria{
		Counterparty: c.Query("counterparty"),
		Book:         c.Query("book"),
		Trader:       c.Query("trader"),
		TradeStatus:  c.DefaultQuery("tradeStatus", c.Query("status")),
	}
	for name, dst := range map[string]**time.Time{"startDate": &criteria.StartDate, "endDate": &criteria.EndDate} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := application.ParseDate(raw)
		if err != nil {
			badRequest(c, "Invalid "+name+": "+err.Error())
			return criteria, false
		}
		*dst = &t
	}
	return criteria, true
}

func pageRequest(c *gin.Context) (domain.PageRequest, bool) {
	page := domain.PageRequest{SortBy: c.Query("sortBy"), SortDir: c.Query("sortDir")}
	for name, dst := range map[string]*int{"page": &page.Page, "size": &page.Size} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "Invalid "+name+": "+raw)
			return page, false
		}
		*dst = n
	}
	return page, true
}
