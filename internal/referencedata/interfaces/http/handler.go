package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/swaptrading/internal/referencedata/domain"
	"github.com/wyfcoding/swaptrading/pkg/logger"
)

// ReferenceDataHandler HTTP 处理器
// 提供账簿、交易对手与代码表的只读查询
type ReferenceDataHandler struct {
	refs domain.Gateway
}

// NewReferenceDataHandler 创建 HTTP 处理器实例
func NewReferenceDataHandler(refs domain.Gateway) *ReferenceDataHandler {
	return &ReferenceDataHandler{refs: refs}
}

// RegisterRoutes 注册路由
func (h *ReferenceDataHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/reference")
	{
		api.GET("/books/:ref", h.GetBook)
		api.GET("/counterparties/:ref", h.GetCounterparty)
		api.GET("/codes/:kind/:ref", h.GetCode)
	}
}

// GetBook 按名称或 ID 查询账簿
func (h *ReferenceDataHandler) GetBook(c *gin.Context) {
	book, err := h.refs.FindBook(c.Request.Context(), parseRef(c.Param("ref")))
	respond(c, book, err, "book")
}

// GetCounterparty 按名称或 ID 查询交易对手
func (h *ReferenceDataHandler) GetCounterparty(c *gin.Context) {
	cp, err := h.refs.FindCounterparty(c.Request.Context(), parseRef(c.Param("ref")))
	respond(c, cp, err, "counterparty")
}

// GetCode 查询代码表条目，如 /codes/currency/USD
func (h *ReferenceDataHandler) GetCode(c *gin.Context) {
	kind, ok := domain.ParseKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad Request", "message": "Unknown reference code kind: " + c.Param("kind")})
		return
	}
	code, err := h.refs.FindCode(c.Request.Context(), kind, parseRef(c.Param("ref")))
	respond(c, code, err, string(kind))
}

// parseRef 纯数字视为 ID，否则为名称
func parseRef(s string) domain.Ref {
	if id, err := strconv.ParseUint(s, 10, 64); err == nil {
		return domain.ByID(uint(id))
	}
	return domain.ByName(s)
}

func respond[T any](c *gin.Context, v *T, err error, what string) {
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to load reference data", "kind", what, "ref", c.Param("ref"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error", "message": "An unexpected error occurred"})
		return
	}
	if v == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found", "message": what + " not found: " + c.Param("ref")})
		return
	}
	c.JSON(http.StatusOK, v)
}
