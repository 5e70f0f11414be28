package handlers

import (
	"errors"
	"net/http"

	"github.com/dvigi/clubdvigi-api/internal/domain"
	"github.com/dvigi/clubdvigi-api/internal/service"
	"github.com/dvigi/clubdvigi-api/pkg/logger"
	"github.com/dvigi/clubdvigi-api/pkg/res"
	"github.com/gin-gonic/gin"
)

// LookupHandler обработчик поиска клиента по email
type LookupHandler struct {
	service service.LookupService
	log     *logger.Logger
}

// NewLookupHandler создает новый обработчик поиска
func NewLookupHandler(svc service.LookupService, log *logger.Logger) *LookupHandler {
	return &LookupHandler{
		service: svc,
		log:     log,
	}
}

// Lookup обрабатывает GET/POST запрос поиска клиента.
// Диагностические флаги selftest и checkshop не требуют email.
func (h *LookupHandler) Lookup(c *gin.Context) {
	if c.Request.Method == http.MethodGet {
		if c.Query("selftest") == "1" {
			st := h.service.SelfTest()
			c.JSON(http.StatusOK, gin.H{
				"ok":       true,
				"hasStore": st.HasStore,
				"hasToken": st.HasToken,
			})
			return
		}

		if c.Query("checkshop") == "1" {
			h.checkShop(c)
			return
		}
	}

	email := h.extractEmail(c)

	result, err := h.service.Resolve(c.Request.Context(), email)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	switch result.Where {
	case domain.WhereOrders:
		c.JSON(http.StatusOK, gin.H{
			"ok":          true,
			"found":       false,
			"where":       result.Where,
			"note":        result.Note,
			"ordersCount": len(result.Orders),
			"orders":      result.Orders,
		})
	case domain.WhereNone:
		c.JSON(http.StatusOK, gin.H{
			"ok":    true,
			"found": false,
			"where": result.Where,
			"data":  result.Data,
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"ok":    true,
			"found": true,
			"where": result.Where,
			"count": result.Count,
			"data":  result.Data,
		})
	}
}

// checkShop выполняет пробный вызов Shopify и возвращает его статус
func (h *LookupHandler) checkShop(c *gin.Context) {
	check, err := h.service.CheckConnection(c.Request.Context())
	if err != nil {
		var cErr *domain.ConfigurationError
		if errors.As(err, &cErr) {
			respondError(c, h.log, err)
			return
		}
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error:   "CHECKSHOP_FAIL",
			Details: domain.Truncate(err.Error(), 200),
		}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     check.OK,
		"status": check.Status,
		"sample": check.Sample,
	})
}

// extractEmail извлекает email из тела запроса либо query-параметров.
// Тело имеет приоритет над query.
func (h *LookupHandler) extractEmail(c *gin.Context) string {
	emailFromQuery := domain.ExtractEmail(queryMap(c))

	emailFromBody := ""
	if c.Request.Method == http.MethodPost {
		bodyMap, _, err := readBodyMap(c)
		if err != nil {
			h.log.Warn("Failed to parse lookup request body: %v", err)
		} else {
			emailFromBody = domain.ExtractEmail(bodyMap)
		}
	}

	if emailFromBody != "" {
		return emailFromBody
	}
	return emailFromQuery
}
