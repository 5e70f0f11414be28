package handlers

import (
	"bytes"
	"net/http"

	"github.com/dvigi/clubdvigi-api/internal/domain"
	"github.com/dvigi/clubdvigi-api/internal/service"
	"github.com/dvigi/clubdvigi-api/pkg/logger"
	"github.com/dvigi/clubdvigi-api/pkg/req"
	"github.com/dvigi/clubdvigi-api/pkg/res"
	"github.com/gin-gonic/gin"
)

// UpsertHandler обработчик upsert-а клиента с регистрацией покупок
type UpsertHandler struct {
	service service.UpsertService
	log     *logger.Logger
}

// NewUpsertHandler создает новый обработчик upsert-а
func NewUpsertHandler(svc service.UpsertService, log *logger.Logger) *UpsertHandler {
	return &UpsertHandler{
		service: svc,
		log:     log,
	}
}

// Upsert обрабатывает POST запрос upsert-а.
// Email извлекается из произвольных ключей тела, затем из query.
// Профиль и покупки принимаются только в JSON-теле, urlencoded-форма
// дает лишь email.
func (h *UpsertHandler) Upsert(c *gin.Context) {
	bodyMap, raw, err := readBodyMap(c)
	if err != nil {
		h.log.Warn("Invalid upsert request body: %v", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error: "invalid_json",
		}, http.StatusBadRequest, h.log)
		c.Abort()
		return
	}

	email := domain.ExtractEmail(bodyMap)
	if email == "" {
		email = domain.ExtractEmail(queryMap(c))
	}

	var payload domain.UpsertRequest
	if len(raw) > 0 {
		payload, err = req.Decode[domain.UpsertRequest](bytes.NewReader(raw))
		if err != nil {
			h.log.Warn("Invalid upsert payload: %v", err)
			res.JsonErrorResponse(c.Writer, res.ErrorResponse{
				Error: "invalid_payload",
			}, http.StatusBadRequest, h.log)
			c.Abort()
			return
		}
		if err := req.IsValid(payload); err != nil {
			h.log.Warn("Upsert payload validation failed: %v", err)
			res.JsonErrorResponse(c.Writer, res.ErrorResponse{
				Error:   "invalid_payload",
				Details: domain.Truncate(err.Error(), 200),
			}, http.StatusBadRequest, h.log)
			c.Abort()
			return
		}
	}

	result, err := h.service.Upsert(c.Request.Context(), email, payload)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":                      true,
		"customerId":              result.CustomerID,
		"created":                 result.Created,
		"createdMetaobjectsCount": len(result.Created),
		"metafieldLinkedCount":    result.LinkedCount,
		"appliedTag":              result.AppliedTag,
		"fieldKeys":               result.FieldKeys,
	})
}
