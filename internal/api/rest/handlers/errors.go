package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dvigi/clubdvigi-api/internal/domain"
	"github.com/dvigi/clubdvigi-api/pkg/logger"
	"github.com/dvigi/clubdvigi-api/pkg/res"
	"github.com/gin-gonic/gin"
)

// respondError отображает ошибку сервиса на HTTP-статус и JSON-ответ.
// Валидация дает 400, конфигурация и внутренние ошибки 500, внешний API 502.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var vErr *domain.ValidationError
	var cErr *domain.ConfigurationError
	var uErr *domain.UpstreamError

	switch {
	case errors.As(err, &vErr):
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error: "Falta el parámetro email",
			Hint:  vErr.Hint,
		}, http.StatusBadRequest, log)

	case errors.As(err, &cErr):
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error: "Faltan " + strings.Join(cErr.Missing, " o "),
		}, http.StatusInternalServerError, log)

	case errors.As(err, &uErr):
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error:   "SHOPIFY_ERROR",
			Where:   uErr.Stage,
			Status:  uErr.StatusCode,
			Details: uErr.Details,
		}, http.StatusBadGateway, log)

	default:
		// Полная ошибка остается в логах, наружу уходит короткая строка
		log.Error("Unhandled error: %v", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error:   "UNCAUGHT",
			Details: domain.Truncate(err.Error(), 200),
		}, http.StatusInternalServerError, log)
	}
	c.Abort()
}

// readBodyMap читает тело запроса как произвольный JSON-объект либо
// urlencoded-форму. Формы дают только плоские ключи для извлечения
// email (в том числе customer[email]), сырые байты возвращаются лишь
// для JSON-тел. Пустое тело не является ошибкой.
func readBodyMap(c *gin.Context) (map[string]any, []byte, error) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil, nil
	}

	if strings.Contains(c.ContentType(), "x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, nil, err
		}
		bodyMap := make(map[string]any, len(values))
		for k, v := range values {
			if len(v) > 0 {
				bodyMap[k] = v[0]
			}
		}
		return bodyMap, nil, nil
	}

	var bodyMap map[string]any
	if err := json.Unmarshal(raw, &bodyMap); err != nil {
		return nil, raw, err
	}
	return bodyMap, raw, nil
}

// queryMap собирает query-параметры в map для извлечения email
func queryMap(c *gin.Context) map[string]any {
	values := make(map[string]any)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			values[k] = v[0]
		}
	}
	return values
}
