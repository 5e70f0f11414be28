package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dvigi/clubdvigi-api/internal/domain"
	"github.com/dvigi/clubdvigi-api/internal/metrics"
	"github.com/dvigi/clubdvigi-api/pkg/logger"
)

// Максимальный размер тела ответа Shopify, попадающий в диагностику
const maxErrorDetails = 500

// Client представляет клиент для работы с Shopify Admin API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	metrics    metrics.ShopifyMetrics
	log        *logger.Logger
}

// Config конфигурация для клиента Shopify
type Config struct {
	Store      string // Домен магазина, например dvigiarg.myshopify.com
	AdminToken string
	APIVersion string
	BaseURL    string // Переопределяет Store/APIVersion, используется в тестах
}

// NewClient создает новый клиент Shopify Admin API
func NewClient(cfg Config, m metrics.ShopifyMetrics, log *logger.Logger) *Client {
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "2025-01"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s/admin/api/%s", cfg.Store, apiVersion)
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.AdminToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		metrics:    m,
		log:        log,
	}
}

// BaseURL возвращает базовый URL Admin API
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ToGID строит глобальный идентификатор Shopify
func ToGID(resource, id string) string {
	return fmt.Sprintf("gid://shopify/%s/%s", resource, id)
}

// UserError ошибка уровня полей, возвращаемая мутациями GraphQL
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// checkUserErrors преобразует userErrors мутации в ошибку внешнего API
func (c *Client) checkUserErrors(stage string, userErrors []UserError) error {
	if len(userErrors) == 0 {
		return nil
	}
	details, _ := json.Marshal(userErrors)
	return domain.NewUpstreamError(stage, http.StatusOK, domain.Truncate(string(details), maxErrorDetails), nil)
}

// restGet выполняет GET-запрос к REST Admin API и декодирует ответ в target
func (c *Client) restGet(ctx context.Context, stage, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("X-Shopify-Access-Token", c.token)
	req.Header.Add("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveAPICall(stage, false, time.Since(start))
		c.log.Error("Shopify request failed at %s: %v", stage, err)
		return domain.NewUpstreamError(stage, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveAPICall(stage, false, time.Since(start))
		return domain.NewUpstreamError(stage, resp.StatusCode, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.ObserveAPICall(stage, false, time.Since(start))
		c.log.Warn("Shopify returned %d at %s", resp.StatusCode, stage)
		return domain.NewUpstreamError(stage, resp.StatusCode, domain.Truncate(string(body), maxErrorDetails), nil)
	}
	c.metrics.ObserveAPICall(stage, true, time.Since(start))

	if err := json.Unmarshal(body, target); err != nil {
		return domain.NewUpstreamError(stage, resp.StatusCode, domain.Truncate(string(body), maxErrorDetails), err)
	}
	return nil
}

// graphqlRequest тело запроса GraphQL
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse верхний уровень ответа GraphQL
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors,omitempty"`
}

// graphql выполняет запрос к GraphQL Admin API и декодирует поле data в target
func (c *Client) graphql(ctx context.Context, stage, query string, variables map[string]any, target any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+"/graphql.json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("X-Shopify-Access-Token", c.token)
	req.Header.Add("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveAPICall(stage, false, time.Since(start))
		c.log.Error("Shopify GraphQL request failed at %s: %v", stage, err)
		return domain.NewUpstreamError(stage, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveAPICall(stage, false, time.Since(start))
		return domain.NewUpstreamError(stage, resp.StatusCode, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.ObserveAPICall(stage, false, time.Since(start))
		c.log.Warn("Shopify GraphQL returned %d at %s", resp.StatusCode, stage)
		return domain.NewUpstreamError(stage, resp.StatusCode, domain.Truncate(string(body), maxErrorDetails), nil)
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		c.metrics.ObserveAPICall(stage, false, time.Since(start))
		return domain.NewUpstreamError(stage, resp.StatusCode, domain.Truncate(string(body), maxErrorDetails), err)
	}

	// Ошибки верхнего уровня GraphQL приходят со статусом 200
	if len(gqlResp.Errors) > 0 && string(gqlResp.Errors) != "null" {
		c.metrics.ObserveAPICall(stage, false, time.Since(start))
		c.log.Warn("Shopify GraphQL errors at %s: %s", stage, domain.Truncate(string(gqlResp.Errors), maxErrorDetails))
		return domain.NewUpstreamError(stage, resp.StatusCode, domain.Truncate(string(gqlResp.Errors), maxErrorDetails), nil)
	}
	c.metrics.ObserveAPICall(stage, true, time.Since(start))

	if target != nil {
		if err := json.Unmarshal(gqlResp.Data, target); err != nil {
			return domain.NewUpstreamError(stage, resp.StatusCode, domain.Truncate(string(gqlResp.Data), maxErrorDetails), err)
		}
	}
	return nil
}

// ConnectionCheck результат проверки соединения с Shopify
type ConnectionCheck struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status"`
	Sample string `json:"sample"`
}

// CheckConnection выполняет легкий запрос shop.json для диагностики.
// Не-2xx статус не является ошибкой: он возвращается вызывающей стороне,
// чтобы отличить проблемы авторизации от сетевых сбоев.
func (c *Client) CheckConnection(ctx context.Context) (*ConnectionCheck, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/shop.json", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("X-Shopify-Access-Token", c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveAPICall("checkshop", false, time.Since(start))
		return nil, fmt.Errorf("failed to reach shopify: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveAPICall("checkshop", resp.StatusCode < 300, time.Since(start))

	body, _ := io.ReadAll(resp.Body)
	return &ConnectionCheck{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		Sample: domain.Truncate(string(body), 200),
	}, nil
}
