package service

import (
	"context"
	"encoding/json"

	"github.com/dvigi/clubdvigi-api/config"
	"github.com/dvigi/clubdvigi-api/internal/domain"
	"github.com/dvigi/clubdvigi-api/internal/integration/shopify"
	"github.com/dvigi/clubdvigi-api/internal/metrics"
	"github.com/dvigi/clubdvigi-api/pkg/logger"
)

// SelfTestResult результат проверки наличия конфигурации
type SelfTestResult struct {
	HasStore bool `json:"hasStore"`
	HasToken bool `json:"hasToken"`
}

// LookupService интерфейс сервиса поиска клиентов по email
type LookupService interface {
	Resolve(ctx context.Context, email string) (*domain.LookupResult, error)
	SelfTest() SelfTestResult
	CheckConnection(ctx context.Context) (*shopify.ConnectionCheck, error)
}

type lookupService struct {
	client     *shopify.Client
	shopifyCfg config.ShopifyConfig
	metrics    metrics.ShopifyMetrics
	log        *logger.Logger
}

// NewLookupService создает новый сервис поиска клиентов
func NewLookupService(client *shopify.Client, shopifyCfg config.ShopifyConfig, m metrics.ShopifyMetrics, log *logger.Logger) LookupService {
	return &lookupService{
		client:     client,
		shopifyCfg: shopifyCfg,
		metrics:    m,
		log:        log,
	}
}

// Resolve ищет клиента по email упорядоченной цепочкой стратегий.
// Первая стратегия с непустым результатом завершает поиск.
func (s *lookupService) Resolve(ctx context.Context, email string) (*domain.LookupResult, error) {
	if email == "" {
		return nil, domain.NewValidationError("email", "email is required",
			`Usá ?email=... o enviá JSON {"email":"..."}`)
	}
	if missing := s.shopifyCfg.Missing(); len(missing) > 0 {
		return nil, domain.NewConfigurationError(missing...)
	}

	s.log.Debug("Resolving customer by email: %s", email)

	// 1) Точное совпадение по email
	exact, err := s.client.FindCustomersExact(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		s.metrics.IncLookup(domain.WhereCustomersExact)
		return &domain.LookupResult{
			Found: true,
			Where: domain.WhereCustomersExact,
			Count: len(exact),
			Data:  exact,
		}, nil
	}

	// 2) Общий поиск клиентов
	search, err := s.client.SearchCustomers(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(search) > 0 {
		s.metrics.IncLookup(domain.WhereCustomersSearch)
		return &domain.LookupResult{
			Found: true,
			Where: domain.WhereCustomersSearch,
			Count: len(search),
			Data:  search,
		}, nil
	}

	// 3) Поиск по заказам: гостевые покупки без аккаунта клиента
	orders, err := s.client.FindOrdersByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(orders) > 0 {
		s.metrics.IncLookup(domain.WhereOrders)
		return &domain.LookupResult{
			Found:  false,
			Where:  domain.WhereOrders,
			Note:   domain.NoteSeenInOrders,
			Orders: orders,
		}, nil
	}

	s.metrics.IncLookup(domain.WhereNone)
	return &domain.LookupResult{
		Found: false,
		Where: domain.WhereNone,
		Data:  []json.RawMessage{},
	}, nil
}

// SelfTest сообщает, заданы ли обязательные переменные подключения
func (s *lookupService) SelfTest() SelfTestResult {
	return SelfTestResult{
		HasStore: s.shopifyCfg.HasStore(),
		HasToken: s.shopifyCfg.HasToken(),
	}
}

// CheckConnection выполняет пробный вызов Shopify для диагностики
func (s *lookupService) CheckConnection(ctx context.Context) (*shopify.ConnectionCheck, error) {
	if missing := s.shopifyCfg.Missing(); len(missing) > 0 {
		return nil, domain.NewConfigurationError(missing...)
	}
	return s.client.CheckConnection(ctx)
}
