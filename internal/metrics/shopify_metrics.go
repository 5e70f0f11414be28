package metrics

import (
	"time"

	"github.com/dvigi/clubdvigi-api/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ShopifyMetrics интерфейс для метрик обращений к Shopify
type ShopifyMetrics interface {
	IncLookup(where string)
	IncCustomerCreated()
	IncCustomerUpdated()
	IncTagRepaired()
	IncMetaobjectsCreated(count int)
	ObserveAPICall(operation string, success bool, duration time.Duration)
}

type shopifyMetrics struct {
	log                *logger.Logger
	lookups            *prometheus.CounterVec
	customersUpserted  *prometheus.CounterVec
	tagRepairs         prometheus.Counter
	metaobjectsCreated prometheus.Counter
	apiCallDuration    *prometheus.HistogramVec
}

// NewShopifyMetrics создает новые метрики обращений к Shopify
func NewShopifyMetrics(registry *prometheus.Registry, log *logger.Logger) ShopifyMetrics {
	lookups := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_requests_total",
			Help: "The total number of customer lookups by resolution stage",
		},
		[]string{"where"},
	)

	customersUpserted := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "customers_upserted_total",
			Help: "The total number of upserted customers by outcome",
		},
		[]string{"outcome"},
	)

	tagRepairs := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "club_tag_repairs_total",
			Help: "The total number of dedicated tag-addition repair calls",
		},
	)

	metaobjectsCreated := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "warranty_metaobjects_created_total",
			Help: "The total number of created warranty registration metaobjects",
		},
	)

	apiCallDuration := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopify_api_call_duration_seconds",
			Help:    "Duration of outbound Shopify Admin API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	return &shopifyMetrics{
		log:                log,
		lookups:            lookups,
		customersUpserted:  customersUpserted,
		tagRepairs:         tagRepairs,
		metaobjectsCreated: metaobjectsCreated,
		apiCallDuration:    apiCallDuration,
	}
}

// IncLookup увеличивает счетчик поисков по этапу разрешения
func (m *shopifyMetrics) IncLookup(where string) {
	m.lookups.WithLabelValues(where).Inc()
}

// IncCustomerCreated увеличивает счетчик созданных клиентов
func (m *shopifyMetrics) IncCustomerCreated() {
	m.customersUpserted.WithLabelValues("created").Inc()
}

// IncCustomerUpdated увеличивает счетчик обновленных клиентов
func (m *shopifyMetrics) IncCustomerUpdated() {
	m.customersUpserted.WithLabelValues("updated").Inc()
}

// IncTagRepaired увеличивает счетчик ремонтных вызовов tagsAdd
func (m *shopifyMetrics) IncTagRepaired() {
	m.tagRepairs.Inc()
}

// IncMetaobjectsCreated увеличивает счетчик созданных метаобъектов
func (m *shopifyMetrics) IncMetaobjectsCreated(count int) {
	m.metaobjectsCreated.Add(float64(count))
}

// ObserveAPICall записывает длительность исходящего вызова
func (m *shopifyMetrics) ObserveAPICall(operation string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.apiCallDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}
