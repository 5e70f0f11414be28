package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvigi/clubdvigi-api/config"
	"github.com/dvigi/clubdvigi-api/internal/integration/shopify"
	"github.com/dvigi/clubdvigi-api/internal/metrics"
	"github.com/dvigi/clubdvigi-api/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// newTestLogger returns a silent logger for tests
func newTestLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

// testShopifyConfig returns a populated connection config
func testShopifyConfig() config.ShopifyConfig {
	return config.ShopifyConfig{
		Store:      "test.myshopify.com",
		AdminToken: "shpat_test",
		APIVersion: "2025-01",
	}
}

// testWarrantyConfig returns the default warranty settings
func testWarrantyConfig() config.WarrantyConfig {
	return config.WarrantyConfig{
		MonthsToExpire:     12,
		ClubTag:            "clubdvigi",
		MetaobjectType:     "warranty_registration",
		MetafieldNamespace: "custom",
		MetafieldKey:       "registros_de_garantia",
	}
}

// newTestShopifyClient starts a fake Admin API server and returns a client
// pointed at it
func newTestShopifyClient(t *testing.T, handler http.Handler) *shopify.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := metrics.NewShopifyMetrics(prometheus.NewRegistry(), newTestLogger())
	return shopify.NewClient(shopify.Config{
		Store:      "test.myshopify.com",
		AdminToken: "shpat_test",
		BaseURL:    srv.URL,
	}, m, newTestLogger())
}

// newTestMetrics returns metrics bound to a throwaway registry
func newTestMetrics() metrics.ShopifyMetrics {
	return metrics.NewShopifyMetrics(prometheus.NewRegistry(), newTestLogger())
}
