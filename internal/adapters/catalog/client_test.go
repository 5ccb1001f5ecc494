package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/adapters/catalog"
	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSource(t *testing.T, h http.HandlerFunc) *catalog.HTTPPriceSource {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return catalog.NewHTTPPriceSource(config.CatalogConfig{
		PriceURL: srv.URL + "/api/prices",
		Timeout:  time.Second,
	}).(*catalog.HTTPPriceSource)
}

func TestFetchPrices(t *testing.T) {
	t.Run("decodes and normalizes sizes", func(t *testing.T) {
		source := newSource(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/prices", r.URL.Path)
			_, _ = w.Write([]byte(`{"prices":[
				{"size":" a4 ","price_usd":"33.33","enabled":true},
				{"size":"A2","price_usd":80,"enabled":false},
				{"size":"","price_usd":1,"enabled":true}
			]}`))
		})

		prices, err := source.FetchPrices(context.Background())
		require.NoError(t, err)
		require.Len(t, prices, 2)
		assert.Equal(t, "A4", prices[0].Size)
		assert.True(t, prices[0].PriceUSD.Equal(decimal.RequireFromString("33.33")))
		assert.True(t, prices[0].Enabled)
		assert.False(t, prices[1].Enabled)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		source := newSource(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := source.FetchPrices(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("malformed body", func(t *testing.T) {
		source := newSource(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		})

		_, err := source.FetchPrices(context.Background())
		assert.Error(t, err)
	})
}
