package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuoteRequiresURLAndField(t *testing.T) {
	_, err := NewQuote(QuoteOptions{Field: "price"}, noopLogger())
	assert.Error(t, err)
	_, err = NewQuote(QuoteOptions{URL: "http://example.invalid"}, noopLogger())
	assert.Error(t, err)
}

func TestQuoteFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"prices": []any{
					map[string]any{"buy": 2957000, "sell": "2.810.000"},
				},
			},
		})
	}))
	defer srv.Close()

	q, err := NewQuote(QuoteOptions{URL: srv.URL, Field: "data.prices.0.buy", Timeout: time.Second}, noopLogger())
	require.NoError(t, err)

	reading, err := q.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, reading.Signal, reading.Reason)
	assert.True(t, reading.Price.Equal(decimal.NewFromInt(2_957_000)))

	q, err = NewQuote(QuoteOptions{URL: srv.URL, Field: "data.prices.0.sell"}, noopLogger())
	require.NoError(t, err)
	reading, err = q.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, reading.Signal, reading.Reason)
	assert.True(t, reading.Price.Equal(decimal.NewFromInt(2_810_000)))
}

func TestQuoteFetchHTTPErrorIsNoSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "maintenance"})
	}))
	defer srv.Close()

	q, err := NewQuote(QuoteOptions{URL: srv.URL, Field: "price"}, noopLogger())
	require.NoError(t, err)

	reading, err := q.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, reading.Signal)
	assert.Contains(t, reading.Reason, "maintenance")
}

func TestQuoteFetchMissingFieldIsNoSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	q, err := NewQuote(QuoteOptions{URL: srv.URL, Field: "data.price"}, noopLogger())
	require.NoError(t, err)

	reading, err := q.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, reading.Signal)
	assert.Contains(t, reading.Reason, "missing")
}
