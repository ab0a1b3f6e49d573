package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// QuoteOptions parameterise the JSON quote fetcher.
type QuoteOptions struct {
	URL string
	// Field is a dotted path to the price, e.g. "data.harga" or "prices.0.buy".
	Field       string
	Timeout     time.Duration
	UserAgent   string
	MinInterval time.Duration
}

// Quote reads the price from a JSON API instead of an HTML page.
type Quote struct {
	opts    QuoteOptions
	path    []string
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewQuote constructs a JSON quote fetcher; URL and Field are required.
func NewQuote(opts QuoteOptions, logger zerolog.Logger) (*Quote, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("quote url is required")
	}
	if strings.TrimSpace(opts.Field) == "" {
		return nil, fmt.Errorf("quote field is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "Mozilla/5.0"
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	return &Quote{
		opts:    opts,
		path:    strings.Split(opts.Field, "."),
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With().Str("component", "quote_fetcher").Logger(),
	}, nil
}

// Fetch retrieves the quote document and extracts the configured field.
func (q *Quote) Fetch(ctx context.Context) (Reading, error) {
	if err := q.limiter.Wait(ctx); err != nil {
		return NoSignal("rate limiter: %v", err), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.opts.URL, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("create quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", q.opts.UserAgent)

	resp, err := q.client.Do(req)
	if err != nil {
		q.logger.Debug().Err(err).Str("url", q.opts.URL).Msg("quote api unreachable")
		return NoSignal("request failed: %v", err), nil
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return NoSignal("read body: %v", err), nil
	}

	if resp.StatusCode != http.StatusOK {
		return NoSignal("%s", parseHTTPError(resp.StatusCode, payload)), nil
	}

	var doc any
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return NoSignal("decode quote: %v", err), nil
	}

	price, err := extractPrice(doc, q.path)
	if err != nil {
		return NoSignal("%v", err), nil
	}
	if !price.IsPositive() {
		return NoSignal("non-positive price %s", price.String()), nil
	}
	return Price(price), nil
}

func extractPrice(doc any, path []string) (decimal.Decimal, error) {
	node := doc
	for _, key := range path {
		switch v := node.(type) {
		case map[string]any:
			next, ok := v[key]
			if !ok {
				return decimal.Decimal{}, fmt.Errorf("field %q missing", key)
			}
			node = next
		case []any:
			var idx int
			if _, err := fmt.Sscanf(key, "%d", &idx); err != nil || idx < 0 || idx >= len(v) {
				return decimal.Decimal{}, fmt.Errorf("index %q out of range", key)
			}
			node = v[idx]
		default:
			return decimal.Decimal{}, fmt.Errorf("cannot descend into %q", key)
		}
	}

	switch v := node.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return ParseAmount(v)
	default:
		return decimal.Decimal{}, fmt.Errorf("price field has unsupported type %T", node)
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) string {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Sprintf("quote api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Sprintf("quote api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Sprintf("quote api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Sprintf("quote api error (%d)", status)
}

var _ PriceSource = (*Quote)(nil)
