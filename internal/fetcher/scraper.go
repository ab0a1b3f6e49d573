package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultURL is the public page the dashboard scraped.
	DefaultURL = "https://www.hargaemas.com/"
	// DefaultPattern matches a dotted Rupiah price such as 2.950.000.
	DefaultPattern = `2\.9[0-9]{2}\.[0-9]{3}`

	maxBodyBytes = 4 << 20
)

// ScraperOptions parameterise the HTML scraper.
type ScraperOptions struct {
	URL         string
	Pattern     string
	Timeout     time.Duration
	UserAgent   string
	MinInterval time.Duration
}

// Scraper pulls the live price out of an HTML page with a regular expression.
type Scraper struct {
	opts    ScraperOptions
	pattern *regexp.Regexp
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewScraper constructs a scraper; it fails only on an invalid pattern.
func NewScraper(opts ScraperOptions, logger zerolog.Logger) (*Scraper, error) {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "Mozilla/5.0"
	}

	pattern, err := regexp.Compile(opts.Pattern)
	if err != nil {
		return nil, fmt.Errorf("compile price pattern: %w", err)
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	return &Scraper{
		opts:    opts,
		pattern: pattern,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With().Str("component", "price_scraper").Logger(),
	}, nil
}

// Fetch downloads the page and extracts the first price match.
func (s *Scraper) Fetch(ctx context.Context) (Reading, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return NoSignal("rate limiter: %v", err), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.URL, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("create scrape request: %w", err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug().Err(err).Str("url", s.opts.URL).Msg("price page unreachable")
		return NoSignal("request failed: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NoSignal("unexpected status %d", resp.StatusCode), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil && !errors.Is(err, io.EOF) {
		return NoSignal("read body: %v", err), nil
	}

	match := s.pattern.Find(body)
	if match == nil {
		return NoSignal("price pattern not found"), nil
	}

	price, err := ParseRupiah(string(match))
	if err != nil {
		return NoSignal("%v", err), nil
	}
	if !price.IsPositive() {
		return NoSignal("non-positive price %s", price.String()), nil
	}

	return Price(price), nil
}

var _ PriceSource = (*Scraper)(nil)
