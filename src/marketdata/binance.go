package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kataras/go-events"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

const DefaultBaseURL = "https://fapi.binance.com"

const (
	klinesPageLimit       = 1500
	fundingRatesPageLimit = 1000
	openInterestPageLimit = 500
)

// FundingRate is one settlement sample, every eight hours on Binance.
type FundingRate struct {
	Timestamp time.Time
	Rate      float64
}

// OpenInterestPoint is one open-interest sample on the requested period grid.
type OpenInterestPoint struct {
	Timestamp time.Time
	Value     float64
}

// BinanceClient fetches historical series from the USDT-M futures REST API.
// Endpoints are paginated by a millisecond cursor; each page is retried over
// the backoff ladder before the fetch fails.
type BinanceClient struct {
	baseURL   string
	client    *http.Client
	backoff   []time.Duration
	pageDelay time.Duration
}

func NewBinanceClient(baseURL string) *BinanceClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &BinanceClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		backoff:   []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second},
		pageDelay: 200 * time.Millisecond,
	}
}

// FetchKlines pages through /fapi/v1/klines between start and end.
func (c *BinanceClient) FetchKlines(ctx context.Context, symbol, interval string, start, end time.Time) (models.Candles, error) {
	var candles models.Candles

	cursor := start.UnixMilli()
	endMs := end.UnixMilli()

	for cursor < endMs {
		query := url.Values{}
		query.Set("symbol", symbol)
		query.Set("interval", interval)
		query.Set("startTime", strconv.FormatInt(cursor, 10))
		query.Set("endTime", strconv.FormatInt(endMs, 10))
		query.Set("limit", strconv.Itoa(klinesPageLimit))

		var rows [][]interface{}
		if err := c.getJSON(ctx, "/fapi/v1/klines", query, &rows); err != nil {
			return nil, fmt.Errorf("BinanceClient.FetchKlines: %w", err)
		}

		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			candle, err := parseKline(symbol, row)
			if err != nil {
				return nil, fmt.Errorf("BinanceClient.FetchKlines: %w", err)
			}
			candles = append(candles, candle)
		}

		cursor = candles[len(candles)-1].Timestamp.UnixMilli() + 1

		events.Emit(ChunkFetched, symbol, KindKlines, len(candles))
		log.Debugf("fetched %d %s %s candles", len(candles), symbol, interval)

		if err := c.sleepBetweenPages(ctx); err != nil {
			return nil, err
		}
	}

	return candles, nil
}

type fundingRateDTO struct {
	Symbol      string `json:"symbol"`
	FundingTime int64  `json:"fundingTime"`
	FundingRate string `json:"fundingRate"`
}

// FetchFundingRates pages through /fapi/v1/fundingRate between start and end.
func (c *BinanceClient) FetchFundingRates(ctx context.Context, symbol string, start, end time.Time) ([]FundingRate, error) {
	var rates []FundingRate

	cursor := start.UnixMilli()
	endMs := end.UnixMilli()

	for cursor < endMs {
		query := url.Values{}
		query.Set("symbol", symbol)
		query.Set("startTime", strconv.FormatInt(cursor, 10))
		query.Set("endTime", strconv.FormatInt(endMs, 10))
		query.Set("limit", strconv.Itoa(fundingRatesPageLimit))

		var rows []fundingRateDTO
		if err := c.getJSON(ctx, "/fapi/v1/fundingRate", query, &rows); err != nil {
			return nil, fmt.Errorf("BinanceClient.FetchFundingRates: %w", err)
		}

		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			rate, err := strconv.ParseFloat(row.FundingRate, 64)
			if err != nil {
				return nil, fmt.Errorf("BinanceClient.FetchFundingRates: failed to parse rate %q: %w", row.FundingRate, err)
			}

			rates = append(rates, FundingRate{
				Timestamp: time.UnixMilli(row.FundingTime).UTC(),
				Rate:      rate,
			})
		}

		cursor = rows[len(rows)-1].FundingTime + 1

		events.Emit(ChunkFetched, symbol, KindFundingRates, len(rates))

		if err := c.sleepBetweenPages(ctx); err != nil {
			return nil, err
		}
	}

	return rates, nil
}

type openInterestDTO struct {
	Symbol          string `json:"symbol"`
	SumOpenInterest string `json:"sumOpenInterest"`
	Timestamp       int64  `json:"timestamp"`
}

// FetchOpenInterest pages through /futures/data/openInterestHist. Binance
// only keeps about thirty days of history on this endpoint, so callers
// should be prepared for an empty result on older ranges.
func (c *BinanceClient) FetchOpenInterest(ctx context.Context, symbol, period string, start, end time.Time) ([]OpenInterestPoint, error) {
	var points []OpenInterestPoint

	cursor := start.UnixMilli()
	endMs := end.UnixMilli()

	for cursor < endMs {
		query := url.Values{}
		query.Set("symbol", symbol)
		query.Set("period", period)
		query.Set("startTime", strconv.FormatInt(cursor, 10))
		query.Set("endTime", strconv.FormatInt(endMs, 10))
		query.Set("limit", strconv.Itoa(openInterestPageLimit))

		var rows []openInterestDTO
		if err := c.getJSON(ctx, "/futures/data/openInterestHist", query, &rows); err != nil {
			return nil, fmt.Errorf("BinanceClient.FetchOpenInterest: %w", err)
		}

		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			value, err := strconv.ParseFloat(row.SumOpenInterest, 64)
			if err != nil {
				return nil, fmt.Errorf("BinanceClient.FetchOpenInterest: failed to parse open interest %q: %w", row.SumOpenInterest, err)
			}

			points = append(points, OpenInterestPoint{
				Timestamp: time.UnixMilli(row.Timestamp).UTC(),
				Value:     value,
			})
		}

		cursor = rows[len(rows)-1].Timestamp + 1

		events.Emit(ChunkFetched, symbol, KindOpenInterest, len(points))

		if err := c.sleepBetweenPages(ctx); err != nil {
			return nil, err
		}
	}

	return points, nil
}

// parseKline maps one /fapi/v1/klines row: open time in milliseconds
// followed by open, high, low, close and volume as strings.
func parseKline(symbol string, row []interface{}) (*models.Candle, error) {
	if len(row) < 6 {
		return nil, fmt.Errorf("parseKline: expected at least 6 fields, got %d", len(row))
	}

	openTime, ok := row[0].(float64)
	if !ok {
		return nil, fmt.Errorf("parseKline: unexpected open time type %T", row[0])
	}

	values := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return nil, fmt.Errorf("parseKline: unexpected field type %T at index %d", row[i], i)
		}

		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parseKline: failed to parse field %d: %w", i, err)
		}
		values[i-1] = v
	}

	timestamp := time.UnixMilli(int64(openTime)).UTC()

	return models.NewCandle(symbol, timestamp, values[0], values[1], values[2], values[3], values[4]), nil
}

func (c *BinanceClient) getJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	for attempt := 0; ; attempt++ {
		err := c.doGet(ctx, endpoint, query, out)
		if err == nil {
			return nil
		}

		if attempt >= len(c.backoff) {
			return fmt.Errorf("BinanceClient.getJSON: retries exhausted: %w", err)
		}

		log.Warnf("BinanceClient.getJSON: %v, backing off %v", err, c.backoff[attempt])

		select {
		case <-ctx.Done():
			return fmt.Errorf("BinanceClient.getJSON: %w", ctx.Err())
		case <-time.After(c.backoff[attempt]):
		}
	}
}

func (c *BinanceClient) doGet(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("BinanceClient.doGet: failed to create request: %w", err)
	}

	req.URL.RawQuery = query.Encode()
	req.Header.Add("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("BinanceClient.doGet: request failed: %w", err)
	}

	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("BinanceClient.doGet: %s returned http code %v", endpoint, res.Status)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("BinanceClient.doGet: failed to decode json: %w", err)
	}

	return nil
}

func (c *BinanceClient) sleepBetweenPages(ctx context.Context) error {
	if c.pageDelay <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.pageDelay):
		return nil
	}
}
