package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/kataras/go-events"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/crypto-backtest/src/eventpubsub"
	"github.com/jiaming2012/crypto-backtest/src/indicators"
	"github.com/jiaming2012/crypto-backtest/src/models"
)

// openInterestPeriods lists the sampling periods /futures/data accepts.
var openInterestPeriods = map[string]string{
	"5m": "5m", "15m": "15m", "30m": "30m", "1h": "1h", "2h": "2h", "4h": "4h", "1d": "1d",
}

func openInterestPeriod(interval string) string {
	if period, ok := openInterestPeriods[interval]; ok {
		return period
	}
	return "4h"
}

// Request names one candle series to prepare. Offline restricts the request
// to the cache: a kline or funding miss becomes an error instead of a fetch.
type Request struct {
	Symbol           string
	Interval         string
	Start            time.Time
	End              time.Time
	WithFunding      bool
	WithOpenInterest bool
	Offline          bool
}

func (r Request) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("Request.Validate: symbol is required")
	}

	if r.Interval == "" {
		return fmt.Errorf("Request.Validate: interval is required")
	}

	if !r.End.After(r.Start) {
		return fmt.Errorf("Request.Validate: end %v must be after start %v", r.End, r.Start)
	}

	return nil
}

// Downloader produces backtest-ready candle series: cached or freshly
// fetched klines with funding, open interest and indicators attached.
type Downloader struct {
	client *BinanceClient
	cache  *Cache
}

func NewDownloader(client *BinanceClient, cache *Cache) *Downloader {
	return &Downloader{client: client, cache: cache}
}

func (d *Downloader) Prepare(ctx context.Context, req Request) (models.Candles, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("Downloader.Prepare: %w", err)
	}

	var (
		candles models.Candles
		rates   []FundingRate
		points  []OpenInterestPoint
	)

	process := &eventpubsub.StagedProcess{}

	process.Add("fetch klines", func() error {
		var err error
		candles, err = d.loadOrFetchCandles(ctx, req)
		return err
	})

	process.Add("fetch funding rates", func() error {
		if !req.WithFunding {
			return nil
		}

		var err error
		rates, err = d.loadOrFetchFunding(ctx, req)
		return err
	})

	process.Add("fetch open interest", func() error {
		if !req.WithOpenInterest {
			return nil
		}

		points = d.loadOrFetchOpenInterest(ctx, req)
		return nil
	})

	process.Add("merge series", func() error {
		if len(rates) > 0 {
			MergeFundingRates(candles, rates)
		}
		if len(points) > 0 {
			MergeOpenInterest(candles, points)
		}
		return nil
	})

	process.Add("compute indicators", func() error {
		return indicators.Enrich(candles)
	})

	process.Add("validate series", func() error {
		return candles.Validate()
	})

	if err := process.Run(); err != nil {
		return nil, fmt.Errorf("Downloader.Prepare: %w", err)
	}

	return candles, nil
}

func (d *Downloader) loadOrFetchCandles(ctx context.Context, req Request) (models.Candles, error) {
	candles, hit, err := d.cache.LoadCandles(req.Symbol, req.Interval, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if hit {
		return candles, nil
	}

	if req.Offline {
		return nil, fmt.Errorf("no cached candles for %s %s, run with downloads enabled first", req.Symbol, req.Interval)
	}

	candles, err = d.client.FetchKlines(ctx, req.Symbol, req.Interval, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles returned for %s %s", req.Symbol, req.Interval)
	}

	if err := d.cache.StoreCandles(req.Symbol, req.Interval, req.Start, req.End, candles); err != nil {
		return nil, err
	}

	events.Emit(SeriesCached, req.Symbol, KindKlines, len(candles))
	log.Infof("downloaded %d %s %s candles", len(candles), req.Symbol, req.Interval)

	return candles, nil
}

func (d *Downloader) loadOrFetchFunding(ctx context.Context, req Request) ([]FundingRate, error) {
	rates, hit, err := d.cache.LoadFundingRates(req.Symbol, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if hit {
		return rates, nil
	}

	if req.Offline {
		return nil, fmt.Errorf("no cached funding rates for %s, run with downloads enabled first", req.Symbol)
	}

	rates, err = d.client.FetchFundingRates(ctx, req.Symbol, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	if err := d.cache.StoreFundingRates(req.Symbol, req.Start, req.End, rates); err != nil {
		return nil, err
	}

	events.Emit(SeriesCached, req.Symbol, KindFundingRates, len(rates))
	log.Infof("downloaded %d %s funding rates", len(rates), req.Symbol)

	return rates, nil
}

// loadOrFetchOpenInterest tolerates failure: Binance keeps only about a
// month of open-interest history, so older ranges come back empty and the
// strategies fall back to skipping their open-interest checks.
func (d *Downloader) loadOrFetchOpenInterest(ctx context.Context, req Request) []OpenInterestPoint {
	period := openInterestPeriod(req.Interval)

	points, hit, err := d.cache.LoadOpenInterest(req.Symbol, period, req.Start, req.End)
	if err != nil {
		log.Warnf("Downloader: failed to read open interest cache for %s: %v", req.Symbol, err)
	} else if hit {
		return points
	}

	if req.Offline {
		return nil
	}

	points, err = d.client.FetchOpenInterest(ctx, req.Symbol, period, req.Start, req.End)
	if err != nil {
		log.Warnf("Downloader: could not download open interest for %s: %v", req.Symbol, err)
		return nil
	}

	if len(points) == 0 {
		return nil
	}

	if err := d.cache.StoreOpenInterest(req.Symbol, period, req.Start, req.End, points); err != nil {
		log.Warnf("Downloader: failed to cache open interest for %s: %v", req.Symbol, err)
		return points
	}

	events.Emit(SeriesCached, req.Symbol, KindOpenInterest, len(points))
	log.Infof("downloaded %d %s open interest points", len(points), req.Symbol)

	return points
}
