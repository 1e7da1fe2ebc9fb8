package marketdata

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

const cacheDateLayout = "2006-01-02"

// Cache stores downloaded series as CSV files, one per (symbol, kind,
// range), so repeated runs over the same window skip the network.
type Cache struct {
	dir string
}

func NewCache(dir string) (*Cache, error) {
	if dir == "" {
		dir = "data_cache"
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("NewCache: failed to create cache dir: %w", err)
	}

	return &Cache{dir: dir}, nil
}

func (c *Cache) candlesFile(symbol, interval string, start, end time.Time) string {
	name := fmt.Sprintf("%s_%s_%s_%s.csv", symbol, interval, start.Format(cacheDateLayout), end.Format(cacheDateLayout))
	return filepath.Join(c.dir, name)
}

func (c *Cache) fundingFile(symbol string, start, end time.Time) string {
	name := fmt.Sprintf("%s_funding_%s_%s.csv", symbol, start.Format(cacheDateLayout), end.Format(cacheDateLayout))
	return filepath.Join(c.dir, name)
}

func (c *Cache) openInterestFile(symbol, period string, start, end time.Time) string {
	name := fmt.Sprintf("%s_oi_%s_%s_%s.csv", symbol, period, start.Format(cacheDateLayout), end.Format(cacheDateLayout))
	return filepath.Join(c.dir, name)
}

// LoadCandles returns the cached series and whether the cache had it.
func (c *Cache) LoadCandles(symbol, interval string, start, end time.Time) (models.Candles, bool, error) {
	path := c.candlesFile(symbol, interval, start, end)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Cache.LoadCandles: %w", err)
	}
	defer f.Close()

	log.Infof("loading %s %s candles from cache", symbol, interval)

	var dtos []*CandleDTO
	if err := gocsv.UnmarshalFile(f, &dtos); err != nil {
		return nil, false, fmt.Errorf("Cache.LoadCandles: failed to unmarshal %s: %w", path, err)
	}

	candles := make(models.Candles, 0, len(dtos))
	for _, dto := range dtos {
		candle, err := dto.ToModel(symbol)
		if err != nil {
			return nil, false, fmt.Errorf("Cache.LoadCandles: %w", err)
		}
		candles = append(candles, candle)
	}

	return candles, true, nil
}

func (c *Cache) StoreCandles(symbol, interval string, start, end time.Time, candles models.Candles) error {
	dtos := make([]*CandleDTO, 0, len(candles))
	for _, candle := range candles {
		dtos = append(dtos, NewCandleDTO(candle))
	}

	return c.writeFile(c.candlesFile(symbol, interval, start, end), &dtos)
}

func (c *Cache) LoadFundingRates(symbol string, start, end time.Time) ([]FundingRate, bool, error) {
	path := c.fundingFile(symbol, start, end)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Cache.LoadFundingRates: %w", err)
	}
	defer f.Close()

	log.Infof("loading %s funding rates from cache", symbol)

	var dtos []*FundingRateDTO
	if err := gocsv.UnmarshalFile(f, &dtos); err != nil {
		return nil, false, fmt.Errorf("Cache.LoadFundingRates: failed to unmarshal %s: %w", path, err)
	}

	rates := make([]FundingRate, 0, len(dtos))
	for _, dto := range dtos {
		rate, err := dto.ToModel()
		if err != nil {
			return nil, false, fmt.Errorf("Cache.LoadFundingRates: %w", err)
		}
		rates = append(rates, rate)
	}

	return rates, true, nil
}

func (c *Cache) StoreFundingRates(symbol string, start, end time.Time, rates []FundingRate) error {
	dtos := make([]*FundingRateDTO, 0, len(rates))
	for _, rate := range rates {
		dtos = append(dtos, NewFundingRateDTO(rate))
	}

	return c.writeFile(c.fundingFile(symbol, start, end), &dtos)
}

func (c *Cache) LoadOpenInterest(symbol, period string, start, end time.Time) ([]OpenInterestPoint, bool, error) {
	path := c.openInterestFile(symbol, period, start, end)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Cache.LoadOpenInterest: %w", err)
	}
	defer f.Close()

	log.Infof("loading %s open interest from cache", symbol)

	var dtos []*OpenInterestDTO
	if err := gocsv.UnmarshalFile(f, &dtos); err != nil {
		return nil, false, fmt.Errorf("Cache.LoadOpenInterest: failed to unmarshal %s: %w", path, err)
	}

	points := make([]OpenInterestPoint, 0, len(dtos))
	for _, dto := range dtos {
		point, err := dto.ToModel()
		if err != nil {
			return nil, false, fmt.Errorf("Cache.LoadOpenInterest: %w", err)
		}
		points = append(points, point)
	}

	return points, true, nil
}

func (c *Cache) StoreOpenInterest(symbol, period string, start, end time.Time, points []OpenInterestPoint) error {
	dtos := make([]*OpenInterestDTO, 0, len(points))
	for _, point := range points {
		dtos = append(dtos, NewOpenInterestDTO(point))
	}

	return c.writeFile(c.openInterestFile(symbol, period, start, end), &dtos)
}

func (c *Cache) writeFile(path string, dtos interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("Cache.writeFile: failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(dtos, f); err != nil {
		return fmt.Errorf("Cache.writeFile: failed to marshal %s: %w", path, err)
	}

	return nil
}
