package marketdata

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

// CandleDTO is the cached CSV form of one OHLCV bar.
type CandleDTO struct {
	Timestamp string `csv:"timestamp"`
	Open      string `csv:"open"`
	High      string `csv:"high"`
	Low       string `csv:"low"`
	Close     string `csv:"close"`
	Volume    string `csv:"volume"`
}

func NewCandleDTO(candle *models.Candle) *CandleDTO {
	return &CandleDTO{
		Timestamp: candle.Timestamp.UTC().Format(time.RFC3339),
		Open:      formatFloat(candle.Open),
		High:      formatFloat(candle.High),
		Low:       formatFloat(candle.Low),
		Close:     formatFloat(candle.Close),
		Volume:    formatFloat(candle.Volume),
	}
}

func (dto *CandleDTO) ToModel(symbol string) (*models.Candle, error) {
	timestamp, err := time.Parse(time.RFC3339, dto.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("CandleDTO.ToModel: failed to parse timestamp: %w", err)
	}

	open, err := strconv.ParseFloat(dto.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("CandleDTO.ToModel: failed to parse open: %w", err)
	}

	high, err := strconv.ParseFloat(dto.High, 64)
	if err != nil {
		return nil, fmt.Errorf("CandleDTO.ToModel: failed to parse high: %w", err)
	}

	low, err := strconv.ParseFloat(dto.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("CandleDTO.ToModel: failed to parse low: %w", err)
	}

	closePrice, err := strconv.ParseFloat(dto.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("CandleDTO.ToModel: failed to parse close: %w", err)
	}

	volume, err := strconv.ParseFloat(dto.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("CandleDTO.ToModel: failed to parse volume: %w", err)
	}

	return models.NewCandle(symbol, timestamp.UTC(), open, high, low, closePrice, volume), nil
}

// FundingRateDTO is the cached CSV form of one funding settlement.
type FundingRateDTO struct {
	Timestamp   string `csv:"timestamp"`
	FundingRate string `csv:"funding_rate"`
}

func NewFundingRateDTO(rate FundingRate) *FundingRateDTO {
	return &FundingRateDTO{
		Timestamp:   rate.Timestamp.UTC().Format(time.RFC3339),
		FundingRate: formatFloat(rate.Rate),
	}
}

func (dto *FundingRateDTO) ToModel() (FundingRate, error) {
	timestamp, err := time.Parse(time.RFC3339, dto.Timestamp)
	if err != nil {
		return FundingRate{}, fmt.Errorf("FundingRateDTO.ToModel: failed to parse timestamp: %w", err)
	}

	rate, err := strconv.ParseFloat(dto.FundingRate, 64)
	if err != nil {
		return FundingRate{}, fmt.Errorf("FundingRateDTO.ToModel: failed to parse rate: %w", err)
	}

	return FundingRate{Timestamp: timestamp.UTC(), Rate: rate}, nil
}

// OpenInterestDTO is the cached CSV form of one open-interest sample.
type OpenInterestDTO struct {
	Timestamp    string `csv:"timestamp"`
	OpenInterest string `csv:"open_interest"`
}

func NewOpenInterestDTO(point OpenInterestPoint) *OpenInterestDTO {
	return &OpenInterestDTO{
		Timestamp:    point.Timestamp.UTC().Format(time.RFC3339),
		OpenInterest: formatFloat(point.Value),
	}
}

func (dto *OpenInterestDTO) ToModel() (OpenInterestPoint, error) {
	timestamp, err := time.Parse(time.RFC3339, dto.Timestamp)
	if err != nil {
		return OpenInterestPoint{}, fmt.Errorf("OpenInterestDTO.ToModel: failed to parse timestamp: %w", err)
	}

	value, err := strconv.ParseFloat(dto.OpenInterest, 64)
	if err != nil {
		return OpenInterestPoint{}, fmt.Errorf("OpenInterestDTO.ToModel: failed to parse open interest: %w", err)
	}

	return OpenInterestPoint{Timestamp: timestamp.UTC(), Value: value}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
