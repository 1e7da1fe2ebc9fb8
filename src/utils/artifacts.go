package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/crypto-backtest/src/models"
	"github.com/jiaming2012/crypto-backtest/src/performance"
)

const (
	TradesFilename  = "trades.csv"
	EquityFilename  = "equity.csv"
	MetricsFilename = "metrics.json"
	RunFilename     = "run.json"
)

// RunInfo echoes what a run was configured with, so a results directory can
// be read without the original config file.
type RunInfo struct {
	Tag           string    `json:"tag"`
	CreatedAt     time.Time `json:"created_at"`
	Strategies    []string  `json:"strategies"`
	Symbols       []string  `json:"symbols"`
	Interval      string    `json:"interval"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	BarsProcessed int       `json:"bars_processed"`
	InitialEquity float64   `json:"initial_equity"`
	FinalEquity   float64   `json:"final_equity"`
}

type TradeRecordDTO struct {
	PositionID     string `csv:"position_id"`
	Symbol         string `csv:"symbol"`
	StrategyTag    string `csv:"strategy_tag"`
	Direction      string `csv:"direction"`
	Leverage       string `csv:"leverage"`
	EntryTimestamp string `csv:"entry_timestamp"`
	ExitTimestamp  string `csv:"exit_timestamp"`
	EntryPrice     string `csv:"entry_price"`
	ExitPrice      string `csv:"exit_price"`
	Quantity       string `csv:"quantity"`
	GrossPnL       string `csv:"gross_pnl"`
	Fees           string `csv:"fees"`
	FundingPaid    string `csv:"funding_paid"`
	NetPnL         string `csv:"net_pnl"`
	ExitReason     string `csv:"exit_reason"`
}

func NewTradeRecordDTO(record *models.TradeRecord) *TradeRecordDTO {
	return &TradeRecordDTO{
		PositionID:     record.PositionID.String(),
		Symbol:         record.Symbol,
		StrategyTag:    record.StrategyTag,
		Direction:      string(record.Direction),
		Leverage:       formatFloat(record.Leverage),
		EntryTimestamp: record.EntryTimestamp.UTC().Format(time.RFC3339),
		ExitTimestamp:  record.ExitTimestamp.UTC().Format(time.RFC3339),
		EntryPrice:     formatFloat(record.EntryPrice),
		ExitPrice:      formatFloat(record.ExitPrice),
		Quantity:       formatFloat(record.Quantity),
		GrossPnL:       formatFloat(record.GrossPnL),
		Fees:           formatFloat(record.Fees),
		FundingPaid:    formatFloat(record.FundingPaid),
		NetPnL:         formatFloat(record.NetPnL()),
		ExitReason:     string(record.ExitReason),
	}
}

// ToModel rebuilds the trade record. The net pnl column is derived on write
// and ignored here.
func (dto *TradeRecordDTO) ToModel() (*models.TradeRecord, error) {
	positionID, err := uuid.Parse(dto.PositionID)
	if err != nil {
		return nil, fmt.Errorf("TradeRecordDTO.ToModel: failed to parse position id: %w", err)
	}

	entryTimestamp, err := time.Parse(time.RFC3339, dto.EntryTimestamp)
	if err != nil {
		return nil, fmt.Errorf("TradeRecordDTO.ToModel: failed to parse entry timestamp: %w", err)
	}

	exitTimestamp, err := time.Parse(time.RFC3339, dto.ExitTimestamp)
	if err != nil {
		return nil, fmt.Errorf("TradeRecordDTO.ToModel: failed to parse exit timestamp: %w", err)
	}

	fields := map[string]string{
		"leverage":     dto.Leverage,
		"entry price":  dto.EntryPrice,
		"exit price":   dto.ExitPrice,
		"quantity":     dto.Quantity,
		"gross pnl":    dto.GrossPnL,
		"fees":         dto.Fees,
		"funding paid": dto.FundingPaid,
	}

	parsed := map[string]float64{}
	for name, value := range fields {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("TradeRecordDTO.ToModel: failed to parse %s: %w", name, err)
		}
		parsed[name] = v
	}

	return &models.TradeRecord{
		PositionID:     positionID,
		Symbol:         dto.Symbol,
		StrategyTag:    dto.StrategyTag,
		Direction:      models.Direction(dto.Direction),
		Leverage:       parsed["leverage"],
		EntryTimestamp: entryTimestamp,
		ExitTimestamp:  exitTimestamp,
		EntryPrice:     parsed["entry price"],
		ExitPrice:      parsed["exit price"],
		Quantity:       parsed["quantity"],
		GrossPnL:       parsed["gross pnl"],
		Fees:           parsed["fees"],
		FundingPaid:    parsed["funding paid"],
		ExitReason:     models.ExitReason(dto.ExitReason),
	}, nil
}

type EquityPointDTO struct {
	Timestamp  string `csv:"timestamp"`
	Realized   string `csv:"realized"`
	Unrealized string `csv:"unrealized"`
	Equity     string `csv:"equity"`
	Peak       string `csv:"peak"`
	Drawdown   string `csv:"drawdown"`
	OpenCount  string `csv:"open_positions"`
}

func NewEquityPointDTO(point models.EquityPoint) *EquityPointDTO {
	return &EquityPointDTO{
		Timestamp:  point.Timestamp.UTC().Format(time.RFC3339),
		Realized:   formatFloat(point.Realized),
		Unrealized: formatFloat(point.Unrealized),
		Equity:     formatFloat(point.Equity),
		Peak:       formatFloat(point.Peak),
		Drawdown:   formatFloat(point.Drawdown),
		OpenCount:  strconv.Itoa(point.OpenCount),
	}
}

func (dto *EquityPointDTO) ToModel() (models.EquityPoint, error) {
	timestamp, err := time.Parse(time.RFC3339, dto.Timestamp)
	if err != nil {
		return models.EquityPoint{}, fmt.Errorf("EquityPointDTO.ToModel: failed to parse timestamp: %w", err)
	}

	fields := map[string]string{
		"realized":   dto.Realized,
		"unrealized": dto.Unrealized,
		"equity":     dto.Equity,
		"peak":       dto.Peak,
		"drawdown":   dto.Drawdown,
	}

	parsed := map[string]float64{}
	for name, value := range fields {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return models.EquityPoint{}, fmt.Errorf("EquityPointDTO.ToModel: failed to parse %s: %w", name, err)
		}
		parsed[name] = v
	}

	openCount, err := strconv.Atoi(dto.OpenCount)
	if err != nil {
		return models.EquityPoint{}, fmt.Errorf("EquityPointDTO.ToModel: failed to parse open positions: %w", err)
	}

	return models.EquityPoint{
		Timestamp:  timestamp,
		Realized:   parsed["realized"],
		Unrealized: parsed["unrealized"],
		Equity:     parsed["equity"],
		Peak:       parsed["peak"],
		Drawdown:   parsed["drawdown"],
		OpenCount:  openCount,
	}, nil
}

// WriteRunArtifacts lays down one results directory for the run: the config
// echo, the metrics summary, the trade ledger and the equity curve. It
// returns the created directory.
func WriteRunArtifacts(resultsDir string, info RunInfo, trades []*models.TradeRecord, curve models.EquityCurve, metrics *performance.Metrics) (string, error) {
	runDir := filepath.Join(resultsDir, info.Tag)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("WriteRunArtifacts: failed to create %s: %w", runDir, err)
	}

	if err := writeJSONFile(filepath.Join(runDir, RunFilename), info); err != nil {
		return "", fmt.Errorf("WriteRunArtifacts: %w", err)
	}

	if err := writeJSONFile(filepath.Join(runDir, MetricsFilename), metrics); err != nil {
		return "", fmt.Errorf("WriteRunArtifacts: %w", err)
	}

	tradeDTOs := make([]*TradeRecordDTO, 0, len(trades))
	for _, record := range trades {
		tradeDTOs = append(tradeDTOs, NewTradeRecordDTO(record))
	}
	if err := writeCSVFile(filepath.Join(runDir, TradesFilename), &tradeDTOs); err != nil {
		return "", fmt.Errorf("WriteRunArtifacts: %w", err)
	}

	pointDTOs := make([]*EquityPointDTO, 0, len(curve))
	for _, point := range curve {
		pointDTOs = append(pointDTOs, NewEquityPointDTO(point))
	}
	if err := writeCSVFile(filepath.Join(runDir, EquityFilename), &pointDTOs); err != nil {
		return "", fmt.Errorf("WriteRunArtifacts: %w", err)
	}

	log.Infof("wrote run artifacts to %s", runDir)

	return runDir, nil
}

// ReadRunInfo reads the config echo from a run directory.
func ReadRunInfo(runDir string) (*RunInfo, error) {
	var info RunInfo
	if err := readJSONFile(filepath.Join(runDir, RunFilename), &info); err != nil {
		return nil, fmt.Errorf("ReadRunInfo: %w", err)
	}

	return &info, nil
}

// ReadMetrics reads the performance summary from a run directory.
func ReadMetrics(runDir string) (*performance.Metrics, error) {
	var metrics performance.Metrics
	if err := readJSONFile(filepath.Join(runDir, MetricsFilename), &metrics); err != nil {
		return nil, fmt.Errorf("ReadMetrics: %w", err)
	}

	return &metrics, nil
}

// ReadTradeRecords reads the trade ledger from a run directory.
func ReadTradeRecords(runDir string) ([]*models.TradeRecord, error) {
	file, err := os.Open(filepath.Join(runDir, TradesFilename))
	if err != nil {
		return nil, fmt.Errorf("ReadTradeRecords: %w", err)
	}
	defer file.Close()

	var dtos []*TradeRecordDTO
	if err := gocsv.UnmarshalFile(file, &dtos); err != nil {
		return nil, fmt.Errorf("ReadTradeRecords: failed to unmarshal %s: %w", file.Name(), err)
	}

	trades := make([]*models.TradeRecord, 0, len(dtos))
	for _, dto := range dtos {
		record, err := dto.ToModel()
		if err != nil {
			return nil, fmt.Errorf("ReadTradeRecords: %w", err)
		}
		trades = append(trades, record)
	}

	return trades, nil
}

// ReadEquityCurve reads the equity curve from a run directory.
func ReadEquityCurve(runDir string) (models.EquityCurve, error) {
	file, err := os.Open(filepath.Join(runDir, EquityFilename))
	if err != nil {
		return nil, fmt.Errorf("ReadEquityCurve: %w", err)
	}
	defer file.Close()

	var dtos []*EquityPointDTO
	if err := gocsv.UnmarshalFile(file, &dtos); err != nil {
		return nil, fmt.Errorf("ReadEquityCurve: failed to unmarshal %s: %w", file.Name(), err)
	}

	curve := make(models.EquityCurve, 0, len(dtos))
	for _, dto := range dtos {
		point, err := dto.ToModel()
		if err != nil {
			return nil, fmt.Errorf("ReadEquityCurve: %w", err)
		}
		curve = append(curve, point)
	}

	return curve, nil
}

func writeJSONFile(path string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func readJSONFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return nil
}

func writeCSVFile(path string, dtos interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(dtos, file); err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
