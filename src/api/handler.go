package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

var (
	store        *Store
	queryDecoder = schema.NewDecoder()
)

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func NewErrorResponse(errType string, message string) *errorResponse {
	return &errorResponse{
		Type: errType,
		Msg:  message,
	}
}

func setResponse(response interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("SetResponse: encode: %w", err)
	}

	return nil
}

func setErrorResponse(errType string, statusCode int, err error, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := NewErrorResponse(errType, err.Error())
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		return encodeErr
	}

	return nil
}

// TradeFilter narrows the trade ledger by query parameters.
type TradeFilter struct {
	Strategy string `schema:"strategy"`
	Symbol   string `schema:"symbol"`
	Reason   string `schema:"reason"`
	Limit    int    `schema:"limit"`
}

func (f TradeFilter) Apply(trades []*models.TradeRecord) []*models.TradeRecord {
	filtered := make([]*models.TradeRecord, 0, len(trades))
	for _, record := range trades {
		if f.Strategy != "" && record.StrategyTag != f.Strategy {
			continue
		}

		if f.Symbol != "" && record.Symbol != f.Symbol {
			continue
		}

		if f.Reason != "" && string(record.ExitReason) != f.Reason {
			continue
		}

		filtered = append(filtered, record)
	}

	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}

	return filtered
}

func handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	runs, err := store.ListRuns()
	if err != nil {
		setErrorResponse("handleRuns: failed to list runs", 500, err, w)
		return
	}

	if err := setResponse(runs, w); err != nil {
		setErrorResponse("handleRuns: failed to set response", 500, err, w)
		return
	}
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	tag := mux.Vars(r)["tag"]

	metrics, err := store.Metrics(tag)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			setErrorResponse("handleMetrics: run not found", 404, err, w)
			return
		}

		setErrorResponse("handleMetrics: failed to read metrics", 500, err, w)
		return
	}

	if err := setResponse(metrics, w); err != nil {
		setErrorResponse("handleMetrics: failed to set response", 500, err, w)
		return
	}
}

func handleEquity(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	tag := mux.Vars(r)["tag"]

	curve, err := store.Equity(tag)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			setErrorResponse("handleEquity: run not found", 404, err, w)
			return
		}

		setErrorResponse("handleEquity: failed to read equity curve", 500, err, w)
		return
	}

	if err := setResponse(curve, w); err != nil {
		setErrorResponse("handleEquity: failed to set response", 500, err, w)
		return
	}
}

func handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	tag := mux.Vars(r)["tag"]

	var filter TradeFilter
	if err := queryDecoder.Decode(&filter, r.URL.Query()); err != nil {
		setErrorResponse("handleTrades: failed to decode query", 400, err, w)
		return
	}

	trades, err := store.Trades(tag)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			setErrorResponse("handleTrades: run not found", 404, err, w)
			return
		}

		setErrorResponse("handleTrades: failed to read trades", 500, err, w)
		return
	}

	if err := setResponse(filter.Apply(trades), w); err != nil {
		setErrorResponse("handleTrades: failed to set response", 500, err, w)
		return
	}
}

// SetupHandler mounts the results routes on a subrouter, usually
// PathPrefix("/runs").
func SetupHandler(router *mux.Router, resultsDir string) {
	store = NewStore(resultsDir)
	queryDecoder.IgnoreUnknownKeys(true)

	router.HandleFunc("", handleRuns)
	router.HandleFunc("/{tag}/metrics", handleMetrics)
	router.HandleFunc("/{tag}/equity", handleEquity)
	router.HandleFunc("/{tag}/trades", handleTrades)
}
