package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kataras/go-events"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/crypto-backtest/src/marketdata"
	"github.com/jiaming2012/crypto-backtest/src/utils"
)

type RunArgs struct {
	Symbols          []string
	Interval         string
	Start            string
	End              string
	DataDir          string
	WithFunding      bool
	WithOpenInterest bool
}

type RunResult struct {
	CandlesBySymbol map[string]int
}

func subscribeProgressLogging() {
	events.On(marketdata.ChunkFetched, func(payload ...interface{}) {
		symbol, ok := payload[0].(string)
		if !ok {
			log.Errorf("ChunkFetched: expected string symbol, got %T", payload[0])
			return
		}

		kind, ok := payload[1].(string)
		if !ok {
			log.Errorf("ChunkFetched: expected string kind, got %T", payload[1])
			return
		}

		rows, ok := payload[2].(int)
		if !ok {
			log.Errorf("ChunkFetched: expected int rows, got %T", payload[2])
			return
		}

		log.Infof("%s: fetched %d %s rows", symbol, rows, kind)
	})

	events.On(marketdata.SeriesCached, func(payload ...interface{}) {
		symbol, ok := payload[0].(string)
		if !ok {
			log.Errorf("SeriesCached: expected string symbol, got %T", payload[0])
			return
		}

		kind, ok := payload[1].(string)
		if !ok {
			log.Errorf("SeriesCached: expected string kind, got %T", payload[1])
			return
		}

		rows, ok := payload[2].(int)
		if !ok {
			log.Errorf("SeriesCached: expected int rows, got %T", payload[2])
			return
		}

		log.Infof("%s: cached %d %s rows", symbol, rows, kind)
	})
}

func Run(args RunArgs) (RunResult, error) {
	ctx := context.Background()

	if err := utils.InitEnvironmentVariables(); err != nil {
		return RunResult{}, fmt.Errorf("failed to init environment variables: %w", err)
	}

	start, err := utils.ParseDate(args.Start)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to parse start: %w", err)
	}

	end, err := utils.ParseDate(args.End)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to parse end: %w", err)
	}

	// Binance rejects ranges that reach into the future.
	end = utils.GetMinTime(end, time.Now().UTC())

	dataDir := args.DataDir
	if dataDir == "" {
		dataDir = utils.EnvOrDefault("DATA_DIR", "data_cache")
	}

	cache, err := marketdata.NewCache(dataDir)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to open data cache: %w", err)
	}

	downloader := marketdata.NewDownloader(marketdata.NewBinanceClient(os.Getenv("BINANCE_FAPI_BASE_URL")), cache)

	subscribeProgressLogging()

	result := RunResult{CandlesBySymbol: map[string]int{}}

	for _, symbol := range args.Symbols {
		req := marketdata.Request{
			Symbol:           symbol,
			Interval:         args.Interval,
			Start:            start,
			End:              end,
			WithFunding:      args.WithFunding,
			WithOpenInterest: args.WithOpenInterest,
		}

		candles, err := downloader.Prepare(ctx, req)
		if err != nil {
			return RunResult{}, fmt.Errorf("failed to prepare %s: %w", symbol, err)
		}

		result.CandlesBySymbol[symbol] = len(candles)
	}

	return result, nil
}

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/fetch_market_data/main.go --symbols BTCUSDT,SOLUSDT --interval 1h --start 2024-01-01 --end 2024-06-01",
	Short: "Download Binance USDT-margined futures klines, funding rates and open interest into the local cache",
	Run: func(cmd *cobra.Command, args []string) {
		symbols, err := cmd.Flags().GetStringSlice("symbols")
		if err != nil {
			log.Fatalf("error getting symbols: %v", err)
		}

		interval, err := cmd.Flags().GetString("interval")
		if err != nil {
			log.Fatalf("error getting interval: %v", err)
		}

		start, err := cmd.Flags().GetString("start")
		if err != nil {
			log.Fatalf("error getting start: %v", err)
		}

		end, err := cmd.Flags().GetString("end")
		if err != nil {
			log.Fatalf("error getting end: %v", err)
		}

		dataDir, err := cmd.Flags().GetString("dataDir")
		if err != nil {
			log.Fatalf("error getting dataDir: %v", err)
		}

		withFunding, err := cmd.Flags().GetBool("funding")
		if err != nil {
			log.Fatalf("error getting funding: %v", err)
		}

		withOpenInterest, err := cmd.Flags().GetBool("openInterest")
		if err != nil {
			log.Fatalf("error getting openInterest: %v", err)
		}

		result, err := Run(RunArgs{
			Symbols:          symbols,
			Interval:         interval,
			Start:            start,
			End:              end,
			DataDir:          dataDir,
			WithFunding:      withFunding,
			WithOpenInterest: withOpenInterest,
		})

		if err != nil {
			log.Fatalf("fetch failed: %v", err)
		}

		for symbol, count := range result.CandlesBySymbol {
			log.Infof("%s: %d candles ready", symbol, count)
		}

		log.Info("Done")
	},
}

func main() {
	runCmd.PersistentFlags().StringSlice("symbols", []string{}, "Futures symbols to download, e.g. BTCUSDT,SOLUSDT.")
	runCmd.PersistentFlags().String("interval", "1h", "Kline interval, e.g. 1h or 4h.")
	runCmd.PersistentFlags().String("start", "", "Range start, e.g. 2024-01-01.")
	runCmd.PersistentFlags().String("end", "", "Range end, e.g. 2024-06-01.")
	runCmd.PersistentFlags().String("dataDir", "", "Cache directory. Defaults to the DATA_DIR environment variable.")
	runCmd.PersistentFlags().Bool("funding", true, "Also download funding rate history.")
	runCmd.PersistentFlags().Bool("openInterest", true, "Also download open interest history.")

	runCmd.MarkPersistentFlagRequired("symbols")
	runCmd.MarkPersistentFlagRequired("start")
	runCmd.MarkPersistentFlagRequired("end")

	runCmd.Execute()
}
