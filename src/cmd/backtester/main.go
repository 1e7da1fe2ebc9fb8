package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jiaming2012/crypto-backtest/src/backtest"
	"github.com/jiaming2012/crypto-backtest/src/eventpubsub"
	"github.com/jiaming2012/crypto-backtest/src/marketdata"
	"github.com/jiaming2012/crypto-backtest/src/models"
	"github.com/jiaming2012/crypto-backtest/src/performance"
	"github.com/jiaming2012/crypto-backtest/src/strategies"
	"github.com/jiaming2012/crypto-backtest/src/utils"
)

type AccountYAML struct {
	InitialEquity    float64 `yaml:"initial_equity"`
	RiskFraction     float64 `yaml:"risk_fraction"`
	MaxOpenPositions int     `yaml:"max_open_positions"`
	LeverageCap      float64 `yaml:"leverage_cap"`
	MinNotional      float64 `yaml:"min_notional"`
}

type FeesYAML struct {
	MakerRate    float64 `yaml:"maker_rate"`
	TakerRate    float64 `yaml:"taker_rate"`
	SlippageRate float64 `yaml:"slippage_rate"`
}

type EngineYAML struct {
	BreakevenAfterFirstTarget bool `yaml:"breakeven_after_first_target"`
	ApplyFundingCosts         bool `yaml:"apply_funding_costs"`
}

type DataYAML struct {
	Dir   string `yaml:"dir"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// SeriesYAML names the market data a strategy block replays over.
type SeriesYAML struct {
	Symbol           string `yaml:"symbol"`
	Interval         string `yaml:"interval"`
	WithFunding      bool   `yaml:"with_funding"`
	WithOpenInterest bool   `yaml:"with_open_interest"`
}

type FundingDivergenceYAML struct {
	SeriesYAML `yaml:",inline"`
	Params     *strategies.FundingDivergenceParams `yaml:"params"`
}

type SqueezeBreakoutYAML struct {
	SeriesYAML `yaml:",inline"`
	Params     *strategies.SqueezeBreakoutParams `yaml:"params"`
}

type MeanReversionYAML struct {
	SeriesYAML `yaml:",inline"`
	Params     *strategies.MeanReversionParams `yaml:"params"`
}

type StrategiesYAML struct {
	FundingDivergence *FundingDivergenceYAML `yaml:"funding_divergence"`
	SqueezeBreakout   *SqueezeBreakoutYAML   `yaml:"squeeze_breakout"`
	MeanReversion     *MeanReversionYAML     `yaml:"mean_reversion"`
}

type BacktestConfigYAML struct {
	Account    AccountYAML    `yaml:"account"`
	Fees       FeesYAML       `yaml:"fees"`
	Engine     EngineYAML     `yaml:"engine"`
	Data       DataYAML       `yaml:"data"`
	Strategies StrategiesYAML `yaml:"strategies"`
}

func (c *BacktestConfigYAML) engineConfig() backtest.Config {
	return backtest.Config{
		InitialEquity:             c.Account.InitialEquity,
		RiskFraction:              c.Account.RiskFraction,
		MaxOpenPositions:          c.Account.MaxOpenPositions,
		LeverageCap:               c.Account.LeverageCap,
		MinNotional:               c.Account.MinNotional,
		MakerFeeRate:              c.Fees.MakerRate,
		TakerFeeRate:              c.Fees.TakerRate,
		SlippageRate:              c.Fees.SlippageRate,
		BreakevenAfterFirstTarget: c.Engine.BreakevenAfterFirstTarget,
		ApplyFundingCosts:         c.Engine.ApplyFundingCosts,
	}
}

// strategyRun pairs a built signal source with the series it trades on.
type strategyRun struct {
	source backtest.SignalSource
	series SeriesYAML
}

func (c *BacktestConfigYAML) resolveRuns(requested string) ([]strategyRun, error) {
	var runs []strategyRun

	if block := c.Strategies.FundingDivergence; block != nil && matchesStrategy(requested, "funding-divergence") {
		params := strategies.DefaultFundingDivergenceParams()
		if block.Params != nil {
			params = *block.Params
		}

		runs = append(runs, strategyRun{source: strategies.NewFundingDivergence(params), series: block.SeriesYAML})
	}

	if block := c.Strategies.SqueezeBreakout; block != nil && matchesStrategy(requested, "squeeze-breakout") {
		params := strategies.DefaultSqueezeBreakoutParams()
		if block.Params != nil {
			params = *block.Params
		}

		runs = append(runs, strategyRun{source: strategies.NewSqueezeBreakout(params), series: block.SeriesYAML})
	}

	if block := c.Strategies.MeanReversion; block != nil && matchesStrategy(requested, "mean-reversion") {
		params := strategies.DefaultMeanReversionParams()
		if block.Params != nil {
			params = *block.Params
		}

		runs = append(runs, strategyRun{source: strategies.NewMeanReversion(params), series: block.SeriesYAML})
	}

	if len(runs) == 0 {
		return nil, fmt.Errorf("no configured strategy matches %q", requested)
	}

	return runs, nil
}

func matchesStrategy(requested, name string) bool {
	return requested == "" || requested == "all" || requested == name
}

func (s SeriesYAML) request(data DataYAML, download bool) (marketdata.Request, error) {
	start, err := utils.ParseDate(data.Start)
	if err != nil {
		return marketdata.Request{}, fmt.Errorf("failed to parse data start: %w", err)
	}

	end, err := utils.ParseDate(data.End)
	if err != nil {
		return marketdata.Request{}, fmt.Errorf("failed to parse data end: %w", err)
	}

	return marketdata.Request{
		Symbol:           s.Symbol,
		Interval:         s.Interval,
		Start:            start,
		End:              utils.GetMinTime(end, time.Now().UTC()),
		WithFunding:      s.WithFunding,
		WithOpenInterest: s.WithOpenInterest,
		Offline:          !download,
	}, nil
}

func subscribeProgressLogging() {
	eventpubsub.Init()

	eventpubsub.SubscribeSync(eventpubsub.BacktestStartedEvent, func(event *eventpubsub.BacktestStarted) {
		log.Infof("backtest started: strategies=%v symbols=%v initial equity=%.2f", event.Strategies, event.Symbols, event.InitialEquity)
	})

	eventpubsub.SubscribeSync(eventpubsub.SignalRejectedEvent, func(event *eventpubsub.SignalRejected) {
		log.Debugf("rejected %s signal on %s at %s: %s", event.Strategy, event.Symbol, event.Timestamp.Format(time.RFC3339), event.Reason)
	})

	eventpubsub.SubscribeSync(eventpubsub.TradeClosedEvent, func(record *models.TradeRecord) {
		log.Infof("closed %s %s %s: qty %.4f @ %.2f, net pnl %.2f (%s)", record.StrategyTag, record.Direction, record.Symbol, record.Quantity, record.ExitPrice, record.NetPnL(), record.ExitReason)
	})

	eventpubsub.SubscribeSync(eventpubsub.BacktestCompletedEvent, func(event *eventpubsub.BacktestCompleted) {
		log.Infof("backtest completed: %d bars, %d trades, final equity %.2f", event.BarsProcessed, event.Trades, event.FinalEquity)
	})
}

type RunArgs struct {
	ConfigFile string
	Strategy   string
	OutDir     string
	Download   bool
}

type RunResult struct {
	RunDirs []string
}

func Run(args RunArgs) (RunResult, error) {
	ctx := context.Background()

	if err := utils.InitEnvironmentVariables(); err != nil {
		return RunResult{}, fmt.Errorf("failed to init environment variables: %w", err)
	}

	bytes, err := os.ReadFile(args.ConfigFile)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to read config file %s: %w", args.ConfigFile, err)
	}

	var config BacktestConfigYAML
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return RunResult{}, fmt.Errorf("failed to unmarshal config file %s: %w", args.ConfigFile, err)
	}

	cfg := config.engineConfig()
	if err := cfg.Validate(); err != nil {
		return RunResult{}, fmt.Errorf("invalid account config: %w", err)
	}

	runs, err := config.resolveRuns(args.Strategy)
	if err != nil {
		return RunResult{}, err
	}

	dataDir := config.Data.Dir
	if dataDir == "" {
		dataDir = utils.EnvOrDefault("DATA_DIR", "data_cache")
	}

	cache, err := marketdata.NewCache(dataDir)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to open data cache: %w", err)
	}

	downloader := marketdata.NewDownloader(marketdata.NewBinanceClient(os.Getenv("BINANCE_FAPI_BASE_URL")), cache)

	subscribeProgressLogging()

	createdAt := time.Now().UTC()
	comparison := map[string]*performance.Metrics{}

	var runDirs []string

	for _, run := range runs {
		name := run.source.Name()

		req, err := run.series.request(config.Data, args.Download)
		if err != nil {
			return RunResult{}, fmt.Errorf("%s: %w", name, err)
		}

		candles, err := downloader.Prepare(ctx, req)
		if err != nil {
			return RunResult{}, fmt.Errorf("%s: failed to prepare market data: %w", name, err)
		}

		engine, err := backtest.NewEngine(cfg, []backtest.Binding{{Symbol: req.Symbol, Source: run.source}})
		if err != nil {
			return RunResult{}, fmt.Errorf("%s: %w", name, err)
		}

		result, err := engine.Run(ctx, []backtest.BarStream{backtest.NewSeriesStream(req.Symbol, candles)})
		if err != nil {
			return RunResult{}, fmt.Errorf("%s: %w", name, err)
		}

		metrics, err := performance.NewAnalyzer(cfg.InitialEquity).Analyze(result.Trades, result.EquityCurve)
		if err != nil {
			if errors.Is(err, performance.ErrNoTrades) {
				log.Warnf("%s produced no trades between %s and %s", name, req.Start.Format("2006-01-02"), req.End.Format("2006-01-02"))
				continue
			}

			return RunResult{}, fmt.Errorf("%s: %w", name, err)
		}

		metrics.Strategy = name
		comparison[name] = metrics

		fmt.Println(metrics.String())

		info := utils.RunInfo{
			Tag:           fmt.Sprintf("%s-%s", name, createdAt.Format("20060102-150405")),
			CreatedAt:     createdAt,
			Strategies:    []string{name},
			Symbols:       []string{req.Symbol},
			Interval:      req.Interval,
			Start:         req.Start,
			End:           req.End,
			BarsProcessed: result.BarsProcessed,
			InitialEquity: result.InitialEquity,
			FinalEquity:   result.FinalEquity,
		}

		runDir, err := utils.WriteRunArtifacts(args.OutDir, info, result.Trades, result.EquityCurve, metrics)
		if err != nil {
			return RunResult{}, fmt.Errorf("%s: failed to write artifacts: %w", name, err)
		}

		runDirs = append(runDirs, runDir)
	}

	if len(comparison) > 1 {
		fmt.Println(performance.CompareStrategies(comparison))
	}

	return RunResult{RunDirs: runDirs}, nil
}

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/backtester/main.go --config backtest-config.yaml --strategy all",
	Short: "Replays the configured strategies over cached Binance futures data and writes run artifacts.",
	Run: func(cmd *cobra.Command, args []string) {
		configFile, err := cmd.Flags().GetString("config")
		if err != nil {
			log.Fatalf("error getting config: %v", err)
		}

		strategy, err := cmd.Flags().GetString("strategy")
		if err != nil {
			log.Fatalf("error getting strategy: %v", err)
		}

		outDir, err := cmd.Flags().GetString("outDir")
		if err != nil {
			log.Fatalf("error getting outDir: %v", err)
		}

		download, err := cmd.Flags().GetBool("download")
		if err != nil {
			log.Fatalf("error getting download: %v", err)
		}

		result, err := Run(RunArgs{
			ConfigFile: configFile,
			Strategy:   strategy,
			OutDir:     outDir,
			Download:   download,
		})

		if err != nil {
			log.Fatalf("backtest failed: %v", err)
		}

		for _, runDir := range result.RunDirs {
			log.Infof("artifacts written to %s", runDir)
		}

		log.Info("Done")
	},
}

func main() {
	runCmd.PersistentFlags().String("config", "backtest-config.yaml", "Path to the backtest configuration file.")
	runCmd.PersistentFlags().String("strategy", "all", "Strategy to run: funding-divergence, squeeze-breakout, mean-reversion, or all.")
	runCmd.PersistentFlags().String("outDir", "results", "Directory run artifacts are written to.")
	runCmd.PersistentFlags().Bool("download", false, "Download missing market data from Binance instead of requiring a warm cache.")

	runCmd.Execute()
}
