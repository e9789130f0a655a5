package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/moznion/go-optional"
	"github.com/quantfold/replay/internal/backtest"
	"github.com/quantfold/replay/internal/logger"
	"github.com/quantfold/replay/internal/pricestore"
	"github.com/quantfold/replay/internal/types"
	"github.com/quantfold/replay/internal/version"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// progressObserver drives a terminal progress bar from engine callbacks, one
// tick per valuation date.
type progressObserver struct {
	bar    *progressbar.ProgressBar
	trades int
}

func (o *progressObserver) OnTrade(record types.TradeRecord) {
	o.trades++
	o.bar.Describe(fmt.Sprintf("Replaying signals (%d trades)", o.trades))
}

func (o *progressObserver) OnValuation(point types.EquityPoint) {
	o.bar.Add(1)
}

func loadConfig(path string) (backtest.Config, error) {
	if path == "" {
		return backtest.DefaultConfig(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return backtest.Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	config := backtest.DefaultConfig()
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return backtest.Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// loadBenchmark turns an optional single-symbol benchmark bar file into a
// daily return series.
func loadBenchmark(path string) (optional.Option[[]float64], error) {
	if path == "" {
		return optional.None[[]float64](), nil
	}

	returns, err := backtest.LoadBenchmarkCSV(path)
	if err != nil {
		return optional.None[[]float64](), err
	}

	return optional.Some(returns), nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	config, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	prices := pricestore.NewStore()
	if err := prices.LoadCSV(cmd.String("prices")); err != nil {
		return err
	}

	signals, err := backtest.LoadSignalsCSV(cmd.String("signals"))
	if err != nil {
		return err
	}

	benchmark, err := loadBenchmark(cmd.String("benchmark"))
	if err != nil {
		return err
	}

	engine, err := backtest.NewEngine(config, appLogger)
	if err != nil {
		return err
	}

	store, err := backtest.NewTradeStore(appLogger)
	if err != nil {
		return fmt.Errorf("failed to open trade store: %w", err)
	}
	defer store.Close()

	if err := store.Initialize(); err != nil {
		return err
	}

	engine.AttachStore(store)

	bar := progressbar.Default(int64(len(prices.Dates())))
	bar.Describe("Replaying signals")
	engine.SetObserver(&progressObserver{bar: bar})

	if err := engine.Run(signals, prices); err != nil {
		return err
	}

	report := engine.Report(benchmark)
	outputDir := cmd.String("output")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	reportPath := filepath.Join(outputDir, "metrics.yaml")
	if err := types.WriteMetricsReport(reportPath, report); err != nil {
		return err
	}

	if err := store.Write(outputDir); err != nil {
		return err
	}

	appLogger.Info("Backtest complete",
		zap.String("report", reportPath),
		zap.Int("trades", len(engine.Trades())),
		zap.Float64("total_return", report.Performance.TotalReturn),
		zap.Float64("sharpe_ratio", report.Performance.SharpeRatio),
		zap.Float64("max_drawdown", report.Performance.MaxDrawdown),
	)

	return nil
}

func schemaAction(ctx context.Context, cmd *cli.Command) error {
	config := backtest.Config{}

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "replay",
		Usage:   "Replay trading signals against historical bars and report performance",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a backtest from signal and price CSV files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the backtest config YAML. Defaults apply when omitted.",
					},
					&cli.StringFlag{
						Name:     "prices",
						Aliases:  []string{"p"},
						Usage:    "Path to the historical bar CSV",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "signals",
						Aliases:  []string{"s"},
						Usage:    "Path to the signal stream CSV",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "benchmark",
						Aliases: []string{"b"},
						Usage:   "Optional benchmark bar CSV for beta and correlation",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory for the metrics report and trade log",
						Value:   "results",
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the backtest config",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
