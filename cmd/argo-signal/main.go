package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signal/internal/api"
	"github.com/rxtech-lab/argo-signal/internal/backtest"
	"github.com/rxtech-lab/argo-signal/internal/config"
	"github.com/rxtech-lab/argo-signal/internal/logger"
	"github.com/rxtech-lab/argo-signal/internal/notifier"
	"github.com/rxtech-lab/argo-signal/internal/ratelimit"
	"github.com/rxtech-lab/argo-signal/internal/scheduler"
	"github.com/rxtech-lab/argo-signal/internal/status"
	"github.com/rxtech-lab/argo-signal/internal/store"
	"github.com/rxtech-lab/argo-signal/internal/trading"
	"github.com/rxtech-lab/argo-signal/internal/types"
	"github.com/rxtech-lab/argo-signal/pkg/marketdata"
	"github.com/rxtech-lab/argo-signal/pkg/utils"
)

func main() {
	cmd := &cli.Command{
		Name:  "argo-signal",
		Usage: "Backtest trading strategies and monitor live signals",
		Commands: []*cli.Command{
			serveCommand(),
			backtestCommand(),
			schemaCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the signal monitoring API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg := config.DefaultConfig()

	if path := cmd.String("config"); path != "" {
		var err error

		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
	}

	l, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer l.Sync()

	st, err := store.NewDuckDBStore(cfg.Store.Path, l)
	if err != nil {
		return err
	}
	defer st.Close()

	provider, err := marketdata.NewProvider(
		marketdata.ProviderType(cfg.MarketData.Provider), cfg.MarketData.PolygonAPIKey)
	if err != nil {
		return err
	}

	hub := notifier.NewWebSocketHub(l)
	limiter := ratelimit.NewLimiter(st, l)
	tracker := status.NewTracker(st, l)
	sched := scheduler.NewScheduler(l)
	notifiers := notifier.NewMulti(notifier.NewLogNotifier(l), hub)

	service := trading.NewService(st, provider, limiter, tracker, sched, notifiers, l)
	defer service.Shutdown()

	if err := service.Resume(ctx); err != nil {
		return err
	}

	serveCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(service, hub, l)

	l.Info("starting server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("provider", cfg.MarketData.Provider),
		zap.String("store", cfg.Store.Path))

	return server.ListenAndServe(serveCtx, cfg.Server.Addr)
}

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Run a strategy over recent market data and write the results",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "symbol",
				Aliases:  []string{"s"},
				Usage:    "Symbol to backtest (repeatable)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Bar interval (1m, 5m, 15m, 1h, 4h, 1d, 1w)",
				Value:   "1d",
			},
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "Strategy type (macd_crossover or ma_crossover)",
				Value: string(types.StrategyTypeMACDCrossover),
			},
			&cli.FloatFlag{
				Name:  "capital",
				Usage: "Initial capital",
				Value: trading.DefaultInitialCapital,
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Market data provider (binance or polygon)",
				Value:   string(marketdata.ProviderBinance),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory for result YAML files",
				Value:   ".",
			},
		},
		Action: backtestAction,
	}
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	interval, err := types.ParseInterval(cmd.String("interval"))
	if err != nil {
		return err
	}

	strategyType := types.StrategyType(cmd.String("strategy"))
	if !strategyType.IsValid() {
		return fmt.Errorf("unsupported strategy type: %s", strategyType)
	}

	params, err := types.DefaultParams(strategyType, interval)
	if err != nil {
		return err
	}

	provider, err := marketdata.NewProvider(
		marketdata.ProviderType(cmd.String("provider")), os.Getenv("POLYGON_API_KEY"))
	if err != nil {
		return err
	}

	l, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer l.Sync()

	simulator := backtest.NewSimulator(l)
	symbols := cmd.StringSlice("symbol")

	bar := progressbar.NewOptions(len(symbols),
		progressbar.OptionSetDescription("Backtesting"),
		progressbar.OptionShowCount())

	for _, symbol := range symbols {
		bars, err := provider.GetRecentBars(ctx, symbol, interval, 500)
		if err != nil {
			return fmt.Errorf("failed to fetch bars for %s: %w", symbol, err)
		}

		cfg := types.StrategyConfig{
			ID:             symbol,
			Symbol:         symbol,
			Interval:       interval,
			StrategyType:   strategyType,
			Params:         params,
			InitialCapital: cmd.Float("capital"),
		}

		result, err := simulator.Run(cfg, bars)
		if err != nil {
			return fmt.Errorf("backtest failed for %s: %w", symbol, err)
		}

		outputPath := fmt.Sprintf("%s/%s_%s_%s.yaml", cmd.String("output"), symbol, strategyType, interval)
		if err := types.WriteBacktestResult(outputPath, result); err != nil {
			return err
		}

		bar.Add(1)

		fmt.Printf("\n%s: final portfolio %.2f, return %.2f%%, sharpe %.2f -> %s\n",
			symbol, result.FinalPortfolioValue, result.TotalReturnPercentage, result.SharpeRatio, outputPath)
	}

	bar.Finish()

	return nil
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of a strategy's parameters",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "strategy",
				Usage:    "Strategy type (macd_crossover or ma_crossover)",
				Required: true,
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			schema, err := utils.StrategyParamsSchema(types.StrategyType(cmd.String("strategy")))
			if err != nil {
				return err
			}

			fmt.Println(schema)

			return nil
		},
	}
}
