package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine"
	engine_v1 "github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-range-backtest/internal/logger"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/rxtech-lab/argo-range-backtest/internal/version"
	"github.com/rxtech-lab/argo-range-backtest/pkg/publish"
	"github.com/rxtech-lab/argo-range-backtest/pkg/publish/postgres"
	s3publish "github.com/rxtech-lab/argo-range-backtest/pkg/publish/s3"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

const (
	schemaName       = "backtest-engine-v1-config.json"
	sampleConfigName = "backtest-engine-v1-config.yaml"
)

// runAction loads the configuration, runs the sweep over the data file and
// writes the results.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataPath := cmd.String("data")
	resultsFolder := cmd.String("results")

	config, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if workers := cmd.Int("workers"); workers > 0 {
		config, err = overrideWorkers(config, int(workers))
		if err != nil {
			return err
		}
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	backtest := engine_v1.NewBacktestEngineV1()
	if err := backtest.Initialize(string(config)); err != nil {
		return err
	}

	ds, err := datasource.NewDataSource(":memory:", appLogger)
	if err != nil {
		return err
	}
	defer ds.Close()

	if err := backtest.SetDataSource(ds); err != nil {
		return err
	}

	if err := backtest.SetDataPath(dataPath); err != nil {
		return err
	}

	if err := backtest.SetResultsFolder(resultsFolder); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onBacktestStart := engine.OnBacktestStartCallback(func(totalPoints int, totalBars int) error {
		appLogger.Info("Starting sweep", zap.Int("points", totalPoints), zap.Int("bars", totalBars))
		bar = progressbar.NewOptions(totalPoints,
			progressbar.OptionSetDescription(fmt.Sprintf("Backtesting %s", filepath.Base(dataPath))),
			progressbar.OptionShowCount(),
		)

		return nil
	})
	onRunEnd := engine.OnRunEndCallback(func(pointIndex int, key string, record types.PerformanceRecord) {
		if bar != nil {
			_ = bar.Add(1)
		}
	})
	onBacktestEnd := engine.OnBacktestEndCallback(func(err error) {
		if bar != nil {
			_ = bar.Finish()
		}
	})

	err = backtest.Run(ctx, engine.LifecycleCallbacks{
		OnBacktestStart: &onBacktestStart,
		OnBacktestEnd:   &onBacktestEnd,
		OnRunEnd:        &onRunEnd,
	})
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	results := backtest.Results()
	if len(results) > 0 {
		best := results[0]
		fmt.Printf("\nBest: %s (trades %d, win rate %.2f%%, net %.2f pips)\n",
			best.Key, best.TotalCount, best.WinRate*100, best.NetPips)
	}

	return publishResults(ctx, publishOptionsFrom(cmd), backtest.ResultFolder(), appLogger)
}

// publishOptions selects the stores a finished run is sent to.
type publishOptions struct {
	S3          s3publish.ClientConfig
	PostgresDSN string
}

func publishOptionsFrom(cmd *cli.Command) publishOptions {
	return publishOptions{
		S3: s3publish.ClientConfig{
			Endpoint:       cmd.String("s3-endpoint"),
			Region:         cmd.String("s3-region"),
			Bucket:         cmd.String("s3-bucket"),
			Prefix:         cmd.String("s3-prefix"),
			ForcePathStyle: cmd.Bool("s3-path-style"),
		},
		PostgresDSN: cmd.String("postgres-dsn"),
	}
}

// newPublishers creates a publisher for every configured store.
func newPublishers(ctx context.Context, options publishOptions, log *logger.Logger) ([]publish.Publisher, error) {
	var publishers []publish.Publisher

	if options.S3.Bucket != "" {
		publisher, err := s3publish.New(ctx, options.S3, log)
		if err != nil {
			return nil, err
		}

		publishers = append(publishers, publisher)
	}

	if options.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, options.PostgresDSN)
		if err != nil {
			closePublishers(publishers)

			return nil, err
		}

		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			closePublishers(publishers)

			return nil, err
		}

		publishers = append(publishers, postgres.NewRecordStore(pool, log))
	}

	return publishers, nil
}

func closePublishers(publishers []publish.Publisher) {
	for _, publisher := range publishers {
		_ = publisher.Close()
	}
}

// publishResults sends the report in folder to every configured store.
func publishResults(ctx context.Context, options publishOptions, folder string, log *logger.Logger) error {
	publishers, err := newPublishers(ctx, options, log)
	if err != nil {
		return fmt.Errorf("failed to create publishers: %w", err)
	}

	if len(publishers) == 0 {
		return nil
	}
	defer closePublishers(publishers)

	report, err := types.ReadReport(filepath.Join(folder, engine_v1.ReportFileName))
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}

	if err := publish.All(ctx, publishers, folder, report); err != nil {
		return fmt.Errorf("failed to publish results: %w", err)
	}

	log.Info("Results published", zap.String("run", report.ID), zap.Int("stores", len(publishers)))

	return nil
}

// schemaAction writes the JSON schema and, when missing, a sample configuration.
func schemaAction(_ context.Context, cmd *cli.Command) error {
	output := cmd.String("output")

	config := engine_v1.EmptyConfig()

	schemaJSON, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if err := os.MkdirAll(output, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	schemaPath := filepath.Join(output, schemaName)
	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0644); err != nil {
		return fmt.Errorf("failed to write schema to file: %w", err)
	}

	log.Printf("Schema successfully generated at %s", schemaPath)

	sampleConfigPath := filepath.Join(output, sampleConfigName)
	if _, err := os.Stat(sampleConfigPath); os.IsNotExist(err) {
		yamlBytes, err := yaml.Marshal(sampleConfig())
		if err != nil {
			return fmt.Errorf("failed to marshal sample config to yaml: %w", err)
		}

		yamlBytes = append([]byte("# yaml-language-server: $schema="+schemaName+"\n"), yamlBytes...)

		if err := os.WriteFile(sampleConfigPath, yamlBytes, 0644); err != nil {
			return fmt.Errorf("failed to write sample config to file: %w", err)
		}

		log.Printf("Sample config successfully generated at %s", sampleConfigPath)
	}

	return nil
}

// validateAction checks a configuration file without running it.
func validateAction(_ context.Context, cmd *cli.Command) error {
	content, err := os.ReadFile(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var config engine_v1.BacktestEngineV1Config
	if err := yaml.Unmarshal(content, &config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return err
	}

	sweep, err := engine_v1.NewSweep(config)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "Configuration is valid: %d points\n", sweep.Len())

	return nil
}

// overrideWorkers replaces the workers setting of a YAML configuration.
func overrideWorkers(config []byte, workers int) ([]byte, error) {
	var document yaml.MapSlice
	if err := yaml.Unmarshal(config, &document); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	replaced := false

	for i, item := range document {
		if item.Key == "workers" {
			document[i].Value = workers
			replaced = true
		}
	}

	if !replaced {
		document = append(document, yaml.MapItem{Key: "workers", Value: workers})
	}

	return yaml.Marshal(document)
}

func sampleConfig() engine_v1.BacktestEngineV1Config {
	config := engine_v1.EmptyConfig()
	config.Version = version.GetVersion()
	config.Symbols = []string{"USDJPY"}
	config.Timeframes = []string{"5m"}
	config.TechnicalIndicator = "sma"
	config.TrailStop = true
	config.ProfitLoss = engine_v1.ProfitLossConfig{Min: 10, Max: 50, Increase: 10}
	config.DirectionParameters = []engine_v1.DirectionParameter{
		{
			Name: "sma",
			SelectColumns: map[string][]string{
				"5m": {"sma_diff"},
			},
			Ranges: map[string]engine_v1.ColumnRange{
				"sma_diff": {
					Range: &engine_v1.RangeConfig{Min: 0, Max: 100, Split: 4},
				},
			},
		},
	}

	return config
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "backtest",
		Usage:   "Sweep range-rule configurations over historical FX data",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a sweep and write the results",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the engine configuration (YAML)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to the market data file (parquet or csv)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "results",
						Aliases: []string{"r"},
						Usage:   "Path to the results directory",
						Value:   "results",
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Points simulated in parallel. Overrides the configuration when set",
					},
					&cli.StringFlag{
						Name:    "s3-bucket",
						Usage:   "Upload the result files to this bucket",
						Sources: cli.EnvVars("BACKTEST_S3_BUCKET"),
					},
					&cli.StringFlag{
						Name:    "s3-prefix",
						Usage:   "Key prefix of the uploaded result files",
						Sources: cli.EnvVars("BACKTEST_S3_PREFIX"),
					},
					&cli.StringFlag{
						Name:    "s3-region",
						Usage:   "Region of the bucket",
						Sources: cli.EnvVars("BACKTEST_S3_REGION", "AWS_REGION"),
					},
					&cli.StringFlag{
						Name:    "s3-endpoint",
						Usage:   "Endpoint of an S3-compatible store",
						Sources: cli.EnvVars("BACKTEST_S3_ENDPOINT"),
					},
					&cli.BoolFlag{
						Name:    "s3-path-style",
						Usage:   "Use path-style bucket addressing",
						Sources: cli.EnvVars("BACKTEST_S3_PATH_STYLE"),
					},
					&cli.StringFlag{
						Name:    "postgres-dsn",
						Usage:   "Store the report records in this PostgreSQL database",
						Sources: cli.EnvVars("BACKTEST_POSTGRES_DSN"),
					},
				},
				Action: runAction,
			},
			{
				Name:  "schema",
				Usage: "Generate the configuration JSON schema and a sample configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory",
						Value:   "config",
					},
				},
				Action: schemaAction,
			},
			{
				Name:  "validate",
				Usage: "Validate a configuration and print the number of points",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the engine configuration (YAML)",
						Required: true,
					},
				},
				Action: validateAction,
			},
		},
	}
}

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
