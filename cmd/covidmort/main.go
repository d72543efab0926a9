package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/invertedv/covidmort/config"
	"github.com/invertedv/covidmort/df"
	"github.com/invertedv/covidmort/study"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// align flags
	matchCol string
	lag      int
	outFile  string

	// features table input of pca and fit
	tableFile string

	logger *zap.Logger
	cfg    *config.Config
	runID  string
)

var rootCmd = &cobra.Command{
	Use:   "covidmort",
	Short: "County COVID-19 mortality study",
	Long: `covidmort builds a per-county table of deaths after outbreak onset, hospital capacity,
mobility around onset and socio-economic covariates, reduces the covariates with PCA or AC-PCA
and fits an additive model of daily deaths per capita on them and the lagged mobility.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}

		var err error
		if logger, err = zc.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		runID = uuid.NewString()
		logger = logger.With(zap.String("run_id", runID))

		if cfg, err = loadConfig(); err != nil {
			return err
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the feature table, reduce the covariates and fit the model",
	RunE:  runStudy,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the per-county feature table from the latest snapshots",
	RunE:  buildFeatures,
}

var pcaCmd = &cobra.Command{
	Use:   "pca",
	Short: "Reduce the covariates of a feature table to principal components",
	RunE:  reduce,
}

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit the model to a daily feature table",
	RunE:  fit,
}

var alignCmd = &cobra.Command{
	Use:   "align [cause.csv] [effect.csv]",
	Short: "Align two date-column tables so each cause date is followed by its effect date lag days later",
	Args:  cobra.ExactArgs(2),
	RunE:  alignTables,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "covidmort.yaml", "Config file")

	pcaCmd.Flags().StringVar(&tableFile, "table", "", "Feature table CSV (default: the configured features output)")
	fitCmd.Flags().StringVar(&tableFile, "table", "", "Feature table CSV (default: the configured features output)")

	alignCmd.Flags().StringVar(&matchCol, "key", "FIPS", "Key column shared by both tables")
	alignCmd.Flags().IntVar(&lag, "lag", 0, "Days from cause to effect")
	alignCmd.Flags().StringVarP(&outFile, "out", "o", "aligned.csv", "Output file, relative to the output directory")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(pcaCmd)
	rootCmd.AddCommand(fitCmd)
	rootCmd.AddCommand(alignCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("config loaded", zap.String("path", configPath), zap.String("mode", c.Features.Mode),
		zap.String("raw_dir", c.Data.RawDir))

	return c, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newStudy() (*study.Study, error) {
	return study.New(cfg, logger, study.RunID(runID))
}

func runStudy(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := newStudy()
	if err != nil {
		return err
	}

	res, err := s.Run(ctx)
	if err != nil {
		return err
	}

	if res.Model != nil {
		fmt.Printf("fit %s model on %d county-days, run %s\n", res.Model.Family, res.Model.Rows, res.Model.RunID)
	}

	return nil
}

func buildFeatures(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := newStudy()
	if err != nil {
		return err
	}

	table, rep, err := s.Features(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%d of %d counties retained (%d columns)\n", rep.Retained, rep.Counties, table.ColumnCount())
	fmt.Printf("  no onset %d, short follow-up %d, incomplete window %d, decreasing %d, missing covariates %d, outliers %d\n",
		rep.NoOnset, rep.ShortFollowUp, rep.IncompleteWindow, rep.Decreasing, rep.MissingCovariates, rep.Outliers)

	return nil
}

func loadTable() (*df.DF, error) {
	path := tableFile
	if path == "" {
		path = cfg.Path(cfg.Output.Features)
	}

	f, err := df.NewFiles()
	if err != nil {
		return nil, err
	}

	return f.Load(path)
}

func reduce(cmd *cobra.Command, args []string) error {
	table, err := loadTable()
	if err != nil {
		return err
	}

	s, err := newStudy()
	if err != nil {
		return err
	}

	_, res, err := s.Reduce(table)
	if err != nil {
		return err
	}

	for ind, name := range res.Names {
		fmt.Printf("%s: eigenvalue %.4f, variance ratio %.4f\n", name, res.Values[ind], res.Ratios[ind])
	}

	return nil
}

func fit(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	table, err := loadTable()
	if err != nil {
		return err
	}

	s, err := newStudy()
	if err != nil {
		return err
	}

	reduced, _, err := s.Reduce(table)
	if err != nil {
		return err
	}

	d, m, err := s.Fit(ctx, reduced)
	if err != nil {
		return err
	}

	fmt.Printf("fit %s model with %d coefficients on %d county-days, run %s\n", m.Family, len(m.Params), d.Rows(),
		m.RunID)

	return nil
}

func alignTables(cmd *cobra.Command, args []string) error {
	s, err := newStudy()
	if err != nil {
		return err
	}

	res, err := s.Align(args[0], args[1], matchCol, lag, outFile)
	if err != nil {
		return err
	}

	fmt.Printf("cause %s .. %s, effect %s .. %s, %d dates, %d filled\n", res.CauseDates[0],
		res.CauseDates[len(res.CauseDates)-1], res.EffectDates[0], res.EffectDates[len(res.EffectDates)-1],
		len(res.Offsets), res.Filled)

	return nil
}
