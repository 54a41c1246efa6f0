package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/iwvelando/end-of-trade/internal/config"
	"github.com/iwvelando/end-of-trade/internal/planner"
	"github.com/iwvelando/end-of-trade/internal/server"
	"github.com/iwvelando/end-of-trade/internal/solver"
	"github.com/iwvelando/end-of-trade/internal/store/memory"
	"github.com/iwvelando/end-of-trade/internal/store/sqlite"
	"github.com/iwvelando/end-of-trade/internal/takings"
	"github.com/iwvelando/end-of-trade/pkg/constants"
	"github.com/iwvelando/end-of-trade/pkg/output"
	"github.com/iwvelando/end-of-trade/pkg/validation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage: end-of-trade [flags] <command> [command flags]

commands:
  solve         build an exact till float from a count sheet
  redistribute  plan denomination moves between safe and till
  transfer      compare a counted safe against its target
  serve         run the HTTP API
`

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info" // Default to info level
	}

	// Parse log level
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	// Determine output format
	format := loggingConfig.Format
	if format == "" {
		format = "json" // Default to JSON for production
	}

	// Configure encoder
	var config zap.Config
	switch format {
	case "console":
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
	case "json":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	// Logs go to stderr unless a file is configured; stdout carries results.
	config.OutputPaths = []string{"stderr"}

	// Configure output file if specified
	if loggingConfig.OutputFile != "" {
		// Ensure the directory exists
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		// Test if we can create/write to the file
		if file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		} else {
			_ = file.Close()
		}

		config.OutputPaths = []string{loggingConfig.OutputFile}
		config.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return config.Build()
}

// loadConfiguration loads the engine configuration. A missing file at the
// default location yields the built-in defaults.
func loadConfiguration(path string) (*config.Configuration, error) {
	conf, err := config.LoadConfiguration(path)
	if err == nil {
		return conf, nil
	}
	if path == constants.DefaultConfigFile {
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return config.Default(), nil
		}
	}
	return nil, err
}

// openStore opens the record store selected by the configuration.
func openStore(conf *config.Configuration) (takings.Store, func() error, error) {
	switch conf.Store.Driver {
	case constants.StoreDriverSQLite:
		store, err := sqlite.New(conf.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return memory.New(), func() error { return nil }, nil
	}
}

func main() {
	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Load the config file to get logging configuration
	conf, err := loadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	// Initialize logging based on config and CLI override
	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Determine output format (CLI override takes precedence over config)
	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty // Default to pretty format
	}

	err = validation.ValidateOutputFormat(outputFormat)
	if err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	// Validate configuration and display any warnings
	warnings := conf.ValidateConfiguration()
	for _, warning := range warnings {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	app := &cli{logger: logger, conf: conf, outputFormat: outputFormat, stdout: os.Stdout}

	command, args := flag.Arg(0), flag.Args()[1:]
	switch command {
	case "solve":
		err = app.solve(args)
	case "redistribute":
		err = app.redistribute(args)
	case "transfer":
		err = app.transfer(args)
	case "serve":
		err = app.serve(args)
	default:
		flag.Usage()
		_ = logger.Sync()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed",
			zap.String("op", "main"),
			zap.String("command", command),
			zap.Error(err),
		)
		_ = logger.Sync()
		os.Exit(1)
	}
}

type cli struct {
	logger       *zap.Logger
	conf         *config.Configuration
	outputFormat string
	stdout       io.Writer
}

func (c *cli) solve(args []string) error {
	flags := flag.NewFlagSet("solve", flag.ContinueOnError)
	sheet := flags.String("available", "", "YAML count sheet of available denominations")
	targetFlag := flags.String("target", "", "target value (default floats.tillTarget)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	available, err := loadCountSheet(*sheet)
	if err != nil {
		return err
	}
	target, err := targetOrDefault(*targetFlag, c.conf.TillTarget())
	if err != nil {
		return err
	}

	res, err := solver.SolveDetailed(available, target)
	if err != nil {
		return err
	}
	c.logger.Info("optimal float calculated",
		zap.String("op", "main.solve"),
		zap.String("target", target.StringFixed(2)),
		zap.String("pass", string(res.Pass)),
	)

	switch c.outputFormat {
	case constants.OutputFormatCSV:
		output.CsvAllocation(c.stdout, res.Allocation)
	default:
		output.PrettyAllocation(c.stdout, res.Allocation)
	}
	return nil
}

func (c *cli) redistribute(args []string) error {
	flags := flag.NewFlagSet("redistribute", flag.ContinueOnError)
	safeSheet := flags.String("safe", "", "YAML count sheet of the safe")
	tillSheet := flags.String("till", "", "YAML count sheet of the till")
	safeTargetFlag := flags.String("safe-target", "", "safe target (default floats.safeTarget)")
	tillTargetFlag := flags.String("till-target", "", "till target (default floats.tillTarget)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	safe, err := loadCountSheet(*safeSheet)
	if err != nil {
		return err
	}
	till, err := loadCountSheet(*tillSheet)
	if err != nil {
		return err
	}
	safeTarget, err := targetOrDefault(*safeTargetFlag, c.conf.SafeTarget())
	if err != nil {
		return err
	}
	tillTarget, err := targetOrDefault(*tillTargetFlag, c.conf.TillTarget())
	if err != nil {
		return err
	}

	plan, err := planner.New(c.logger).Redistribute(safe, till, safeTarget, tillTarget)
	if err != nil {
		return err
	}
	if !plan.Exact {
		c.logger.Warn("till could not be made up exactly",
			zap.String("op", "main.redistribute"),
			zap.String("tillVariance", plan.TillVariance.StringFixed(2)),
		)
	}

	switch c.outputFormat {
	case constants.OutputFormatCSV:
		output.CsvPlan(c.stdout, plan)
	default:
		output.PrettyPlan(c.stdout, plan)
	}
	return nil
}

func (c *cli) transfer(args []string) error {
	flags := flag.NewFlagSet("transfer", flag.ContinueOnError)
	safeSheet := flags.String("safe", "", "YAML count sheet of the safe")
	targetFlag := flags.String("target", "", "safe target (default floats.safeTarget)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	safe, err := loadCountSheet(*safeSheet)
	if err != nil {
		return err
	}
	target, err := targetOrDefault(*targetFlag, c.conf.SafeTarget())
	if err != nil {
		return err
	}

	t, err := planner.SafeTransfer(safe, target)
	if err != nil {
		return err
	}

	switch c.outputFormat {
	case constants.OutputFormatCSV:
		output.CsvTransfer(c.stdout, t)
	default:
		output.PrettyTransfer(c.stdout, t)
	}
	return nil
}

func (c *cli) serve(args []string) error {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	serverConfig := flags.String("server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	address := flags.String("address", "", "listen address override")
	if err := flags.Parse(args); err != nil {
		return err
	}

	srvConf, err := server.LoadConfig(*serverConfig)
	if err != nil {
		return err
	}
	if *address != "" {
		srvConf.Address = *address
	}

	logger := c.logger
	if srvConf.Logging != (config.LoggingConfig{}) {
		logger, err = initializeLogger(srvConf.Logging, "")
		if err != nil {
			return err
		}
		defer func() {
			_ = logger.Sync()
		}()
	}

	store, closeStore, err := openStore(c.conf)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to close store",
				zap.String("op", "main.serve"),
				zap.Error(err),
			)
		}
	}()

	ledger := takings.NewLedger(store, logger,
		takings.WithPolicy(takings.Policy{VarianceWarning: c.conf.VarianceWarning()}))

	handler := server.NewHandler(logger, server.Options{
		Ledger:      ledger,
		Planner:     planner.New(logger),
		TillTarget:  c.conf.TillTarget(),
		SafeTarget:  c.conf.SafeTarget(),
		MaxBodySize: srvConf.BodySizeBytes(),
		Version:     version,
	})

	httpServer := &http.Server{Addr: srvConf.Address, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("op", "main.serve"),
			zap.String("address", srvConf.Address),
			zap.String("store", c.conf.Store.Driver),
			zap.String("version", version),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvConf.ShutdownTimeoutDuration())
	defer cancel()
	logger.Info("shutting down",
		zap.String("op", "main.serve"),
		zap.Duration("timeout", srvConf.ShutdownTimeoutDuration()),
	)
	return httpServer.Shutdown(shutdownCtx)
}
