// Package main provides the traffic light simulator entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/trafficlight/internal/app/simulation"
	"github.com/osa030/trafficlight/internal/infra/config"
	"github.com/osa030/trafficlight/internal/infra/logger"
)

var (
	app        = kingpin.New("trafficlight", "Traffic light phase simulator")
	configPath = app.Flag("config", "Path to config file (defaults are used when empty)").Envar("TRAFFICLIGHT_CONFIG").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// run command (default)
	runCmd      = app.Command("run", "Run the lights until interrupted").Default()
	runDuration = runCmd.Flag("duration", "Stop after this long (overrides simulation.duration_sec)").Duration()

	// check-config command
	checkConfigCmd = app.Command("check-config", "Validate the config and print the resolved values")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if command == checkConfigCmd.FullCommand() {
		if err := printConfig(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to print config: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Initialize logger, command-line flags win over the config file
	loggerConfig := logger.Config{
		Output: cfg.Logging.Output,
		Level:  cfg.Logging.Level,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Simulation error: %v", err)
		closer.Close()
		os.Exit(1)
	}
}

// run executes the simulation until a signal arrives or the configured duration elapses.
func run(cfg *config.Config) error {
	opts, err := simulation.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid light config: %w", err)
	}

	runner, err := simulation.NewRunner(opts)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	duration := cfg.Simulation.Duration()
	if *runDuration > 0 {
		duration = *runDuration
	}
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
		zlog.Info().Msgf("Running %d light(s) for %v", len(opts.Lights), duration)
	} else {
		zlog.Info().Msgf("Running %d light(s) until interrupted", len(opts.Lights))
	}

	start := time.Now()
	summary, err := runner.Run(ctx)
	for _, l := range summary.Lights {
		zlog.Info().Msgf("%s (%s): phase=%s transitions=%d", l.Name, l.Label, l.Phase, l.Transitions)
	}
	zlog.Info().Msgf("Simulation stopped after %v: crossings=%d", time.Since(start).Round(time.Millisecond), summary.Crossings)

	return err
}

// printConfig prints the resolved configuration as YAML.
func printConfig(cfg *config.Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
