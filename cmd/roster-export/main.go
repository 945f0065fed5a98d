package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/okian/roster/internal/bootstrap"
	"github.com/okian/roster/internal/cli"
	"github.com/okian/roster/internal/config"
	"github.com/okian/roster/pkg/logger"
)

func main() {
	var (
		eventID    = flag.Int64("event", 0, "Event to export")
		teamID     = flag.Int64("team", 0, "Export only this team")
		outputDir  = flag.String("out", "", "Output directory (overrides output_dir)")
		configPath = flag.String("config", os.Getenv(config.EnvConfigFile), "YAML config file")
		verbose    = flag.Bool("verbose", false, "Print a line when each team starts rendering")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		cli.ShowHelp(os.Stdout)
		return
	}
	os.Exit(run(cli.Config{
		EventID:    *eventID,
		TeamID:     *teamID,
		OutputDir:  *outputDir,
		ConfigPath: *configPath,
		Verbose:    *verbose,
	}))
}

func run(opts cli.Config) int {
	_ = godotenv.Load()

	cfg, err := config.LoadFile(opts.ConfigPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return cli.ExitUsage
	}
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}
	opts.OutputDir = cfg.OutputDir

	// Progress goes to stdout; logs stay on stderr at warn unless asked for.
	level := "warn"
	if opts.Verbose {
		level = cfg.LogLevel
	}
	if err := logger.Configure(level, cfg.LogFormat, os.Stderr); err != nil {
		_ = logger.SetLevelString("warn")
	}

	// First SIGINT cancels the batch; in-flight documents still finish.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return cli.ExitFailed
	}
	defer stack.Close()

	_, code := cli.Run(ctx, stack.Service, opts, os.Stdout)
	return code
}
