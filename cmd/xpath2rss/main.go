package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/xpath2rss/pkg/config"
	"github.com/umputun/xpath2rss/pkg/fetch"
	"github.com/umputun/xpath2rss/pkg/runner"
)

// Opts with all CLI options
type Opts struct {
	Gentle bool `long:"gentle" description:"treat missing matches and network errors as nothing new"`
	Test   bool `long:"test" description:"print config, feed guids and xpath matches, change nothing"`
	DryRun bool `long:"dry-run" description:"print the updated feed instead of writing it"`

	Args struct {
		Config string `positional-arg-name:"config" description:"config file, yaml or ini"`
	} `positional-args:"yes"`

	Verbose bool `short:"v" long:"verbose" description:"verbose mode"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[--gentle|--test|--dry-run] [OPTIONS] <config>"
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Verbose, opts.Debug, opts.NoColor)
	lgr.Printf("[DEBUG] xpath2rss version %s", revision)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, opts, os.Stdout)
	cancel()

	if err != nil {
		lgr.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts Opts, stdout io.Writer) error {
	mode, err := runMode(opts)
	if err != nil {
		return err
	}
	if opts.Args.Config == "" {
		return errors.New("config file is required")
	}

	cfg, err := config.Load(opts.Args.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fetcher := fetch.New(fetch.Config{
		ConnectTimeout:  cfg.HTTP.ConnectTimeout,
		Timeout:         cfg.HTTP.Timeout,
		UserAgent:       cfg.HTTP.UserAgent,
		FollowRedirects: cfg.HTTP.FollowRedirects,
	})
	lgr.Printf("[DEBUG] fetcher: %s", fetcher)

	return runner.New(cfg, fetcher, stdout).Run(ctx, mode)
}

// runMode picks the run mode, modes are mutually exclusive
func runMode(opts Opts) (runner.Mode, error) {
	mode, set := runner.ModeDefault, 0
	if opts.Gentle {
		mode, set = runner.ModeGentle, set+1
	}
	if opts.Test {
		mode, set = runner.ModeTest, set+1
	}
	if opts.DryRun {
		mode, set = runner.ModeDryRun, set+1
	}
	if set > 1 {
		return runner.ModeDefault, errors.New("only one of --gentle, --test and --dry-run can be set")
	}
	return mode, nil
}

// setupLog keeps warnings and errors on stderr, the rest shows up in verbose or debug mode only
func setupLog(verbose, dbg, noColor bool) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(os.Stderr)}
	if verbose {
		logOpts = []lgr.Option{lgr.Out(os.Stderr), lgr.Err(os.Stderr)}
	}
	if dbg {
		logOpts = []lgr.Option{lgr.Out(os.Stderr), lgr.Err(os.Stderr), lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if noColor {
		color.NoColor = true
	} else {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
