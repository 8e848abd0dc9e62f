package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	"github.com/suprachat/ircbridge/internal/account"
	"github.com/suprachat/ircbridge/internal/config"
	"github.com/suprachat/ircbridge/internal/irc"
	"github.com/suprachat/ircbridge/internal/storage"
)

// Version information - set at build time via ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "ircbridge: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ircbridge", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.StringP("config", "c", "./config.yaml", "Path to configuration file")
	clientIP := fs.String("ip", "127.0.0.1", "End user IP address asserted over WEBIRC")
	debug := fs.Bool("debug", false, "Log every IRC protocol line")
	metricsFile := fs.String("metrics-file", "", "Write Prometheus metrics to this file after the command")
	showVersion := fs.BoolP("version", "v", false, "Show version information and exit")
	fs.Usage = func() { printUsage(fs, stderr) }

	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *showVersion {
		fmt.Fprintf(stdout, "ircbridge version %s\n", version)
		fmt.Fprintf(stdout, "Built: %s\n", buildDate)
		fmt.Fprintf(stdout, "Commit: %s\n", gitCommit)
		return nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(fs, stderr)
		return errUsage
	}

	// checknick needs neither configuration nor network.
	if rest[0] == "checknick" {
		if len(rest) != 2 {
			printUsage(fs, stderr)
			return errUsage
		}
		return checkNick(rest[1], stdout)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if *metricsFile != "" {
		cfg.MetricsFile = *metricsFile
	}

	level := hclog.LevelFromString(cfg.LogLevel)
	if *debug {
		level = hclog.Debug
	}
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "ircbridge",
		Level:  level,
		Output: stderr,
	})

	audit, err := storage.OpenAudit(cfg.DataDir)
	if err != nil {
		return err
	}

	driver := irc.NewDriver(cfg, logger.Named("irc"))
	svc := account.NewService(cfg, driver, audit, logger)

	err = dispatch(ctx, svc, *clientIP, rest, stdout)
	if errors.Is(err, errUsage) {
		printUsage(fs, stderr)
	}

	if cfg.MetricsFile != "" {
		if merr := prometheus.WriteToTextfile(cfg.MetricsFile, prometheus.DefaultGatherer); merr != nil {
			logger.Error("could not write metrics", "file", cfg.MetricsFile, "error", merr)
		}
	}
	return err
}

func dispatch(ctx context.Context, svc *account.Service, ip string, rest []string, stdout io.Writer) error {
	cmd, params := rest[0], rest[1:]

	var err error
	switch {
	case cmd == "register" && len(params) == 3:
		err = svc.Register(ctx, ip, params[0], params[1], params[2])
	case cmd == "verify" && len(params) == 2:
		err = svc.Verify(ctx, ip, params[0], params[1])
	case cmd == "passwd" && len(params) == 2:
		err = svc.ChangePassword(ctx, ip, params[0], params[1])
	default:
		return errUsage
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s %s: ok\n", cmd, params[0])
	return nil
}

func checkNick(nick string, stdout io.Writer) error {
	if bad, chars := irc.ValidateNick(nick); bad {
		return &account.InvalidNickError{Nick: nick, Chars: chars}
	}
	fmt.Fprintf(stdout, "%s: ok\n", nick)
	return nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `ircbridge %s - IRC account operations for the web backend

Usage:
  ircbridge [options] register <nick> <email> <password>
  ircbridge [options] verify <nick> <code>
  ircbridge [options] passwd <target-nick> <new-password>
  ircbridge checknick <nick>

Options:
`, version)
	fmt.Fprint(w, strings.TrimRight(fs.FlagUsages(), "\n")+"\n")
}
