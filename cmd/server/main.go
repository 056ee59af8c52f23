package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/NicolasHaas/chatrelay/pkg/logging"
	"github.com/NicolasHaas/chatrelay/pkg/server"
	"github.com/NicolasHaas/chatrelay/pkg/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

var errUsage = errors.New("usage")

type options struct {
	configFile  string
	envFile     string
	bind        string
	wsAddr      string
	metricsAddr string
	logLevel    string
	logFormat   string
	printConfig bool
	showVersion bool
	port        int

	set map[string]bool // flags given on the command line
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("chatrelay-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: chatrelay-server [flags] <port>\n\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.configFile, "config", "", "YAML config file")
	fs.StringVar(&opts.envFile, "env-file", "", "dotenv file loaded into the environment before CHATRELAY_* overrides")
	fs.StringVar(&opts.bind, "bind", "", "host to bind the TCP listener to (default all interfaces)")
	fs.StringVar(&opts.wsAddr, "ws", "", "HTTP bind address for the /ws WebSocket gateway (empty to disable)")
	fs.StringVar(&opts.metricsAddr, "metrics", "", "HTTP bind address for Prometheus /metrics (empty to disable)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: "+logging.LevelNames())
	fs.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	fs.BoolVar(&opts.printConfig, "print-config", false, "print the effective config as YAML and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if opts.showVersion {
		return opts, nil
	}

	switch fs.NArg() {
	case 0:
		if opts.printConfig {
			return opts, nil
		}
		fs.Usage()
		return nil, errUsage
	case 1:
		port, err := parsePort(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(stderr, "chatrelay-server: %v\n", err)
			fs.Usage()
			return nil, errUsage
		}
		opts.port = port
		return opts, nil
	default:
		fs.Usage()
		return nil, errUsage
	}
}

// parsePort accepts a decimal TCP port in (0, 65535].
func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: not a decimal number", s)
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %d: must be in 1-65535", port)
	}
	return port, nil
}

// loadConfig layers defaults, the YAML file, the environment and finally the
// command line.
func loadConfig(opts *options) (server.Config, error) {
	cfg := server.DefaultConfig()

	if opts.envFile != "" {
		if err := server.LoadEnvFile(opts.envFile); err != nil {
			return cfg, err
		}
	}
	if opts.configFile != "" {
		if err := server.LoadConfigFile(opts.configFile, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := server.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}

	if opts.port != 0 {
		cfg.Addr = net.JoinHostPort(opts.bind, strconv.Itoa(opts.port))
	}
	if opts.set["ws"] {
		cfg.WebSocketAddr = opts.wsAddr
	}
	if opts.set["metrics"] {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if opts.set["log-level"] {
		cfg.Log.Level = opts.logLevel
	}
	if opts.set["log-format"] {
		cfg.Log.Format = opts.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return 1
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, version.Full())
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "chatrelay-server: %v\n", err)
		return 1
	}

	if opts.printConfig {
		data, err := cfg.YAML()
		if err != nil {
			fmt.Fprintf(stderr, "chatrelay-server: %v\n", err)
			return 1
		}
		_, _ = stdout.Write(data)
		return 0
	}

	logger, err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: stdout,
	})
	if err != nil {
		fmt.Fprintf(stderr, "invalid logging config: %v\n", err)
		return 1
	}
	logger.Info("starting chat relay", "version", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, logger)
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "err", err)
		return 1
	}
	return 0
}
