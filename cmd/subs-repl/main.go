// Command subs-repl is an interactive shell around the subscription
// manager, backed by a simulated resource provider.
//
// It exists to poke at the registration / reference-counting /
// delayed-release state machine by hand: register the same request
// from several clients, watch the provider acquire the resource once,
// unregister with and without grace periods, and inspect the registry
// in between.
//
// Usage:
//
//	subs-repl [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-client string     Default client id (auto-generated if empty)
//	-latency duration  Simulated acquisition latency (default 100ms)
//	-log-file string   Write CBOR lifecycle events to this file
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Plain session with defaults
//	subs-repl
//
//	# Console event trace plus a binary event log
//	subs-repl -log-level debug -log-file ./session.slog
//
//	# Preregistered subscriptions from a config file
//	subs-repl -config ./repl.yaml
package main

import (
	"context"
	"flag"
	stdlog "log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/liris-tech/subs-manager/cmd/subs-repl/interactive"
	"github.com/liris-tech/subs-manager/pkg/examples"
	"github.com/liris-tech/subs-manager/pkg/log"
	"github.com/liris-tech/subs-manager/pkg/subs"
)

func main() {
	var (
		configPath string
		client     string
		latency    time.Duration
		logFile    string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&client, "client", "", "Default client id (auto-generated if empty)")
	flag.DurationVar(&latency, "latency", examples.DefaultReadyLatency, "Simulated acquisition latency")
	flag.StringVar(&logFile, "log-file", "", "Write CBOR lifecycle events to this file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg := &Config{}
	if configPath != "" {
		loaded, err := LoadConfig(configPath)
		if err != nil {
			stdlog.Fatalf("Invalid configuration: %v", err)
		}
		cfg = loaded
	}

	// Flags override file values
	if cfg.ReadyLatency == 0 || isFlagSet("latency") {
		cfg.ReadyLatency = Duration(latency)
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if cfg.LogLevel == "" || isFlagSet("log-level") {
		cfg.LogLevel = logLevel
	}
	if client != "" {
		cfg.DefaultClient = client
	}
	if cfg.DefaultClient == "" {
		cfg.DefaultClient = "repl-" + uuid.NewString()[:8]
	}

	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.LogLevel),
	}))

	// Lifecycle event sinks: console trace at debug level, plus an
	// optional binary file.
	loggers := []log.Logger{log.NewSlogAdapter(slogger)}
	if cfg.LogFile != "" {
		fl, err := log.NewFileLogger(cfg.LogFile)
		if err != nil {
			stdlog.Fatalf("Failed to open log file: %v", err)
		}
		defer fl.Close()
		loggers = append(loggers, fl)
	}

	provider := examples.NewSimProvider(time.Duration(cfg.ReadyLatency))
	mgr := subs.NewManagerWithConfig(provider, subs.Config{
		MaxEntries:         cfg.MaxEntries,
		MaxClientsPerEntry: cfg.MaxClientsPerEntry,
		Logger:             log.NewMultiLogger(loggers...),
	})
	defer mgr.Close()

	repl, err := interactive.New(mgr, provider, cfg.DefaultClient)
	if err != nil {
		stdlog.Fatalf("Failed to start REPL: %v", err)
	}

	// Establish preregistered subscriptions before handing over the prompt
	for _, pre := range cfg.Preregister {
		preClient := pre.Client
		if preClient == "" {
			preClient = cfg.DefaultClient
		}
		var opts *subs.Options
		if pre.Permanent || pre.UnsubDelay > 0 {
			opts = &subs.Options{
				Permanent:  pre.Permanent,
				UnsubDelay: time.Duration(pre.UnsubDelay),
			}
		}
		res, err := mgr.Register(subs.Request{Name: pre.Name, Args: pre.Args}, preClient, opts)
		if err != nil {
			stdlog.Fatalf("Preregister %q failed: %v", pre.Name, err)
		}
		repl.Track(subs.Request{Name: pre.Name, Args: pre.Args}, res)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repl.Run(ctx, cancel)
}

// isFlagSet reports whether a flag was passed explicitly.
func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// slogLevel maps a level name to an slog.Level.
func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
