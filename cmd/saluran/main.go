package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sadewadee/saluran/client"
	"github.com/sadewadee/saluran/config"
	"github.com/sadewadee/saluran/ipc"
	"github.com/sadewadee/saluran/transport/unixsock"
)

var version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve", "start":
		serve()
	case "ping":
		ping()
	case "version":
		fmt.Printf("saluran v%s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string) {
	cfgPath := "saluran.yaml"
	if len(os.Args) > 2 {
		cfgPath = os.Args[2]
	}
	if _, err := os.Stat(cfgPath); err != nil && len(os.Args) <= 2 {
		// No config given and none found; run on defaults.
		return config.Default(), ""
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}
	return cfg, cfgPath
}

func serve() {
	cfg, cfgPath := loadConfig()

	logger, logCloser := setupLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if logCloser != nil {
		defer logCloser.Close()
	}
	logger.Info("saluran starting", "version", version, "config", cfgPath)

	opts := []ipc.Option{ipc.WithBlockSize(cfg.Endpoint.BlockSize.Bytes())}
	ln, err := unixsock.NewListener(cfg.Socket.Path, func(ep *ipc.Endpoint) {
		echo(ep, logger)
	}, opts...)
	if err != nil {
		logger.Error("failed to bind socket", "path", cfg.Socket.Path, "error", err)
		os.Exit(1)
	}
	ln.SetLogger(logger)
	ln.Start()
	logger.Info("saluran ready", "socket", cfg.Socket.Path)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	if err := ln.Close(); err != nil {
		logger.Error("listener shutdown error", "error", err)
	}
	logger.Info("saluran stopped")
}

// echo relays every message on channel 0 back to its sender.
func echo(ep *ipc.Endpoint, logger *slog.Logger) {
	ep.OnConnectionLost(func(r ipc.Reason) {
		logger.Info("client disconnected", "peer_pid", ep.PeerPid(), "reason", r.String())
	})

	ch, err := ep.AcquireChannel(0, ipc.ModeReadWrite)
	if err != nil {
		logger.Error("failed to acquire relay channel", "error", err)
		ep.Abort(ipc.ReasonUnspecified)
		return
	}
	defer ch.Close()

	for {
		bufs, err := ch.ReadMessageBuffers()
		if err != nil {
			return
		}
		if len(bufs) == 0 {
			continue
		}
		if err := ch.WriteMessageBuffers(bufs); err != nil {
			return
		}
	}
}

func ping() {
	cfg, _ := loadConfig()

	logger, logCloser := setupLogger(cfg.Logging.Level, "text", "stderr")
	if logCloser != nil {
		defer logCloser.Close()
	}

	cl := client.New(cfg.Socket.Path)
	cl.SetLogger(logger)
	ep, err := cl.ConnectTimeout(cfg.Endpoint.ConnectTimeout.Duration())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ping: %v\n", err)
		os.Exit(1)
	}
	defer ep.Abort(ipc.ReasonUserClosed)

	ch, err := ep.AcquireChannel(0, ipc.ModeReadWrite)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ping: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()

	if err := ch.Write([]byte("ping")); err != nil {
		fmt.Fprintf(os.Stderr, "ping: %v\n", err)
		os.Exit(1)
	}
	if err := ch.WriteMessageComplete(); err != nil {
		fmt.Fprintf(os.Stderr, "ping: %v\n", err)
		os.Exit(1)
	}
	bufs, err := ch.ReadMessageBuffers()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ping: no reply: %v\n", err)
		os.Exit(1)
	}
	var reply []byte
	for _, b := range bufs {
		reply = append(reply, b.Bytes()...)
	}
	fmt.Printf("reply from %s (pid %d): %s\n", cfg.Socket.Path, ep.PeerPid(), reply)
}

func setupLogger(level, format, output string) (*slog.Logger, io.Closer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	writer, closer := resolveLogOutput(output)
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}
	return slog.New(handler), closer
}

func resolveLogOutput(output string) (io.Writer, io.Closer) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout, nil
		}
		return f, f
	}
}

func printUsage() {
	fmt.Println(`saluran - multiplexed local IPC relay

Usage:
  saluran <command> [options]

Commands:
  serve [config]   Start the relay daemon (default config: saluran.yaml)
  start [config]   Alias for serve
  ping [config]    Send an echo round trip through a running daemon
  version          Show version
  help             Show this help

Signals:
  SIGINT/SIGTERM   Graceful shutdown

Examples:
  saluran serve
  saluran serve /etc/saluran/saluran.yaml
  saluran ping`)
}
