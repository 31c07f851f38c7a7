package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrWalshy/emdd"
	"github.com/MrWalshy/emdd/internal/lsp/server"
	"github.com/sourcegraph/jsonrpc2"
)

// getLogFile returns a log file for the lsp server to write to.
//
// During development (-debug flag) uses persistent log for easy access.
func getLogFile(debug bool) (*os.File, error) {
	if debug {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		logDir := filepath.Join(homeDir, ".emdd")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}
		return os.OpenFile(filepath.Join(logDir, "emdd-ls.log"),
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}

	return os.CreateTemp("", "emdd-ls-*.log")
}

func main() {
	var (
		debug      bool
		shadowRoot string
		plugins    string
	)
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&shadowRoot, "shadow-root", "", "Directory for rendered previews (default a temp dir)")
	flag.StringVar(&plugins, "plugins", "", "Comma separated content plugins (default all)")
	flag.Parse()

	logFile, err := getLogFile(debug)
	if err != nil {
		slog.Error("failed to setup logging", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	// stdout carries the protocol, logs go to stderr and the log file
	slog.SetDefault(slog.New(slog.NewTextHandler(io.MultiWriter(os.Stderr, logFile), &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})))

	slog.Info("starting emdd-ls", "version", emdd.Version, "logfile", logFile.Name())

	if shadowRoot != "" {
		if err := os.MkdirAll(shadowRoot, 0755); err != nil {
			slog.Error("failed to create shadow root", "path", shadowRoot, "error", err)
			os.Exit(1)
		}
	}

	o := server.Options{ShadowRoot: shadowRoot}
	if plugins != "" {
		o.Plugins = strings.Split(plugins, ",")
	}

	s, err := server.NewServer(o)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	<-jsonrpc2.NewConn(
		context.Background(),
		jsonrpc2.NewBufferedStream(server.NewStdRWC(), jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(s.Handle),
	).DisconnectNotify()
}
