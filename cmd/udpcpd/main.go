// Package main provides the responder daemon: it listens on one UDP
// endpoint and accepts single-file uploads from many concurrent initiators,
// running until terminated externally.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/udpcp/udpcp/server"
)

func main() {
	cfg := server.DefaultConfig()
	var (
		storageDir string
		logLevel   string
	)

	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "UDP listen address")
	flag.StringVar(&cfg.Credential, "credential", "", "Accepted credential prefix (required)")
	flag.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "Maximum concurrent sessions")
	flag.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Evict sessions idle longer than this (0 disables)")
	flag.StringVar(&storageDir, "dir", ".", "Directory receiving uploaded files")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", logLevel)
		os.Exit(2)
	}
	logrus.SetLevel(level)

	if cfg.Credential == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: -credential")
		flag.Usage()
		os.Exit(2)
	}

	if info, err := os.Stat(storageDir); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "storage directory %q is not usable\n", storageDir)
		os.Exit(2)
	}

	srv, err := server.New(cfg, server.NewDirStore(storageDir))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Error("Failed to start responder")
		os.Exit(1)
	}
	srv.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	logrus.WithFields(logrus.Fields{
		"function": "main",
		"signal":   sig.String(),
	}).Info("Shutting down")

	if err := srv.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Warn("Shutdown error")
	}
}
