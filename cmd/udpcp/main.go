// Package main provides the initiator command line: it uploads one local
// file to a responder under a remote target name.
//
// Usage:
//
//	udpcp [options] <server addr> <credential> <local file> <remote name>
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/udpcp/udpcp/client"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <server addr> <credential> <local file> <remote name>\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Options:")
	flag.PrintDefaults()
}

func main() {
	var (
		timeout   time.Duration
		attempts  int
		blockSize int
		logLevel  string
	)

	flag.Usage = usage
	flag.DurationVar(&timeout, "timeout", client.DefaultReceiveTimeout, "Per-attempt acknowledgment timeout")
	flag.IntVar(&attempts, "attempts", client.DefaultMaxAttempts, "Maximum sends per phase")
	flag.IntVar(&blockSize, "block-size", 0, "DATA payload size (default: maximum transfer unit)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", logLevel)
		os.Exit(2)
	}
	logrus.SetLevel(level)

	args := flag.Args()
	if len(args) != 4 {
		usage()
		os.Exit(2)
	}
	serverAddr, credential, localPath, targetName := args[0], args[1], args[2], args[3]

	src, err := os.Open(localPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open %s: %v\n", localPath, err)
		os.Exit(1)
	}
	defer src.Close()

	c, err := client.Dial(client.Config{
		ServerAddr:     serverAddr,
		Credential:     credential,
		ReceiveTimeout: timeout,
		MaxAttempts:    attempts,
		BlockSize:      blockSize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach %s: %v\n", serverAddr, err)
		os.Exit(1)
	}
	defer c.Close()

	if err := c.Send(src, targetName); err != nil {
		var rejected *client.RejectedError
		switch {
		case errors.As(err, &rejected):
			fmt.Fprintf(os.Stderr, "transfer rejected: %v\n", rejected)
		case errors.Is(err, client.ErrRetriesExhausted):
			fmt.Fprintf(os.Stderr, "transfer timed out: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "transfer failed: %v\n", err)
		}
		os.Exit(1)
	}

	stats := c.Stats()
	fmt.Printf("transferred %s as %q: %d bytes in %d blocks (%d retransmits)\n",
		localPath, targetName, stats.Bytes, stats.Blocks, stats.Retransmits)
}
