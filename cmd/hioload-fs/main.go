// File: cmd/hioload-fs/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// hioload-fs serves the files of one directory over a raw epoll loop.
//
// Usage:
//
//	hioload-fs [flags] <port> <root>

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-fs/api"
	"github.com/momentics/hioload-fs/control"
	"github.com/momentics/hioload-fs/server"
)

type options struct {
	host         string
	metricsAddr  string
	maxConns     int
	chunkSize    int
	maxLine      int
	writeTimeout time.Duration
	respTimeout  time.Duration
	loopCPU      int
	quiet        bool
}

func newRootCmd() *cobra.Command {
	opts := options{}
	defaults := server.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "hioload-fs <port> <root>",
		Short: "Serve a directory over HTTP from a single epoll event loop",
		Long: "hioload-fs changes into <root> and answers GET requests for regular\n" +
			"files below it, one request per connection.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Arguments are valid from here on; runtime failures need no usage.
			cmd.SilenceUsage = true

			port, err := strconv.Atoi(args[0])
			if err != nil || port < 0 || port > 65535 {
				return fmt.Errorf("invalid port %q", args[0])
			}
			if err := os.Chdir(args[1]); err != nil {
				return fmt.Errorf("chdir: %w", err)
			}

			cfg := server.DefaultConfig()
			cfg.ListenAddr = net.JoinHostPort(opts.host, strconv.Itoa(port))
			cfg.MaxConnections = opts.maxConns
			cfg.ChunkSize = opts.chunkSize
			cfg.MaxLineLen = opts.maxLine
			cfg.WriteTimeout = opts.writeTimeout
			cfg.ResponseTimeout = opts.respTimeout
			cfg.LoopCPU = opts.loopCPU

			logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
			var connLog *log.Logger
			if opts.quiet {
				connLog = log.New(io.Discard, "", 0)
			}
			return run(cmd.Context(), cfg, opts.metricsAddr, logger, connLog)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.host, "addr", "", "host address to bind (default all IPv4 interfaces)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /debug/probes on this address")
	f.IntVar(&opts.maxConns, "max-conns", defaults.MaxConnections, "maximum registered connections (0 = unlimited)")
	f.IntVar(&opts.chunkSize, "chunk-size", defaults.ChunkSize, "file streaming chunk size in bytes")
	f.IntVar(&opts.maxLine, "max-line", defaults.MaxLineLen, "longest accepted request or header line")
	f.DurationVar(&opts.writeTimeout, "write-timeout", defaults.WriteTimeout, "longest wait for a client to drain its socket")
	f.DurationVar(&opts.respTimeout, "response-timeout", defaults.ResponseTimeout, "longest total time one response may wait on a slow client")
	f.IntVar(&opts.loopCPU, "cpu", defaults.LoopCPU, "pin the event loop thread to this CPU (-1 = no pinning)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not log individual connections")
	return cmd
}

// run serves until ctx is cancelled or SIGINT/SIGTERM arrives. A nil
// connLog keeps per-connection messages on logger.
func run(ctx context.Context, cfg *server.Config, metricsAddr string, logger, connLog *log.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := control.NewMetricsRegistry("hioload_fs")
	metrics.RegisterRuntimeCollectors()
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)

	srv, err := server.New(cfg,
		server.WithLogger(logger),
		server.WithConnLogger(connLog),
		server.WithMetrics(metrics),
		server.WithDebugProbes(probes),
	)
	if err != nil {
		return fmt.Errorf("server setup: %w", err)
	}
	logger.Printf("listening on %s", srv.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Serve(gctx)
		if errors.Is(err, api.ErrServerClosed) {
			return nil
		}
		return err
	})

	if metricsAddr != "" {
		hs := &http.Server{
			Addr:              metricsAddr,
			Handler:           control.NewMux(metrics, probes),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Printf("metrics on %s", metricsAddr)
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	}

	err = g.Wait()
	sum := metrics.Summary()
	logger.Printf("stopped: accepted=%d responses=%v dropped=%d bytes=%d",
		sum.Accepted, sum.Responses, sum.Dropped, sum.OutboundTraffic)
	return err
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
