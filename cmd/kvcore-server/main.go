package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/rpcpool/kvcore/hashdict"
	"github.com/rpcpool/kvcore/reactor"
)

var gitCommitSHA = ""

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-interrupt:
			fmt.Println()
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(interrupt)
	}()

	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:    "listen",
			Usage:   "address to bind the RESP server to",
			EnvVars: []string{"KVCORE_LISTEN"},
			Value:   "127.0.0.1:1234",
		},
		&cli.IntFlag{
			Name:    "max-connections",
			Usage:   "maximum number of simultaneously registered connections",
			EnvVars: []string{"KVCORE_MAX_CONNECTIONS"},
			Value:   reactor.DefaultMaxConnections,
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "address to serve Prometheus metrics on; empty disables it",
			EnvVars: []string{"KVCORE_METRICS_LISTEN"},
			Value:   "127.0.0.1:9121",
		},
		&cli.IntFlag{
			Name:    "rehash-work",
			Usage:   "non-empty buckets migrated per operation while a resize is in progress",
			EnvVars: []string{"KVCORE_REHASH_WORK"},
			Value:   hashdict.DefaultWorkUnit,
		},
	}, newKlogFlagSet()...)

	app := &cli.App{
		Name:        "kvcore-server",
		Version:     gitCommitSHA,
		Description: "single-node, in-memory, RESP-compatible key-value server",
		Flags:       flags,
		Action: func(c *cli.Context) error {
			return run(ctx, c)
		},
	}
	sort.Sort(cli.FlagsByName(app.Flags))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}

func run(ctx context.Context, c *cli.Context) error {
	instanceID := uuid.New()
	klog.Infof("starting kvcore-server instance %s", instanceID)

	if addr := c.String("metrics-listen"); addr != "" {
		go serveMetrics(addr)
	}

	listener, err := reactor.Listen(c.String("listen"))
	if err != nil {
		return fmt.Errorf("listen on %s: %w", c.String("listen"), err)
	}
	klog.Infof("listening on %s", c.String("listen"))

	dict := hashdict.New(c.Int("rehash-work"))
	r, err := reactor.New(listener, dict, c.Int("max-connections"))
	if err != nil {
		return fmt.Errorf("construct reactor: %w", err)
	}

	go logPeriodicStats(ctx, dict, r)

	if err := r.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("reactor run: %w", err)
	}
	klog.Info("shutting down")
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	klog.Infof("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		klog.Errorf("metrics server: %v", err)
	}
}

func logPeriodicStats(ctx context.Context, dict *hashdict.Dict, r *reactor.Reactor) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			klog.V(1).Infof("stats: %d keys, %d connections, %s heap",
				dict.Len(), r.NumConnections(), humanize.Bytes(currentHeapBytes()))
		}
	}
}
