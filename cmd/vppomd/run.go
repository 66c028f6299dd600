package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.fd.io/govpp"
	"go.fd.io/govpp/core"

	"github.com/veesix-networks/vppom/internal/reconciler"
	"github.com/veesix-networks/vppom/pkg/component"
	"github.com/veesix-networks/vppom/pkg/config"
	"github.com/veesix-networks/vppom/pkg/events/local"
	"github.com/veesix-networks/vppom/pkg/hw"
	"github.com/veesix-networks/vppom/pkg/logger"
	"github.com/veesix-networks/vppom/pkg/metrics"
	"github.com/veesix-networks/vppom/pkg/opdb/sqlite"
)

func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Reconcile bindings and keep them programmed across VPP restarts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
}

func run(ctx context.Context, opts *RootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	mainLog := logger.Get(logger.Main)
	mainLog.Info("Starting vppomd", "socket", cfg.Dataplane.VPPAPISocket)

	conn, connEv, err := govpp.AsyncConnect(cfg.Dataplane.VPPAPISocket, cfg.Dataplane.ConnectAttempts, cfg.Dataplane.ConnectInterval)
	if err != nil {
		return fmt.Errorf("connect to VPP: %w", err)
	}
	defer conn.Disconnect()

	if err := waitConnected(connEv, time.Duration(cfg.Dataplane.ConnectAttempts+1)*cfg.Dataplane.ConnectInterval); err != nil {
		return err
	}
	mainLog.Info("Connected to VPP")

	q := hw.NewQueue(conn)
	stack := reconciler.NewStack(q)

	bus := local.NewBus(cfg.Dataplane.EventBufferSize)
	defer bus.Close()
	stack.SetEventBus(bus)

	if cfg.Journal.Path != "" {
		journal, err := sqlite.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer journal.Close()
		stack.SetJournal(journal)
	}

	source := func() (config.Bindings, error) {
		next, err := config.Load(opts.ConfigPath)
		if err != nil {
			return config.Bindings{}, err
		}
		return next.Bindings, nil
	}

	orch := component.NewOrchestrator()
	orch.Register(reconciler.New(stack, source, bus, connEv))
	if cfg.Monitoring.Enabled {
		collector := metrics.NewCollector(q, stack.Collectors()...).WatchEvents(bus)
		orch.Register(metrics.NewExporter(cfg.Monitoring.ListenAddress, collector))
	}

	if err := orch.Start(ctx); err != nil {
		return err
	}
	mainLog.Info("vppomd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			break
		}
		mainLog.Info("Reloading configuration")
		if err := orch.Reload(ctx); err != nil {
			mainLog.Error("Reload incomplete", "error", err)
		}
	}

	mainLog.Info("Shutting down vppomd")
	if err := orch.Stop(ctx); err != nil {
		mainLog.Error("Error stopping components", "error", err)
	}
	return nil
}

func waitConnected(events <-chan core.ConnectionEvent, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-events:
			switch ev.State {
			case core.Connected:
				return nil
			case core.Failed:
				return fmt.Errorf("connect to VPP: %w", ev.Error)
			}
		case <-deadline:
			return fmt.Errorf("connect to VPP: %w", hw.ErrUnavailable)
		}
	}
}
