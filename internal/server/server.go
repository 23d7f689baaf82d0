// Package server assembles and runs the mediafs daemon: the ownership
// ledger, the content index, the policy engine, the mediated volume, the
// FUSE mount, and the optional metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LightningFastRom/mediafs/internal/fuse"
	"github.com/LightningFastRom/mediafs/internal/logger"
	"github.com/LightningFastRom/mediafs/pkg/config"
	"github.com/LightningFastRom/mediafs/pkg/identity"
	"github.com/LightningFastRom/mediafs/pkg/index"
	"github.com/LightningFastRom/mediafs/pkg/ledger"
	ledgerbadger "github.com/LightningFastRom/mediafs/pkg/ledger/badger"
	ledgermem "github.com/LightningFastRom/mediafs/pkg/ledger/memory"
	"github.com/LightningFastRom/mediafs/pkg/metrics"
	metricsprom "github.com/LightningFastRom/mediafs/pkg/metrics/prometheus"
	"github.com/LightningFastRom/mediafs/pkg/storage/policy"
	"github.com/LightningFastRom/mediafs/pkg/vfs"
)

// Daemon is a fully assembled mediafs instance.
type Daemon struct {
	cfg *config.Config

	ledger   ledger.Store
	index    index.Index
	resolver *identity.Resolver
	grants   *identity.StaticGrants
	volume   *vfs.Volume
	fuse     *fuse.Server

	metricsSrv *http.Server
}

// New assembles a daemon from configuration. The returned daemon owns the
// ledger and index and releases them in Close.
func New(cfg *config.Config) (*Daemon, error) {
	d := &Daemon{cfg: cfg}

	store, err := openLedger(cfg.Ledger)
	if err != nil {
		return nil, err
	}
	d.ledger = store

	d.index = index.NewMemoryIndex()

	d.grants = identity.NewStaticGrants()
	d.resolver = identity.NewResolver(d.grants)
	for _, pkg := range cfg.Packages {
		d.resolver.Register(identity.Token(pkg.UID), pkg.Name)
		d.grants.Grant(pkg.Name, pkg.ReadExternal, pkg.WriteExternal)
		logger.Debug("registered package %s (uid %d, read=%v, write=%v)",
			pkg.Name, pkg.UID, pkg.ReadExternal, pkg.WriteExternal)
	}

	volMetrics := metrics.NewNoopVolumeMetrics()
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		volMetrics = metricsprom.NewVolumeMetrics()
	}

	engine := policy.New(d.ledger, d.index, policy.Options{Metrics: volMetrics})

	volume, err := vfs.New(cfg.Volume.Root, d.resolver, engine, d.index, vfs.Options{
		Metrics: volMetrics,
	})
	if err != nil {
		d.closeStores()
		return nil, fmt.Errorf("failed to open volume: %w", err)
	}
	d.volume = volume

	fuseSrv, err := fuse.New(volume, fuse.Config{
		Mountpoint: cfg.Volume.Mountpoint,
		AllowOther: cfg.Volume.AllowOther,
	})
	if err != nil {
		d.closeStores()
		return nil, fmt.Errorf("failed to create fuse server: %w", err)
	}
	d.fuse = fuseSrv

	return d, nil
}

// Volume exposes the mediated volume, mainly for provider-side tooling.
func (d *Daemon) Volume() *vfs.Volume {
	return d.volume
}

// Run starts the daemon and blocks until the context is cancelled, then
// shuts down within the configured timeout.
func (d *Daemon) Run(ctx context.Context) error {
	if d.cfg.Index.ScanOnStart {
		scanner := &index.Scanner{Root: d.cfg.Volume.Root, Index: d.index}
		n, err := scanner.ScanDir(ctx, "")
		if err != nil {
			return fmt.Errorf("startup scan failed: %w", err)
		}
		logger.Info("startup scan indexed %d files", n)
	}

	if d.cfg.Metrics.Enabled {
		d.startMetrics()
	}

	err := d.fuse.Mount(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.Server.ShutdownTimeout)
	defer cancel()
	d.shutdown(shutdownCtx)

	return err
}

// startMetrics serves the Prometheus registry over HTTP.
func (d *Daemon) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	d.metricsSrv = &http.Server{
		Addr:              d.cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics endpoint listening on %s", d.cfg.Metrics.Listen)
		if err := d.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed: %v", err)
		}
	}()
}

// shutdown stops the metrics endpoint and releases the stores.
func (d *Daemon) shutdown(ctx context.Context) {
	if d.metricsSrv != nil {
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown: %v", err)
		}
		d.metricsSrv = nil
	}
	d.closeStores()
}

// Close releases daemon resources without a graceful drain, for callers
// that never reached Run.
func (d *Daemon) Close() {
	d.closeStores()
}

func (d *Daemon) closeStores() {
	if d.index != nil {
		if err := d.index.Close(); err != nil {
			logger.Warn("index close: %v", err)
		}
		d.index = nil
	}
	if d.ledger != nil {
		if err := d.ledger.Close(); err != nil {
			logger.Warn("ledger close: %v", err)
		}
		d.ledger = nil
	}
}

// openLedger builds the configured ledger backend.
func openLedger(cfg config.LedgerConfig) (ledger.Store, error) {
	switch cfg.Type {
	case "badger":
		store, err := ledgerbadger.Open(cfg.Badger.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger ledger: %w", err)
		}
		return store, nil
	case "memory":
		return ledgermem.New(), nil
	default:
		return nil, fmt.Errorf("unknown ledger type %q", cfg.Type)
	}
}
