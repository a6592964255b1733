package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"fswatch/internal/api"
	"fswatch/internal/fswatch"
	"fswatch/internal/logging"
	"fswatch/internal/watcher"
)

const (
	httpReadHeaderTimeout     = 5 * time.Second
	httpServerShutdownTimeout = 5 * time.Second
	watchShutdownTimeout      = 5 * time.Second
)

var errNothingToWatch = errors.New("no paths to watch and the HTTP API is disabled")

type daemon struct {
	cfg         Config
	logger      *logging.Logger
	service     *fswatch.Service
	coordinator *shutdownCoordinator
	printer     *batchPrinter
	listener    net.Listener
	server      *http.Server
}

// runDaemon starts the configured watches and the optional HTTP API, then
// blocks until ctx is cancelled or the API server fails.
func runDaemon(ctx context.Context, cfg Config, watchFile WatchFile, logger *logging.Logger, out io.Writer) error {
	if len(cfg.Paths) == 0 && len(watchFile.Watches) == 0 && cfg.Port <= 0 {
		return errNothingToWatch
	}

	d := &daemon{
		cfg:         cfg,
		logger:      logger,
		coordinator: newShutdownCoordinator(logger),
		printer:     &batchPrinter{out: out},
	}
	d.service = fswatch.New(ctx, fswatch.Options{
		Logger:           logger,
		ThrottleInterval: cfg.Throttle,
		MaxBatch:         cfg.MaxBatch,
		CacheTTL:         cfg.CacheTTL,
		CacheMaxEntries:  cfg.CacheMax,
	})

	if err := d.startWatches(ctx, watchFile); err != nil {
		return errors.Join(err, d.service.Close())
	}
	if cfg.Port > 0 {
		if err := d.listen(); err != nil {
			return errors.Join(err, d.service.Close())
		}
	}
	// Registered after the HTTP phase so API clients stop before watches.
	d.coordinator.Add("watches", watchShutdownTimeout, func(context.Context) error {
		return d.service.Close()
	})

	serveErr := make(chan error, 1)
	if d.server != nil {
		go func() {
			serveErr <- d.server.Serve(d.listener)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", map[string]string{
				"error": err.Error(),
			})
			runErr = err
		}
	}

	if err := d.coordinator.Run(context.Background()); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

func (d *daemon) listen() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(d.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", d.cfg.Port, err)
	}
	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.Config{
		Service:   d.service,
		AuthToken: d.cfg.AuthToken,
		Logger:    d.logger,
	})
	d.listener = listener
	d.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: httpReadHeaderTimeout,
	}
	d.coordinator.Add("http", httpServerShutdownTimeout, d.server.Shutdown)
	d.logger.Info("fswatch API listening", map[string]string{
		"addr": listener.Addr().String(),
	})
	return nil
}

func (d *daemon) startWatches(ctx context.Context, watchFile WatchFile) error {
	for _, path := range d.cfg.Paths {
		if err := d.startWatch(ctx, watcher.StartOptions{
			Path:      path,
			Recursive: d.cfg.Recursive,
			Filter:    d.cfg.Filter,
		}); err != nil {
			return err
		}
	}
	for _, entry := range watchFile.Watches {
		throttle, err := parseOptionalDuration(entry.Throttle)
		if err != nil {
			return fmt.Errorf("watch %s: %w", entry.Path, err)
		}
		if err := d.startWatch(ctx, watcher.StartOptions{
			Path:             entry.Path,
			Recursive:        entry.Recursive,
			Filter:           entry.Filter,
			ThrottleInterval: throttle,
			MaxBatch:         entry.MaxBatch,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (d *daemon) startWatch(ctx context.Context, opts watcher.StartOptions) error {
	opts.OnBatch = d.printer.print
	id, err := d.service.StartWatch(ctx, opts)
	if err != nil {
		return fmt.Errorf("watch %s: %w", opts.Path, err)
	}
	d.logger.Info("watching", map[string]string{
		"watch.id":  id,
		"path":      opts.Path,
		"recursive": strconv.FormatBool(opts.Recursive),
	})
	return nil
}

// batchPrinter writes one line per event. Batches from different watches
// may be delivered concurrently, so writes are serialized.
type batchPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *batchPrinter) print(id string, events []watcher.Event) {
	if p == nil || p.out == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, evt := range events {
		if evt.Kind == watcher.Renamed && evt.OldPath != "" {
			fmt.Fprintf(p.out, "%s\t%s\t%s -> %s\n", id, evt.Kind, evt.OldPath, evt.Path)
			continue
		}
		fmt.Fprintf(p.out, "%s\t%s\t%s\n", id, evt.Kind, evt.Path)
	}
}
