package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/LdDl/crashtruth-go/api"
	"github.com/LdDl/crashtruth-go/config"
	"github.com/LdDl/crashtruth-go/pipeline"
	"github.com/LdDl/crashtruth-go/store"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "", "Path to JSON configuration file")
	storeKind  = flag.String("store", "", "Artifact store: file or sqlite (overrides configuration)")
	storePath  = flag.String("store-path", "", "Store root directory or database file (overrides configuration)")
	serveAddr  = flag.String("serve", "", "Serve HTTP API on the given address instead of processing files")
	workers    = flag.Int("workers", runtime.NumCPU(), "Number of videos processed in parallel")
)

func main() {
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		_, _ = out.Write([]byte("Usage: crashtruth [flags] <detections.jsonl>...\n       crashtruth [flags] -serve :8080\n\n"))
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("crashtruth failed")
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load(*configPath, os.LookupEnv)
	if err != nil {
		return errors.Wrap(err, "Can't load configuration")
	}
	if *storeKind != "" {
		cfg.Store.Driver = *storeKind
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *serveAddr != "" {
		cfg.Server.Addr = *serveAddr
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "Invalid configuration")
	}
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return errors.Wrap(err, "Invalid log level")
	}
	logger.SetLevel(level)

	artifacts, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	metrics := pipeline.NewMetrics()
	runner := pipeline.NewRunner(artifacts, logger, metrics)
	dispatcher, err := pipeline.NewDispatcher(runner, artifacts, logger,
		pipeline.NewTracksStage(cfg),
		pipeline.NewFindingsStage(cfg),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serveAddr != "" {
		return serve(ctx, cfg, api.NewHandler(dispatcher, artifacts, metrics, logger), logger)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("no detection files given")
	}
	return processFiles(ctx, dispatcher, flag.Args(), *workers, logger)
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreDriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.Wrapf(err, "Can't create directory for %s", cfg.Path)
			}
		}
		return store.NewSQLiteStore(cfg.Path)
	default:
		return store.NewFileStore(cfg.Path)
	}
}

// processFiles submits every detections file as an independent video.
// Video reference is the file name without extension.
func processFiles(ctx context.Context, dispatcher *pipeline.Dispatcher, paths []string, limit int, logger *logrus.Logger) error {
	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, limit))
	for _, path := range paths {
		path := path
		g.Go(func() error {
			body, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "Can't read %s", path)
			}
			videoRef := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			results, err := dispatcher.Submit(gctx, videoRef, store.KindDetections, body)
			if err != nil {
				logger.WithError(err).WithField("file", path).Error("Can't submit detections")
				failed.Add(1)
				return nil
			}
			for _, res := range results {
				if !res.Outcome.Succeeded() {
					failed.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return errors.Errorf("%d run(s) failed", n)
	}
	return nil
}

func serve(ctx context.Context, cfg config.Config, handler *api.Handler, logger *logrus.Logger) error {
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("Serving HTTP API")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server failed")
	case <-ctx.Done():
	}
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
