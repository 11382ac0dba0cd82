package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zenibako/resolume-golang/config"
	"github.com/zenibako/resolume-golang/resolume"
)

// session is a running tracker with its listener
type session struct {
	tracker  *resolume.Tracker
	listener *resolume.Listener
}

func newTracker(cfg config.Config) *resolume.Tracker {
	opts := []resolume.Option{
		resolume.WithQueryTimeout(cfg.QueryTimeout),
		resolume.WithQueryRetries(cfg.QueryRetries),
		resolume.WithPlayingWindow(cfg.PlayingWindow),
		resolume.WithExistThreshold(cfg.ClipExistThreshold),
	}
	if cfg.MetricsAddr != "" {
		opts = append(opts, resolume.WithMetrics(resolume.NewMetrics(prometheus.DefaultRegisterer)))
	}
	return resolume.NewTracker(resolume.NewOSCSender(cfg.ResolumeHost, cfg.ResolumePort), opts...)
}

// startSession starts the worker and binds the listener
func startSession(ctx context.Context, cfg config.Config) (*session, error) {
	tracker := newTracker(cfg)
	if err := tracker.Start(ctx); err != nil {
		return nil, err
	}

	listener := resolume.NewListener(fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort), tracker)
	if err := listener.Start(); err != nil {
		tracker.Close()
		return nil, err
	}
	return &session{tracker: tracker, listener: listener}, nil
}

func (s *session) Close() {
	if err := s.listener.Close(); err != nil {
		log.Warnf("Failed to close listener: %v", err)
	}
	s.tracker.Close()
}

// serveMetrics exposes /metrics until ctx is done
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Infof("Serving metrics on %s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
