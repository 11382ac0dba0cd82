package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runTracker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := startSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr) })
	}
	if flags.headless {
		log.Info("Tracking Resolume, press Ctrl+C to stop")
		g.Go(func() error {
			<-ctx.Done()
			return nil
		})
	} else {
		g.Go(func() error {
			// Quitting the console ends the other goroutines too
			defer stop()
			return runConsole(ctx, s.tracker)
		})
	}
	return g.Wait()
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := startSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	address := args[0]
	var value any
	switch flags.expectedType {
	case "float":
		value, err = s.tracker.QueryFloat(ctx, address, cfg.QueryTimeout)
	case "int":
		value, err = s.tracker.QueryInt(ctx, address, cfg.QueryTimeout)
	case "string":
		value, err = s.tracker.QueryString(ctx, address, cfg.QueryTimeout)
	case "":
		value, err = s.tracker.Query(ctx, address, cfg.QueryTimeout)
	default:
		return fmt.Errorf("unknown reply type %q", flags.expectedType)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", address, value)
	return nil
}

func runTree(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := startSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	log.Infof("Listening for %v", flags.wait)
	select {
	case <-time.After(flags.wait):
	case <-ctx.Done():
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.tracker.Flush(flushCtx); err != nil {
		return fmt.Errorf("failed to apply pending messages: %w", err)
	}

	if flags.asJSON {
		out, err := s.tracker.ToJSON(true)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}
	return s.tracker.Print(cmd.OutOrStdout())
}
