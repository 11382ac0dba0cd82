package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/zenibako/resolume-golang/config"
)

var (
	// Version is set at build time
	Version = "dev"

	cfg config.Config

	flags struct {
		host         string
		port         int
		listenHost   string
		listenPort   int
		timeout      time.Duration
		retries      int
		logLevel     string
		metricsAddr  string
		headless     bool
		wait         time.Duration
		asJSON       bool
		expectedType string
	}
)

var rootCmd = &cobra.Command{
	Use:   "resolume-tracker",
	Short: "Mirror the state of a Resolume composition over OSC",
	Long: `resolume-tracker listens to Resolume's OSC output and keeps a live model of
the composition: layers, clips, effects, selection and the current deck.

Settings come from the environment (and .env files) and can be overridden by flags.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track Resolume and open the interactive console",
	RunE:  runTracker,
}

var queryCmd = &cobra.Command{
	Use:   "query <address>",
	Short: "Ask Resolume for the current value at an OSC address",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Listen for a while and print the tracked composition",
	RunE:  runTree,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.host, "host", "",
		"Resolume host (RESOLUME_HOST)")
	rootCmd.PersistentFlags().IntVar(&flags.port, "port", 0,
		"Resolume OSC input port (RESOLUME_PORT)")
	rootCmd.PersistentFlags().StringVar(&flags.listenHost, "listen-host", "",
		"Address to receive Resolume's OSC output on (LISTEN_HOST)")
	rootCmd.PersistentFlags().IntVar(&flags.listenPort, "listen-port", 0,
		"Port to receive Resolume's OSC output on (LISTEN_PORT)")
	rootCmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 0,
		"Query timeout (QUERY_TIMEOUT)")
	rootCmd.PersistentFlags().IntVar(&flags.retries, "retries", 0,
		"Query retries on timeout (QUERY_RETRIES)")
	rootCmd.PersistentFlags().StringVarP(&flags.logLevel, "log-level", "l", "",
		"Log level: debug, info, warn, error (LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&flags.metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address, e.g. :9090 (METRICS_ADDR)")

	runCmd.Flags().BoolVar(&flags.headless, "headless", false,
		"Track without the interactive console")
	queryCmd.Flags().StringVarP(&flags.expectedType, "type", "t", "",
		"Require a reply of this type: float, int or string")
	treeCmd.Flags().DurationVarP(&flags.wait, "wait", "w", 2*time.Second,
		"How long to listen before printing")
	treeCmd.Flags().BoolVar(&flags.asJSON, "json", false,
		"Print the tree as JSON")

	rootCmd.AddCommand(runCmd, queryCmd, treeCmd)
}

// loadConfig reads the environment, then applies flags the user set explicitly
func loadConfig(cmd *cobra.Command, _ []string) error {
	config.LoadEnv()
	cfg = config.Load()

	pf := cmd.Flags()
	if pf.Changed("host") {
		cfg.ResolumeHost = flags.host
	}
	if pf.Changed("port") {
		cfg.ResolumePort = flags.port
	}
	if pf.Changed("listen-host") {
		cfg.ListenHost = flags.listenHost
	}
	if pf.Changed("listen-port") {
		cfg.ListenPort = flags.listenPort
	}
	if pf.Changed("timeout") {
		cfg.QueryTimeout = flags.timeout
	}
	if pf.Changed("retries") {
		cfg.QueryRetries = flags.retries
	}
	if pf.Changed("metrics-addr") {
		cfg.MetricsAddr = flags.metricsAddr
	}
	if pf.Changed("log-level") {
		level, err := log.ParseLevel(flags.logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", flags.logLevel, err)
		}
		cfg.LogLevel = level
	}

	log.SetLevel(cfg.LogLevel)
	log.Debug("Configuration loaded",
		"resolume", fmt.Sprintf("%s:%d", cfg.ResolumeHost, cfg.ResolumePort),
		"listen", fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
