package cli

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/williamfrack18-alt/anmar-engine/internal/advisor"
	"github.com/williamfrack18-alt/anmar-engine/internal/config"
	"github.com/williamfrack18-alt/anmar-engine/internal/daemon"
)

func newStartCmd() *cobra.Command {
	var (
		port         int
		foreground   bool
		sweepSec     float64
		dev          bool
		pprofAddr    string
		autoDispatch bool
		envFile      string
		dbDriver     string
		dbURL        string
		enableOtel   bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the anmar engine daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := loadEnvFile(envFile); err != nil {
					return err
				}
			}
			home := config.MustHomeFrom(cmd.Context())
			opts, err := buildStartOptions(home, port, cmd.Flags().Changed("port"))
			if err != nil {
				return err
			}
			opts.SweepIntervalSec = sweepSec
			opts.Dev = dev
			opts.PprofAddr = pprofAddr
			opts.AutoDispatch = autoDispatch
			opts.EnableOtel = enableOtel
			if cmd.Flags().Changed("db-driver") {
				opts.DBDriver = dbDriver
			}
			if dbURL != "" {
				opts.DBURL = dbURL
			}

			api := fmt.Sprintf("http://localhost:%d", opts.Port)

			if foreground {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting anmar engine in foreground on %s\n", api)
				return daemon.StartForeground(cmd.Context(), opts)
			}

			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Anmar engine started (pid %d)\n", pid)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "API: %s\n", api)
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 3647, "Port for the HTTP API")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in foreground (do not daemonize)")
	cmd.Flags().Float64Var(&sweepSec, "sweep-interval", 30.0, "SLA sweep interval (seconds)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode (CORS for a local frontend)")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().BoolVar(&autoDispatch, "auto-dispatch", false, "Assign pending tickets automatically on each sweep")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load env vars from file (KEY=VALUE per line) before starting")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "sqlite", "Store driver: sqlite or postgres")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "DB connection string (for postgres; or set DATABASE_URL)")
	cmd.Flags().BoolVar(&enableOtel, "otel", true, "Enable OpenTelemetry metrics (Prometheus exporter, HTTP/SSE/ticket instrumentation)")

	return cmd
}

// buildStartOptions folds <home>/config.yaml into daemon options. A --port
// flag set on the command line wins over the configured addr.
func buildStartOptions(home string, flagPort int, portChanged bool) (daemon.StartOptions, error) {
	cfg, err := config.Load(home)
	if err != nil {
		return daemon.StartOptions{}, err
	}

	port := flagPort
	if !portChanged {
		if _, p, err := net.SplitHostPort(cfg.Addr); err == nil {
			if n, err := strconv.Atoi(p); err == nil && n > 0 {
				port = n
			}
		}
	}

	if cfg.SlackWebhookURL != "" && os.Getenv("SLACK_WEBHOOK_URL") == "" {
		_ = os.Setenv("SLACK_WEBHOOK_URL", cfg.SlackWebhookURL)
	}

	return daemon.StartOptions{
		Home:      home,
		Port:      port,
		APIKey:    cfg.APIKey,
		DBDriver:  cfg.DB.Driver,
		DBURL:     cfg.DB.DSN,
		Engineers: cfg.Engineers,
		QuotaMax:  cfg.Quota.MaxActiveTickets,
		Advisor: advisor.Config{
			BaseURL: cfg.Advisor.BaseURL,
			APIKey:  cfg.Advisor.APIKey,
			Model:   cfg.Advisor.Model,
			Timeout: time.Duration(cfg.Advisor.TimeoutSeconds) * time.Second,
		},
	}, nil
}

func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.Index(line, "=")
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		if key != "" {
			_ = os.Setenv(key, value)
		}
	}
	return sc.Err()
}
