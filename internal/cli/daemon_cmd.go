package cli

import (
	"github.com/spf13/cobra"

	"github.com/williamfrack18-alt/anmar-engine/internal/config"
	"github.com/williamfrack18-alt/anmar-engine/internal/daemon"
)

func newDaemonCmd() *cobra.Command {
	var (
		port         int
		sweepSec     float64
		dev          bool
		pprofAddr    string
		autoDispatch bool
		enableOtel   bool
	)

	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run daemon process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			return daemon.StartForeground(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVar(&port, "port", 3647, "Port for the HTTP API")
	cmd.Flags().Float64Var(&sweepSec, "sweep-interval", 30.0, "SLA sweep interval (seconds)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().BoolVar(&autoDispatch, "auto-dispatch", false, "Assign pending tickets automatically on each sweep")
	cmd.Flags().BoolVar(&enableOtel, "otel", true, "Enable OpenTelemetry metrics")

	return cmd
}
