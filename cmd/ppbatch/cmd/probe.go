package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/ppbatch/internal/accel"
	"github.com/MeKo-Tech/ppbatch/internal/config"
	"github.com/MeKo-Tech/ppbatch/internal/engine"
	"github.com/spf13/cobra"
)

func newProbeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Report GPU availability and the resulting use_gpu decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.probe(cmd)
		},
	}
	cmd.Flags().Bool("use-gpu", config.DefaultConfig().GPU.UseGPU, "GPU preference to resolve")
	return cmd
}

func (a *app) probe(cmd *cobra.Command) error {
	cfg := *a.cfg
	out := cmd.OutOrStdout()
	if cmd.Flags().Changed("use-gpu") {
		cfg.GPU.UseGPU, _ = cmd.Flags().GetBool("use-gpu")
	}

	n, qerr := a.newCounter(cfg, a.logger).Count(cmd.Context())
	if qerr != nil {
		_, _ = fmt.Fprintf(out, "devices: 0 (%v)\n", qerr)
	} else {
		_, _ = fmt.Fprintf(out, "devices: %d\n", n)
	}

	// Reuse the answer instead of querying the runtime twice.
	cached := accel.DeviceCounterFunc(func(context.Context) (int, error) { return n, qerr })
	explicit := cmd.Flags().Changed("use-gpu") || a.loader.ExplicitlySet("gpu.use_gpu")
	decided := accel.Decide(cmd.Context(), explicit, cfg.GPU.UseGPU, cached, a.logger)

	_, _ = fmt.Fprintf(out, "explicitly set: %t\n", explicit)
	_, _ = fmt.Fprintf(out, "use_gpu: %t\n", decided)
	_, _ = fmt.Fprintf(out, "engines: %s\n", strings.Join(engine.Backends(), ", "))
	return nil
}
