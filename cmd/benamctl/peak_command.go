package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benam/api/internal/bootstrap"
	"github.com/benam/api/internal/media"
)

func newPeakCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "peak <file>",
		Short: "Measure the peak level of an audio file and the gain normalization would apply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			engines := bootstrap.NewEngines(&cfg.Media, media.ExecRunner{}, nil)

			peak, ok := engines.Normalizer.DetectPeak(cmd.Context(), args[0])
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "peak: inconclusive, treating as 0.0 dB")
			} else {
				fmt.Fprintf(out, "peak: %.2f dB\n", peak)
			}
			fmt.Fprintf(out, "gain: %+.2f dB (target %.2f dB)\n", media.ComputeGain(cfg.Media.TargetPeakDb, peak), cfg.Media.TargetPeakDb)
			return nil
		},
	}
}
