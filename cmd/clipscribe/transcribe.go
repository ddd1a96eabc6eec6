package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clipscribe/internal/core/domain"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:     "transcribe <url>",
		Short:   "Download, transcribe and print one video",
		Example: "  clipscribe transcribe https://www.tiktok.com/@user/video/1234567890",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := cmd.Context()
			if cmdCtx == nil {
				cmdCtx = context.Background()
			}
			signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := ctx.buildApp(signalCtx)
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background()) //nolint:errcheck

			result, err := a.orchestrator.Process(signalCtx, domain.SourceRequest{URL: args[0]})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if quiet {
				fmt.Fprintln(out, result.Text)
				return nil
			}
			fmt.Fprintln(out, "=== Transcription ===")
			fmt.Fprintf(out, "Run:       %s\n", result.RunToken)
			fmt.Fprintf(out, "Platform:  %s\n", result.Platform)
			fmt.Fprintf(out, "Duration:  %s\n", result.Duration.Round(time.Millisecond))
			fmt.Fprintln(out)
			fmt.Fprintln(out, result.Text)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the transcription text")
	return cmd
}
