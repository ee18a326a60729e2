package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/benam/api/internal/bootstrap"
	"github.com/benam/api/internal/client"
	"github.com/benam/api/internal/logging"
	"github.com/benam/api/internal/model"
	"github.com/benam/api/internal/service"
	"github.com/benam/api/internal/store"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var flags songFlags

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one song through the pipeline in this process",
		Long: "Runs the full pipeline locally against an in-memory job record and the\n" +
			"configured artifact store, then prints the resulting job as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if service.ExtractYouTubeID(flags.url) == "" {
				return service.ErrInvalidVideoURL
			}

			logger, err := logging.New(cfg.Server.LogLevel, cfg.Server.LogFormat, os.Stderr)
			if err != nil {
				return err
			}
			artifacts, err := client.NewArtifactStore(&cfg.Storage)
			if err != nil {
				return fmt.Errorf("artifact store: %w", err)
			}

			jobs := store.NewMemoryStore()
			orchestrator, err := bootstrap.NewOrchestrator(cfg, jobs, artifacts, nil, nil, logger)
			if err != nil {
				return err
			}

			inv := &model.Invocation{
				JobID:              uuid.New().String(),
				DateKey:            flags.dateKey,
				SourceRef:          flags.url,
				ClipWindow:         flags.clipWindow(),
				MaxDurationSeconds: cfg.Media.MaxDurationSeconds,
			}
			job := &model.Job{
				JobID:           inv.JobID,
				DateKey:         inv.DateKey,
				SourceRef:       inv.SourceRef,
				VideoID:         service.ExtractYouTubeID(inv.SourceRef),
				ClipWindow:      inv.ClipWindow,
				SongTitle:       flags.title,
				DJName:          flags.djName,
				ReviewerContact: flags.reviewer,
				CreatedAt:       time.Now(),
			}
			if flags.djText != "" {
				job.DJMessage = &model.DJMessage{Kind: model.DJMessageSynthesized, Text: flags.djText}
			}
			if err := jobs.Create(cmd.Context(), job); err != nil {
				return err
			}

			done, err := orchestrator.Run(cmd.Context(), inv)
			if done != nil {
				if perr := printJSON(cmd.OutOrStdout(), done); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	flags.register(cmd)
	return cmd
}
