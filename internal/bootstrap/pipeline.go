// Package bootstrap assembles the processing pipeline from configuration.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/benam/api/internal/client"
	"github.com/benam/api/internal/config"
	"github.com/benam/api/internal/media"
	"github.com/benam/api/internal/pipeline"
	"github.com/benam/api/internal/speech"
	"github.com/benam/api/internal/store"
)

// Engines are the media collaborators built from MediaConfig.
type Engines struct {
	Acquirer   *media.YtDlpAcquirer
	Normalizer *media.FFmpegNormalizer
	Assembler  *media.FFmpegAssembler
}

func NewEngines(cfg *config.MediaConfig, runner media.Runner, logger *slog.Logger) Engines {
	format := media.CanonicalFormat(cfg.SampleRate, cfg.Channels, cfg.Bitrate)
	return Engines{
		Acquirer:   media.NewYtDlpAcquirer(cfg.YtDlpPath, cfg.CookiesFile, runner),
		Normalizer: media.NewFFmpegNormalizer(cfg.FFmpegPath, format, cfg.TargetPeakDb, runner, logger),
		Assembler:  media.NewFFmpegAssembler(cfg.FFmpegPath, format, runner),
	}
}

// NewOrchestrator wires the pipeline against the given store and artifact
// store. reporter may be nil.
func NewOrchestrator(cfg *config.Config, jobs store.JobStore, artifacts client.ArtifactStore, reporter pipeline.Reporter, validate *validator.Validate, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	runner := media.ExecRunner{}
	engines := NewEngines(&cfg.Media, runner, logger)

	synth, err := speech.New(&cfg.Speech, runner)
	if err != nil {
		return nil, fmt.Errorf("speech engine: %w", err)
	}

	return pipeline.New(pipeline.Deps{
		Store:      jobs,
		Artifacts:  artifacts,
		Acquirer:   engines.Acquirer,
		Normalizer: engines.Normalizer,
		Assembler:  engines.Assembler,
		Speech:     synth,
		Reporter:   reporter,
		Validate:   validate,
		Logger:     logger,
	}, pipeline.Config{
		WorkDir:           cfg.Media.WorkDir,
		SilenceGapSeconds: cfg.Media.SilenceGapSeconds,
	}), nil
}
