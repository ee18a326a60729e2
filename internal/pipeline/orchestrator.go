// Package pipeline runs one song job end to end: acquire, synthesize,
// normalize, assemble, publish, persisting a checkpoint after every stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/benam/api/internal/client"
	"github.com/benam/api/internal/media"
	"github.com/benam/api/internal/model"
	"github.com/benam/api/internal/speech"
	"github.com/benam/api/internal/store"
)

// Checkpoints in the order they are persisted.
const (
	ProgressStarted            = 0
	ProgressAudioAcquired      = 40
	ProgressThumbnailAcquired  = 50
	ProgressDJReady            = 60
	ProgressReviewReady        = 70
	ProgressAssembled          = 75
	ProgressPrimaryPublished   = 85
	ProgressCombinedPublished  = 90
	ProgressThumbnailPublished = 95
)

const asciiWidth = 60

// Config holds per-deployment pipeline settings.
type Config struct {
	WorkDir           string
	SilenceGapSeconds float64
}

// Deps are the collaborators of an Orchestrator. Reporter, Decorate, Logger
// and the temp dir functions are optional.
type Deps struct {
	Store      store.JobStore
	Artifacts  client.ArtifactStore
	Acquirer   media.Acquirer
	Normalizer media.Normalizer
	Assembler  media.Assembler
	Speech     speech.Synthesizer
	Reporter   Reporter
	Validate   *validator.Validate
	Logger     *slog.Logger

	// Decorate renders the thumbnail as text for the job record.
	Decorate  func(path string) (string, error)
	MkdirTemp func(dir, pattern string) (string, error)
	RemoveAll func(path string) error
}

// Orchestrator drives a single job through every stage.
type Orchestrator struct {
	store      store.JobStore
	artifacts  client.ArtifactStore
	acquirer   media.Acquirer
	normalizer media.Normalizer
	assembler  media.Assembler
	speech     speech.Synthesizer
	reporter   Reporter
	validate   *validator.Validate
	logger     *slog.Logger
	decorate   func(path string) (string, error)
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
	cfg        Config
}

func New(deps Deps, cfg Config) *Orchestrator {
	o := &Orchestrator{
		store:      deps.Store,
		artifacts:  deps.Artifacts,
		acquirer:   deps.Acquirer,
		normalizer: deps.Normalizer,
		assembler:  deps.Assembler,
		speech:     deps.Speech,
		reporter:   deps.Reporter,
		validate:   deps.Validate,
		logger:     deps.Logger,
		decorate:   deps.Decorate,
		mkdirTemp:  deps.MkdirTemp,
		removeAll:  deps.RemoveAll,
		cfg:        cfg,
	}
	if o.reporter == nil {
		o.reporter = nopReporter{}
	}
	if o.validate == nil {
		o.validate = validator.New()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.decorate == nil {
		o.decorate = func(path string) (string, error) { return media.RenderASCII(path, asciiWidth) }
	}
	if o.mkdirTemp == nil {
		o.mkdirTemp = os.MkdirTemp
	}
	if o.removeAll == nil {
		o.removeAll = os.RemoveAll
	}
	if o.cfg.SilenceGapSeconds <= 0 {
		o.cfg.SilenceGapSeconds = 1
	}
	return o
}

// run carries the state of one invocation.
type run struct {
	inv    *model.Invocation
	job    *model.Job
	dir    string
	logger *slog.Logger

	window    media.Window
	primary   model.AudioTrack
	thumbnail string
	dj        model.AudioTrack
	review    model.AudioTrack
	combined  *model.AudioTrack
	result    model.JobResult
}

// Run processes one invocation. It returns the final job record, or a
// *ProcessingFailure when the job was recorded as failed. Re-running a
// finished job returns its stored record without side effects; a run whose
// record was superseded or cancelled stops with store.ErrSuperseded.
func (o *Orchestrator) Run(ctx context.Context, inv *model.Invocation) (*model.Job, error) {
	if err := o.validate.Struct(inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInvocation, err)
	}

	logger := o.logger.With("job_id", inv.JobID, "date_key", inv.DateKey)

	job, err := o.store.Begin(ctx, inv)
	if errors.Is(err, store.ErrTerminal) {
		logger.Info("job already finished, nothing to do", "status", job.Status)
		return job, nil
	}
	if err != nil {
		return nil, fmt.Errorf("begin job: %w", err)
	}
	o.reporter.Progress(job)
	logger.Info("job started", "source", inv.SourceRef)

	dir, err := o.mkdirTemp(o.cfg.WorkDir, "song-"+inv.JobID+"-")
	if err != nil {
		return o.fail(ctx, &run{inv: inv, job: job, logger: logger}, stageErr(KindAcquisition, "prepare work dir", err))
	}
	defer func() {
		if err := o.removeAll(dir); err != nil {
			logger.Warn("failed to remove work dir", "dir", dir, "error", err)
		}
	}()

	r := &run{inv: inv, job: job, dir: dir, logger: logger}
	stages := []struct {
		fn       func(context.Context, *run) *StageError
		progress int
		step     string
	}{
		{o.acquireAudio, ProgressAudioAcquired, "audio acquired"},
		{o.acquireThumbnail, ProgressThumbnailAcquired, "thumbnail acquired"},
		{o.prepareDJMessage, ProgressDJReady, "dj message ready"},
		{o.prepareReviewPrompt, ProgressReviewReady, "review prompt ready"},
		{o.assemble, ProgressAssembled, "assembled"},
		{o.publishPrimary, ProgressPrimaryPublished, "song published"},
		{o.publishCombined, ProgressCombinedPublished, "combined audio published"},
		{o.publishThumbnail, ProgressThumbnailPublished, "thumbnail published"},
	}

	for _, s := range stages {
		if serr := s.fn(ctx, r); serr != nil {
			return o.fail(ctx, r, serr)
		}
		if stop, err := o.checkpoint(ctx, r, s.progress, s.step); stop {
			return r.job, err
		}
	}

	duration := r.window.Duration()
	r.result.DurationSeconds = &duration
	done, err := o.store.Complete(ctx, inv.DateKey, inv.JobID, &r.result)
	if err != nil {
		if errors.Is(err, store.ErrTerminal) {
			return done, nil
		}
		return nil, fmt.Errorf("complete job: %w", err)
	}
	o.reporter.Completed(done)
	logger.Info("job completed",
		"primary", done.PrimaryArtifactRef,
		"combined", done.CombinedArtifactRef,
		"duration_seconds", duration,
	)
	return done, nil
}

// checkpoint persists progress. stop is true when the run must end without
// further writes because the record moved on without it.
func (o *Orchestrator) checkpoint(ctx context.Context, r *run, progress int, step string) (stop bool, err error) {
	job, err := o.store.Checkpoint(ctx, r.inv.DateKey, r.inv.JobID, progress, step)
	switch {
	case err == nil:
		r.job = job
		o.reporter.Progress(job)
		r.logger.Debug("checkpoint", "progress", job.Progress, "step", step)
		return false, nil
	case errors.Is(err, store.ErrTerminal):
		r.logger.Info("job finished elsewhere, stopping", "status", job.Status)
		r.job = job
		return true, nil
	case errors.Is(err, store.ErrSuperseded):
		r.logger.Info("job superseded or cancelled, stopping")
		return true, err
	default:
		return true, fmt.Errorf("checkpoint %q: %w", step, err)
	}
}

// fail records the failure and returns a *ProcessingFailure.
func (o *Orchestrator) fail(ctx context.Context, r *run, cause *StageError) (*model.Job, error) {
	r.logger.Error("job failed", "kind", cause.Kind, "stage", cause.Stage, "error", cause.Err)

	// the job context may already be past its deadline
	job, err := o.store.Fail(context.WithoutCancel(ctx), r.inv.DateKey, r.inv.JobID, cause.Error())
	switch {
	case err == nil:
		o.reporter.Failed(job)
	case errors.Is(err, store.ErrSuperseded), errors.Is(err, store.ErrTerminal):
		r.logger.Info("failure not recorded, record moved on", "error", err)
		return job, err
	default:
		return nil, fmt.Errorf("record failure (%v): %w", cause, err)
	}
	return job, &ProcessingFailure{JobID: r.inv.JobID, DateKey: r.inv.DateKey, Cause: cause}
}

func (o *Orchestrator) decorationFailed(r *run, stage string, err error) {
	serr := stageErr(KindDecoration, stage, err)
	r.logger.Warn("decoration skipped", "kind", serr.Kind, "stage", stage, "error", err)
}

func (o *Orchestrator) fetchRequest(r *run) media.FetchRequest {
	return media.FetchRequest{
		SourceRef:   r.inv.SourceRef,
		Window:      r.inv.ClipWindow,
		MaxDuration: r.inv.MaxDurationSeconds,
		WorkDir:     r.dir,
		BaseName:    "source",
	}
}

func (o *Orchestrator) acquireAudio(ctx context.Context, r *run) *StageError {
	track, window, err := o.acquirer.FetchAudio(ctx, o.fetchRequest(r))
	if err != nil {
		return stageErr(KindAcquisition, "acquire audio", err)
	}
	r.primary = track
	r.window = window
	return nil
}

func (o *Orchestrator) acquireThumbnail(ctx context.Context, r *run) *StageError {
	path, err := o.acquirer.FetchThumbnail(ctx, o.fetchRequest(r))
	if err != nil {
		o.decorationFailed(r, "acquire thumbnail", err)
		return nil
	}
	r.thumbnail = path
	return nil
}

func (o *Orchestrator) prepareDJMessage(ctx context.Context, r *run) *StageError {
	msg := r.job.DJMessage
	if msg == nil {
		return nil
	}

	switch msg.Kind {
	case model.DJMessageSynthesized:
		path := filepath.Join(r.dir, "dj-tts.mp3")
		if err := o.speech.Synthesize(ctx, msg.Text, path); err != nil {
			return stageErr(KindSynthesis, "synthesize dj message", err)
		}
		r.dj = model.AudioTrack{Role: model.TrackRoleDJMessage, Path: path}
	case model.DJMessageRecorded:
		ext := filepath.Ext(msg.RecordingKey)
		if ext == "" {
			ext = ".webm"
		}
		path := filepath.Join(r.dir, "dj-recording"+ext)
		if err := o.artifacts.Download(ctx, msg.RecordingKey, path); err != nil {
			return stageErr(KindAcquisition, "fetch recorded dj message", err)
		}
		r.dj = model.AudioTrack{Role: model.TrackRoleDJMessage, Path: path}
	default:
		return stageErr(KindSynthesis, "prepare dj message", fmt.Errorf("unknown dj message kind %q", msg.Kind))
	}
	return nil
}

func (o *Orchestrator) prepareReviewPrompt(ctx context.Context, r *run) *StageError {
	if r.job.ReviewerContact == "" {
		return nil
	}
	path := filepath.Join(r.dir, "review-prompt.mp3")
	if err := o.speech.Synthesize(ctx, speech.ReviewPrompt(r.job.DJName), path); err != nil {
		return stageErr(KindSynthesis, "synthesize review prompt", err)
	}
	r.review = model.AudioTrack{Role: model.TrackRoleReviewPrompt, Path: path}
	return nil
}

// assemble normalizes every track and concatenates them. Optional tracks that
// fail to normalize are dropped; the primary track is required.
func (o *Orchestrator) assemble(ctx context.Context, r *run) *StageError {
	primary, err := o.normalizer.Normalize(ctx, r.primary, filepath.Join(r.dir, "primary.mp3"))
	if err != nil {
		return stageErr(KindAssembly, "normalize song", err)
	}
	r.primary = primary
	r.logger.Info("song normalized", "peak_db", deref(primary.PeakDb), "gain_db", deref(primary.GainDb))

	optional := func(t model.AudioTrack, name string) model.AudioTrack {
		if t.Path == "" {
			return t
		}
		out, err := o.normalizer.Normalize(ctx, t, filepath.Join(r.dir, name))
		if err != nil {
			r.logger.Warn("dropping track that failed to normalize", "role", t.Role, "error", err)
			return model.AudioTrack{}
		}
		return out
	}
	r.dj = optional(r.dj, "dj.mp3")
	r.review = optional(r.review, "review.mp3")

	if r.dj.Path == "" && r.review.Path == "" {
		return nil
	}

	gap, err := o.normalizer.Silence(ctx, o.cfg.SilenceGapSeconds, filepath.Join(r.dir, "gap.mp3"))
	if err != nil {
		return stageErr(KindAssembly, "generate silence", err)
	}
	tracks := media.Interleave([]model.AudioTrack{r.primary, r.dj, r.review}, gap)
	combined, err := o.assembler.Assemble(ctx, tracks, filepath.Join(r.dir, "combined.mp3"))
	if err != nil {
		return stageErr(KindAssembly, "concatenate tracks", err)
	}
	r.combined = &combined
	return nil
}

func (o *Orchestrator) publishPrimary(ctx context.Context, r *run) *StageError {
	key := model.ArtifactKey(model.ArtifactSongs, r.inv.DateKey, r.inv.JobID, "mp3")
	if _, err := o.artifacts.UploadFile(ctx, key, r.primary.Path, client.ContentTypeFor("mp3")); err != nil {
		return stageErr(KindPublish, "publish song", err)
	}
	r.result.PrimaryArtifactRef = key
	return nil
}

func (o *Orchestrator) publishCombined(ctx context.Context, r *run) *StageError {
	if r.combined == nil {
		r.result.CombinedArtifactRef = r.result.PrimaryArtifactRef
		return nil
	}
	key := model.ArtifactKey(model.ArtifactCombined, r.inv.DateKey, r.inv.JobID, "mp3")
	if _, err := o.artifacts.UploadFile(ctx, key, r.combined.Path, client.ContentTypeFor("mp3")); err != nil {
		return stageErr(KindPublish, "publish combined audio", err)
	}
	r.result.CombinedArtifactRef = key
	return nil
}

func (o *Orchestrator) publishThumbnail(ctx context.Context, r *run) *StageError {
	if r.thumbnail == "" {
		return nil
	}
	key := model.ArtifactKey(model.ArtifactThumbnails, r.inv.DateKey, r.inv.JobID, "jpg")
	if _, err := o.artifacts.UploadFile(ctx, key, r.thumbnail, client.ContentTypeFor("jpg")); err != nil {
		o.decorationFailed(r, "publish thumbnail", err)
	} else {
		r.result.ThumbnailArtifactRef = key
	}

	art, err := o.decorate(r.thumbnail)
	if err != nil {
		o.decorationFailed(r, "render ascii thumbnail", err)
		return nil
	}
	r.result.AsciiThumbnail = art
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
