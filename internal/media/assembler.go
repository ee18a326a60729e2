package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/benam/api/internal/model"
)

var (
	// ErrNoTracks is returned when there is nothing to assemble.
	ErrNoTracks = errors.New("no tracks to assemble")
	// ErrFormatMismatch is returned when a track is not in the canonical format.
	ErrFormatMismatch = errors.New("track format does not match canonical format")
)

// Interleave places gap between consecutive present tracks. Tracks with an
// empty path are absent and skipped.
func Interleave(tracks []model.AudioTrack, gap model.AudioTrack) []model.AudioTrack {
	out := make([]model.AudioTrack, 0, len(tracks)*2)
	for _, t := range tracks {
		if t.Path == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, gap)
		}
		out = append(out, t)
	}
	return out
}

// Assembler concatenates canonical tracks into one file.
type Assembler interface {
	Assemble(ctx context.Context, tracks []model.AudioTrack, outPath string) (model.AudioTrack, error)
}

// FFmpegAssembler concatenates with the concat demuxer and stream copy.
type FFmpegAssembler struct {
	binary string
	format model.AudioFormat
	runner Runner
}

// NewFFmpegAssembler creates an assembler that accepts tracks in format only.
func NewFFmpegAssembler(binary string, format model.AudioFormat, runner Runner) *FFmpegAssembler {
	if binary == "" {
		binary = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &FFmpegAssembler{binary: binary, format: format, runner: runner}
}

// Assemble joins tracks in order into outPath. Stream copy is only sound when
// every input shares the canonical format, so mismatches are rejected.
func (a *FFmpegAssembler) Assemble(ctx context.Context, tracks []model.AudioTrack, outPath string) (model.AudioTrack, error) {
	if len(tracks) == 0 {
		return model.AudioTrack{}, ErrNoTracks
	}
	for i, t := range tracks {
		if !sameFormat(t.Format, a.format) {
			return model.AudioTrack{}, fmt.Errorf("%w: track %d (%s)", ErrFormatMismatch, i, t.Role)
		}
	}

	listPath := outPath + ".concat.txt"
	if err := writeConcatList(listPath, tracks); err != nil {
		return model.AudioTrack{}, fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	result, err := a.runner.Run(ctx, a.binary,
		"-y", "-hide_banner", "-nostats",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	)
	if err != nil {
		return model.AudioTrack{}, fmt.Errorf("concatenate tracks: %w", commandError(a.binary, result, err))
	}

	format := a.format
	return model.AudioTrack{Role: model.TrackRolePrimary, Path: outPath, Format: &format}, nil
}

func writeConcatList(path string, tracks []model.AudioTrack) error {
	var b strings.Builder
	for _, t := range tracks {
		abs, err := filepath.Abs(t.Path)
		if err != nil {
			return err
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}
