package media

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"

	"github.com/benam/api/internal/model"
)

// DefaultTargetPeakDb is the peak ceiling every track is leveled to.
const DefaultTargetPeakDb = -0.5

var maxVolumePattern = regexp.MustCompile(`max_volume:\s*(-?(?:inf|\d+(?:\.\d+)?))\s*dB`)

// ParsePeak extracts the max_volume reading from ffmpeg volumedetect output.
// ok is false when the output carries no finite reading.
func ParsePeak(output string) (peakDb float64, ok bool) {
	m := maxVolumePattern.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ComputeGain is the dB adjustment that moves peakDb onto targetDb.
func ComputeGain(targetDb, peakDb float64) float64 {
	return targetDb - peakDb
}

// Normalizer levels tracks and renders silence in one canonical format.
type Normalizer interface {
	Normalize(ctx context.Context, track model.AudioTrack, outPath string) (model.AudioTrack, error)
	Silence(ctx context.Context, seconds float64, outPath string) (model.AudioTrack, error)
}

// FFmpegNormalizer implements Normalizer with two ffmpeg passes per track.
type FFmpegNormalizer struct {
	binary       string
	format       model.AudioFormat
	targetPeakDb float64
	runner       Runner
	logger       *slog.Logger
}

// NewFFmpegNormalizer creates a normalizer rendering into format.
func NewFFmpegNormalizer(binary string, format model.AudioFormat, targetPeakDb float64, runner Runner, logger *slog.Logger) *FFmpegNormalizer {
	if binary == "" {
		binary = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegNormalizer{
		binary:       binary,
		format:       format,
		targetPeakDb: targetPeakDb,
		runner:       runner,
		logger:       logger,
	}
}

// Format returns the canonical output format.
func (n *FFmpegNormalizer) Format() model.AudioFormat {
	return n.format
}

// DetectPeak measures the peak level of path in dBFS. An analysis that yields
// no finite reading is reported as 0 dB with ok=false.
func (n *FFmpegNormalizer) DetectPeak(ctx context.Context, path string) (peakDb float64, ok bool) {
	result, err := n.runner.Run(ctx, n.binary,
		"-hide_banner", "-nostats",
		"-i", path,
		"-af", "volumedetect",
		"-vn", "-sn", "-dn",
		"-f", "null", "-",
	)
	if err != nil {
		n.logger.Warn("peak analysis failed", "path", path, "error", commandError(n.binary, result, err))
		return 0, false
	}
	// volumedetect reports on stderr
	peak, ok := ParsePeak(result.Stderr + result.Stdout)
	if !ok {
		n.logger.Warn("peak analysis inconclusive, assuming 0 dB", "path", path)
		return 0, false
	}
	return peak, true
}

// Normalize measures track's peak, then re-encodes it with the compensating
// gain into the canonical format at outPath.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, track model.AudioTrack, outPath string) (model.AudioTrack, error) {
	peak, _ := n.DetectPeak(ctx, track.Path)
	gain := ComputeGain(n.targetPeakDb, peak)

	args := []string{
		"-y", "-hide_banner", "-nostats",
		"-i", track.Path,
		"-vn",
		"-af", fmt.Sprintf("volume=%.2fdB", gain),
	}
	args = append(args, encodeArgs(n.format)...)
	args = append(args, outPath)

	result, err := n.runner.Run(ctx, n.binary, args...)
	if err != nil {
		return model.AudioTrack{}, fmt.Errorf("normalize %s track: %w", track.Role, commandError(n.binary, result, err))
	}

	format := n.format
	return model.AudioTrack{
		Role:   track.Role,
		Path:   outPath,
		PeakDb: &peak,
		GainDb: &gain,
		Format: &format,
	}, nil
}

// Silence renders seconds of digital silence in the canonical format.
func (n *FFmpegNormalizer) Silence(ctx context.Context, seconds float64, outPath string) (model.AudioTrack, error) {
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		return model.AudioTrack{}, fmt.Errorf("silence duration must be positive, got %v", seconds)
	}

	source := fmt.Sprintf("anullsrc=r=%d:cl=%s", n.format.SampleRate, channelLayout(n.format.Channels))
	args := []string{
		"-y", "-hide_banner", "-nostats",
		"-f", "lavfi", "-i", source,
		"-t", strconv.FormatFloat(seconds, 'f', 3, 64),
	}
	args = append(args, encodeArgs(n.format)...)
	args = append(args, outPath)

	result, err := n.runner.Run(ctx, n.binary, args...)
	if err != nil {
		return model.AudioTrack{}, fmt.Errorf("generate silence: %w", commandError(n.binary, result, err))
	}

	format := n.format
	return model.AudioTrack{Role: model.TrackRoleSilence, Path: outPath, Format: &format}, nil
}
