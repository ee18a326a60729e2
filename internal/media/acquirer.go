package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/benam/api/internal/model"
)

// FetchRequest describes one acquisition from a video reference.
type FetchRequest struct {
	SourceRef   string
	Window      *model.ClipWindow
	MaxDuration float64
	WorkDir     string
	// BaseName names the files written into WorkDir (without extension).
	BaseName string
}

// Acquirer retrieves audio and cover art for a video reference. Callers
// treat a FetchThumbnail error as non-fatal.
type Acquirer interface {
	FetchAudio(ctx context.Context, req FetchRequest) (model.AudioTrack, Window, error)
	FetchThumbnail(ctx context.Context, req FetchRequest) (string, error)
}

// YtDlpAcquirer drives yt-dlp (with its ffmpeg postprocessor) to fetch media.
type YtDlpAcquirer struct {
	binary       string
	cookiesFile  string
	audioQuality string
	runner       Runner
}

// NewYtDlpAcquirer creates an acquirer. cookiesFile may be empty.
func NewYtDlpAcquirer(binary, cookiesFile string, runner Runner) *YtDlpAcquirer {
	if binary == "" {
		binary = "yt-dlp"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &YtDlpAcquirer{
		binary:       binary,
		cookiesFile:  cookiesFile,
		audioQuality: "192K",
		runner:       runner,
	}
}

type videoInfo struct {
	Duration float64 `json:"duration"`
	Title    string  `json:"title"`
}

// ProbeDuration asks yt-dlp for the source's metadata and returns its duration
// in seconds. Zero means the source did not report one.
func (a *YtDlpAcquirer) ProbeDuration(ctx context.Context, sourceRef, workDir string) (float64, error) {
	args := []string{"--dump-json", "--no-playlist"}
	cookies, err := a.cookiesArgs(workDir)
	if err != nil {
		return 0, err
	}
	args = append(args, cookies...)
	args = append(args, sourceRef)

	result, err := a.runner.Run(ctx, a.binary, args...)
	if err != nil {
		return 0, fmt.Errorf("get video info: %w", commandError(a.binary, result, err))
	}

	var info videoInfo
	if err := json.Unmarshal([]byte(result.Stdout), &info); err != nil {
		return 0, fmt.Errorf("parse video info: %w", err)
	}
	if math.IsNaN(info.Duration) || info.Duration < 0 {
		return 0, nil
	}
	return info.Duration, nil
}

// FetchAudio validates the clip window, resolves it against the source and
// downloads the clip as MP3. The window is checked before any command runs.
func (a *YtDlpAcquirer) FetchAudio(ctx context.Context, req FetchRequest) (model.AudioTrack, Window, error) {
	if err := ValidateWindow(req.Window, req.MaxDuration); err != nil {
		return model.AudioTrack{}, Window{}, err
	}

	var sourceDuration float64
	if NeedsSourceDuration(req.Window) {
		d, err := a.ProbeDuration(ctx, req.SourceRef, req.WorkDir)
		if err != nil {
			return model.AudioTrack{}, Window{}, err
		}
		sourceDuration = d
	}

	window, err := ResolveWindow(req.Window, sourceDuration, req.MaxDuration)
	if err != nil {
		return model.AudioTrack{}, Window{}, err
	}

	cookies, err := a.cookiesArgs(req.WorkDir)
	if err != nil {
		return model.AudioTrack{}, Window{}, err
	}

	template := filepath.Join(req.WorkDir, req.BaseName+".%(ext)s")
	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", a.audioQuality,
		"--no-playlist",
	}
	args = append(args, cookies...)
	args = append(args,
		"--output", template,
		"--postprocessor-args", fmt.Sprintf("ffmpeg:-ss %s -t %s", seconds(window.Start), seconds(window.Duration())),
		req.SourceRef,
	)

	result, err := a.runner.Run(ctx, a.binary, args...)
	if err != nil {
		return model.AudioTrack{}, Window{}, fmt.Errorf("download audio: %w", commandError(a.binary, result, err))
	}

	path := filepath.Join(req.WorkDir, req.BaseName+".mp3")
	if _, err := os.Stat(path); err != nil {
		return model.AudioTrack{}, Window{}, fmt.Errorf("downloaded audio missing: %w", err)
	}

	return model.AudioTrack{Role: model.TrackRolePrimary, Path: path}, window, nil
}

// FetchThumbnail downloads the video's cover image as JPEG.
func (a *YtDlpAcquirer) FetchThumbnail(ctx context.Context, req FetchRequest) (string, error) {
	cookies, err := a.cookiesArgs(req.WorkDir)
	if err != nil {
		return "", err
	}

	base := filepath.Join(req.WorkDir, req.BaseName)
	args := []string{"--write-thumbnail", "--skip-download", "--convert-thumbnails", "jpg", "--no-playlist"}
	args = append(args, cookies...)
	args = append(args, "--output", base+".%(ext)s", req.SourceRef)

	result, err := a.runner.Run(ctx, a.binary, args...)
	if err != nil {
		return "", fmt.Errorf("download thumbnail: %w", commandError(a.binary, result, err))
	}

	path := base + ".jpg"
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("thumbnail missing: %w", err)
	}
	return path, nil
}

// cookiesArgs copies the configured cookies file into workDir (yt-dlp rewrites
// it, and the configured location may be read-only) and returns the flag.
func (a *YtDlpAcquirer) cookiesArgs(workDir string) ([]string, error) {
	if a.cookiesFile == "" {
		return nil, nil
	}
	dst := filepath.Join(workDir, "cookies.txt")
	if _, err := os.Stat(dst); err == nil {
		return []string{"--cookies", dst}, nil
	}
	if err := copyFile(a.cookiesFile, dst); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No cookies on disk; proceed anonymously.
			return nil, nil
		}
		return nil, fmt.Errorf("copy cookies file: %w", err)
	}
	return []string{"--cookies", dst}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
