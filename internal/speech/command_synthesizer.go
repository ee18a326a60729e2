package speech

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/benam/api/internal/media"
)

// CommandSynthesizer shells out to an espeak-compatible binary that accepts
// -w <wav file> and the text as its final argument.
type CommandSynthesizer struct {
	binary string
	voice  string
	runner media.Runner
}

func NewCommandSynthesizer(binary, voice string, runner media.Runner) *CommandSynthesizer {
	if binary == "" {
		binary = "espeak-ng"
	}
	if runner == nil {
		runner = media.ExecRunner{}
	}
	return &CommandSynthesizer{binary: binary, voice: voice, runner: runner}
}

func (s *CommandSynthesizer) Synthesize(ctx context.Context, text, outPath string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no text to synthesize")
	}

	args := []string{"-w", outPath}
	// OpenAI voice names mean nothing to espeak
	if s.voice != "" && s.voice != "alloy" {
		args = append(args, "-v", s.voice)
	}
	args = append(args, "--", text)

	result, err := s.runner.Run(ctx, s.binary, args...)
	if err != nil {
		return fmt.Errorf("%s failed (exit %d): %w: %s", s.binary, result.ExitCode, err, strings.TrimSpace(result.Stderr))
	}
	if info, err := os.Stat(outPath); err != nil || info.Size() == 0 {
		return fmt.Errorf("%s produced no audio", s.binary)
	}
	return nil
}
