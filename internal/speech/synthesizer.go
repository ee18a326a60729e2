package speech

import (
	"context"
	"fmt"
	"strings"

	"github.com/benam/api/internal/config"
	"github.com/benam/api/internal/media"
)

// Synthesizer renders text to an audio file. Implementations make exactly one
// attempt; callers decide whether a failure is fatal.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

// New builds the synthesizer selected by cfg.Engine.
func New(cfg *config.SpeechConfig, runner media.Runner) (Synthesizer, error) {
	switch cfg.Engine {
	case "", "http":
		s := NewHTTPSynthesizer(cfg)
		if !s.IsConfigured() {
			return nil, fmt.Errorf("speech engine http: base URL and API key are required")
		}
		return s, nil
	case "command":
		return NewCommandSynthesizer(cfg.Command, cfg.Voice, runner), nil
	default:
		return nil, fmt.Errorf("unknown speech engine %q", cfg.Engine)
	}
}

// ReviewPrompt is the spoken invitation appended when a reviewer is set.
func ReviewPrompt(djName string) string {
	name := strings.TrimSpace(djName)
	if name == "" {
		return "That was today's pick! To leave a review, say: leave a review."
	}
	return fmt.Sprintf("That was %s's pick! To leave a review for %s, say: leave a review.", name, name)
}
