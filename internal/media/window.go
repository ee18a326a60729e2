package media

import (
	"errors"
	"fmt"
	"math"

	"github.com/benam/api/internal/model"
)

var (
	// ErrInvalidWindow marks a clip window that can never be satisfied.
	ErrInvalidWindow = errors.New("invalid clip window")
	// ErrDurationExceedsCap marks a clip longer than the configured maximum.
	ErrDurationExceedsCap = errors.New("clip duration exceeds maximum")
)

// Window is a resolved clip range in seconds.
type Window struct {
	Start float64
	End   float64
}

// Duration returns End-Start.
func (w Window) Duration() float64 {
	return w.End - w.Start
}

// ValidateWindow rejects caller-supplied windows that are invalid on their
// face. It needs no knowledge of the source so it runs before any download.
func ValidateWindow(window *model.ClipWindow, maxDuration float64) error {
	if !(maxDuration > 0) || math.IsInf(maxDuration, 0) {
		return fmt.Errorf("%w: maximum duration %v must be positive", ErrInvalidWindow, maxDuration)
	}
	if window == nil {
		return nil
	}
	if window.Start < 0 || math.IsNaN(window.Start) || math.IsInf(window.Start, 0) {
		return fmt.Errorf("%w: start %vs must be a non-negative number", ErrInvalidWindow, window.Start)
	}
	if window.End == nil {
		return nil
	}
	end := *window.End
	if math.IsNaN(end) || math.IsInf(end, 0) || end <= window.Start {
		return fmt.Errorf("%w: end %vs must be after start %vs", ErrInvalidWindow, end, window.Start)
	}
	if d := end - window.Start; d > maxDuration {
		return fmt.Errorf("%w: clip duration (%vs) exceeds maximum (%vs)", ErrDurationExceedsCap, d, maxDuration)
	}
	return nil
}

// NeedsSourceDuration reports whether resolving window requires probing the source.
func NeedsSourceDuration(window *model.ClipWindow) bool {
	return window == nil || window.End == nil
}

// ResolveWindow computes the effective clip. Without an explicit end the clip
// runs to min(sourceDuration, start+maxDuration); an unknown source duration
// (zero or NaN) falls back to maxDuration.
func ResolveWindow(window *model.ClipWindow, sourceDuration, maxDuration float64) (Window, error) {
	if err := ValidateWindow(window, maxDuration); err != nil {
		return Window{}, err
	}

	var w Window
	if window != nil {
		w.Start = window.Start
	}
	if window != nil && window.End != nil {
		w.End = *window.End
	} else {
		total := sourceDuration
		if !(total > 0) {
			total = maxDuration
		}
		w.End = math.Min(total, w.Start+maxDuration)
	}

	d := w.Duration()
	if !(d > 0) || math.IsInf(d, 0) {
		return Window{}, fmt.Errorf("%w: calculated clip duration %vs (start: %vs, end: %vs)", ErrInvalidWindow, d, w.Start, w.End)
	}
	if d > maxDuration {
		return Window{}, fmt.Errorf("%w: clip duration (%vs) exceeds maximum (%vs)", ErrDurationExceedsCap, d, maxDuration)
	}
	return w, nil
}
