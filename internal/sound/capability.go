package sound

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/nhle/runalert/internal/model"
)

// ErrPlaybackBlocked is returned by a Playback that the platform refuses
// to start, typically before the first user interaction.
var ErrPlaybackBlocked = errors.New("playback blocked until user interaction")

// Playback is a single-use handle for one sound.
type Playback interface {
	Play(ctx context.Context) error
}

// Backend creates playback handles. Every call to NewPlayback returns a
// fresh handle so overlapping sounds never share state.
type Backend interface {
	NewPlayback(p model.Priority, volume float64) (Playback, error)

	// Prime plays a silent sound to satisfy platform autoplay gates.
	Prime(ctx context.Context) error
}

// ToneSynth plays a synthesized beep.
type ToneSynth interface {
	Beep(ctx context.Context, t Tone) error
}

// Vibrator pulses handheld hardware. It reports false when the device
// cannot vibrate.
type Vibrator interface {
	Vibrate(d time.Duration) bool
}

// Toaster shows a transient visual notice.
type Toaster interface {
	Toast(p model.Priority, text string)
}

// MuteDetector is a best-effort guess at whether the device is muted.
type MuteDetector interface {
	LikelyDeviceMuted() bool
}

// AssumeUnmuted never reports the device as muted.
type AssumeUnmuted struct{}

func (AssumeUnmuted) LikelyDeviceMuted() bool { return false }

// NoVibrator is the Vibrator for devices without vibration hardware.
type NoVibrator struct{}

func (NoVibrator) Vibrate(time.Duration) bool { return false }

// LogToaster writes toasts to the log.
type LogToaster struct{}

func (LogToaster) Toast(p model.Priority, text string) {
	log.Printf("toast [%s]: %s", p, text)
}

// ToasterFunc adapts a function to Toaster.
type ToasterFunc func(p model.Priority, text string)

func (f ToasterFunc) Toast(p model.Priority, text string) { f(p, text) }
