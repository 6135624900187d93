package sound

import (
	"time"

	"github.com/nhle/runalert/internal/model"
)

// Tone is a synthesized fallback beep.
type Tone struct {
	Frequency float64
	Gain      float64
	Duration  time.Duration
}

const toneDuration = 300 * time.Millisecond

// vibrationPulse is the handheld vibration length.
const vibrationPulse = 200 * time.Millisecond

var volumes = map[model.Priority]float64{
	model.PriorityCritical:     1.0,
	model.PriorityAnnouncement: 0.95,
	model.PriorityWarning:      0.9,
	model.PriorityNormal:       0.8,
	model.PriorityInfo:         0.7,
}

var tones = map[model.Priority]Tone{
	model.PriorityCritical:     {Frequency: 880, Gain: 0.3, Duration: toneDuration},
	model.PriorityAnnouncement: {Frequency: 783.99, Gain: 0.28, Duration: toneDuration},
	model.PriorityWarning:      {Frequency: 659.25, Gain: 0.25, Duration: toneDuration},
	model.PriorityNormal:       {Frequency: 523.25, Gain: 0.22, Duration: toneDuration},
	model.PriorityInfo:         {Frequency: 440, Gain: 0.2, Duration: toneDuration},
}

// Volume returns the playback volume (0..1) for p.
func Volume(p model.Priority) float64 {
	if v, ok := volumes[p]; ok {
		return v
	}
	return volumes[model.PriorityInfo]
}

// ToneFor returns the fallback tone for p.
func ToneFor(p model.Priority) Tone {
	if t, ok := tones[p]; ok {
		return t
	}
	return tones[model.PriorityInfo]
}
