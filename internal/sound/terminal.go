package sound

import (
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nhle/runalert/internal/model"
)

// Gate models a platform autoplay restriction: playback is refused until
// Open is called. A nil *Gate is always open.
type Gate struct {
	mu   sync.Mutex
	open bool
}

// NewGate returns a closed gate when requireInteraction is set, otherwise
// an open one.
func NewGate(requireInteraction bool) *Gate {
	return &Gate{open: !requireInteraction}
}

// Open lets playback through.
func (g *Gate) Open() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = true
}

// IsOpen reports whether playback is allowed.
func (g *Gate) IsOpen() bool {
	if g == nil {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// BellBackend plays sounds by ringing the terminal bell. Critical
// messages ring twice.
type BellBackend struct {
	Out  io.Writer
	Gate *Gate

	mu sync.Mutex
}

type bellPlayback struct {
	b     *BellBackend
	rings int
}

func (b *BellBackend) NewPlayback(p model.Priority, _ float64) (Playback, error) {
	rings := 1
	if p == model.PriorityCritical {
		rings = 2
	}
	return &bellPlayback{b: b, rings: rings}, nil
}

func (p *bellPlayback) Play(ctx context.Context) error {
	if !p.b.Gate.IsOpen() {
		return ErrPlaybackBlocked
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.b.ring(strings.Repeat("\a", p.rings))
}

func (b *BellBackend) ring(s string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := io.WriteString(b.Out, s); err != nil {
		return fmt.Errorf("ringing bell: %w", err)
	}
	return nil
}

// Prime opens the gate. The terminal bell has no silent form, so nothing
// is written.
func (b *BellBackend) Prime(context.Context) error {
	b.Gate.Open()
	return nil
}

// BellTone is the ToneSynth for terminals: a single bell, subject to the
// same gate as the backend.
type BellTone struct {
	Bell *BellBackend
}

func (t BellTone) Beep(ctx context.Context, _ Tone) error {
	if !t.Bell.Gate.IsOpen() {
		return ErrPlaybackBlocked
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.Bell.ring("\a")
}

// ExecBackend plays sound files through an external player command such
// as paplay or afplay. Args may contain {file} and {volume}.
type ExecBackend struct {
	Command string
	Args    []string
	Files   map[model.Priority]string
	Gate    *Gate

	// start launches the command; replaced in tests.
	start func(ctx context.Context, name string, args ...string) error
}

type execPlayback struct {
	b    *ExecBackend
	args []string
}

func (b *ExecBackend) NewPlayback(p model.Priority, volume float64) (Playback, error) {
	file, ok := b.Files[p]
	if !ok {
		file, ok = b.Files[model.PriorityInfo]
	}
	if !ok || file == "" {
		return nil, fmt.Errorf("no sound file configured for %s", p)
	}
	return &execPlayback{b: b, args: expandArgs(b.Args, file, volume)}, nil
}

func (p *execPlayback) Play(ctx context.Context) error {
	if !p.b.Gate.IsOpen() {
		return ErrPlaybackBlocked
	}
	return p.b.launch(ctx, p.args...)
}

// Prime opens the gate. Players exit immediately on an empty file list,
// so no primer process is started.
func (b *ExecBackend) Prime(context.Context) error {
	b.Gate.Open()
	return nil
}

func (b *ExecBackend) launch(ctx context.Context, args ...string) error {
	if b.start != nil {
		return b.start(ctx, b.Command, args...)
	}

	// The player outlives the request context; it is bounded instead.
	runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	cmd := exec.CommandContext(runCtx, b.Command, args...)
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("starting %s: %w", b.Command, err)
	}
	go func() {
		defer cancel()
		if err := cmd.Wait(); err != nil {
			log.Printf("sound: %s exited: %v", b.Command, err)
		}
	}()
	return nil
}

func expandArgs(args []string, file string, volume float64) []string {
	if len(args) == 0 {
		return []string{file}
	}
	r := strings.NewReplacer(
		"{file}", file,
		"{volume}", strconv.FormatFloat(volume, 'f', 2, 64),
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}
