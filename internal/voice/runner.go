package voice

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/entryhub/pkg/audio"
)

// Scheduling defaults. While the machine is WaitingForSpeech or Recording the
// source must be drained on the fast interval: the capture peripheral buffers
// only a bounded window of samples, and missing it drops audio. Idle and
// Processing tolerate the slow interval.
const (
	// DefaultFastPoll is the audio polling interval during time-critical
	// capture phases.
	DefaultFastPoll = 10 * time.Millisecond

	// DefaultSlowPoll is the polling interval while Idle or Processing.
	DefaultSlowPoll = 50 * time.Millisecond

	// DefaultUITick is the reduced-rate cadence for UI refresh callbacks
	// during capture, keeping visual feedback alive without starving audio.
	DefaultUITick = 100 * time.Millisecond

	// DefaultStatusInterval is the cadence of the runner's status report.
	DefaultStatusInterval = 30 * time.Second

	// DefaultBlockSamples is the per-read block size. 512 samples at
	// 16 kHz is 32 ms of audio.
	DefaultBlockSamples = 512

	// DefaultReadTimeout bounds a single source read; it must stay well
	// below the fast poll interval so a stalled peripheral cannot stall
	// the tick.
	DefaultReadTimeout = 5 * time.Millisecond
)

// RunnerConfig holds the scheduler tunables. Zero-value fields take the
// defaults above.
type RunnerConfig struct {
	FastPoll       time.Duration
	SlowPoll       time.Duration
	UITick         time.Duration
	StatusInterval time.Duration
	BlockSamples   int
	ReadTimeout    time.Duration
}

func (c *RunnerConfig) applyDefaults() {
	if c.FastPoll == 0 {
		c.FastPoll = DefaultFastPoll
	}
	if c.SlowPoll == 0 {
		c.SlowPoll = DefaultSlowPoll
	}
	if c.UITick == 0 {
		c.UITick = DefaultUITick
	}
	if c.StatusInterval == 0 {
		c.StatusInterval = DefaultStatusInterval
	}
	if c.BlockSamples == 0 {
		c.BlockSamples = DefaultBlockSamples
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
}

// Runner owns the voice machine and executes the cooperative capture loop.
// All machine mutations happen on the Run goroutine; external inputs (manual
// triggers, transcription results) arrive over channels and are serialized
// there.
type Runner struct {
	cfg     RunnerConfig
	machine *Machine
	source  audio.Source
	buf     []int16

	// manual has capacity 1: a trigger arriving while one is pending is the
	// same trigger.
	manual chan struct{}

	// apply carries control mutations (live config updates) onto the run
	// goroutine, which owns all machine state.
	apply chan func(*Machine)

	// onUITick, when set, is invoked at the reduced UI cadence (display
	// refresh hook).
	onUITick func()
}

// RunnerOption is a functional option for [NewRunner].
type RunnerOption func(*Runner)

// WithUITick registers a display refresh hook serviced at the UI cadence.
func WithUITick(fn func()) RunnerOption {
	return func(r *Runner) { r.onUITick = fn }
}

// NewRunner creates a runner over the given machine and audio source.
func NewRunner(cfg RunnerConfig, m *Machine, src audio.Source, opts ...RunnerOption) *Runner {
	cfg.applyDefaults()
	r := &Runner{
		cfg:     cfg,
		machine: m,
		source:  src,
		buf:     make([]int16, cfg.BlockSamples),
		manual:  make(chan struct{}, 1),
		apply:   make(chan func(*Machine), 4),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ManualTrigger requests a touch/button wake. Safe to call from any
// goroutine; the trigger is coalesced and handled on the run loop, and
// ignored there unless the machine is Idle.
func (r *Runner) ManualTrigger() {
	select {
	case r.manual <- struct{}{}:
	default:
	}
}

// Apply schedules fn to run on the loop goroutine against the machine, for
// live config updates such as a wake mode change. Safe to call from any
// goroutine. If the control queue is full the update is dropped with a
// warning rather than blocking the caller.
func (r *Runner) Apply(fn func(*Machine)) {
	select {
	case r.apply <- fn:
	default:
		slog.Warn("voice runner control queue full, dropping update")
	}
}

// Run executes the capture loop until ctx is cancelled. It returns ctx.Err()
// on shutdown.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("voice runner started",
		"fast_poll", r.cfg.FastPoll,
		"slow_poll", r.cfg.SlowPoll,
		"block_samples", r.cfg.BlockSamples,
		"sample_rate", r.source.SampleRate(),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	var lastUI, lastStatus time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-r.manual:
			r.machine.ManualTrigger()

		case fn := <-r.apply:
			fn(r.machine)

		case out := <-r.machine.results:
			r.machine.completeProcessing(out)

		case <-timer.C:
			r.tick(ctx, &lastUI, &lastStatus)
			timer.Reset(r.interval())
		}
	}
}

// tick drains one block from the source and advances the machine, then
// services the lower-priority periodic work.
func (r *Runner) tick(ctx context.Context, lastUI, lastStatus *time.Time) {
	n, err := r.source.ReadBlock(r.buf, r.cfg.ReadTimeout)
	if err != nil {
		// A read error is degraded mode, not fatal: the machine simply sees
		// an empty block and never triggers.
		slog.Debug("audio read failed", "error", err)
		n = 0
	}
	if n > 0 {
		r.machine.metrics.AudioBlocksRead.Add(context.Background(), 1)
	}
	r.machine.ProcessBlock(ctx, r.buf[:n])

	now := time.Now()
	if r.onUITick != nil && now.Sub(*lastUI) >= r.cfg.UITick {
		*lastUI = now
		r.onUITick()
	}
	if now.Sub(*lastStatus) >= r.cfg.StatusInterval {
		*lastStatus = now
		r.reportStatus()
	}
}

// interval selects the polling cadence for the current state: fast while
// audio capture is time-critical, slow otherwise.
func (r *Runner) interval() time.Duration {
	switch r.machine.State() {
	case StateWaitingForSpeech, StateRecording:
		return r.cfg.FastPoll
	default:
		return r.cfg.SlowPoll
	}
}

// reportStatus logs a heartbeat and refreshes the ambient gauges.
func (r *Runner) reportStatus() {
	det := r.machine.detector
	r.machine.metrics.BaselineLevel.Record(context.Background(), int64(det.BaselineValue()))
	slog.Info("voice status",
		"state", r.machine.State().String(),
		"mode", string(r.machine.Mode()),
		"baseline", int64(det.BaselineValue()),
		"threshold", int64(det.Threshold()),
		"last_level", int64(det.LastLevel()),
	)
}
