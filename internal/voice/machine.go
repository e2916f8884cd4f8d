// Package voice implements the entry panel's voice capture core: the
// recording session, the four-state voice activity machine, and the
// cooperative runner loop that keeps microphone capture real-time while the
// rest of the panel shares the same execution thread.
//
// The machine's lifecycle:
//
//	Idle ──trigger──▶ WaitingForSpeech ──speech──▶ Recording ──finalize──▶ Processing ──result──▶ Idle
//	                        │                          │
//	                        └──timeout──▶ Idle         └──too quiet / too short──▶ Idle
//
// Every rejection path (no speech after a trigger, too-quiet recording,
// too-short recording) is a normal outcome, not an error: the machine always
// restores Idle with the session fully released, ready for the next trigger.
//
// All machine state is owned by a single goroutine — the [Runner]. The only
// concurrency is the transcription call, which runs in its own goroutine
// during Processing and delivers its outcome over a single-slot channel.
package voice

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/entryhub/internal/observe"
	"github.com/MrWong99/entryhub/internal/vad"
	"github.com/MrWong99/entryhub/pkg/audio"
	"github.com/MrWong99/entryhub/pkg/provider/transcribe"
)

// State is the voice machine's lifecycle phase. Exactly one is active at a
// time.
type State int

const (
	// StateIdle waits for a wake trigger. No session exists.
	StateIdle State = iota

	// StateWaitingForSpeech captures audio after a trigger, waiting for a
	// block loud enough to count as speech.
	StateWaitingForSpeech

	// StateRecording captures speech until silence or the duration cap.
	StateRecording

	// StateProcessing awaits the transcriber's result. Incoming audio is
	// drained and dropped.
	StateProcessing
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingForSpeech:
		return "waiting_for_speech"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Mode selects how the panel wakes.
type Mode string

const (
	// ModeThreshold wakes on the spike detector (voice activity).
	ModeThreshold Mode = "threshold"

	// ModeTouch wakes only on a touch-screen trigger.
	ModeTouch Mode = "touch"

	// ModeButton wakes only on a physical-button trigger.
	ModeButton Mode = "button"

	// ModeDisabled never wakes.
	ModeDisabled Mode = "disabled"
)

// IsValid reports whether m is a recognised wake mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeThreshold, ModeTouch, ModeButton, ModeDisabled:
		return true
	}
	return false
}

// Calibrated state-machine defaults. All raw-amplitude thresholds are
// [audio.RawLevel] peak-to-peak units — never the scaled units the spike
// detector compares against.
const (
	// DefaultTriggerCooldown suppresses the speech check right after a
	// trigger so the trigger impulse itself cannot masquerade as speech.
	DefaultTriggerCooldown = 300 * time.Millisecond

	// DefaultWaitForSpeechTimeout bounds how long a trigger holds the
	// capture window open without speech arriving.
	DefaultWaitForSpeechTimeout = 3 * time.Second

	// DefaultSilenceDuration of trailing quiet ends a recording.
	DefaultSilenceDuration = 700 * time.Millisecond

	// DefaultMinRecording is the least recording time before trailing
	// silence may end it.
	DefaultMinRecording = 500 * time.Millisecond

	// DefaultMaxRecording caps a single utterance.
	DefaultMaxRecording = 10 * time.Second

	// DefaultSpeechThreshold is the block peak that starts a recording.
	DefaultSpeechThreshold audio.RawLevel = 500

	// DefaultSilenceThreshold is the block peak below which a block counts
	// as silence once recording. Deliberately lower than the speech
	// threshold: the hysteresis keeps a quiet trailing word from being
	// clipped.
	DefaultSilenceThreshold audio.RawLevel = 100

	// DefaultMinSpeechLevel is the least session peak for a recording to be
	// treated as speech rather than noise.
	DefaultMinSpeechLevel audio.RawLevel = 300

	// DefaultMinMeaningful is the least captured audio worth transcribing.
	DefaultMinMeaningful = 200 * time.Millisecond

	// DefaultTranscribeTimeout bounds a single transcription round trip.
	DefaultTranscribeTimeout = 30 * time.Second
)

// MachineConfig holds the state machine tunables. Zero-value fields take the
// calibrated defaults above.
type MachineConfig struct {
	Mode                 Mode
	TriggerCooldown      time.Duration
	WaitForSpeechTimeout time.Duration
	SilenceDuration      time.Duration
	MinRecording         time.Duration
	MaxRecording         time.Duration
	SpeechThreshold      audio.RawLevel
	SilenceThreshold     audio.RawLevel
	MinSpeechLevel       audio.RawLevel
	MinMeaningful        time.Duration
	TranscribeTimeout    time.Duration
}

func (c *MachineConfig) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeThreshold
	}
	if c.TriggerCooldown == 0 {
		c.TriggerCooldown = DefaultTriggerCooldown
	}
	if c.WaitForSpeechTimeout == 0 {
		c.WaitForSpeechTimeout = DefaultWaitForSpeechTimeout
	}
	if c.SilenceDuration == 0 {
		c.SilenceDuration = DefaultSilenceDuration
	}
	if c.MinRecording == 0 {
		c.MinRecording = DefaultMinRecording
	}
	if c.MaxRecording == 0 {
		c.MaxRecording = DefaultMaxRecording
	}
	if c.SpeechThreshold == 0 {
		c.SpeechThreshold = DefaultSpeechThreshold
	}
	if c.SilenceThreshold == 0 {
		c.SilenceThreshold = DefaultSilenceThreshold
	}
	if c.MinSpeechLevel == 0 {
		c.MinSpeechLevel = DefaultMinSpeechLevel
	}
	if c.MinMeaningful == 0 {
		c.MinMeaningful = DefaultMinMeaningful
	}
	if c.TranscribeTimeout == 0 {
		c.TranscribeTimeout = DefaultTranscribeTimeout
	}
}

// outcome carries a finished transcription attempt from the worker goroutine
// back to the runner.
type outcome struct {
	res transcribe.Result
	err error
}

// Machine is the voice activity state machine. It consumes one audio block
// per scheduler tick, drives the spike detector and the recording session
// through the four-state lifecycle, and emits side effects to the Feedback
// and transcriber collaborators at transitions.
//
// Machine is not safe for concurrent use. A single goroutine (the [Runner])
// must own all calls; the transition logic assumes no concurrent writer.
type Machine struct {
	cfg         MachineConfig
	detector    *vad.SpikeDetector
	transcriber transcribe.Provider
	feedback    Feedback
	metrics     *observe.Metrics
	sampleRate  int

	// onTranscript receives successfully transcribed text, after Feedback
	// has been notified. Wired to the command interpreter by the app.
	onTranscript func(text string)

	// Invariant: session != nil ⇔ state ∈ {WaitingForSpeech, Recording,
	// Processing}.
	state            State
	session          *Session
	stateEnteredAt   time.Time
	triggeredAt      time.Time
	silenceStartedAt time.Time // zero means "not currently silent"

	// recordingPeak is the loudest block peak observed from the speech-start
	// block onward. Deliberately excludes the trigger impulse and the quiet
	// waiting blocks: the too-quiet rejection judges the utterance, not the
	// bang that opened the capture window.
	recordingPeak audio.RawLevel

	// results has capacity 1; at most one transcription is in flight, which
	// the Processing state guard guarantees.
	results chan outcome

	// now is replaceable in tests to drive simulated time.
	now func() time.Time
}

// MachineOption is a functional option for [NewMachine].
type MachineOption func(*Machine)

// WithFeedback sets the UI/LED collaborator. Default: [LogFeedback].
func WithFeedback(f Feedback) MachineOption {
	return func(m *Machine) { m.feedback = f }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(met *observe.Metrics) MachineOption {
	return func(m *Machine) { m.metrics = met }
}

// WithTranscriptHandler sets the consumer of successful transcripts
// (typically the command interpreter). Default: none.
func WithTranscriptHandler(fn func(text string)) MachineOption {
	return func(m *Machine) { m.onTranscript = fn }
}

// NewMachine creates a Machine in the Idle state.
func NewMachine(cfg MachineConfig, detector *vad.SpikeDetector, transcriber transcribe.Provider, sampleRate int, opts ...MachineOption) *Machine {
	cfg.applyDefaults()
	m := &Machine{
		cfg:         cfg,
		detector:    detector,
		transcriber: transcriber,
		feedback:    LogFeedback{},
		sampleRate:  sampleRate,
		state:       StateIdle,
		results:     make(chan outcome, 1),
		now:         time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// State returns the current lifecycle phase.
func (m *Machine) State() State { return m.state }

// Mode returns the active wake mode.
func (m *Machine) Mode() Mode { return m.cfg.Mode }

// SetMode changes the wake mode. An in-progress capture cycle is unaffected;
// the new mode applies from the next return to Idle.
func (m *Machine) SetMode(mode Mode) {
	if !mode.IsValid() {
		return
	}
	m.cfg.Mode = mode
	slog.Info("wake mode updated", "mode", string(mode))
}

// Session returns the active recording session, nil in Idle. Exposed for the
// runner's status reporting.
func (m *Machine) Session() *Session { return m.session }

// ManualTrigger opens a capture window from a touch or button input. It is
// honored only in Idle; in any other state it is silently ignored — not
// queued, not an error. Unlike the threshold path there is no trigger block
// to feed.
func (m *Machine) ManualTrigger() {
	if m.state != StateIdle || m.cfg.Mode == ModeDisabled {
		return
	}
	m.metrics.RecordTrigger(context.Background(), "manual")
	m.beginCapture(nil)
}

// ProcessBlock advances the machine by one captured block. Empty blocks are
// legal in every state (a silent source simply never triggers); during
// capture they still advance the timeout clocks.
func (m *Machine) ProcessBlock(ctx context.Context, block []int16) {
	switch m.state {
	case StateIdle:
		m.tickIdle(block)
	case StateWaitingForSpeech:
		m.tickWaiting(block)
	case StateRecording:
		m.tickRecording(ctx, block)
	case StateProcessing:
		// Keep draining the peripheral; the samples are not retained.
	}
}

// tickIdle runs the spike detector and opens a capture window on a trigger.
func (m *Machine) tickIdle(block []int16) {
	if m.cfg.Mode != ModeThreshold {
		return
	}
	if !m.detector.Evaluate(block) {
		return
	}
	m.metrics.RecordTrigger(context.Background(), "threshold")
	// The trigger impulse itself is fed in, not discarded: command words
	// often begin inside the block that crossed the threshold.
	m.beginCapture(block)
}

// beginCapture creates the session and enters WaitingForSpeech.
func (m *Machine) beginCapture(triggerBlock []int16) {
	now := m.now()
	m.session = NewSession(m.cfg.MaxRecording, m.sampleRate, now)
	if len(triggerBlock) > 0 {
		m.session.Feed(triggerBlock)
	}
	m.triggeredAt = now
	m.setState(StateWaitingForSpeech)
	m.feedback.OnListening()
}

// tickWaiting feeds the block and looks for the first speech-loud block once
// the trigger cooldown has passed.
func (m *Machine) tickWaiting(block []int16) {
	now := m.now()
	m.session.Feed(block)

	elapsed := now.Sub(m.triggeredAt)
	if elapsed < m.cfg.TriggerCooldown {
		// Still inside the trigger impulse; no speech check yet.
		return
	}
	if peak := audio.PeakToPeak(block); peak > m.cfg.SpeechThreshold {
		m.silenceStartedAt = time.Time{}
		m.recordingPeak = peak
		m.setState(StateRecording)
		m.feedback.OnRecording()
		return
	}
	if elapsed > m.cfg.TriggerCooldown+m.cfg.WaitForSpeechTimeout {
		slog.Debug("no speech after trigger, discarding",
			"waited", elapsed,
			"captured", m.session.Duration(),
		)
		m.metrics.RecordRejection(context.Background(), "no_speech")
		m.abandonSession()
	}
}

// tickRecording feeds the block, tracks trailing silence, and finalizes when
// an end condition is met.
func (m *Machine) tickRecording(ctx context.Context, block []int16) {
	now := m.now()
	full := m.session.Feed(block)

	peak := audio.PeakToPeak(block)
	if peak > m.recordingPeak {
		m.recordingPeak = peak
	}

	// Silence hysteresis: a block only counts as silent below the (lower)
	// silence threshold, so speech that has dropped under the start
	// threshold still keeps the recording open.
	if peak > m.cfg.SilenceThreshold {
		m.silenceStartedAt = time.Time{}
	} else if m.silenceStartedAt.IsZero() {
		m.silenceStartedAt = now
	}

	recorded := now.Sub(m.stateEnteredAt)
	silentFor := time.Duration(0)
	if !m.silenceStartedAt.IsZero() {
		silentFor = now.Sub(m.silenceStartedAt)
	}

	switch {
	case full, recorded >= m.cfg.MaxRecording:
		m.finalize(ctx, "max_duration")
	case silentFor >= m.cfg.SilenceDuration && recorded >= m.cfg.MinRecording:
		m.finalize(ctx, "silence")
	}
}

// finalize applies the rejection checks and either hands the session to the
// transcriber or discards it.
func (m *Machine) finalize(ctx context.Context, cause string) {
	if peak := m.recordingPeak; peak < m.cfg.MinSpeechLevel {
		slog.Debug("recording rejected as noise",
			"peak", int32(peak),
			"min_speech_level", int32(m.cfg.MinSpeechLevel),
			"cause", cause,
		)
		m.metrics.RecordRejection(context.Background(), "too_quiet")
		m.abandonSession()
		return
	}
	if m.session.Duration() < m.cfg.MinMeaningful {
		slog.Debug("recording rejected as too short",
			"captured", m.session.Duration(),
			"cause", cause,
		)
		m.metrics.RecordRejection(context.Background(), "too_short")
		m.abandonSession()
		return
	}

	m.metrics.RecordingDuration.Record(context.Background(), m.session.Duration().Seconds())
	m.setState(StateProcessing)
	m.feedback.OnProcessing()
	m.startTranscription(ctx)
}

// startTranscription launches the single in-flight transcription worker.
// Only reachable from finalize, so the at-most-one invariant holds by the
// state guard.
func (m *Machine) startTranscription(ctx context.Context) {
	samples := m.session.Samples()
	rate := m.sampleRate
	timeout := m.cfg.TranscribeTimeout
	transcriber := m.transcriber
	results := m.results
	started := m.now()
	metrics := m.metrics

	go func() {
		tctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		res, err := transcriber.Transcribe(tctx, samples, rate)
		metrics.TranscribeDuration.Record(context.Background(), time.Since(started).Seconds())
		results <- outcome{res: res, err: err}
	}()
}

// completeProcessing consumes the transcription outcome and returns to Idle.
// Called by the runner when the worker's result arrives.
func (m *Machine) completeProcessing(out outcome) {
	if m.state != StateProcessing {
		// A stale result after a state reset; nothing owns it anymore.
		slog.Warn("dropping transcription result outside processing state",
			"state", m.state.String())
		return
	}
	if out.err != nil {
		slog.Warn("transcription failed", "error", out.err)
		m.metrics.TranscribeErrors.Add(context.Background(), 1)
		m.feedback.OnError(out.err.Error())
		m.abandonSession()
		return
	}

	slog.Info("transcription complete",
		"text", out.res.Text,
		"provider", out.res.Provider,
		"confidence", out.res.Confidence,
	)
	m.feedback.OnTranscript(out.res.Text)
	if m.onTranscript != nil {
		m.onTranscript(out.res.Text)
	}
	m.releaseSession()
}

// abandonSession cancels the active session and restores Idle. Every
// rejection and failure path funnels through here.
func (m *Machine) abandonSession() {
	m.session.Cancel()
	m.releaseSession()
}

// releaseSession drops the session reference and restores Idle.
func (m *Machine) releaseSession() {
	m.session = nil
	m.silenceStartedAt = time.Time{}
	m.recordingPeak = 0
	m.setState(StateIdle)
	m.feedback.OnIdle()
}

func (m *Machine) setState(s State) {
	m.state = s
	m.stateEnteredAt = m.now()
}
