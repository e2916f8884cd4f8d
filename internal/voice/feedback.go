package voice

import "log/slog"

// Feedback receives fire-and-forget notifications at state transitions, for
// driving the panel's LED ring and on-screen indicators. Implementations must
// never block for more than trivial time and must never fail in a way that
// affects the state machine — the machine ignores anything they do.
type Feedback interface {
	// OnListening fires when a trigger opens a new capture window.
	OnListening()

	// OnRecording fires when speech is confirmed and recording proper begins.
	OnRecording()

	// OnProcessing fires when a finalized recording is handed to the
	// transcriber.
	OnProcessing()

	// OnIdle fires whenever the machine returns to Idle, on every outcome.
	OnIdle()

	// OnTranscript delivers the recognized text after a successful
	// transcription.
	OnTranscript(text string)

	// OnError reports a transcription failure. Called at most once per
	// recording cycle.
	OnError(msg string)
}

// NopFeedback is a Feedback that does nothing. Useful for headless operation
// and as an embedding base for partial test doubles.
type NopFeedback struct{}

var _ Feedback = NopFeedback{}

func (NopFeedback) OnListening()        {}
func (NopFeedback) OnRecording()        {}
func (NopFeedback) OnProcessing()       {}
func (NopFeedback) OnIdle()             {}
func (NopFeedback) OnTranscript(string) {}
func (NopFeedback) OnError(string)      {}

// LogFeedback writes every transition to slog. It is the default collaborator
// when no LED or display driver is wired in.
type LogFeedback struct{}

var _ Feedback = LogFeedback{}

func (LogFeedback) OnListening()  { slog.Info("panel listening") }
func (LogFeedback) OnRecording()  { slog.Info("panel recording") }
func (LogFeedback) OnProcessing() { slog.Info("panel processing") }
func (LogFeedback) OnIdle()       { slog.Debug("panel idle") }

func (LogFeedback) OnTranscript(text string) {
	slog.Info("transcript received", "text", text)
}

func (LogFeedback) OnError(msg string) {
	slog.Warn("voice pipeline error", "error", msg)
}
