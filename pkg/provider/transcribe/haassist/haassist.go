// Package haassist provides a transcription provider backed by a Home
// Assistant Assist pipeline over the WebSocket API. It implements the
// transcribe.Provider interface.
//
// Each Transcribe call runs one STT-only pipeline: the client authenticates,
// starts an assist_pipeline/run with start and end stage "stt", streams the
// PCM audio as binary frames prefixed with the handler id assigned by the
// run-start event, signals end-of-audio with a bare handler byte, and waits
// for the stt-end event carrying the recognised text.
//
// Usage:
//
//	p, err := haassist.New("http://homeassistant.local:8123", token)
//	result, err := p.Transcribe(ctx, samples, 16000)
package haassist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/entryhub/pkg/audio"
	"github.com/MrWong99/entryhub/pkg/provider/transcribe"
)

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

const (
	websocketPath = "/api/websocket"

	// defaultChunkBytes is the PCM payload size per binary frame. Home
	// Assistant reassembles the stream, so the exact size only affects
	// framing overhead.
	defaultChunkBytes = 4096
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithPipeline selects a specific assist pipeline by id. When empty the
// server's preferred pipeline is used, which is the default.
func WithPipeline(id string) Option {
	return func(p *Provider) {
		p.pipeline = id
	}
}

// WithChunkBytes sets the PCM payload size per binary frame. Defaults to 4096.
func WithChunkBytes(n int) Option {
	return func(p *Provider) {
		p.chunkBytes = n
	}
}

// Provider implements transcribe.Provider backed by a Home Assistant Assist
// pipeline. It is safe for concurrent use; every Transcribe call opens its
// own WebSocket connection.
type Provider struct {
	wsURL      string
	token      string
	pipeline   string
	chunkBytes int
}

// New creates a Provider for the Home Assistant instance at baseURL (e.g.
// "http://homeassistant.local:8123") with a long-lived access token. Both
// must be non-empty.
func New(baseURL, token string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("haassist: baseURL must not be empty")
	}
	if token == "" {
		return nil, errors.New("haassist: token must not be empty")
	}
	p := &Provider{
		wsURL:      websocketURL(baseURL),
		token:      token,
		chunkBytes: defaultChunkBytes,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// websocketURL maps an HTTP base URL onto the WebSocket API endpoint.
func websocketURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	if !strings.HasSuffix(u, websocketPath) {
		u += websocketPath
	}
	return u
}

// ---- wire types ----

// authMessage is sent in response to auth_required.
type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// runRequest starts an STT-only assist pipeline.
type runRequest struct {
	ID         int      `json:"id"`
	Type       string   `json:"type"`
	StartStage string   `json:"start_stage"`
	EndStage   string   `json:"end_stage"`
	Pipeline   string   `json:"pipeline,omitempty"`
	Input      runInput `json:"input"`
}

type runInput struct {
	SampleRate int `json:"sample_rate"`
}

// serverMessage is the envelope of every text frame the server sends.
type serverMessage struct {
	ID      int             `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Error   *serverError    `json:"error"`
	Event   *pipelineEvent  `json:"event"`
	Message string          `json:"message"`
}

type serverError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pipelineEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// runStartData is the payload of the run-start event.
type runStartData struct {
	RunnerData struct {
		STTBinaryHandlerID int `json:"stt_binary_handler_id"`
	} `json:"runner_data"`
}

// sttEndData is the payload of the stt-end event.
type sttEndData struct {
	STTOutput struct {
		Text string `json:"text"`
	} `json:"stt_output"`
}

// errorData is the payload of the error event.
type errorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Transcribe runs one STT pipeline over a fresh WebSocket connection.
func (p *Provider) Transcribe(ctx context.Context, samples []int16, sampleRate int) (transcribe.Result, error) {
	if len(samples) == 0 {
		return transcribe.Result{}, errors.New("haassist: no samples to transcribe")
	}

	conn, _, err := websocket.Dial(ctx, p.wsURL, nil)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("haassist: dial %s: %w", p.wsURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := p.authenticate(ctx, conn); err != nil {
		return transcribe.Result{}, err
	}

	run := runRequest{
		ID:         1,
		Type:       "assist_pipeline/run",
		StartStage: "stt",
		EndStage:   "stt",
		Pipeline:   p.pipeline,
		Input:      runInput{SampleRate: sampleRate},
	}
	if err := writeJSON(ctx, conn, run); err != nil {
		return transcribe.Result{}, fmt.Errorf("haassist: start pipeline: %w", err)
	}

	handlerID, err := p.awaitRunStart(ctx, conn)
	if err != nil {
		return transcribe.Result{}, err
	}

	if err := p.streamAudio(ctx, conn, byte(handlerID), samples); err != nil {
		return transcribe.Result{}, err
	}

	text, err := p.awaitText(ctx, conn)
	if err != nil {
		return transcribe.Result{}, err
	}
	return transcribe.Result{
		Text:     strings.TrimSpace(text),
		Provider: "haassist",
	}, nil
}

// authenticate performs the auth_required/auth/auth_ok handshake.
func (p *Provider) authenticate(ctx context.Context, conn *websocket.Conn) error {
	msg, err := readMessage(ctx, conn)
	if err != nil {
		return fmt.Errorf("haassist: read auth challenge: %w", err)
	}
	if msg.Type != "auth_required" {
		return fmt.Errorf("haassist: unexpected first message %q", msg.Type)
	}

	if err := writeJSON(ctx, conn, authMessage{Type: "auth", AccessToken: p.token}); err != nil {
		return fmt.Errorf("haassist: send auth: %w", err)
	}

	msg, err = readMessage(ctx, conn)
	if err != nil {
		return fmt.Errorf("haassist: read auth result: %w", err)
	}
	switch msg.Type {
	case "auth_ok":
		return nil
	case "auth_invalid":
		return fmt.Errorf("haassist: authentication rejected: %s", msg.Message)
	default:
		return fmt.Errorf("haassist: unexpected auth response %q", msg.Type)
	}
}

// awaitRunStart waits for the pipeline run to be acknowledged and returns
// the binary handler id assigned by the run-start event.
func (p *Provider) awaitRunStart(ctx context.Context, conn *websocket.Conn) (int, error) {
	for {
		msg, err := readMessage(ctx, conn)
		if err != nil {
			return 0, fmt.Errorf("haassist: await run-start: %w", err)
		}
		switch {
		case msg.Type == "result" && !msg.Success:
			if msg.Error != nil {
				return 0, fmt.Errorf("haassist: pipeline rejected: %s: %s", msg.Error.Code, msg.Error.Message)
			}
			return 0, errors.New("haassist: pipeline rejected")

		case msg.Type == "event" && msg.Event != nil && msg.Event.Type == "run-start":
			var data runStartData
			if err := json.Unmarshal(msg.Event.Data, &data); err != nil {
				return 0, fmt.Errorf("haassist: decode run-start: %w", err)
			}
			return data.RunnerData.STTBinaryHandlerID, nil

		case msg.Type == "event" && msg.Event != nil && msg.Event.Type == "error":
			return 0, pipelineError(msg.Event.Data)
		}
	}
}

// streamAudio sends the PCM as handler-prefixed binary frames followed by the
// end-of-audio marker (a frame holding only the handler byte).
func (p *Provider) streamAudio(ctx context.Context, conn *websocket.Conn, handler byte, samples []int16) error {
	pcm := audio.PCMBytes(samples)
	for len(pcm) > 0 {
		n := min(p.chunkBytes, len(pcm))
		frame := make([]byte, 1+n)
		frame[0] = handler
		copy(frame[1:], pcm[:n])
		if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
			return fmt.Errorf("haassist: stream audio: %w", err)
		}
		pcm = pcm[n:]
	}
	if err := conn.Write(ctx, websocket.MessageBinary, []byte{handler}); err != nil {
		return fmt.Errorf("haassist: end audio stream: %w", err)
	}
	return nil
}

// awaitText waits for the stt-end event and returns the recognised text.
func (p *Provider) awaitText(ctx context.Context, conn *websocket.Conn) (string, error) {
	for {
		msg, err := readMessage(ctx, conn)
		if err != nil {
			return "", fmt.Errorf("haassist: await stt-end: %w", err)
		}
		if msg.Type != "event" || msg.Event == nil {
			continue
		}
		switch msg.Event.Type {
		case "stt-end":
			var data sttEndData
			if err := json.Unmarshal(msg.Event.Data, &data); err != nil {
				return "", fmt.Errorf("haassist: decode stt-end: %w", err)
			}
			return data.STTOutput.Text, nil
		case "error":
			return "", pipelineError(msg.Event.Data)
		}
	}
}

// pipelineError turns an error event payload into a Go error.
func pipelineError(data json.RawMessage) error {
	var ed errorData
	if err := json.Unmarshal(data, &ed); err != nil {
		return errors.New("haassist: pipeline error")
	}
	return fmt.Errorf("haassist: pipeline error: %s: %s", ed.Code, ed.Message)
}

// readMessage reads the next text frame and decodes the envelope. Binary
// frames are skipped.
func readMessage(ctx context.Context, conn *websocket.Conn) (*serverMessage, error) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode server message: %w", err)
		}
		return &msg, nil
	}
}

// writeJSON marshals v and sends it as a text frame.
func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
