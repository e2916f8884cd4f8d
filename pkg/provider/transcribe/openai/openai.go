// Package openai provides a transcription provider backed by the OpenAI
// audio transcription API. It implements the transcribe.Provider interface
// and serves as the cloud fallback when the local pipeline is unavailable.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/entryhub/pkg/audio"
	"github.com/MrWong99/entryhub/pkg/provider/transcribe"
)

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

const defaultModel = oai.AudioModelWhisper1

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Useful for
// API-compatible local gateways.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel sets the transcription model (e.g. "whisper-1",
// "gpt-4o-mini-transcribe"). Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements transcribe.Provider using the OpenAI API. It is safe
// for concurrent use.
type Provider struct {
	client oai.Client
	model  oai.AudioModel
}

// New constructs an OpenAI transcription Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	model := oai.AudioModel(cfg.model)
	if model == "" {
		model = defaultModel
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Transcribe encodes the samples as WAV and submits them to the audio
// transcription endpoint.
func (p *Provider) Transcribe(ctx context.Context, samples []int16, sampleRate int) (transcribe.Result, error) {
	if len(samples) == 0 {
		return transcribe.Result{}, errors.New("openai: no samples to transcribe")
	}

	wav := audio.EncodeWAV(samples, sampleRate)

	resp, err := p.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: p.model,
	})
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("openai: transcription request: %w", err)
	}

	return transcribe.Result{
		Text:     strings.TrimSpace(resp.Text),
		Provider: "openai",
	}, nil
}
