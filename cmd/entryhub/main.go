// Command entryhub is the voice-capture and command-dispatch daemon for a
// smart-home entry panel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/entryhub/internal/command"
	"github.com/MrWong99/entryhub/internal/config"
	"github.com/MrWong99/entryhub/internal/health"
	"github.com/MrWong99/entryhub/internal/homeassistant"
	"github.com/MrWong99/entryhub/internal/observe"
	"github.com/MrWong99/entryhub/internal/vad"
	"github.com/MrWong99/entryhub/internal/voice"
	"github.com/MrWong99/entryhub/pkg/audio"
	"github.com/MrWong99/entryhub/pkg/audio/pcmstream"
	"github.com/MrWong99/entryhub/pkg/provider/transcribe"
	"github.com/MrWong99/entryhub/pkg/provider/transcribe/haassist"
	"github.com/MrWong99/entryhub/pkg/provider/transcribe/openai"
	"github.com/MrWong99/entryhub/pkg/provider/transcribe/whisper"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("entryhub", version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "entryhub: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "entryhub: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so the config watcher can adjust it live.
	logLevel := new(slog.LevelVar)
	logLevel.Set(cfg.Panel.LogLevel.Slog())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("entryhub starting",
		"version", version,
		"config", *configPath,
		"panel", cfg.Panel.Name,
		"listen_addr", cfg.Panel.ListenAddr,
		"log_level", cfg.Panel.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "entryhub",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Transcription chain ───────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinTranscribers(reg, cfg)

	transcriber, err := reg.CreateChain(cfg.Providers)
	if err != nil {
		slog.Error("failed to build transcription chain", "err", err)
		return 1
	}
	slog.Info("transcription chain ready",
		"primary", cfg.Providers.Transcriber.Name,
		"fallbacks", len(cfg.Providers.Fallbacks),
	)

	// ── Home Assistant actuation ──────────────────────────────────────────────
	var actuator command.Actuator
	var haClient *homeassistant.Client
	if cfg.HomeAssistant.BaseURL != "" {
		opts := []homeassistant.Option{}
		if d := msDur(cfg.HomeAssistant.TimeoutMs); d > 0 {
			opts = append(opts, homeassistant.WithTimeout(d))
		}
		haClient, err = homeassistant.New(cfg.HomeAssistant.BaseURL, cfg.HomeAssistant.Token, opts...)
		if err != nil {
			slog.Error("failed to create Home Assistant client", "err", err)
			return 1
		}
		actuator = haClient
	} else {
		actuator = logActuator{}
	}
	interpreter := command.NewInterpreter(actuator, command.WithMetrics(metrics))

	// ── Voice pipeline ────────────────────────────────────────────────────────
	detector := vad.NewSpikeDetector(cfg.DetectorConfig())

	var src audio.Source
	var srcCloser interface{ Close() error }
	if cfg.Audio.Device != "" {
		ps := pcmstream.Open(cfg.Audio.Device, cfg.Audio.Rate())
		src, srcCloser = ps, ps
	} else {
		slog.Warn("no audio device configured, running in degraded mode (manual triggers only)")
		ps := pcmstream.Silent(cfg.Audio.Rate())
		src, srcCloser = ps, ps
	}
	defer srcCloser.Close()

	machine := voice.NewMachine(cfg.MachineConfig(), detector, transcriber, cfg.Audio.Rate(),
		voice.WithMetrics(metrics),
		voice.WithTranscriptHandler(func(text string) {
			interpreter.HandleTranscript(ctx, text)
		}),
	)
	runner := voice.NewRunner(cfg.RunnerConfig(), machine, src)

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(d.NewLogLevel.Slog())
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.SensitivityChanged {
			// The run goroutine owns the detector; never mutate it from the
			// watcher's poll goroutine.
			sens := d.NewSensitivity
			runner.Apply(func(*voice.Machine) { detector.SetSensitivity(sens) })
		}
		if d.ModeChanged {
			mode := voice.Mode(d.NewMode)
			runner.Apply(func(m *voice.Machine) { m.SetMode(mode) })
		}
		if d.RestartRequired {
			slog.Warn("config change requires a restart to take effect")
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runner.Run(gctx)
	})

	if cfg.Panel.ListenAddr != "" {
		g.Go(func() error {
			return serveAdmin(gctx, cfg.Panel.ListenAddr, runner, haClient)
		})
	}

	slog.Info("panel ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Transcriber wiring ────────────────────────────────────────────────────────

// registerBuiltinTranscribers wires the transcriber factories that ship with
// entryhub into reg. The haassist backend borrows the Home Assistant
// connection when its entry does not carry one.
func registerBuiltinTranscribers(reg *config.Registry, cfg *config.Config) {
	reg.Register("haassist", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		baseURL, token := entry.BaseURL, entry.APIKey
		if baseURL == "" {
			baseURL, token = cfg.HomeAssistant.BaseURL, cfg.HomeAssistant.Token
		}
		var opts []haassist.Option
		if entry.Pipeline != "" {
			opts = append(opts, haassist.WithPipeline(entry.Pipeline))
		}
		return haassist.New(baseURL, token, opts...)
	})

	reg.Register("whisper", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		if d := entry.Timeout(); d > 0 {
			opts = append(opts, whisper.WithTimeout(d))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.Register("openai", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, openai.WithModel(entry.Model))
		}
		if d := entry.Timeout(); d > 0 {
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(entry.APIKey, opts...)
	})
}

// ── Admin HTTP server ─────────────────────────────────────────────────────────

// serveAdmin runs the panel's admin endpoints until ctx is cancelled:
// /metrics, /healthz, /readyz, and POST /trigger for the touch input surface.
func serveAdmin(ctx context.Context, addr string, runner *voice.Runner, haClient *homeassistant.Client) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	var checkers []health.Checker
	if haClient != nil {
		checkers = append(checkers, health.HomeAssistant(haClient))
	}
	health.New(checkers...).Register(mux)

	mux.HandleFunc("POST /trigger", func(w http.ResponseWriter, r *http.Request) {
		runner.ManualTrigger()
		w.WriteHeader(http.StatusAccepted)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("admin server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("admin server shutdown error", "err", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("admin server: %w", err)
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// logActuator stands in for Home Assistant when no instance is configured:
// recognised commands are logged and dropped.
type logActuator struct{}

var _ command.Actuator = logActuator{}

func (logActuator) Call(_ context.Context, action command.Action) error {
	slog.Warn("no home assistant configured, dropping command", "action", action.String())
	return nil
}

func msDur(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
