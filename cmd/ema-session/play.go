package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	session "github.com/koscakluka/ema-playback/core"
	"github.com/koscakluka/ema-playback/core/events"
	"github.com/koscakluka/ema-playback/core/scripts"
	"github.com/koscakluka/ema-playback/internal/relay"
	"github.com/koscakluka/ema-playback/internal/telemetry"
	"github.com/koscakluka/ema-playback/internal/tui"
)

func requestFlags(cmd *cobra.Command, req *scripts.Request) {
	cmd.Flags().StringVarP(&req.Topic, "topic", "t", "", "what the session is about")
	cmd.Flags().StringVar(&req.Goal, "goal", "", "what the listener wants to get out of it")
	cmd.Flags().StringVar(&req.Mood, "mood", "", "tone of the narration")
	cmd.Flags().StringVar(&req.Language, "language", "", "language of the narration")
	cmd.Flags().Float64Var(&req.DurationMinutes, "minutes", 5, "approximate length in minutes")
}

func playCmd(a *app) *cobra.Command {
	var (
		req      scripts.Request
		headless bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Generate a script and play it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.play(ctx, req, headless)
		},
	}
	requestFlags(cmd, &req)
	cmd.Flags().BoolVar(&headless, "headless", false, "play without the terminal interface")
	return cmd
}

func (a *app) play(ctx context.Context, req scripts.Request, headless bool) (err error) {
	tel, err := telemetry.Setup(ctx, a.cfg.Telemetry, os.Stderr, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = errors.Join(err, tel.Shutdown(shutdownCtx))
	}()

	s, out, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		s.Dispose()
		<-s.Done()
		err = errors.Join(err, out.Close())
	}()

	if a.cfg.Relay.Enabled {
		r, err := relay.Connect(ctx, a.cfg.Relay, a.logger)
		if err != nil {
			return err
		}
		defer r.Close()
		detach, err := r.Attach(s)
		if err != nil {
			return err
		}
		defer detach()
		a.logger.Info("relaying session", slog.String("subject", r.ControlSubject(s.ID())))
	}

	if headless {
		return a.playHeadless(ctx, s, req)
	}
	return a.playInteractive(ctx, s, req)
}

func (a *app) newSession(ctx context.Context) (*session.Session, player, error) {
	generator, err := buildGenerator(ctx, a.cfg.Script)
	if err != nil {
		return nil, nil, err
	}
	gateway, err := buildGateway(a.cfg.TTS, a.logger)
	if err != nil {
		return nil, nil, err
	}
	local, err := buildLocalSpeech(a.cfg.LocalSpeech)
	if err != nil {
		return nil, nil, err
	}
	out, err := buildPlayer(a.cfg.Audio)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audio output: %w", err)
	}

	s := session.New(
		session.WithScriptGenerator(generator),
		session.WithSynthesisGateway(gateway),
		session.WithLocalSpeech(local),
		session.WithAudioPlayer(out),
		session.WithLookAhead(a.cfg.Session.LookAhead),
		session.WithVoice(a.cfg.Session.Voice),
		session.WithInitializationTimeout(a.cfg.Session.InitTimeout()),
		session.WithLogger(a.logger),
	)
	return s, out, nil
}

func (a *app) playHeadless(ctx context.Context, s *session.Session, req scripts.Request) error {
	ended := make(chan struct{}, 1)
	s.On(events.KindEnd, func(events.Event) {
		select {
		case ended <- struct{}{}:
		default:
		}
	})
	s.On(events.KindSegmentStarted, func(event events.Event) {
		started := event.(events.SegmentStarted)
		a.logger.Info("segment started",
			slog.Int("index", started.Index),
			slog.String("mechanism", string(started.Mechanism)))
	})

	if err := s.Initialize(ctx, req); err != nil {
		return err
	}
	s.Play()

	select {
	case <-ended:
		a.logger.Info("session finished")
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (a *app) playInteractive(ctx context.Context, s *session.Session, req scripts.Request) error {
	title := req.Topic
	if title == "" {
		title = "ema"
	}

	program := tea.NewProgram(tui.New(s, title), tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := tui.Subscribe(s, program)
	defer unsubscribe()

	go func() {
		if err := s.Initialize(ctx, req); err != nil {
			a.logger.Warn("session initialization failed", slog.String("error", err.Error()))
			return
		}
		s.Play()
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
