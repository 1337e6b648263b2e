// Package localspeech speaks text on the local machine without producing a
// reusable audio resource.
package localspeech

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/koscakluka/ema-playback/core/audio"
)

const (
	placeholderText  = "{text}"
	placeholderVoice = "{voice}"
)

var ErrNoVoicesCommand = errors.New("no voices command configured")

type ExecConfig struct {
	// Command speaks its input, e.g. `espeak-ng -v {voice}`. Text is passed
	// through a {text} argument or, without one, on stdin.
	Command string
	// VoicesCommand prints one available voice per line.
	VoicesCommand string
	DefaultVoice  string
	ReadyTimeout  time.Duration
}

// ExecEngine speaks text by running an external command, one utterance per
// process.
type ExecEngine struct {
	command       []string
	voicesCommand []string
	defaultVoice  string
	ready         *readiness
}

func NewExecEngine(cfg ExecConfig) (*ExecEngine, error) {
	parser := shellwords.NewParser()
	command, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(command) == 0 {
		return nil, fmt.Errorf("speech command is empty")
	}

	var voicesCommand []string
	if strings.TrimSpace(cfg.VoicesCommand) != "" {
		if voicesCommand, err = shellwords.NewParser().Parse(cfg.VoicesCommand); err != nil {
			return nil, fmt.Errorf("parse voices command: %w", err)
		}
	}

	e := &ExecEngine{
		command:       command,
		voicesCommand: voicesCommand,
		defaultVoice:  cfg.DefaultVoice,
	}
	e.ready = newReadiness(cfg.ReadyTimeout, e.probe)
	return e, nil
}

// Ready waits for the one-time availability check. Only the first caller
// pays for the probe.
func (e *ExecEngine) Ready(ctx context.Context) error {
	return e.ready.Wait(ctx)
}

func (e *ExecEngine) probe(ctx context.Context) error {
	if len(e.voicesCommand) == 0 {
		if _, err := exec.LookPath(e.command[0]); err != nil {
			return fmt.Errorf("speech command unavailable: %w", err)
		}
		return nil
	}

	voices, err := e.Voices(ctx)
	if err != nil {
		return err
	}
	if len(voices) == 0 {
		return fmt.Errorf("speech engine reported no voices")
	}
	return nil
}

func (e *ExecEngine) Speak(ctx context.Context, text, voice string) (audio.Playback, error) {
	if voice == "" {
		voice = e.defaultVoice
	}
	args, textInArgs := expandArgs(e.command, text, voice)

	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, args[0], args[1:]...)
	if !textInArgs {
		cmd.Stdin = strings.NewReader(text)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start speech command: %w", err)
	}

	completion := audio.NewCompletion(cancel)
	go func() {
		defer cancel()
		err := cmd.Wait()
		if err != nil && cmdCtx.Err() == nil {
			err = fmt.Errorf("speech command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		completion.Finish(err)
	}()

	return completion, nil
}

// Voices lists the voices reported by the voices command.
func (e *ExecEngine) Voices(ctx context.Context) ([]string, error) {
	if len(e.voicesCommand) == 0 {
		return nil, ErrNoVoicesCommand
	}

	cmd := exec.CommandContext(ctx, e.voicesCommand[0], e.voicesCommand[1:]...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("voices command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var voices []string
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		if voice := strings.TrimSpace(scanner.Text()); voice != "" {
			voices = append(voices, voice)
		}
	}
	return voices, scanner.Err()
}

// expandArgs substitutes placeholders. An argument that expands to nothing is
// dropped together with the flag in front of it. A positional {text} is put
// after "--" so text starting with a dash is not read as an option.
func expandArgs(command []string, text, voice string) ([]string, bool) {
	args := make([]string, 0, len(command)+1)
	textInArgs := false
	for i, arg := range command {
		if strings.Contains(arg, placeholderText) {
			textInArgs = true
		}
		if i > 0 && arg == placeholderText && !slices.Contains(args, "--") {
			args = append(args, "--")
		}
		expanded := strings.ReplaceAll(arg, placeholderText, text)
		expanded = strings.ReplaceAll(expanded, placeholderVoice, voice)

		if i > 0 && expanded == "" && arg != expanded {
			if n := len(args); n > 1 && strings.HasPrefix(args[n-1], "-") {
				args = args[:n-1]
			}
			continue
		}
		args = append(args, expanded)
	}
	return args, textInArgs
}
