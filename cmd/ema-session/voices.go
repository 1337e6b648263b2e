package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-playback/core/localspeech"
	"github.com/koscakluka/ema-playback/core/texttospeech/deepgram"
)

func voicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the voices of the configured speech engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if slices.Contains(a.cfg.TTS.Providers, "deepgram") {
				fmt.Fprintln(out, "deepgram:")
				for _, voice := range deepgram.GetAvailableVoices() {
					fmt.Fprintf(out, "  %s\n", voice)
				}
			}

			local, err := buildLocalSpeech(a.cfg.LocalSpeech)
			if err != nil {
				return err
			}
			voices, err := local.Voices(cmd.Context())
			if errors.Is(err, localspeech.ErrNoVoicesCommand) {
				fmt.Fprintln(out, "local: no voices command configured")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to list local voices: %w", err)
			}
			fmt.Fprintln(out, "local:")
			for _, voice := range voices {
				fmt.Fprintf(out, "  %s\n", voice)
			}
			return nil
		},
	}
}
