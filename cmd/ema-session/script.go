package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-playback/core/scripts"
	"github.com/koscakluka/ema-playback/core/scripts/file"
)

func scriptCmd(a *app) *cobra.Command {
	var (
		req    scripts.Request
		output string
	)
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Generate a script and print it as YAML",
		Long:  "Generate a script and print it as YAML. The output can be used as a script file source.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Session.InitTimeout())
			defer cancel()

			generator, err := buildGenerator(ctx, a.cfg.Script)
			if err != nil {
				return err
			}
			script, err := generator.GenerateScript(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to generate script: %w", err)
			}
			if err := scripts.Validate(script); err != nil {
				return err
			}

			data, err := file.Marshal(script)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(output, data, 0o644)
		},
	}
	requestFlags(cmd, &req)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the script to this file")
	return cmd
}
