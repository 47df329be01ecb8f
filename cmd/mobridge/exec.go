package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"mobridge/internal/command"
	"mobridge/internal/config"
)

func newExecCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   `exec "<command line>"`,
		Short: "Run a single bridge command and print the JSON result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := strings.Join(args, " ")
			if !strings.HasPrefix(strings.TrimSpace(line), command.Namespace) {
				line = command.Namespace + " " + line
			}

			cmdCtx, cleanup, err := buildContext(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer cleanup()

			router := command.NewRouter(cmdCtx)
			result, ok := router.Dispatch(cmd.Context(), line)
			if !ok {
				return fmt.Errorf("not a bridge command: %s", line)
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("%s", result.Error)
			}
			return nil
		},
	}
}
