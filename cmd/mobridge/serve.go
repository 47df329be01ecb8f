package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mobridge/internal/command"
	"mobridge/internal/config"
	"mobridge/internal/models"
	"mobridge/internal/secret"
	"mobridge/internal/store"
	"mobridge/internal/transport"
	"mobridge/internal/webhook"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var enableWebhook bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bridge protocol on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()

			cmdCtx, cleanup, err := buildContext(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			router := command.NewRouter(cmdCtx)
			tr := transport.New(router, os.Stdout,
				time.Duration(cfg.HeartbeatSeconds)*time.Second, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if enableWebhook || cfg.Webhook.Enabled {
				addr := fmt.Sprintf("127.0.0.1:%d", cfg.Webhook.Port)
				listener := webhook.New(addr, cfg.Webhook.Path,
					cmdCtx.Store, &webhookSyncer{cmdCtx: cmdCtx}, logger)
				go func() {
					if err := listener.Run(ctx); err != nil {
						logger.Error("webhook listener stopped", "error", err)
					}
				}()
			}

			logger.Info("bridge starting", "heartbeat_seconds", cfg.HeartbeatSeconds)
			err = tr.Run(ctx, os.Stdin)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&enableWebhook, "webhook", false, "start the webhook listener")
	return cmd
}

// buildContext opens the store and sealer and assembles the handler
// context. The returned cleanup closes the store.
func buildContext(cfg *config.Config, logger *slog.Logger) (*command.Context, func(), error) {
	if cfg.DBPath == "" {
		return nil, nil, fmt.Errorf("db path is required")
	}

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	sealer, err := secret.NewSealer(filepath.Dir(cfg.DBPath))
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	return command.NewContext(st, sealer, cfg, logger), func() { st.Close() }, nil
}

// webhookSyncer resolves the authenticated engine per delivery, so the
// listener keeps working across re-auth without a restart.
type webhookSyncer struct {
	cmdCtx *command.Context
}

func (w *webhookSyncer) SyncIssue(ctx context.Context, issueID string) (*models.SyncResult, error) {
	remote, record, err := w.cmdCtx.Remote(ctx)
	if err != nil {
		return nil, err
	}
	return w.cmdCtx.Engine(remote, record.DefaultTeamID).SyncIssue(ctx, issueID)
}
