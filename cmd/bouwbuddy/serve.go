package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bouwbuddy/bouwbuddy/internal/api"
	"github.com/bouwbuddy/bouwbuddy/internal/collect"
	"github.com/bouwbuddy/bouwbuddy/internal/config"
	"github.com/bouwbuddy/bouwbuddy/internal/scheduler"
	"github.com/bouwbuddy/bouwbuddy/internal/session"
	"github.com/bouwbuddy/bouwbuddy/internal/telegram"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot, management API and report scheduler (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.RequireBot(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, withMCP)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP over stdin/stdout")
}

func runServe(ctx context.Context, cfg config.Config, withMCP bool) error {
	slog.Info("starting bouwbuddy", "version", version, "backend", cfg.Summarizer.Backend, "storage", cfg.Storage.Driver)

	chatIDs, err := cfg.ReportChatIDs()
	if err != nil {
		return err
	}

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	sum, err := newSummarizer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing summarizer: %w", err)
	}
	agg := newAggregator(cfg, b, sum)

	bot, err := telegram.Connect(cfg.Telegram.Token)
	if err != nil {
		return err
	}
	slog.Info("connected to telegram", "bot", bot.Self.UserName)

	transport := telegram.NewTransport(bot)
	orch := session.New(session.Deps{
		Transport: transport,
		Reporter:  agg,
		Collect: collect.Deps{
			Store:    b.records,
			Resolver: transport,
		},
	})
	if err := transport.RegisterCommands(ctx, session.Commands); err != nil {
		slog.Warn("registering bot commands failed", "error", err)
	}

	worker, err := scheduler.NewWorker(agg, orch, chatIDs, cfg.Schedule.DailyAt)
	if err != nil {
		return &config.ConfigurationError{Key: "schedule.daily_at", Reason: err.Error()}
	}

	if cfg.Server.APIToken == "" {
		slog.Warn("server.api_token is not set, management API only answers /health")
	}
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewAppHandler(api.AppDeps{
			Reports:   agg,
			Summaries: b.history,
			Token:     cfg.Server.APIToken,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return telegram.NewPoller(bot, orch).Run(gctx)
	})

	g.Go(func() error {
		slog.Info("management API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return worker.Run(gctx)
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Reports:   agg,
			Summaries: b.history,
			Version:   version,
		})
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			err := server.NewStdioServer(mcpSrv).Listen(gctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp stdio server: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	slog.Info("bouwbuddy stopped")
	return err
}
