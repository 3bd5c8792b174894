package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"chat-assistant/config"
	"chat-assistant/conversation"
	"chat-assistant/handlers"
	logx "chat-assistant/logger"
	"chat-assistant/metrics"
	"chat-assistant/services"
	"chat-assistant/transcript"
	"chat-assistant/workflows"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chat-assistant",
		Short:         "Minimal LLM chat assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the chat endpoint and browser client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the transcript table in DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logx.Init(cfg.Environment)
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL environment variable is required")
			}
			if err := transcript.Migrate(cfg.DatabaseURL); err != nil {
				return err
			}
			logx.Info().Msg("transcript schema is up to date")
			return nil
		},
	})

	root.AddCommand(newChatCmd())
	return root
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logx.Init(cfg.Environment)
	if cfg.Environment == logx.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Transcript store
	store, err := transcript.NewStore(ctx, transcript.Options{
		DatabaseURL: cfg.DatabaseURL,
		Dir:         cfg.TranscriptDir,
	})
	if err != nil {
		return fmt.Errorf("transcript store init failed: %w", err)
	}
	defer store.Close()
	logx.Info().Str("backend", store.Backend()).Msg("transcript store ready")

	// Conversation buffers live for the whole process
	buffers := conversation.NewBuffers(cfg.BufferScope)
	defer buffers.Reset()

	llm := services.NewOpenAIService(cfg.OpenAIModel, cfg.OpenAIBaseURL)
	chatWorkflow := workflows.NewChatWorkflow(llm, buffers, store)
	m := metrics.New("chat_assistant")
	chatHandler := handlers.NewChatHandler(chatWorkflow, buffers, store, m)

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handlers.NewRouter(chatHandler, m),
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().
			Str("addr", cfg.Addr()).
			Str("model", llm.Model()).
			Str("buffer_scope", string(cfg.BufferScope)).
			Msg("starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logx.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}
	logx.Info().Msg("shutdown complete")
	return nil
}
