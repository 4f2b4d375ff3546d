package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/followup"
	"github.com/ppiankov/verity/internal/logging"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/server"
	"github.com/ppiankov/verity/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes fact checks and follow-up questions over HTTP:

  POST /new-session      start a conversation session
  POST /fact-check       stream a fact check of {"claim": "..."}
  POST /followup-stream  stream an answer to {"session_id": "...", "question": "..."}
  GET  /health           liveness probe

Example:
  verity serve --addr 0.0.0.0:8000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := logging.Default()
	sessions := session.NewFromConfig(cfg.Session, session.WithOnExpire(func(s model.Session) {
		logger.Debug("session expired", "session_id", s.ID, "messages", len(s.History))
	}))
	responder := followup.NewResponder(a.provider, a.memory, sessions, cfg.Memory.TopK)
	handler := server.New(a.pipeline, responder, sessions, server.WithVersion(Version))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return logging.With(context.Background(), logger) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", cfg.Server.Addr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return goerr.Wrap(err, "listen", goerr.V("addr", cfg.Server.Addr))
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "shutdown server")
	}
	return nil
}
