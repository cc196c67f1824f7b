package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

type Server struct {
	config      *ConfigManager
	logger      *slog.Logger
	history     *HistoryStore
	generateAPI *GenerateAPI
	authAPI     *AuthAPI
	serverAPI   *ServerAPI
	mux         *http.ServeMux
}

// NewServer wires the API handlers onto a fresh mux. history may be nil.
func NewServer(config *ConfigManager, logger *slog.Logger, history *HistoryStore, actionChan chan string) *Server {
	authAPI := NewAuthAPI(config, logger)
	server := &Server{
		config:      config,
		logger:      logger,
		history:     history,
		generateAPI: NewGenerateAPI(config, history, logger),
		authAPI:     authAPI,
		serverAPI:   NewServerAPI(config, authAPI, actionChan, logger),
		mux:         http.NewServeMux(),
	}

	server.generateAPI.RegisterRoutes(server.mux)
	server.authAPI.RegisterRoutes(server.mux)
	server.serverAPI.RegisterRoutes(server.mux)
	if history != nil {
		history.RegisterRoutes(server.mux)
	} else {
		server.mux.HandleFunc("/api/history/", server.handleHistoryDisabled)
		server.mux.HandleFunc("/api/history", server.handleHistoryDisabled)
	}

	return server
}

func (s *Server) handleHistoryDisabled(w http.ResponseWriter, _ *http.Request) {
	respondWithError(w, http.StatusNotFound, "History is disabled")
}

// ServeHTTP makes Server usable as the http.Server handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generation API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if created, err := WriteDefaultConfig(opts.configPath); err != nil {
				// The server can still run with defaults.
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to write default config file: %v\n", err)
			} else if created {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote default config to %s\n", opts.configPath)
			}

			actionChan := make(chan string, 1)
			for {
				action, err := run(cmd, opts, addr, actionChan)
				if err != nil {
					return err
				}
				if action != actionRestart {
					return nil
				}
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server_config.addr)")
	return cmd
}

// run hosts the API server and returns whenever the server is shut down or restarted.
func run(cmd *cobra.Command, opts *rootOptions, addr string, actionChan chan string) (string, error) {
	config, err := loadCommandConfig(cmd, opts)
	if err != nil {
		return "", err
	}
	applyStringFlag(cmd, "addr", &config.Server.Addr, addr)
	if err = config.Validate(); err != nil {
		return "", err
	}

	logger := newLogger(cmd.ErrOrStderr(), config.Server.LogLevel)
	logger.Info("Starting server cycle...")
	if len(config.Server.APIKeys) == 0 && !isLoopbackAddr(config.Server.Addr) {
		logger.Warn("No API keys configured; /api/server endpoints are open on a non-loopback address. Create one with 'chainwalk key create'.",
			"address", config.Server.Addr)
	}

	var history *HistoryStore
	if config.Server.HistoryEnabled {
		history, err = OpenHistoryStore(config.Server.HistoryDatabasePath, logger)
		if err != nil {
			return "", err
		}
	}

	server := NewServer(NewConfigManager(opts.configPath, config), logger, history, actionChan)
	httpServer := &http.Server{
		Addr:              config.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting chainwalk api server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var action string
	select {
	case action = <-actionChan:
	case <-cmd.Context().Done():
		logger.Info("OS signal received, initiating shutdown.")
		action = actionShutdown
	case err = <-errChan:
		logger.Error("Api server failed", "error", err)
		action = actionShutdown
	}

	logger.Info("Stopping server for " + action + "...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if shutdownErr := httpServer.Shutdown(ctx); shutdownErr != nil {
		logger.Error("Api server shutdown failed", "error", shutdownErr)
	}
	logger.Info("HTTP server stopped.")

	if history != nil {
		logger.Info("Closing history database.")
		if closeErr := history.Close(); closeErr != nil {
			logger.Error("Failed to close database", "error", closeErr)
		}
	}

	if err != nil {
		return "", fmt.Errorf("api server failed: %w", err)
	}
	return action, nil
}
