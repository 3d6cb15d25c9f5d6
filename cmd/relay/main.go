package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"parlor/internal/logging"
	"parlor/internal/server"
	"parlor/internal/store"
)

func main() {
	var (
		configPath string
		listen     string
		dataDir    string
		logLevel   string
	)

	root := &cobra.Command{
		Use:   "relay",
		Short: "Run the parlor relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := server.DefaultConfig()
			if configPath != "" {
				loaded, err := server.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			return run(cfg)
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "TOML config file")
	root.Flags().StringVar(&listen, "listen", "127.0.0.1:8080", "HTTP listen address")
	root.Flags().StringVar(&dataDir, "data-dir", ".", "directory for the relay database")
	root.Flags().StringVar(&logLevel, "log-level", "INFO", "log level (DEBUG, INFO, WARNING, ERROR)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *server.Config) error {
	backend, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	log := backend.GetLogger("relay")

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, backend, st)
	log.Infof("listening on %s, database %s", cfg.Listen, cfg.DatabasePath())
	if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
		return err
	}
	log.Infof("shut down")
	return nil
}
