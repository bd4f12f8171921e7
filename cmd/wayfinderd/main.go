package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/wayfinder/internal/config"
	"github.com/five82/wayfinder/internal/manifest"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/server"
	"github.com/five82/wayfinder/internal/walker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "wayfinderd: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	manifest   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "wayfinderd",
		Short:         "Serve Flight responses for a route manifest",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config path (default ~/.config/wayfinder/config.toml)")
	root.PersistentFlags().StringVar(&flags.manifest, "manifest", "", "route manifest (overrides the config)")

	root.AddCommand(newServeCmd(flags), newMatchCmd(flags), newCheckCmd(flags))
	return root
}

func (f *rootFlags) load() (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(f.manifest); v != "" {
		cfg.ManifestPath = v
	}
	return cfg, nil
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("watch") {
				cfg.WatchManifest = watch
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
			m, err := manifest.Load(cfg.ManifestPath)
			if err != nil {
				return err
			}
			holder := manifest.NewHolder(m)

			ctx := cmd.Context()
			if cfg.WatchManifest {
				if err := manifest.Watch(ctx, cfg.ManifestPath, holder, 0, logger); err != nil {
					return err
				}
				logger.Info("watching manifest", "path", cfg.ManifestPath)
			}

			srv, err := server.New(server.Options{
				Manifests: holder,
				Loader:    walker.EchoLoader,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			logger.Info("listening", "addr", cfg.Listen, "manifest", cfg.ManifestPath)
			return srv.ListenAndServe(ctx, cfg.Listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides the config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the manifest when it changes")
	return cmd
}

func newMatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "match <pathname>",
		Short: "Print the router state tree a pathname resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			m, err := manifest.Load(cfg.ManifestPath)
			if err != nil {
				return err
			}
			pathname := args[0]
			out := cmd.OutOrStdout()
			if m.IsPage(pathname) {
				fmt.Fprintf(out, "%s is served outside the app router\n", pathname)
				return nil
			}
			node, params, err := m.Match(pathname)
			if errors.Is(err, manifest.ErrNoRoute) {
				return fmt.Errorf("%s: %w", pathname, err)
			}
			if err != nil {
				return err
			}
			for _, line := range routerstate.Outline(walker.RouterState(node, params)) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newCheckCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the route manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			m, err := manifest.Load(cfg.ManifestPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d pages routes)\n", cfg.ManifestPath, len(m.Pages))
			return nil
		},
	}
}
