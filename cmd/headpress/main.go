// Command headpress serves a headless-WordPress site.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eringen/headpress"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "headpress",
		Short: "Headless WordPress frontend",
		Long: `headpress renders a WordPress site from the REST API.

Configuration comes from the environment, .env.local and .env:
  WORDPRESS_URL, SITE_URL, SITE_NAME, SITE_DESCRIPTION, WEBHOOK_SECRET,
  PREVIEW_SECRET, SESSION_SECRET, COOKIE_SECURE, ADDR, CACHE_PATH,
  CACHE_SIZE, CACHE_TTL, POSTS_PER_PAGE, LOG_LEVEL`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newSitemapCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := headpress.LoadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			app, err := headpress.New(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides ADDR)")
	return cmd
}

func newSitemapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sitemap",
		Short: "Print the sitemap XML for the configured CMS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := headpress.LoadConfig()
			if err != nil {
				return err
			}
			app, err := headpress.New(cfg, headpress.WithLogger(headpress.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)))
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			body, err := app.SitemapXML(ctx)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(w, version)
				return nil
			}
			fmt.Fprintf(w, "headpress %s (%s, %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print version string only")
	return cmd
}
