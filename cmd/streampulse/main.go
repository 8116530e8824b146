// StreamPulse is a background news, quote and global-stat aggregator.
//
// Usage:
//
//	streampulse run       # run both refresh loops and the read API
//	streampulse once      # run one short and one long cycle, print the snapshot
//	streampulse sources   # list configured feeds and symbols
//	streampulse version   # show version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/streampulse/internal/api"
	pulsecfg "github.com/RobinCoderZhao/streampulse/internal/pulse/config"
)

var version = "dev"

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:   "streampulse",
		Short: "Background news, quote and global-stat aggregator",
		Long:  "StreamPulse periodically pulls news feeds, stock quotes and global statistics, and keeps the latest merged snapshot in memory.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Secrets usually live in .env; a missing file is fine.
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("load .env failed", "error", err)
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ./.streampulse.yaml or ~/.streampulse.yaml)")

	rootCmd.AddCommand(runCmd(&cfgPath))
	rootCmd.AddCommand(onceCmd(&cfgPath))
	rootCmd.AddCommand(sourcesCmd(&cfgPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd(cfgPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the refresh loops until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pulsecfg.Load(*cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.HTTP.Addr = addr
			}
			return runDaemon(cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address for the read API (empty disables it)")
	return cmd
}

func onceCmd(cfgPath *string) *cobra.Command {
	var outputJSON bool
	var skipStats bool

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single short and long cycle and print the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pulsecfg.Load(*cfgPath)
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), cfg, outputJSON, skipStats)
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "print JSON instead of text")
	cmd.Flags().BoolVar(&skipStats, "no-stats", false, "skip the long (global stats) cycle")
	return cmd
}

func sourcesCmd(cfgPath *string) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured feeds, symbols and providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pulsecfg.Load(*cfgPath)
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(os.Stdout, sourcesView(reg, cfg))
			}
			printSources(os.Stdout, reg, cfg)
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "print JSON")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("streampulse %s\n", version)
		},
	}
}

func runDaemon(cfg pulsecfg.Config) error {
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.scheduler.Close()

	var srv *http.Server
	if cfg.HTTP.Addr != "" {
		server := api.NewServer(p.scheduler.Store())
		server.SetLogger(logger)
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           server.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("starting read API", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("read API failed", "error", err)
				stop()
			}
		}()
	}

	// Blocks until a signal arrives
	p.scheduler.Start(ctx)
	logger.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("read API forced to shutdown", "error", err)
		}
	}
	return nil
}

func runOnce(ctx context.Context, cfg pulsecfg.Config, outputJSON, skipStats bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.scheduler.Close()

	reports := []any{p.scheduler.RunShortCycle(ctx)}
	if !skipStats {
		reports = append(reports, p.scheduler.RunLongCycle(ctx))
	}
	snap := p.scheduler.Store().Current()

	if outputJSON {
		return printJSON(os.Stdout, map[string]any{
			"snapshot": snap,
			"cycles":   reports,
		})
	}
	printSnapshot(os.Stdout, snap, p.registry, time.Now())
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
