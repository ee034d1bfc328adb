package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alphabot-ai/newsroom/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	cfg config.Config
)

// rootCmd runs the server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "newsroom",
	Short: "Articles, comments and status reactions over a JSON API",
	Long: `Newsroom serves a JSON API where authors publish articles, comment on them
and mark both with a status such as "like". The same binary is also a small
client for a running server.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = os.Getenv("NEWSROOM_CONFIG")
		}
		loaded, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		if verbose {
			loaded.LogLevel = "debug"
		}
		cfg = loaded
		slog.SetDefault(newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $NEWSROOM_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("newsroom %s (commit %s, built %s)\n", config.Version, config.Commit, config.BuildTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
