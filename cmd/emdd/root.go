package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "emdd",
	Short: "Render embedded markdown documents to HTML",
	Long: `emdd renders markdown documents with embedded plugin invocations
(@js, @data, @weave, @toc, @fragment, @file ...) into HTML pages.

Examples:
  emdd build                         # build the site described by ./emdd.yaml
  emdd build --config site.yaml --force
  emdd render index.emdd -o index.html
  emdd tangle program.emdd --dry-run # show woven files without writing`,
	SilenceUsage:      true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
