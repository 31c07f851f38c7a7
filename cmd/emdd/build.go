package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/MrWalshy/emdd/internal/cli"
	"github.com/MrWalshy/emdd/internal/config"
	"github.com/spf13/cobra"
)

var (
	buildConfig   string
	buildForce    bool
	buildNoBackup bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build every document of a site",
	Long: `Build renders every source document under the configured source
directory into the output directory, copies static files and writes files
woven with @file.

Without --config, emdd.yaml (or .json/.toml) is read from the working
directory. EMDD_* environment variables override config values.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildConfig, "config", "c", "", "Path to the site config file")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "Rebuild every document, ignoring the build cache")
	buildCmd.Flags().BoolVar(&buildNoBackup, "no-backup", false, "Do not back up files that are overwritten")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(buildConfig)
	if err != nil {
		return err
	}

	p := cli.NewProcessor(cfg, cli.ProcessOptions{
		Force:    buildForce,
		NoBackup: buildNoBackup,
	})
	report, err := p.Build(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	built, skipped := 0, 0
	for _, d := range report.Documents {
		if d.Skipped {
			skipped++
			continue
		}
		built++
		fmt.Fprintf(out, "  %s -> %s\n", relTo(cfg.Root, d.Path), relTo(cfg.Root, d.OutPath))
		for _, f := range d.Files {
			fmt.Fprintf(out, "    wove %s\n", relTo(cfg.Root, f))
		}
	}
	fmt.Fprintf(out, "Built %d documents (%d unchanged), copied %d files in %s\n",
		built, skipped, len(report.Copied), report.Duration.Round(time.Millisecond))
	return nil
}

func relTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
