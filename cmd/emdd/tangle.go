package main

import (
	"fmt"
	"path/filepath"

	"github.com/MrWalshy/emdd/internal/transformer"
	"github.com/spf13/cobra"
)

var (
	tangleDryRun   bool
	tangleNoBackup bool
)

var tangleCmd = &cobra.Command{
	Use:   "tangle FILE",
	Short: "Write the files woven from a document's fragments",
	Long: `Tangle resolves the @fragment and @file blocks of a document and writes
each woven file relative to the document's directory. With --dry-run a
unified diff against the files on disk is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runTangle,
}

func init() {
	tangleCmd.Flags().BoolVar(&tangleDryRun, "dry-run", false, "Print a diff instead of writing files")
	tangleCmd.Flags().BoolVar(&tangleNoBackup, "no-backup", false, "Do not back up files that are overwritten")
	rootCmd.AddCommand(tangleCmd)
}

func runTangle(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	t, err := transformer.NewTransformer(transformer.TransformOptions{
		DocumentType: "raw",
		NoBackup:     tangleNoBackup,
	})
	if err != nil {
		return err
	}

	r, err := renderFile(t, path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(r.Files) == 0 {
		fmt.Fprintln(out, "no @file blocks found")
		return nil
	}

	srcDir := filepath.Dir(path)
	if !tangleDryRun {
		written, err := t.Tangle(srcDir, r.Files)
		for _, w := range written {
			fmt.Fprintf(out, "wrote %s\n", w)
		}
		return err
	}

	for _, f := range r.Files {
		target, err := transformer.TanglePath(srcDir, f)
		if err != nil {
			return err
		}
		d, err := transformer.Diff(target, f.Content)
		if err != nil {
			return err
		}
		if d == "" {
			fmt.Fprintf(out, "%s unchanged\n", f.Path())
			continue
		}
		fmt.Fprint(out, d)
	}
	return nil
}
