package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrWalshy/emdd/internal/transformer"
	"github.com/MrWalshy/emdd/plugins"
	"github.com/spf13/cobra"
)

var (
	renderOutput    string
	renderType      string
	renderPlugins   []string
	renderTemplates []string
	renderHighlight string
)

var renderCmd = &cobra.Command{
	Use:   "render FILE",
	Short: "Render a single document",
	Long: `Render runs one document through the pipeline and prints the result,
or writes it to the file given with -o. Files woven with @file are not
written, use tangle for that.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write the document here instead of stdout")
	renderCmd.Flags().StringVar(&renderType, "type", "html5", "Output document type (html5, raw)")
	renderCmd.Flags().StringSliceVar(&renderPlugins, "plugins", nil, "Content plugins in order (default all)")
	renderCmd.Flags().StringSliceVarP(&renderTemplates, "templates", "t", nil, "Documents whose @template blocks are available")
	renderCmd.Flags().StringVar(&renderHighlight, "highlight", "github", "Syntax highlighting style for fragments")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	templates, err := loadTemplateFiles(renderTemplates)
	if err != nil {
		return err
	}

	t, err := transformer.NewTransformer(transformer.TransformOptions{
		Plugins:        renderPlugins,
		DocumentType:   renderType,
		HighlightStyle: renderHighlight,
		Templates:      templates,
		NoTangle:       true,
	})
	if err != nil {
		return err
	}

	r, err := renderFile(t, path)
	if err != nil {
		return err
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d:%d: %s\n", args[0], d.Line, d.Column, d.Message)
	}

	if renderOutput == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), r.Output)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(renderOutput), 0755); err != nil {
		return err
	}
	return os.WriteFile(renderOutput, []byte(r.Output), 0644)
}

func renderFile(t *transformer.Transformer, path string) (*transformer.Rendered, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()
	return t.Render(transformer.Source{Content: f, Path: path})
}

func loadTemplateFiles(paths []string) (*plugins.TemplateEngine, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	sources := make([]string, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", p, err)
		}
		sources = append(sources, string(content))
	}
	return plugins.LoadTemplates(sources...)
}
