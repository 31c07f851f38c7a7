package lsp

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MrWalshy/emdd"
	"github.com/MrWalshy/emdd/internal/transformer"
	"github.com/sourcegraph/go-lsp"
)

const diagnosticSource = "emdd"

type DocumentServiceOptions struct {
	TransformerOpts transformer.TransformOptions

	// Root directory for preview files
	ShadowRoot string
}

var DefaultDocumentServiceOptions = DocumentServiceOptions{
	ShadowRoot: filepath.Join(os.TempDir(), "emdd-workspace"),
	TransformerOpts: transformer.TransformOptions{
		NoBackup: true,
		NoTangle: true,
	},
}

func (o DocumentServiceOptions) Validate() error {
	if o.ShadowRoot == "" {
		return fmt.Errorf("shadow root directory is required")
	}

	return nil
}

// DocumentService analyses open documents and keeps rendered previews of them
// under a shadow root that mirrors the source tree.
type DocumentService struct {
	mu sync.Mutex
	// Maps original URIs to the preview written for them
	//
	// original = file:///home/me/site/src/index.emdd
	// preview  = /tmp/emdd-workspace/home/me/site/src/index.html
	previews    map[string]string
	transformer *transformer.Transformer
	// The root directory for preview files eg /tmp/emdd-workspace
	shadowRoot string
}

func NewDocumentService(opts DocumentServiceOptions) (*DocumentService, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document service options: %w", err)
	}

	t, err := transformer.NewTransformer(opts.TransformerOpts)
	if err != nil {
		return nil, fmt.Errorf("invalid document service options: %w", err)
	}

	return &DocumentService{
		previews:    make(map[string]string),
		transformer: t,
		shadowRoot:  opts.ShadowRoot,
	}, nil
}

// Analyze renders text and reports what went wrong as LSP diagnostics:
// recovered plugin invocations as warnings and pipeline failures as errors.
// The rendered document is nil when the pipeline failed.
func (s *DocumentService) Analyze(text string, documentURI lsp.DocumentURI) ([]lsp.Diagnostic, *transformer.Rendered) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, _ := s.URIToPath(documentURI)
	diagnostics := []lsp.Diagnostic{}

	r, err := s.transformer.Render(transformer.Source{Content: strings.NewReader(text), Path: path})
	if err != nil {
		diagnostics = append(diagnostics, errorDiagnostic(err))
		// parser recoveries are still worth reporting alongside the failure
		_, recovered := s.transformer.Parse(text)
		for _, d := range recovered {
			diagnostics = append(diagnostics, warningDiagnostic(d))
		}
		slog.Debug("document failed to render", "uri", documentURI, "error", err)
		return diagnostics, nil
	}

	for _, d := range r.Diagnostics {
		diagnostics = append(diagnostics, warningDiagnostic(d))
	}
	return diagnostics, r
}

// Preview renders text and writes it below the shadow root, returning the
// preview path.
func (s *DocumentService) Preview(text string, documentURI lsp.DocumentURI) (string, error) {
	_, r := s.Analyze(text, documentURI)
	if r == nil {
		return "", fmt.Errorf("document %s has errors, preview not updated", documentURI)
	}

	fsPath, err := s.URIToPath(documentURI)
	if err != nil {
		return "", fmt.Errorf("invalid document URI: %w", err)
	}

	previewPath, err := emdd.ResolveOutputPath(filepath.Join(s.shadowRoot, fsPath), "", "")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(previewPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(previewPath, []byte(r.Output), 0644); err != nil {
		return "", fmt.Errorf("failed to write preview: %w", err)
	}

	s.mu.Lock()
	s.previews[string(documentURI)] = previewPath
	s.mu.Unlock()

	slog.Debug("wrote preview", "original", documentURI, "preview", previewPath)
	return previewPath, nil
}

// PreviewPath returns the last preview written for a document
func (s *DocumentService) PreviewPath(documentURI lsp.DocumentURI) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.previews[string(documentURI)]
	return p, ok
}

// ShadowRoot returns the root directory for preview files
func (s *DocumentService) ShadowRoot() string {
	return s.shadowRoot
}

// URIToPath converts an LSP URI to a filesystem path
func (s *DocumentService) URIToPath(uri lsp.DocumentURI) (string, error) {
	u, err := url.Parse(string(uri))
	if err != nil {
		return "", err
	}
	return u.Path, nil
}

// PathToURI converts a filesystem path to an LSP URI
func (s *DocumentService) PathToURI(path string) lsp.DocumentURI {
	return lsp.DocumentURI((&url.URL{Scheme: "file", Path: path}).String())
}

// CleanupShadowFiles removes all preview files
func (s *DocumentService) CleanupShadowFiles() error {
	if s.shadowRoot != DefaultDocumentServiceOptions.ShadowRoot {
		slog.Info("skipping preview cleanup due to user specified root", "path", s.shadowRoot)
		return nil
	}
	return s.removePreviews()
}

func (s *DocumentService) removePreviews() error {
	return filepath.WalkDir(s.shadowRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("error accessing path", "path", path, "error", err)
			return nil
		}

		if !d.IsDir() && strings.HasSuffix(d.Name(), emdd.OutputExtension) {
			if err := os.Remove(path); err != nil {
				slog.Warn("failed to remove preview", "path", path, "error", err)
			} else {
				slog.Debug("removed preview", "path", path)
			}
		}
		return nil
	})
}

func errorDiagnostic(err error) lsp.Diagnostic {
	d := lsp.Diagnostic{
		Severity: lsp.Error,
		Source:   diagnosticSource,
		Message:  err.Error(),
	}

	var pe *emdd.PipelineError
	if errors.As(err, &pe) {
		d.Range = pointRange(pe.Line, pe.Char)
		d.Code = pe.Stage
		d.Message = pe.Err.Error()
		if pe.Identifier != "" {
			d.Message = "@" + pe.Identifier + ": " + d.Message
		}
	}
	return d
}

func warningDiagnostic(d emdd.Diagnostic) lsp.Diagnostic {
	return lsp.Diagnostic{
		Range:    pointRange(d.Line, d.Char),
		Severity: lsp.Warning,
		Source:   diagnosticSource,
		Message:  d.Message + " (rendered as text)",
	}
}

// pointRange converts a 1-based line and a 0-based UTF-16 offset into a
// single character range.
func pointRange(line, char int) lsp.Range {
	if line > 0 {
		line--
	}
	return lsp.Range{
		Start: lsp.Position{Line: line, Character: char},
		End:   lsp.Position{Line: line, Character: char + 1},
	}
}
