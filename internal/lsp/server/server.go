package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	iLsp "github.com/MrWalshy/emdd/internal/lsp"
	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
)

// PreviewMethod renders a document to the shadow root and returns the preview
// URI. Editors use it to open a live preview.
const PreviewMethod = "emdd/preview"

type Server struct {
	conn *jsonrpc2.Conn
	// tracks canceled request IDs
	cancelMap sync.Map

	// tracking for method request counts
	trackRequestCount sync.Map

	// latest full text of every open document, keyed by URI
	mu        sync.Mutex
	documents map[lsp.DocumentURI]string

	// abstraction for rendering operations
	docService *iLsp.DocumentService

	shutdown bool
	exit     func(code int)
}

type Options struct {
	// Root directory for previews, defaults to a temp dir
	ShadowRoot string
	// Content plugins used to render documents, the defaults when empty
	Plugins []string
}

func (o Options) Validate() error {
	if o.ShadowRoot != "" {
		info, err := os.Stat(o.ShadowRoot)
		if err != nil {
			return fmt.Errorf("invalid shadow root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("shadow root %s is not a directory", o.ShadowRoot)
		}
	}
	return nil
}

// OverrideDocOpts applies the user supplied options on top of docOpts
func (o Options) OverrideDocOpts(docOpts *iLsp.DocumentServiceOptions) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.ShadowRoot != "" {
		docOpts.ShadowRoot = o.ShadowRoot
	}
	if len(o.Plugins) > 0 {
		docOpts.TransformerOpts.Plugins = o.Plugins
	}
	return nil
}

func NewServer(options Options) (*Server, error) {
	docOpts := iLsp.DefaultDocumentServiceOptions
	if err := options.OverrideDocOpts(&docOpts); err != nil {
		return nil, err
	}

	dService, err := iLsp.NewDocumentService(docOpts)
	if err != nil {
		return nil, err
	}

	return &Server{
		docService: dService,
		documents:  make(map[lsp.DocumentURI]string),
		exit:       os.Exit,
	}, nil
}

func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (result interface{}, err error) {
	if s.conn == nil {
		s.conn = conn
	}
	slog.Info("received request", "method", req.Method, "id", req.ID)
	reqCount, _ := s.trackRequestCount.LoadOrStore(req.Method, 0)
	if count, ok := reqCount.(int); ok {
		s.trackRequestCount.Store(req.Method, count+1)
	}

	if _, ok := s.cancelMap.Load(req.ID.String()); ok {
		slog.Debug("request was canceled", "id", req.ID)
		s.cancelMap.Delete(req.ID.String())
		return nil, nil
	}

	switch req.Method {
	case "initialize":
		slog.Info("initializing lsp server")
		return lsp.InitializeResult{
			Capabilities: lsp.ServerCapabilities{
				TextDocumentSync: &lsp.TextDocumentSyncOptionsOrKind{
					Options: &lsp.TextDocumentSyncOptions{
						OpenClose: true,
						Change:    lsp.TDSKFull,
						Save:      &lsp.SaveOptions{},
					},
				},
			},
		}, nil

	case "initialized":
		slog.Info("server initialized")
		return nil, nil

	case "shutdown":
		slog.Info("shutting down")

		if err := s.docService.CleanupShadowFiles(); err != nil {
			slog.Error("failed to remove preview workspace", "error", err)
		}
		s.shutdown = true

		s.printDebugStats()

		return nil, nil

	case "exit":
		slog.Info("exiting")

		if s.shutdown {
			s.exit(0)
		} else {
			s.exit(1)
		}
		return nil, nil

	case "textDocument/didOpen":
		var params lsp.DidOpenTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}

		s.setDocument(params.TextDocument.URI, params.TextDocument.Text)
		return nil, s.analyze(ctx, params.TextDocument.URI, params.TextDocument.Text)

	case "textDocument/didChange":
		var params lsp.DidChangeTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		if len(params.ContentChanges) == 0 {
			return nil, nil
		}

		// full sync, the last change holds the whole document
		text := params.ContentChanges[len(params.ContentChanges)-1].Text
		s.setDocument(params.TextDocument.URI, text)
		return nil, s.analyze(ctx, params.TextDocument.URI, text)

	case "textDocument/didSave":
		var params lsp.DidSaveTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}

		text, ok := s.document(params.TextDocument.URI)
		if !ok {
			return nil, fmt.Errorf("document %s is not open", params.TextDocument.URI)
		}
		if _, err := s.docService.Preview(text, params.TextDocument.URI); err != nil {
			slog.Debug("preview not written", "uri", params.TextDocument.URI, "error", err)
		}
		return nil, s.analyze(ctx, params.TextDocument.URI, text)

	case "textDocument/didClose":
		var params lsp.DidCloseTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}

		s.mu.Lock()
		delete(s.documents, params.TextDocument.URI)
		s.mu.Unlock()

		return nil, s.SendDiagnostics(ctx, lsp.PublishDiagnosticsParams{
			URI:         params.TextDocument.URI,
			Diagnostics: []lsp.Diagnostic{},
		})

	case PreviewMethod:
		var params lsp.TextDocumentIdentifier
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}

		text, ok := s.document(params.URI)
		if !ok {
			return nil, fmt.Errorf("document %s is not open", params.URI)
		}
		path, err := s.docService.Preview(text, params.URI)
		if err != nil {
			return nil, err
		}
		return s.docService.PathToURI(path), nil

	case "$/cancelRequest":
		var params lsp.CancelParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		slog.Debug("canceling request", "id", params.ID)
		s.cancelMap.Store(params.ID.String(), struct{}{})
		return nil, nil

	default:
		if req.Notif {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method not supported: %s", req.Method),
		}
	}
}

func (s *Server) analyze(ctx context.Context, uri lsp.DocumentURI, text string) error {
	diagnostics, _ := s.docService.Analyze(text, uri)
	slog.Debug("publishing diagnostics", "uri", uri, "count", len(diagnostics))
	return s.SendDiagnostics(ctx, lsp.PublishDiagnosticsParams{URI: uri, Diagnostics: diagnostics})
}

func (s *Server) SendDiagnostics(ctx context.Context, params lsp.PublishDiagnosticsParams) error {
	return s.conn.Notify(ctx, "textDocument/publishDiagnostics", params)
}

func (s *Server) setDocument(uri lsp.DocumentURI, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[uri] = text
}

func (s *Server) document(uri lsp.DocumentURI) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.documents[uri]
	return text, ok
}

func unmarshalParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (s *Server) printDebugStats() {
	s.trackRequestCount.Range(func(key, value interface{}) bool {
		msg := fmt.Sprintf("Method: %-30s Count: %d", key.(string), value.(int))
		slog.Debug(msg)
		return true
	})
}
