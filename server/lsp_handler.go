package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/logger"
	"github.com/teranos/pyrunner/version"
)

const (
	// maxDocumentsPerClient caps the per-connection document cache
	maxDocumentsPerClient = 100

	lspServerName = "pyrunner"
)

// GLSPHandler serves Python completion over LSP. Documents are kept with
// full sync; nothing is analysed until a completion request arrives.
type GLSPHandler struct {
	server    *Server
	documents map[string]string // URI → document content
	mu        sync.RWMutex
}

// NewGLSPHandler creates a handler with an empty document cache
func NewGLSPHandler(server *Server) *GLSPHandler {
	return &GLSPHandler{
		server:    server,
		documents: make(map[string]string),
	}
}

// Initialize handles LSP initialize request
func (h *GLSPHandler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	h.server.logger.Infow("LSP client initializing", "client", params.ClientInfo)

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities := protocol.ServerCapabilities{
		CompletionProvider: &protocol.CompletionOptions{
			TriggerCharacters: []string{"."},
		},
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: ptr(true),
			Change:    &syncKind,
		},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspServerName,
			Version: ptr(version.Get().Version),
		},
	}, nil
}

// Initialized is called after client receives InitializeResult
func (h *GLSPHandler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	h.server.logger.Debugw("LSP client initialized")
	return nil
}

// Shutdown handles LSP shutdown request
func (h *GLSPHandler) Shutdown(ctx *glsp.Context) error {
	h.server.logger.Infow("LSP client shutting down")
	return nil
}

// TextDocumentDidOpen caches the opened document
func (h *GLSPHandler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	uri := string(params.TextDocument.URI)
	if _, exists := h.documents[uri]; !exists && len(h.documents) >= maxDocumentsPerClient {
		h.server.logger.Warnw("Document cache limit reached, rejecting new document",
			"uri", uri,
			"max_allowed", maxDocumentsPerClient,
		)
		return errors.Newf("document cache limit reached (%d documents open)", maxDocumentsPerClient)
	}

	h.documents[uri] = params.TextDocument.Text
	h.server.logger.Debugw("Document opened",
		"uri", uri,
		"size", len(params.TextDocument.Text),
		"total_documents", len(h.documents),
	)
	return nil
}

// TextDocumentDidChange replaces the cached content (full sync)
func (h *GLSPHandler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	uri := string(params.TextDocument.URI)
	if _, exists := h.documents[uri]; !exists {
		return nil
	}
	for _, change := range params.ContentChanges {
		if whole, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			h.documents[uri] = whole.Text
		}
	}
	return nil
}

// TextDocumentDidClose drops the document
func (h *GLSPHandler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.documents, string(params.TextDocument.URI))
	return nil
}

// TextDocumentCompletion maps adapter items to LSP completion items
func (h *GLSPHandler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.server.logger.Errorw("Panic in completion handler",
				"panic", r,
				"uri", params.TextDocument.URI,
			)
			result = []protocol.CompletionItem{}
			err = nil
		}
	}()

	h.mu.RLock()
	uri := string(params.TextDocument.URI)
	source, ok := h.documents[uri]
	h.mu.RUnlock()

	if !ok {
		return []protocol.CompletionItem{}, nil
	}

	// LSP lines are 0-based and characters count UTF-16 units
	line := int(params.Position.Line) + 1
	column := runeColumn(source, int(params.Position.Line), int(params.Position.Character))

	items := h.server.adapter.Complete(h.server.ctx, source, line, column)

	out := make([]protocol.CompletionItem, len(items))
	for i, item := range items {
		out[i] = protocol.CompletionItem{
			Label:      item.Label,
			Kind:       mapCompletionKind(item.Type),
			Detail:     stringPtrOrNil(item.Signature),
			InsertText: ptr(item.Label), // clients replace the word at the cursor
			SortText:   ptr(fmt.Sprintf("%04d", i)),
		}
	}

	h.server.logger.Debugw("LSP completion result",
		"uri", uri,
		logger.FieldLine, line,
		logger.FieldColumn, column,
		logger.FieldCount, len(out),
	)
	return out, nil
}

// HandleGLSPWebSocket upgrades HTTP to WebSocket and serves LSP
func (s *Server) HandleGLSPWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("Failed to upgrade WebSocket", "error", err, logger.FieldRemote, r.RemoteAddr)
		return
	}

	h := NewGLSPHandler(s)
	protocolHandler := protocol.Handler{
		Initialize:             h.Initialize,
		Initialized:            h.Initialized,
		Shutdown:               h.Shutdown,
		TextDocumentDidOpen:    h.TextDocumentDidOpen,
		TextDocumentDidChange:  h.TextDocumentDidChange,
		TextDocumentDidClose:   h.TextDocumentDidClose,
		TextDocumentCompletion: h.TextDocumentCompletion,
	}

	glspServer := glspserver.NewServer(&protocolHandler, lspServerName, false)

	s.logger.Infow("Serving GLSP over WebSocket", logger.FieldRemote, r.RemoteAddr)
	// Blocks until the connection closes
	glspServer.ServeWebSocket(conn)
	s.logger.Infow("GLSP WebSocket connection closed", logger.FieldRemote, r.RemoteAddr)
}

func ptr[T any](v T) *T {
	return &v
}

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// mapCompletionKind maps completion categories to LSP CompletionItemKind
func mapCompletionKind(category string) *protocol.CompletionItemKind {
	var k protocol.CompletionItemKind
	switch category {
	case "function":
		k = protocol.CompletionItemKindFunction
	case "class":
		k = protocol.CompletionItemKindClass
	case "module":
		k = protocol.CompletionItemKindModule
	case "keyword":
		k = protocol.CompletionItemKindKeyword
	case "property":
		k = protocol.CompletionItemKindProperty
	case "path":
		k = protocol.CompletionItemKindFile
	case "instance", "param", "statement":
		k = protocol.CompletionItemKindVariable
	default:
		k = protocol.CompletionItemKindText
	}
	return &k
}

// runeColumn converts a UTF-16 offset within line to a rune column
func runeColumn(source string, line, utf16Col int) int {
	lines := strings.SplitN(source, "\n", line+2)
	if line >= len(lines) {
		return utf16Col
	}
	units, col := 0, 0
	for _, r := range lines[line] {
		if units >= utf16Col {
			break
		}
		units++
		if r >= 0x10000 {
			units++
		}
		col++
	}
	if units < utf16Col {
		col += utf16Col - units
	}
	return col
}
