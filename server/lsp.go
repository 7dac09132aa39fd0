// Package server implements the clasp language server.
package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/clasp/compiler"
	"github.com/chazu/clasp/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "clasp-lsp"

// evalTimeout bounds how long hover waits for a document to run.
const evalTimeout = 2 * time.Second

var log = commonlog.GetLogger("clasp.server")

// LspServer provides diagnostics, hover, completion and navigation for
// clasp documents. Programs are run on a VMWorker.
type LspServer struct {
	worker *VMWorker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server. opts configure the VMs used to evaluate
// documents.
func NewLSP(version string, opts ...vm.Option) *LspServer {
	s := &LspServer{
		worker:  NewVMWorker(opts...),
		docs:    make(map[string]string),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// Close stops the evaluation worker.
func (s *LspServer) Close() {
	s.worker.Stop()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Infof("%s %s initializing", lspName, s.version)

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.setDocument(uri, text)
	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.setDocument(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) setDocument(uri protocol.DocumentUri, text string) {
	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(text, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	evalCtx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()
	return s.hover(evalCtx, text, params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	locs := definition(params.TextDocument.URI, text, params.Position)
	if len(locs) == 0 {
		return nil, nil
	}
	return locs, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return references(params.TextDocument.URI, text, params.Position, params.Context.IncludeDeclaration), nil
}

// --- Document analysis ---

// symbolAt parses text and resolves the identifier under pos.
func symbolAt(text string, pos protocol.Position) (*compiler.Ident, *compiler.Symbol) {
	file, err := compiler.Parse(text)
	if file == nil {
		if err != nil {
			log.Debugf("parse failed: %v", err)
		}
		return nil, nil
	}
	res := compiler.Resolve(file)
	return res.At(compiler.Position{Line: int(pos.Line), Column: int(pos.Character)})
}

func complete(text, prefix string) []protocol.CompletionItem {
	file, _ := compiler.Parse(text)
	if file == nil {
		return nil
	}

	seen := make(map[string]bool)
	var items []protocol.CompletionItem
	for _, sym := range compiler.Resolve(file).Symbols {
		if seen[sym.Name] || sym.Name == prefix || !strings.HasPrefix(sym.Name, prefix) {
			continue
		}
		seen[sym.Name] = true

		kind := protocol.CompletionItemKindVariable
		detail := sym.Kind.String()
		if sym.IsFunction() {
			kind = protocol.CompletionItemKindFunction
			detail = fmt.Sprintf("function of %d", len(sym.Value.(*compiler.Lambda).Params))
		}
		name := sym.Name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &name,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

// hover describes the name under pos and the value the whole document
// evaluates to.
func (s *LspServer) hover(ctx context.Context, text string, pos protocol.Position) *protocol.Hover {
	id, sym := symbolAt(text, pos)
	if sym == nil {
		word := extractWord(text, pos)
		if word == "" || !unicode.IsLetter([]rune(word)[0]) {
			return nil
		}
		return &protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: fmt.Sprintf("**%s** is not defined here", word),
			},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** %s", sym.Name, sym.Kind)
	if sym.IsFunction() {
		fmt.Fprintf(&b, " (function of %d)", len(sym.Value.(*compiler.Lambda).Params))
	}
	fmt.Fprintf(&b, ", declared at line %d\n", sym.Decl.SpanVal.Start.Line+1)

	prog, err := compiler.Compile("document", text)
	if err == nil {
		eval, err := s.worker.Eval(ctx, prog)
		switch {
		case err == nil:
			fmt.Fprintf(&b, "\n---\n\nProgram result: `%s` (%d steps)\n", eval.Result, eval.Steps)
		case errors.Is(err, context.DeadlineExceeded):
			fmt.Fprintf(&b, "\n---\n\nProgram did not finish within %s\n", evalTimeout)
		default:
			fmt.Fprintf(&b, "\n---\n\nProgram failed: %v\n", err)
		}
	}

	r := spanRange(id.SpanVal)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
		Range: &r,
	}
}

func definition(uri protocol.DocumentUri, text string, pos protocol.Position) []protocol.Location {
	_, sym := symbolAt(text, pos)
	if sym == nil {
		return nil
	}
	return []protocol.Location{{URI: uri, Range: spanRange(sym.Decl.SpanVal)}}
}

func references(uri protocol.DocumentUri, text string, pos protocol.Position, includeDecl bool) []protocol.Location {
	_, sym := symbolAt(text, pos)
	if sym == nil {
		return nil
	}
	var locs []protocol.Location
	if includeDecl {
		locs = append(locs, protocol.Location{URI: uri, Range: spanRange(sym.Decl.SpanVal)})
	}
	for _, use := range sym.Uses {
		locs = append(locs, protocol.Location{URI: uri, Range: spanRange(use.SpanVal)})
	}
	return locs
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(text),
	})
}

// diagnostics compiles text and reports every lexical, syntax and name
// error at its source range. A blank document has no diagnostics.
func diagnostics(text string) []protocol.Diagnostic {
	diags := []protocol.Diagnostic{}
	if strings.TrimSpace(text) == "" {
		return diags
	}
	_, err := compiler.Compile("document", text)
	if err == nil {
		return diags
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName

	var list compiler.ErrorList
	if !errors.As(err, &list) {
		return append(diags, protocol.Diagnostic{
			Severity: &severity,
			Source:   &source,
			Message:  err.Error(),
		})
	}
	for _, e := range list {
		diags = append(diags, protocol.Diagnostic{
			Range:    spanRange(compiler.Span{Start: e.Pos, End: e.End}),
			Severity: &severity,
			Source:   &source,
			Message:  e.Msg,
		})
	}
	return diags
}

func spanRange(s compiler.Span) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(s.Start.Line), Character: protocol.UInteger(s.Start.Column)},
		End:   protocol.Position{Line: protocol.UInteger(s.End.Line), Character: protocol.UInteger(s.End.Column)},
	}
}

// --- Text extraction helpers ---

func isNameChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// lineRunes returns the line at pos and the cursor column clamped to it.
func lineRunes(text string, pos protocol.Position) ([]rune, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return nil, 0, false
	}
	line := []rune(lines[pos.Line])
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	return line, col, true
}

// extractPrefix returns the name fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineRunes(text, pos)
	if !ok {
		return ""
	}
	start := col
	for start > 0 && isNameChar(line[start-1]) {
		start--
	}
	return string(line[start:col])
}

// extractWord returns the whole name under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := lineRunes(text, pos)
	if !ok {
		return ""
	}
	start := col
	for start > 0 && isNameChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isNameChar(line[end]) {
		end++
	}
	return string(line[start:end])
}

func boolPtr(b bool) *bool {
	return &b
}
