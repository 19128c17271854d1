package docsync

import (
	"context"
	"fmt"
	"sort"
	"sync"

	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	ghostlineerrors "github.com/ghostline-dev/ghostline/src/ghostline/internal/errors"
	"github.com/ghostline-dev/ghostline/src/ghostline/mapper"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/session"
	"github.com/gofrs/uuid"
	"github.com/uber-go/tally/v4"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:generate mockgen -destination docsyncmock/doc_sync_mock.go -package docsyncmock . Controller

const (
	_nameKey        = "doc-sync"
	_maxFileSizeKey = "maxFileSizeBytes"
)

// ChangeObserver is notified after a didChange has been applied to the stored document.
type ChangeObserver func(ctx context.Context, doc protocol.TextDocumentItem, changes []protocol.TextDocumentContentChangeEvent)

// Controller defines the interface for a document sync controller.
type Controller interface {
	StartupInfo(ctx context.Context) (ghostlineplugin.PluginInfo, error)

	// Returns the current version of the text document as of the last received DidChange event.
	GetTextDocument(ctx context.Context, doc protocol.TextDocumentIdentifier) (protocol.TextDocumentItem, error)

	// ListOpenDocuments returns the documents open in the current session, sorted by URI.
	ListOpenDocuments(ctx context.Context) ([]protocol.TextDocumentItem, error)

	// Observe registers an observer for document changes in the given session.
	// The returned function removes the observer and is safe to call more than once.
	Observe(ctx context.Context, id uuid.UUID, observer ChangeObserver) (unsubscribe func())
}

// Params are inbound parameters to initialize a new plugin.
type Params struct {
	fx.In

	Sessions session.Repository
	Logger   *zap.SugaredLogger
	Stats    tally.Scope
	Config   config.Provider
}

type documentStore map[uuid.UUID]map[protocol.TextDocumentIdentifier]protocol.TextDocumentItem

type observerEntry struct {
	id       uint64
	observer ChangeObserver
}

type controller struct {
	sessions         session.Repository
	logger           *zap.SugaredLogger
	documents        documentStore
	documentsMu      sync.RWMutex
	observers        map[uuid.UUID][]observerEntry
	observersMu      sync.Mutex
	nextObserverID   uint64
	stats            tally.Scope
	maxFileSizeBytes int64
}

// New creates a new controller for document sync.
func New(p Params) (Controller, error) {
	var maxFileSizeBytes int64
	if err := p.Config.Get(_maxFileSizeKey).Populate(&maxFileSizeBytes); err != nil || maxFileSizeBytes == 0 {
		return nil, fmt.Errorf("unable to get maximum file size from config: %w", err)
	}

	c := &controller{
		sessions:         p.Sessions,
		logger:           p.Logger.With("plugin", _nameKey),
		documents:        make(documentStore),
		observers:        make(map[uuid.UUID][]observerEntry),
		stats:            p.Stats.SubScope("doc_sync"),
		maxFileSizeBytes: maxFileSizeBytes,
	}
	defer c.updateMetrics(context.Background())
	return c, nil
}

// StartupInfo returns PluginInfo for this controller.
func (c *controller) StartupInfo(ctx context.Context) (ghostlineplugin.PluginInfo, error) {
	priorities := map[string]ghostlineplugin.Priority{
		protocol.MethodInitialize: ghostlineplugin.PriorityHigh,
		protocol.MethodShutdown:   ghostlineplugin.PriorityAsync,

		protocol.MethodTextDocumentDidOpen:   ghostlineplugin.PriorityHigh,
		protocol.MethodTextDocumentDidChange: ghostlineplugin.PriorityHigh,
		protocol.MethodTextDocumentDidClose:  ghostlineplugin.PriorityAsync,
		protocol.MethodTextDocumentDidSave:   ghostlineplugin.PriorityHigh,
		ghostlineplugin.MethodEndSession:     ghostlineplugin.PriorityRegular,
	}

	methods := &ghostlineplugin.Methods{
		PluginNameKey: _nameKey,

		Initialize: c.initialize,
		Shutdown:   c.shutdown,

		DidOpen:   c.didOpen,
		DidChange: c.didChange,
		DidClose:  c.didClose,
		DidSave:   c.didSave,

		EndSession: c.endSession,
	}

	return ghostlineplugin.PluginInfo{
		Priorities: priorities,
		Methods:    methods,
		NameKey:    _nameKey,
	}, nil
}

func (c *controller) GetTextDocument(ctx context.Context, doc protocol.TextDocumentIdentifier) (protocol.TextDocumentItem, error) {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return protocol.TextDocumentItem{}, err
	}

	c.documentsMu.RLock()
	defer c.documentsMu.RUnlock()

	if _, ok := c.documents[s.UUID]; !ok {
		return protocol.TextDocumentItem{}, &ghostlineerrors.UUIDNotFoundError{UUID: s.UUID}
	}

	item, ok := c.documents[s.UUID][doc]
	if !ok {
		return protocol.TextDocumentItem{}, &ghostlineerrors.DocumentNotFoundError{Document: doc}
	}
	return item, nil
}

func (c *controller) ListOpenDocuments(ctx context.Context) ([]protocol.TextDocumentItem, error) {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return nil, err
	}

	c.documentsMu.RLock()
	defer c.documentsMu.RUnlock()

	docs, ok := c.documents[s.UUID]
	if !ok {
		return nil, &ghostlineerrors.UUIDNotFoundError{UUID: s.UUID}
	}

	result := make([]protocol.TextDocumentItem, 0, len(docs))
	for _, item := range docs {
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].URI < result[j].URI })
	return result, nil
}

func (c *controller) Observe(ctx context.Context, id uuid.UUID, observer ChangeObserver) func() {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()

	c.nextObserverID++
	entryID := c.nextObserverID
	c.observers[id] = append(c.observers[id], observerEntry{id: entryID, observer: observer})

	var once sync.Once
	return func() {
		once.Do(func() { c.removeObserver(id, entryID) })
	}
}

func (c *controller) removeObserver(id uuid.UUID, entryID uint64) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()

	entries := c.observers[id]
	for i, entry := range entries {
		if entry.id == entryID {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(c.observers, id)
		return
	}
	c.observers[id] = entries
}

func (c *controller) notifyObservers(ctx context.Context, id uuid.UUID, doc protocol.TextDocumentItem, changes []protocol.TextDocumentContentChangeEvent) {
	c.observersMu.Lock()
	entries := append([]observerEntry(nil), c.observers[id]...)
	c.observersMu.Unlock()

	for _, entry := range entries {
		entry.observer(ctx, doc, changes)
	}
}

// initialize adds an entry to keep track of this session's documents.
func (c *controller) initialize(ctx context.Context, params *protocol.InitializeParams, result *protocol.InitializeResult) error {
	defer c.updateMetrics(ctx)
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	c.documentsMu.Lock()
	defer c.documentsMu.Unlock()
	c.documents[s.UUID] = make(map[protocol.TextDocumentIdentifier]protocol.TextDocumentItem)
	return nil
}

// shutdown removes this session's documents.
func (c *controller) shutdown(ctx context.Context) error {
	defer c.updateMetrics(ctx)
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	return c.disposeSession(ctx, s.UUID)
}

// endSession removes this session's documents in the event that no shutdown request is received.
func (c *controller) endSession(ctx context.Context, uuid uuid.UUID) error {
	defer c.updateMetrics(ctx)
	return c.disposeSession(ctx, uuid)
}

// didOpen adds an entry for a newly opened document and stores its initial contents.
func (c *controller) didOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	defer c.updateMetrics(ctx)
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	c.documentsMu.Lock()
	defer c.documentsMu.Unlock()
	if c.documents[s.UUID] == nil {
		return &ghostlineerrors.UUIDNotFoundError{UUID: s.UUID}
	}

	if err := c.validateSize(params.TextDocument.Text); err != nil {
		// Large generated files are expected. Later lookups of this document fail with DocumentNotFoundError.
		c.logger.Warnf("unable to track open document %q: %v", params.TextDocument.URI, err)
		return nil
	}

	c.documents[s.UUID][protocol.TextDocumentIdentifier{URI: params.TextDocument.URI}] = params.TextDocument
	return nil
}

// didClose deletes the entry for a closed document.
func (c *controller) didClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	defer c.updateMetrics(ctx)
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	c.documentsMu.Lock()
	defer c.documentsMu.Unlock()
	delete(c.documents[s.UUID], params.TextDocument)
	return nil
}

// didChange updates the document with the latest incoming changes, then notifies observers.
func (c *controller) didChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	defer c.updateMetrics(ctx)
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	updated, err := c.updateDocumentText(s.UUID, params)
	if err != nil {
		return fmt.Errorf("adding changes to document: %w", err)
	}

	c.notifyObservers(ctx, s.UUID, updated, params.ContentChanges)
	return nil
}

func (c *controller) didSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	c.documentsMu.Lock()
	defer c.documentsMu.Unlock()

	item, ok := c.documents[s.UUID][params.TextDocument]
	if !ok {
		return &ghostlineerrors.DocumentNotFoundError{Document: params.TextDocument}
	}

	// Text is only present when the client is configured with includeText.
	if params.Text != "" {
		item.Text = params.Text
		c.documents[s.UUID][params.TextDocument] = item
	}
	return nil
}

// disposeSession removes a session's documents and observers based on the session UUID.
func (c *controller) disposeSession(ctx context.Context, id uuid.UUID) error {
	c.documentsMu.Lock()
	delete(c.documents, id)
	c.documentsMu.Unlock()

	c.observersMu.Lock()
	delete(c.observers, id)
	c.observersMu.Unlock()
	return nil
}

func (c *controller) updateMetrics(ctx context.Context) {
	c.documentsMu.RLock()
	defer c.documentsMu.RUnlock()

	openDocs := 0
	openBytes := 0
	for _, sessionDocs := range c.documents {
		openDocs += len(sessionDocs)
		for _, item := range sessionDocs {
			openBytes += len(item.Text)
		}
	}
	c.stats.Gauge("open_docs").Update(float64(openDocs))
	c.stats.Gauge("open_bytes").Update(float64(openBytes))
}

func (c *controller) validateSize(text string) error {
	size := int64(len(text))
	if size > c.maxFileSizeBytes {
		return &ghostlineerrors.DocumentSizeLimitError{Size: size}
	}
	return nil
}

func (c *controller) updateDocumentText(id uuid.UUID, params *protocol.DidChangeTextDocumentParams) (protocol.TextDocumentItem, error) {
	c.documentsMu.Lock()
	defer c.documentsMu.Unlock()

	doc, ok := c.documents[id][params.TextDocument.TextDocumentIdentifier]
	if !ok {
		return protocol.TextDocumentItem{}, &ghostlineerrors.DocumentNotFoundError{Document: params.TextDocument.TextDocumentIdentifier}
	}

	text, err := mapper.ApplyContentChanges(doc.Text, params.ContentChanges)
	if err != nil {
		return protocol.TextDocumentItem{}, err
	}

	if err := c.validateSize(text); err != nil {
		delete(c.documents[id], params.TextDocument.TextDocumentIdentifier)
		return protocol.TextDocumentItem{}, fmt.Errorf("unable to add changes to document %q: %w", doc.URI, err)
	}

	doc.Text = text
	doc.Version = params.TextDocument.Version
	c.documents[id][params.TextDocument.TextDocumentIdentifier] = doc
	return doc, nil
}
