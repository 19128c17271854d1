package workspacecontext

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	docsync "github.com/ghostline-dev/ghostline/src/ghostline/controller/doc-sync"
	"github.com/ghostline-dev/ghostline/src/ghostline/controller/settings"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	ideclient "github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/llm"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/fs"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/logfilewriter"
	"github.com/ghostline-dev/ghostline/src/ghostline/mapper"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/session"
	"github.com/gofrs/uuid"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

//go:generate mockgen -destination workspacecontextmock/workspace_context_mock.go -package workspacecontextmock . Controller

const (
	_nameKey       = "workspace-context"
	_configKey     = "workspaceContext"
	_charsPerToken = 4
)

var _commands = []string{
	entity.CommandAttachWorkspaceContext,
	entity.CommandClearWorkspaceContext,
}

// Controller gathers workspace files to prefix onto prompts.
type Controller interface {
	StartupInfo(ctx context.Context) (ghostlineplugin.PluginInfo, error)
	// Assemble returns the attached files, then either the files most similar to query (once an embedding index
	// exists) or the open buffers followed by any indexed files, each under a "// File: <path>" header and
	// truncated to maxTokens.
	Assemble(ctx context.Context, query string, maxTokens int) (string, error)
}

// Params are inbound parameters to initialize a new plugin.
type Params struct {
	fx.In

	Sessions    session.Repository
	Documents   docsync.Controller
	Settings    settings.Controller
	LLM         llm.Gateway
	IdeGateway  ideclient.Gateway
	FS          fs.GhostlineFS
	ActivityLog logfilewriter.ActivityLog
	Config      config.Provider
	Logger      *zap.SugaredLogger
}

type contextConfig struct {
	Extensions             []string `yaml:"extensions"`
	SkipDirs               []string `yaml:"skipDirs"`
	MaxFiles               int      `yaml:"maxFiles"`
	MaxFileBytes           int      `yaml:"maxFileBytes"`
	EmbedPrefixChars       int      `yaml:"embedPrefixChars"`
	EmbedBatchSize         int      `yaml:"embedBatchSize"`
	EmbedRequestsPerSecond float64  `yaml:"embedRequestsPerSecond"`
	TopK                   int      `yaml:"topK"`
}

func (c contextConfig) indexOptions() indexOptions {
	return indexOptions{
		Extensions:   c.Extensions,
		SkipDirs:     c.SkipDirs,
		MaxFiles:     c.MaxFiles,
		MaxFileBytes: c.MaxFileBytes,
	}
}

var _defaultConfig = contextConfig{
	Extensions:             []string{".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".java", ".kt", ".scala", ".rs", ".c", ".h", ".cpp", ".cs", ".rb", ".php", ".swift", ".md"},
	SkipDirs:               []string{"node_modules", "vendor", "dist", "build", "out", "target", "bazel-out", "__pycache__"},
	MaxFiles:               500,
	MaxFileBytes:           64 * 1024,
	EmbedPrefixChars:       2000,
	EmbedBatchSize:         32,
	EmbedRequestsPerSecond: 2,
	TopK:                   5,
}

// workspaceState is the context gathered for one session.
type workspaceState struct {
	mu         sync.Mutex
	root       string
	attached   []string
	index      fileIndex
	embeddings map[string][]float32
	modelID    string

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	closer  chan struct{}
	done    chan struct{}
}

type controller struct {
	sessions    session.Repository
	documents   docsync.Controller
	settings    settings.Controller
	llm         llm.Gateway
	ideGateway  ideclient.Gateway
	fs          fs.GhostlineFS
	activityLog logfilewriter.ActivityLog
	logger      *zap.SugaredLogger

	config  contextConfig
	limiter *rate.Limiter

	states   map[uuid.UUID]*workspaceState
	statesMu sync.Mutex
}

// New creates a workspace context controller.
func New(p Params) (Controller, error) {
	cfg := _defaultConfig
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = _defaultConfig.TopK
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = _defaultConfig.EmbedBatchSize
	}
	if cfg.EmbedRequestsPerSecond <= 0 {
		cfg.EmbedRequestsPerSecond = _defaultConfig.EmbedRequestsPerSecond
	}

	return &controller{
		sessions:    p.Sessions,
		documents:   p.Documents,
		settings:    p.Settings,
		llm:         p.LLM,
		ideGateway:  p.IdeGateway,
		fs:          p.FS,
		activityLog: p.ActivityLog,
		logger:      p.Logger.With("plugin", _nameKey),
		config:      cfg,
		limiter:     rate.NewLimiter(rate.Limit(cfg.EmbedRequestsPerSecond), 1),
		states:      make(map[uuid.UUID]*workspaceState),
	}, nil
}

// StartupInfo returns PluginInfo for this controller.
func (c *controller) StartupInfo(ctx context.Context) (ghostlineplugin.PluginInfo, error) {
	priorities := map[string]ghostlineplugin.Priority{
		protocol.MethodInitialize:              ghostlineplugin.PriorityRegular,
		protocol.MethodWorkspaceExecuteCommand: ghostlineplugin.PriorityAsync,
		ghostlineplugin.MethodEndSession:       ghostlineplugin.PriorityRegular,
	}

	methods := &ghostlineplugin.Methods{
		PluginNameKey: _nameKey,

		Initialize:     c.initialize,
		ExecuteCommand: c.executeCommand,
		EndSession:     c.endSession,
	}

	return ghostlineplugin.PluginInfo{
		Priorities: priorities,
		Methods:    methods,
		NameKey:    _nameKey,
	}, nil
}

func (c *controller) initialize(ctx context.Context, params *protocol.InitializeParams, result *protocol.InitializeResult) error {
	if err := mapper.InitializeResultAppendExecuteCommandProvider(result, &protocol.ExecuteCommandOptions{Commands: _commands}); err != nil {
		return fmt.Errorf("failed to append ExecuteCommandProvider: %w", err)
	}
	return nil
}

func (c *controller) endSession(ctx context.Context, id uuid.UUID) error {
	c.statesMu.Lock()
	state, ok := c.states[id]
	delete(c.states, id)
	c.statesMu.Unlock()

	if ok {
		c.stopWatching(state)
	}
	return nil
}

func (c *controller) Assemble(ctx context.Context, query string, maxTokens int) (string, error) {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return "", err
	}
	state := c.state(s)

	// The watcher keeps writing to the session's index, so work from a copy.
	state.mu.Lock()
	attached := slices.Clone(state.attached)
	index := maps.Clone(state.index)
	hasEmbeddings := len(state.embeddings) > 0
	state.mu.Unlock()

	budget := maxTokens * _charsPerToken
	var b strings.Builder
	seen := make(map[string]bool)
	write := func(path, content string) {
		if seen[path] || (maxTokens > 0 && b.Len() >= budget) {
			return
		}
		seen[path] = true
		fmt.Fprintf(&b, "// File: %s\n%s\n\n", displayPath(state.root, path), content)
	}

	for _, path := range attached {
		content, ok := index[path]
		if !ok {
			content, err = readCapped(c.fs, path, c.config.MaxFileBytes)
			if err != nil {
				c.logger.Warnf("skipping attached file: %v", err)
				continue
			}
		}
		write(path, content)
	}

	if hasEmbeddings && strings.TrimSpace(query) != "" {
		ranked, err := c.rank(ctx, state, query)
		if err != nil {
			return "", err
		}
		for _, r := range ranked {
			if content, ok := index[r.Path]; ok {
				write(r.Path, content)
			}
		}
	} else {
		docs, err := c.documents.ListOpenDocuments(ctx)
		if err != nil {
			return "", fmt.Errorf("listing open documents: %w", err)
		}
		for _, doc := range docs {
			text := doc.Text
			if c.config.MaxFileBytes > 0 && len(text) > c.config.MaxFileBytes {
				text = text[:c.config.MaxFileBytes]
			}
			write(doc.URI.Filename(), text)
		}

		paths := slices.Sorted(maps.Keys(index))
		for _, path := range paths {
			write(path, index[path])
		}
	}

	return truncateToTokens(b.String(), maxTokens), nil
}

func (c *controller) executeCommand(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	switch params.Command {
	case entity.CommandAttachWorkspaceContext:
		return c.attach(ctx, params)
	case entity.CommandClearWorkspaceContext:
		return c.clear(ctx)
	}
	return nil
}

func (c *controller) attach(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	var args entity.AttachWorkspaceContextArgs
	if err := mapper.ExecuteCommandParamsToArgs(params, &args); err != nil {
		return err
	}
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}
	state := c.state(s)

	switch args.Mode {
	case entity.WorkspaceContextManual, "":
		return c.attachFiles(ctx, state, args.Paths)
	case entity.WorkspaceContextEmbedding:
		return c.attachByEmbedding(ctx, state, args.Query)
	}
	return c.showMessage(ctx, protocol.MessageTypeWarning, fmt.Sprintf("Unknown workspace context mode %q.", args.Mode))
}

func (c *controller) attachFiles(ctx context.Context, state *workspaceState, paths []string) error {
	if len(paths) == 0 {
		return c.showMessage(ctx, protocol.MessageTypeWarning, "No files given to attach.")
	}

	var errs error
	var added []string
	for _, p := range paths {
		path := resolvePath(state.root, p)
		exists, err := c.fs.FileExists(path)
		if err == nil && !exists {
			err = fmt.Errorf("file %q does not exist", path)
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		added = append(added, path)
	}

	state.mu.Lock()
	for _, path := range added {
		if !slices.Contains(state.attached, path) {
			state.attached = append(state.attached, path)
		}
	}
	total := len(state.attached)
	state.mu.Unlock()

	if errs != nil {
		c.logger.Warnf("attaching files: %v", errs)
		c.activityLog.Error("attach context", errs, "skipped", len(multierr.Errors(errs)))
	}
	c.activityLog.Info("attach context", "added", len(added), "total", total)

	msg := fmt.Sprintf("Attached %d file(s) to the workspace context.", len(added))
	if errs != nil {
		msg += fmt.Sprintf(" Skipped %d: %v", len(multierr.Errors(errs)), errs)
	}
	return c.showMessage(ctx, protocol.MessageTypeInfo, msg)
}

func (c *controller) attachByEmbedding(ctx context.Context, state *workspaceState, query string) error {
	current, err := c.settings.Get(ctx)
	if err != nil {
		return err
	}

	count, err := c.indexWorkspace(ctx, state, current.ModelID())
	if err != nil {
		c.activityLog.Error("embed workspace", err, "root", state.root)
		return c.showMessage(ctx, protocol.MessageTypeWarning,
			fmt.Sprintf("Indexed %d file(s) for the workspace context, but embeddings are unavailable: %v", count, err))
	}

	msg := fmt.Sprintf("Indexed %d file(s) for the workspace context.", count)
	if strings.TrimSpace(query) != "" {
		ranked, err := c.rank(ctx, state, query)
		if err != nil {
			return c.showMessage(ctx, protocol.MessageTypeWarning, fmt.Sprintf("Unable to rank files: %v", err))
		}
		names := make([]string, 0, len(ranked))
		for _, r := range ranked {
			names = append(names, displayPath(state.root, r.Path))
		}
		msg += " Most relevant: " + strings.Join(names, ", ")
	}
	return c.showMessage(ctx, protocol.MessageTypeInfo, msg)
}

// indexWorkspace reads the workspace, embeds every file and starts watching it for changes.
// The index is kept when embedding fails, and the embedding error is returned.
func (c *controller) indexWorkspace(ctx context.Context, state *workspaceState, modelID string) (int, error) {
	index, dirs, errs := buildIndex(c.fs, state.root, c.config.indexOptions())
	if errs != nil {
		c.logger.Warnf("indexing %s: %v", state.root, errs)
		c.activityLog.Error("index workspace", errs, "root", state.root, "failures", len(multierr.Errors(errs)))
	}

	embeddings, err := c.embedIndex(ctx, modelID, index)
	if err != nil {
		c.logger.Warnf("embedding %s: %v", state.root, err)
		embeddings = nil
	}

	state.mu.Lock()
	state.index = index
	state.embeddings = embeddings
	state.modelID = modelID
	state.mu.Unlock()

	c.startWatching(state, dirs)
	c.activityLog.Info("index workspace", "root", state.root, "files", len(index), "embedded", len(embeddings))
	return len(index), err
}

// embedIndex embeds a prefix of every indexed file in batches, throttled by the shared limiter.
func (c *controller) embedIndex(ctx context.Context, modelID string, index fileIndex) (map[string][]float32, error) {
	paths := make([]string, 0, len(index))
	for path := range index {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	embeddings := make(map[string][]float32, len(paths))
	for start := 0; start < len(paths); start += c.config.EmbedBatchSize {
		batch := paths[start:min(start+c.config.EmbedBatchSize, len(paths))]
		texts := make([]string, len(batch))
		for i, path := range batch {
			texts[i] = c.embeddingText(path, index[path])
		}

		vectors, err := c.embed(ctx, modelID, texts)
		if err != nil {
			return nil, err
		}
		for i, path := range batch {
			embeddings[path] = vectors[i]
		}
	}
	return embeddings, nil
}

func (c *controller) embed(ctx context.Context, modelID string, texts []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vectors, err := c.llm.Embed(ctx, modelID, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}
	return vectors, nil
}

func (c *controller) embeddingText(path, content string) string {
	if c.config.EmbedPrefixChars > 0 && len(content) > c.config.EmbedPrefixChars {
		content = content[:c.config.EmbedPrefixChars]
	}
	return filepath.Base(path) + "\n" + content
}

// rank embeds the query and scores it against the session's file embeddings.
func (c *controller) rank(ctx context.Context, state *workspaceState, query string) ([]scoredPath, error) {
	state.mu.Lock()
	modelID := state.modelID
	embeddings := make(map[string][]float32, len(state.embeddings))
	for path, vector := range state.embeddings {
		embeddings[path] = vector
	}
	state.mu.Unlock()

	vectors, err := c.embed(ctx, modelID, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return rankBySimilarity(vectors[0], embeddings, c.config.TopK), nil
}

func (c *controller) clear(ctx context.Context) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}
	state := c.state(s)
	c.stopWatching(state)

	state.mu.Lock()
	state.attached = nil
	state.index = nil
	state.embeddings = nil
	state.mu.Unlock()

	c.activityLog.Info("clear context", "root", state.root)
	return c.showMessage(ctx, protocol.MessageTypeInfo, "Workspace context cleared.")
}

func (c *controller) state(s *entity.Session) *workspaceState {
	c.statesMu.Lock()
	defer c.statesMu.Unlock()

	state, ok := c.states[s.UUID]
	if !ok {
		state = &workspaceState{root: s.WorkspaceRoot}
		c.states[s.UUID] = state
	}
	return state
}

func (c *controller) showMessage(ctx context.Context, t protocol.MessageType, msg string) error {
	return c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{Type: t, Message: msg})
}

// resolvePath accepts absolute paths, file URIs and paths relative to the workspace root.
func resolvePath(root, p string) string {
	if strings.HasPrefix(p, "file://") {
		return uri.URI(p).Filename()
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

func displayPath(root, path string) string {
	if root == "" {
		return path
	}
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
