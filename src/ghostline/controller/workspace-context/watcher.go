package workspacecontext

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"
)

// startWatching keeps the session's index current until stopWatching is called.
func (c *controller) startWatching(state *workspaceState, dirs []string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.watcher != nil {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.logger.Warnf("File watcher unavailable, the workspace index will not be refreshed: %v", err)
		return
	}
	var errs error
	for _, dir := range dirs {
		errs = multierr.Append(errs, watcher.Add(dir))
	}
	if errs != nil {
		c.logger.Warnf("watching %d of %d directories failed: %v", len(multierr.Errors(errs)), len(dirs), errs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	state.watcher = watcher
	state.cancel = cancel
	state.closer = make(chan struct{})
	state.done = make(chan struct{})
	go c.handleChanges(ctx, state, watcher, state.closer, state.done)
}

// stopWatching closes the watcher and waits for its goroutine to exit.
func (c *controller) stopWatching(state *workspaceState) {
	state.mu.Lock()
	cancel, closer, done := state.cancel, state.closer, state.done
	state.watcher, state.cancel, state.closer, state.done = nil, nil, nil, nil
	state.mu.Unlock()

	if closer == nil {
		return
	}
	cancel()
	close(closer)
	<-done
}

func (c *controller) handleChanges(ctx context.Context, state *workspaceState, watcher *fsnotify.Watcher, closer, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			c.applyEvent(ctx, state, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warnf("Failure in workspace watcher: %v", err)
		case <-closer:
			if err := watcher.Close(); err != nil {
				c.logger.Warnf("Failed to close workspace watcher: %v", err)
			}
			return
		}
	}
}

// applyEvent updates the index and, when embeddings are in use, the embedding of a changed file.
func (c *controller) applyEvent(ctx context.Context, state *workspaceState, watcher *fsnotify.Watcher, event fsnotify.Event) {
	opts := c.config.indexOptions()
	if c.inSkippedDir(state.root, event.Name) {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		state.mu.Lock()
		delete(state.index, event.Name)
		delete(state.embeddings, event.Name)
		state.mu.Unlock()
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if isDir, err := c.fs.DirExists(event.Name); err == nil && isDir {
		if event.Has(fsnotify.Create) {
			if err := watcher.Add(event.Name); err != nil {
				c.logger.Warnf("watching new directory %q: %v", event.Name, err)
			}
		}
		return
	}
	if !opts.allowed(event.Name) {
		return
	}

	content, err := readCapped(c.fs, event.Name, opts.MaxFileBytes)
	if err != nil {
		c.logger.Debugf("skipping changed file: %v", err)
		return
	}

	state.mu.Lock()
	_, known := state.index[event.Name]
	if state.index == nil || (!known && opts.MaxFiles > 0 && len(state.index) >= opts.MaxFiles) {
		state.mu.Unlock()
		return
	}
	state.index[event.Name] = content
	modelID, embedding := state.modelID, state.embeddings != nil
	state.mu.Unlock()

	if !embedding {
		return
	}
	vectors, err := c.embed(ctx, modelID, []string{c.embeddingText(event.Name, content)})
	if err != nil {
		c.logger.Warnf("re-embedding %q: %v", event.Name, err)
		return
	}

	state.mu.Lock()
	if state.embeddings != nil {
		state.embeddings[event.Name] = vectors[0]
	}
	state.mu.Unlock()
}

func (c *controller) inSkippedDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	opts := c.config.indexOptions()
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, part := range parts[:len(parts)-1] {
		if opts.skipDir(part) {
			return true
		}
	}
	return false
}
