package workspacecontext

import (
	"fmt"
	iofs "io/fs"
	"math"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ghostline-dev/ghostline/src/ghostline/internal/fs"
	"go.uber.org/multierr"
)

// fileIndex holds the contents of allow-listed workspace files keyed by absolute path.
type fileIndex map[string]string

// indexOptions bound what the workspace walk collects.
type indexOptions struct {
	Extensions   []string
	SkipDirs     []string
	MaxFiles     int
	MaxFileBytes int
}

func (o indexOptions) allowed(path string) bool {
	return slices.Contains(o.Extensions, strings.ToLower(filepath.Ext(path)))
}

func (o indexOptions) skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || slices.Contains(o.SkipDirs, name)
}

// buildIndex walks root and reads up to MaxFiles allow-listed files, skipping hidden and vendor directories.
// Unreadable files are left out and reported together in the returned error.
func buildIndex(fsys fs.GhostlineFS, root string, opts indexOptions) (fileIndex, []string, error) {
	index := fileIndex{}
	var dirs []string
	var errs error

	walkErr := fsys.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			errs = multierr.Append(errs, err)
			if d != nil && d.IsDir() {
				return iofs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && opts.skipDir(d.Name()) {
				return iofs.SkipDir
			}
			dirs = append(dirs, path)
			return nil
		}
		if !opts.allowed(path) {
			return nil
		}
		if opts.MaxFiles > 0 && len(index) >= opts.MaxFiles {
			return iofs.SkipAll
		}

		content, err := readCapped(fsys, path, opts.MaxFileBytes)
		if err != nil {
			errs = multierr.Append(errs, err)
			return nil
		}
		index[path] = content
		return nil
	})
	if walkErr != nil {
		errs = multierr.Append(errs, fmt.Errorf("walking %q: %w", root, walkErr))
	}
	return index, dirs, errs
}

func readCapped(fsys fs.GhostlineFS, path string, maxBytes int) (string, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", path, err)
	}
	if maxBytes > 0 && len(data) > maxBytes {
		data = data[:maxBytes]
	}
	return string(data), nil
}

// cosineSimilarity is the dot product of a and b over the product of their norms.
// A zero vector has no direction, so its similarity to anything is 0.
func cosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type scoredPath struct {
	Path  string
	Score float64
}

// rankBySimilarity returns the topK paths whose embeddings are closest to query, best first.
func rankBySimilarity(query []float32, embeddings map[string][]float32, topK int) []scoredPath {
	scored := make([]scoredPath, 0, len(embeddings))
	for path, vector := range embeddings {
		scored = append(scored, scoredPath{Path: path, Score: cosineSimilarity(query, vector)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Path < scored[j].Path
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// truncateToTokens cuts text to the budget, counting four characters per token.
func truncateToTokens(text string, maxTokens int) string {
	limit := maxTokens * _charsPerToken
	if maxTokens <= 0 || len(text) <= limit {
		return text
	}
	cut := limit
	// Do not split a multi-byte character.
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
