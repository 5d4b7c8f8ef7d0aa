// Package retrieval keeps a naive keyword index of the workspace and serves
// ranked snippets to the context manager.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Cyclone1070/aicoder/internal/contextmgr"
	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/tool/service/fs"
	"github.com/Cyclone1070/aicoder/internal/tool/service/git"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxFileSize = 256 * 1024
	defaultChunkLines  = 40
	defaultWorkers     = 4
)

var wordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]{2,}`)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {}, "from": {},
	"are": {}, "was": {}, "you": {}, "your": {}, "not": {}, "but": {}, "can": {},
	"how": {}, "what": {}, "why": {}, "please": {}, "into": {}, "have": {},
}

type fileSystem interface {
	ReadFile(path string) ([]byte, error)
	Walk(root string, fn iofs.WalkDirFunc) error
}

// Options configures an Index.
type Options struct {
	MaxFileSize int64
	ChunkLines  int
	Workers     int
}

type chunk struct {
	startLine int
	endLine   int
	text      string
	terms     map[string]int
}

// Index is an in-memory keyword index of workspace text files. Retrieve may
// be called concurrently with Build and with watcher updates.
type Index struct {
	root   string
	fs     fileSystem
	ignore git.Matcher
	opts   Options
	logger *zap.Logger

	mu      sync.RWMutex
	files   map[string][]chunk
	builtAt time.Time

	built     chan struct{}
	builtOnce sync.Once
}

// New creates an empty index over root. ignore may be nil.
func New(root string, fsys fileSystem, ignore git.Matcher, opts Options, logger *zap.Logger) *Index {
	if root == "" {
		panic("root is required")
	}
	if fsys == nil {
		panic("fs is required")
	}
	if ignore == nil {
		ignore = git.NoOpMatcher{}
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	if opts.ChunkLines <= 0 {
		opts.ChunkLines = defaultChunkLines
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	return &Index{
		root:   root,
		fs:     fsys,
		ignore: ignore,
		opts:   opts,
		logger: logging.OrNop(logger),
		files:  make(map[string][]chunk),
		built:  make(chan struct{}),
	}
}

// Build walks the workspace and indexes every text file in parallel. The
// previous contents are replaced only when the whole build succeeds.
func (x *Index) Build(ctx context.Context) error {
	defer x.builtOnce.Do(func() { close(x.built) })
	start := time.Now()

	var paths []string
	err := x.fs.Walk(x.root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			if p == x.root {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, ok := x.rel(p)
		if !ok {
			return nil
		}
		if d.IsDir() {
			if rel != "" && x.skip(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && !x.skip(rel, false) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk workspace: %w", err)
	}

	results := make([][]chunk, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.Workers)
	for i, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = x.load(rel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	files := make(map[string][]chunk, len(paths))
	for i, rel := range paths {
		if results[i] != nil {
			files[rel] = results[i]
		}
	}

	x.mu.Lock()
	x.files = files
	x.builtAt = time.Now()
	x.mu.Unlock()

	x.logger.Info("workspace indexed", zap.Int("files", len(files)), zap.Duration("took", time.Since(start)))
	return nil
}

// Ready reports whether a build has completed.
func (x *Index) Ready() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return !x.builtAt.IsZero()
}

// Wait blocks until the first build finishes, timeout passes or ctx is done,
// and reports whether the index is ready.
func (x *Index) Wait(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-x.built:
	case <-timer.C:
	case <-ctx.Done():
	}
	return x.Ready()
}

// Len returns the number of indexed files.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.files)
}

// Update re-reads one workspace-relative file. Files that are ignored,
// binary, too large or gone are dropped from the index.
func (x *Index) Update(rel string) {
	rel = filepath.ToSlash(rel)
	var chunks []chunk
	if !x.skip(rel, false) {
		chunks = x.load(rel)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if chunks == nil {
		delete(x.files, rel)
		return
	}
	x.files[rel] = chunks
}

// Remove drops rel and everything below it.
func (x *Index) Remove(rel string) {
	rel = filepath.ToSlash(rel)
	x.mu.Lock()
	defer x.mu.Unlock()
	for name := range x.files {
		if name == rel || strings.HasPrefix(name, rel+"/") {
			delete(x.files, name)
		}
	}
}

// Retrieve returns up to limit chunks ranked by how often they contain the
// query's terms. Ties are ordered by source.
func (x *Index) Retrieve(ctx context.Context, query string, limit int) ([]contextmgr.Snippet, error) {
	terms := queryTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var hits []contextmgr.Snippet
	for rel, chunks := range x.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, c := range chunks {
			score := 0
			for _, t := range terms {
				score += c.terms[t]
			}
			if score == 0 {
				continue
			}
			hits = append(hits, contextmgr.Snippet{
				Source: fmt.Sprintf("%s:%d-%d", rel, c.startLine, c.endLine),
				Text:   c.text,
				Score:  float64(score),
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Source < hits[j].Source
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (x *Index) rel(p string) (string, bool) {
	rel, err := filepath.Rel(x.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}

func (x *Index) skip(rel string, isDir bool) bool {
	if isDir && git.IsIgnoredDir(filepath.Base(rel)) {
		return true
	}
	return x.ignore.ShouldIgnore(rel, isDir)
}

// load reads and chunks one file. It returns nil for files that should not
// be indexed.
func (x *Index) load(rel string) []chunk {
	data, err := x.fs.ReadFile(filepath.Join(x.root, filepath.FromSlash(rel)))
	if err != nil {
		if !errors.Is(err, fs.ErrNotFound) {
			x.logger.Debug("skip unreadable file", zap.String("path", rel), zap.Error(err))
		}
		return nil
	}
	if int64(len(data)) > x.opts.MaxFileSize || fs.IsBinary(data) {
		return nil
	}
	return chunkText(string(data), x.opts.ChunkLines)
}

func chunkText(text string, size int) []chunk {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	chunks := make([]chunk, 0, len(lines)/size+1)
	for start := 0; start < len(lines); start += size {
		end := min(start+size, len(lines))
		body := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}
		chunks = append(chunks, chunk{
			startLine: start + 1,
			endLine:   end,
			text:      body,
			terms:     countTerms(body),
		})
	}
	return chunks
}

func countTerms(s string) map[string]int {
	counts := make(map[string]int)
	for _, w := range wordPattern.FindAllString(s, -1) {
		counts[strings.ToLower(w)]++
	}
	return counts
}

func queryTerms(q string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, w := range wordPattern.FindAllString(q, -1) {
		w = strings.ToLower(w)
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}
