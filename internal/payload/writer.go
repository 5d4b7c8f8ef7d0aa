package payload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"go.uber.org/zap"
)

type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	WriteFileAtomic(path string, content []byte, perm os.FileMode) error
	EnsureDirs(path string) error
}

type guard interface {
	Resolve(p string) (abs, rel string, err error)
}

// WriteReport counts the files a Write created and overwrote.
type WriteReport struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Writer writes generated projects into the workspace through the tool
// layer's filesystem and path policy.
type Writer struct {
	fs     fileSystem
	guard  guard
	logger *zap.Logger
}

// NewWriter creates a Writer.
func NewWriter(fsys fileSystem, g guard, logger *zap.Logger) *Writer {
	if fsys == nil {
		panic("fs is required")
	}
	if g == nil {
		panic("guard is required")
	}
	return &Writer{fs: fsys, guard: g, logger: logging.OrNop(logger)}
}

type resolvedFile struct {
	abs, rel string
	file     File
}

// Write normalizes every path, checks all of them against the policy and only
// then writes. Executable files get mode 0755, others 0644.
func (w *Writer) Write(ctx context.Context, project *GeneratedProject) (WriteReport, error) {
	var report WriteReport
	if !project.Valid() {
		return report, ErrNoPayload
	}

	resolved := make([]resolvedFile, 0, len(project.Files))
	for _, f := range project.Files {
		rel := NormalizePath(f.Path)
		if rel == "" {
			return report, ErrEmptyPath
		}
		abs, rel, err := w.guard.Resolve(rel)
		if err != nil {
			return report, fmt.Errorf("%s: %w", f.Path, err)
		}
		resolved = append(resolved, resolvedFile{abs: abs, rel: rel, file: f})
	}

	for _, rf := range resolved {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		created := true
		if info, err := w.fs.Stat(rf.abs); err == nil {
			if info.IsDir() {
				return report, fmt.Errorf("%s: path is a directory", rf.rel)
			}
			created = false
		}

		if err := w.fs.EnsureDirs(filepath.Dir(rf.abs)); err != nil {
			return report, fmt.Errorf("create directories for %s: %w", rf.rel, err)
		}

		perm := os.FileMode(0o644)
		if rf.file.Executable {
			perm = 0o755
		}
		if err := w.fs.WriteFileAtomic(rf.abs, []byte(rf.file.Content), perm); err != nil {
			return report, fmt.Errorf("write %s: %w", rf.rel, err)
		}

		if created {
			report.Created++
		} else {
			report.Updated++
		}
		w.logger.Debug("payload file written", zap.String("path", rf.rel), zap.Bool("created", created))
	}
	return report, nil
}
