// Package scan walks a directory tree and emits regular files as upload
// candidates. The walk is lazy: entries are pushed into a small buffered
// channel so the rest of the pipeline never holds the whole file list in
// memory.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/immichup/internal/logging"
)

var (
	// ErrNotFound means the scan root does not exist or is not a directory.
	ErrNotFound = errors.New("scan root not found")
	// ErrPermission means the scan root exists but cannot be read.
	ErrPermission = errors.New("scan root not readable")
)

// Entry is a single regular file found under the scan root.
type Entry struct {
	// Path is the absolute path of the file.
	Path string
	// Rel is the path relative to the scan root.
	Rel string
}

// Options controls a single scan.
type Options struct {
	// Recursive walks subdirectories; otherwise only the root's immediate
	// children are considered.
	Recursive bool
	// Lookahead is the channel buffer size. Zero means DefaultLookahead.
	Lookahead int
}

// DefaultLookahead bounds how far the walk may run ahead of the consumers.
const DefaultLookahead = 16

type Scanner struct {
	log logging.Logger
}

func New(log logging.Logger) *Scanner {
	return &Scanner{log: log}
}

// Scan validates root and starts the walk in a background goroutine.
// Root problems (missing, not a directory, unreadable) are reported once,
// up front, via the returned error; after that, individual unreadable
// entries are logged and skipped without stopping the walk.
//
// The returned channel is closed when the walk finishes or ctx is
// cancelled. Symbolic links are never followed.
func (s *Scanner) Scan(ctx context.Context, root string, opts Options) (<-chan Entry, error) {
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("%w: %s", ErrPermission, root)
	case err != nil:
		return nil, fmt.Errorf("stat %s: %w", root, err)
	case !info.IsDir():
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, root)
	}

	// Opening the directory catches a permission problem before any worker
	// starts, instead of surfacing it as per-file warnings mid-walk.
	dir, err := os.Open(root)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrPermission, root)
		}
		return nil, fmt.Errorf("open %s: %w", root, err)
	}
	_ = dir.Close()

	lookahead := opts.Lookahead
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}

	out := make(chan Entry, lookahead)
	go func() {
		defer close(out)
		if opts.Recursive {
			s.walk(ctx, root, out)
			return
		}
		s.listRoot(ctx, root, out)
	}()
	return out, nil
}

func (s *Scanner) walk(ctx context.Context, root string, out chan<- Entry) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return fs.SkipAll
		}
		if walkErr != nil {
			// A single unreadable entry must not abort the batch.
			s.log.Warn(ctx, "skipping unreadable entry", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		// Type() does not follow symlinks, so linked files and directories
		// are excluded here, which also rules out walk cycles.
		if !d.Type().IsRegular() {
			return nil
		}
		return s.emit(ctx, root, path, out)
	})
}

func (s *Scanner) listRoot(ctx context.Context, root string, out chan<- Entry) {
	entries, err := os.ReadDir(root)
	if err != nil {
		s.log.Warn(ctx, "reading scan root", "path", root, "error", err)
		return
	}
	for _, d := range entries {
		if ctx.Err() != nil {
			return
		}
		if !d.Type().IsRegular() {
			continue
		}
		if err := s.emit(ctx, root, filepath.Join(root, d.Name()), out); err != nil {
			return
		}
	}
}

func (s *Scanner) emit(ctx context.Context, root, path string, out chan<- Entry) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		s.log.Warn(ctx, "skipping entry outside root", "path", path, "error", err)
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	select {
	case out <- Entry{Path: abs, Rel: rel}:
		return nil
	case <-ctx.Done():
		return fs.SkipAll
	}
}
